package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/liveedit/pkg/rudeedit"
)

func rulesCmd() *cobra.Command {
	var (
		file   string
		export bool
	)

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Validate and print a body rule table",
		Long: `Print the rule table used to classify body edits. Without --file the
built-in table is shown. --export writes the table in the YAML layout
accepted by analysis.rules_file.

Examples:
  liveedit rules
  liveedit rules --file team-rules.yaml
  liveedit rules --export > rules.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRules(cmd.OutOrStdout(), file, export)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "rule table to validate (default: built-in table)")
	cmd.Flags().BoolVar(&export, "export", false, "write the table as YAML")

	return cmd
}

func runRules(out io.Writer, file string, export bool) error {
	rules := rudeedit.DefaultTable()

	if file != "" {
		reader, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("open rule table: %w", err)
		}

		rules, err = rudeedit.LoadTable(reader)

		closeErr := reader.Close()
		if err != nil {
			return fmt.Errorf("rule table %s: %w", file, err)
		}

		if closeErr != nil {
			return fmt.Errorf("close rule table: %w", closeErr)
		}
	}

	if export {
		return rudeedit.WriteTable(out, rules)
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(out)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Edit", "Node", "When", "Unless", "Requires", "Outcome"})

	for _, rule := range rules.Rules() {
		tbl.AppendRow(table.Row{rule.Edit, rule.Node, rule.When, rule.Unless, rule.Requires, outcome(rule)})
	}

	tbl.Render()

	if file != "" {
		valid := color.New(color.FgGreen)
		if noColor {
			valid.DisableColor()
		}

		valid.Fprintf(out, "%s is valid (%d rules)\n", file, rules.Len())
	}

	return nil
}

func outcome(rule rudeedit.Rule) string {
	if rule.Diagnostic == rudeedit.KindNone {
		return "allow"
	}

	return rule.Severity.String() + " " + rule.Diagnostic.String()
}
