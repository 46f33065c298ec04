// Package render formats analysis results and source diffs for the terminal
// and as an HTML report.
package render

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/liveedit/pkg/engine"
	"github.com/Sumatoshi-tech/liveedit/pkg/rudeedit"
	"github.com/Sumatoshi-tech/liveedit/pkg/snapshot"
)

// Output formats.
const (
	FormatText    = "text"
	FormatSummary = "summary"
	FormatJSON    = "json"
	FormatHTML    = "html"
)

// ErrUnknownFormat is returned for an output format the printer does not know.
var ErrUnknownFormat = errors.New("unknown output format")

const indent = "  "

// Printer writes results to one writer.
type Printer struct {
	writer io.Writer

	blocking      *color.Color
	informational *color.Color
	ready         *color.Color
	muted         *color.Color
	added         *color.Color
	removed       *color.Color
}

// NewPrinter creates a printer. When noColor is set, output carries no ANSI codes.
func NewPrinter(writer io.Writer, noColor bool) *Printer {
	printer := &Printer{
		writer:        writer,
		blocking:      color.New(color.FgRed, color.Bold),
		informational: color.New(color.FgYellow),
		ready:         color.New(color.FgGreen),
		muted:         color.New(color.FgCyan),
		added:         color.New(color.FgGreen),
		removed:       color.New(color.FgRed),
	}

	if noColor {
		for _, c := range []*color.Color{
			printer.blocking, printer.informational, printer.ready,
			printer.muted, printer.added, printer.removed,
		} {
			c.DisableColor()
		}
	}

	return printer
}

// Result writes result in the named format.
func (p *Printer) Result(result *engine.Result, format string) error {
	switch format {
	case FormatText:
		return p.Text(result)
	case FormatSummary:
		return p.Summary(result)
	case FormatJSON:
		return snapshot.WriteJSON(p.writer, result)
	case FormatHTML:
		return p.HTML(result)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// Text writes every document with its diagnostics, edits, active statements
// and line shifts.
func (p *Printer) Text(result *engine.Result) error {
	for idx := range result.Documents {
		err := p.document(&result.Documents[idx])
		if err != nil {
			return err
		}
	}

	return p.footer(result)
}

// Summary writes one table row per document.
func (p *Printer) Summary(result *engine.Result) error {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(p.writer)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Document", "State", "Blocking", "Informational", "Edits", "Active", "Shifts"})

	for _, doc := range result.Documents {
		blocking, informational := countSeverities(doc.Diagnostics)

		tbl.AppendRow(table.Row{
			doc.Document,
			p.state(doc.State),
			blocking,
			informational,
			len(doc.Edits),
			len(doc.ActiveStatements),
			len(doc.LineShifts),
		})
	}

	tbl.Render()

	return p.footer(result)
}

func (p *Printer) document(doc *engine.DocumentResult) error {
	_, err := fmt.Fprintf(p.writer, "%s [%s]\n", doc.Document, p.state(doc.State))
	if err != nil {
		return fmt.Errorf("write document header: %w", err)
	}

	if doc.Failure != "" {
		_, err = p.blocking.Fprintf(p.writer, "%s%s\n", indent, doc.Failure)
		if err != nil {
			return fmt.Errorf("write failure: %w", err)
		}
	}

	if len(doc.Diagnostics) > 0 {
		p.diagnostics(doc)
	}

	if len(doc.Edits) > 0 {
		p.edits(doc)
	}

	if len(doc.ActiveStatements) > 0 {
		p.activeStatements(doc)
	}

	for _, shift := range doc.LineShifts {
		_, err = p.muted.Fprintf(p.writer, "%s%s moved %s %s\n",
			indent, shift.OldSpan, english.Plural(abs(shift.Delta), "line", ""), direction(shift.Delta))
		if err != nil {
			return fmt.Errorf("write line shift: %w", err)
		}
	}

	return nil
}

func (p *Printer) diagnostics(doc *engine.DocumentResult) {
	tbl := p.table("Severity", "Kind", "Location", "Message")

	for _, diag := range doc.Diagnostics {
		tbl.AppendRow(table.Row{p.severity(diag.Severity), diag.Kind, diag.Span, diag.Message()})
	}

	if doc.Dropped > 0 {
		tbl.AppendFooter(table.Row{"", "", "dropped", humanize.Comma(int64(doc.Dropped))})
	}

	tbl.Render()
}

func (p *Printer) edits(doc *engine.DocumentResult) {
	tbl := p.table("Edit", "Symbol", "Was", "Preserve locals")

	for _, edit := range doc.Edits {
		was := ""
		if edit.OldSymbol != "" && edit.OldSymbol != edit.Symbol {
			was = edit.OldSymbol.String()
		}

		tbl.AppendRow(table.Row{edit.Kind, edit.Symbol, was, strconv.FormatBool(edit.PreserveLocalVariables)})
	}

	tbl.Render()
}

func (p *Printer) activeStatements(doc *engine.DocumentResult) {
	tbl := p.table("#", "Span", "Status", "Exception regions")

	for _, stmt := range doc.ActiveStatements {
		regions := make([]string, 0, len(stmt.ExceptionRegions))
		for _, region := range stmt.ExceptionRegions {
			regions = append(regions, region.String())
		}

		tbl.AppendRow(table.Row{stmt.Ordinal, stmt.Span, stmt.Status, strings.Join(regions, " ")})
	}

	tbl.Render()
}

func (p *Printer) table(headers ...any) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(p.writer)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row(headers))

	return tbl
}

func (p *Printer) footer(result *engine.Result) error {
	var blocked, failed, edits int

	for _, doc := range result.Documents {
		switch doc.State {
		case engine.Blocked:
			blocked++
		case engine.Failed:
			failed++
		default:
		}

		edits += len(doc.Edits)
	}

	line := fmt.Sprintf("%s, %s blocked, %s failed, %s",
		english.Plural(len(result.Documents), "document", ""),
		humanize.Comma(int64(blocked)),
		humanize.Comma(int64(failed)),
		english.Plural(edits, "edit", ""))

	painter := p.ready
	if blocked > 0 || failed > 0 {
		painter = p.blocking
	}

	_, err := painter.Fprintln(p.writer, line)
	if err != nil {
		return fmt.Errorf("write footer: %w", err)
	}

	return nil
}

func (p *Printer) state(state engine.State) string {
	switch state {
	case engine.Blocked, engine.Failed:
		return p.blocking.Sprint(state)
	case engine.EditsReady:
		return p.ready.Sprint(state)
	default:
		return p.muted.Sprint(state)
	}
}

func (p *Printer) severity(severity rudeedit.Severity) string {
	if severity == rudeedit.Blocking {
		return p.blocking.Sprint(severity)
	}

	return p.informational.Sprint(severity)
}

func countSeverities(diags []rudeedit.Diagnostic) (blocking, informational int) {
	for _, diag := range diags {
		if diag.Severity == rudeedit.Blocking {
			blocking++
		} else {
			informational++
		}
	}

	return blocking, informational
}

func direction(delta int) string {
	if delta < 0 {
		return "up"
	}

	return "down"
}

func abs(value int) int {
	if value < 0 {
		return -value
	}

	return value
}
