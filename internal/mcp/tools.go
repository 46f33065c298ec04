package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/liveedit/pkg/engine"
	"github.com/Sumatoshi-tech/liveedit/pkg/frontend"
	"github.com/Sumatoshi-tech/liveedit/pkg/rudeedit"
)

// Tool name constants.
const (
	ToolNameAnalyze = "liveedit_analyze"
	ToolNameParse   = "liveedit_parse"
	ToolNameRules   = "liveedit_rules"
)

// MaxCodeInputBytes is the maximum allowed size of one code input (1 MB).
const MaxCodeInputBytes = 1 << 20

// Sentinel errors for input validation.
var (
	ErrEmptyCode     = errors.New("code input is empty")
	ErrCodeTooLarge  = errors.New("code input exceeds maximum size")
	ErrEmptyLanguage = errors.New("language is required")
)

// ToolOutput is the structured output returned by all tools.
type ToolOutput struct {
	Data any `json:"data,omitempty"`
}

// toolset holds what the tool handlers share.
type toolset struct {
	engine       *engine.Engine
	parser       *frontend.Parser
	rules        *rudeedit.Table
	capabilities rudeedit.Capabilities
}

// RuleRow is one entry of the rules tool output.
type RuleRow struct {
	Edit     string `json:"edit"`
	Node     string `json:"node"`
	When     string `json:"when,omitempty"`
	Unless   string `json:"unless,omitempty"`
	Requires string `json:"requires,omitempty"`
	Outcome  string `json:"outcome"`
}

// RulesInput is the input of the rules tool.
type RulesInput struct {
	Node string `json:"node,omitempty" jsonschema:"Only list rules for this node kind"`
}

func (ts *toolset) listRules(
	_ context.Context, _ *mcpsdk.CallToolRequest, input RulesInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	rows := make([]RuleRow, 0, ts.rules.Len())

	for _, rule := range ts.rules.Rules() {
		if input.Node != "" && rule.Node.String() != input.Node {
			continue
		}

		rows = append(rows, ruleRow(rule))
	}

	return jsonResult(rows)
}

func ruleRow(rule rudeedit.Rule) RuleRow {
	row := RuleRow{
		Edit:    rule.Edit.String(),
		Node:    rule.Node.String(),
		Outcome: "allow",
	}

	if rule.When != 0 {
		row.When = rule.When.String()
	}

	if rule.Unless != 0 {
		row.Unless = rule.Unless.String()
	}

	if rule.Requires != 0 {
		row.Requires = rule.Requires.String()
	}

	if rule.Diagnostic != rudeedit.KindNone {
		row.Outcome = rule.Severity.String() + " " + rule.Diagnostic.String()
	}

	return row
}

// validateCodeInput checks that code is non-empty and within size limits.
func validateCodeInput(code string) error {
	if code == "" {
		return ErrEmptyCode
	}

	if len(code) > MaxCodeInputBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrCodeTooLarge, len(code), MaxCodeInputBytes)
	}

	return nil
}

// errorResult creates a CallToolResult indicating an error.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
	}, ToolOutput{}, nil
}

// jsonResult creates a CallToolResult with JSON-serialized data.
func jsonResult(data any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("json marshal: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(encoded)},
		},
	}, ToolOutput{Data: data}, nil
}
