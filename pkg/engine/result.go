package engine

import (
	"fmt"

	"github.com/Sumatoshi-tech/liveedit/pkg/activestmt"
	"github.com/Sumatoshi-tech/liveedit/pkg/rudeedit"
	"github.com/Sumatoshi-tech/liveedit/pkg/semedit"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

// State is the analysis state of one document.
type State uint8

// Document states. Blocked, EditsReady and Failed are terminal.
const (
	Unanalyzed State = iota
	TreeMatched
	RudeEditChecked
	Blocked
	EditsReady
	Failed
)

var stateNames = [...]string{
	Unanalyzed:      "unanalyzed",
	TreeMatched:     "tree-matched",
	RudeEditChecked: "rude-edit-checked",
	Blocked:         "blocked",
	EditsReady:      "edits-ready",
	Failed:          "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}

	return fmt.Sprintf("State(%d)", uint8(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for idx, name := range stateNames {
		if name == string(text) {
			*s = State(idx)

			return nil
		}
	}

	return fmt.Errorf("%w: %q", ErrUnknownState, text)
}

// IsTerminal reports whether no further transition can happen.
func (s State) IsTerminal() bool {
	return s == Blocked || s == EditsReady || s == Failed
}

// LineShift is a declaration or statement that only moved by whole lines.
// Breakpoints inside it can be moved by Delta without re-analysis.
type LineShift struct {
	OldSpan syntax.Span `json:"old_span" msgpack:"old_span"`
	NewSpan syntax.Span `json:"new_span" msgpack:"new_span"`
	Delta   int         `json:"delta"    msgpack:"delta"`
}

// DocumentResult is the outcome of analysing one document.
type DocumentResult struct {
	Document         string                `json:"document"                    msgpack:"document"`
	State            State                 `json:"state"                       msgpack:"state"`
	Diagnostics      []rudeedit.Diagnostic `json:"diagnostics,omitempty"       msgpack:"diagnostics,omitempty"`
	Dropped          int                   `json:"dropped,omitempty"           msgpack:"dropped,omitempty"`
	Edits            []semedit.Edit        `json:"edits,omitempty"             msgpack:"edits,omitempty"`
	ActiveStatements []activestmt.Remapped `json:"active_statements,omitempty" msgpack:"active_statements,omitempty"`
	LineShifts       []LineShift           `json:"line_shifts,omitempty"       msgpack:"line_shifts,omitempty"`
	Failure          string                `json:"failure,omitempty"           msgpack:"failure,omitempty"`
	// BodyScripts counts the member body matches computed for the document.
	BodyScripts int `json:"-" msgpack:"-"`
	// Err is set when State is Failed.
	Err error `json:"-" msgpack:"-"`
}

// HasBlocking reports whether any diagnostic of the document is Blocking.
func (d *DocumentResult) HasBlocking() bool {
	for _, diag := range d.Diagnostics {
		if diag.Severity == rudeedit.Blocking {
			return true
		}
	}

	return false
}

// Result is the outcome of one Analyze call. Documents keep request order.
type Result struct {
	ID        string           `json:"id"        msgpack:"id"`
	Documents []DocumentResult `json:"documents" msgpack:"documents"`
}

// Document returns the result for one document path.
func (r *Result) Document(path string) (*DocumentResult, bool) {
	for idx := range r.Documents {
		if r.Documents[idx].Document == path {
			return &r.Documents[idx], true
		}
	}

	return nil, false
}

// Blocked reports whether any document is blocked.
func (r *Result) Blocked() bool {
	for _, doc := range r.Documents {
		if doc.State == Blocked {
			return true
		}
	}

	return false
}

// Diagnostics returns the diagnostics of every document in document order.
func (r *Result) Diagnostics() []rudeedit.Diagnostic {
	var all []rudeedit.Diagnostic

	for _, doc := range r.Documents {
		all = append(all, doc.Diagnostics...)
	}

	return all
}

// Edits returns the semantic edits of every document in document order.
func (r *Result) Edits() []semedit.Edit {
	var all []semedit.Edit

	for _, doc := range r.Documents {
		all = append(all, doc.Edits...)
	}

	return all
}

// ActiveStatements returns every remapped active statement ordered by ordinal.
func (r *Result) ActiveStatements() []activestmt.Remapped {
	var all []activestmt.Remapped

	for _, doc := range r.Documents {
		all = append(all, doc.ActiveStatements...)
	}

	sortRemapped(all)

	return all
}
