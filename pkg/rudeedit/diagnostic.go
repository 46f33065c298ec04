package rudeedit

import (
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

// Diagnostic is one rude edit report.
type Diagnostic struct {
	Kind     Kind        `json:"kind"     msgpack:"kind"`
	Severity Severity    `json:"severity" msgpack:"severity"`
	Document string      `json:"document" msgpack:"document"`
	Span     syntax.Span `json:"span"     msgpack:"span"`
	Args     []string    `json:"args"     msgpack:"args"`
}

// New creates a diagnostic anchored at span.
func New(kind Kind, severity Severity, document string, span syntax.Span, args ...string) Diagnostic {
	return Diagnostic{Kind: kind, Severity: severity, Document: document, Span: span, Args: args}
}

// Message formats the diagnostic from its kind template. Missing arguments
// render as "?" and surplus arguments are ignored.
func (d Diagnostic) Message() string {
	if d.Kind >= kindCount {
		return d.Kind.String()
	}

	template := kinds[d.Kind].template
	want := strings.Count(template, "%s")

	values := make([]any, want)

	for idx := range values {
		values[idx] = "?"

		if idx < len(d.Args) {
			values[idx] = d.Args[idx]
		}
	}

	return fmt.Sprintf(template, values...)
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%s: %s %s: %s", d.Document, d.Span, d.Severity, d.Kind, d.Message())
}

func (d Diagnostic) key() string {
	return d.Kind.String() + "\x00" + d.Document + "\x00" + d.Span.String() + "\x00" + strings.Join(d.Args, "\x00")
}
