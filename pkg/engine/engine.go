// Package engine runs the live-edit analysis of a set of changed documents:
// declaration and body matching, rude edit classification, active statement
// remapping and semantic edit construction.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/liveedit/internal/observability"
	"github.com/Sumatoshi-tech/liveedit/pkg/activestmt"
	"github.com/Sumatoshi-tech/liveedit/pkg/rudeedit"
	"github.com/Sumatoshi-tech/liveedit/pkg/symbols"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
	"github.com/Sumatoshi-tech/liveedit/pkg/treematch"
)

const tracerName = "liveedit.engine"

// ErrContractViolation marks documents whose inputs or intermediate results
// broke an invariant. Such documents end in the Failed state.
var ErrContractViolation = errors.New("contract violation")

var errMissingTree = errors.New("document is missing its old or new tree")

// ErrUnknownState is returned when decoding an unknown state name.
var ErrUnknownState = errors.New("unknown document state")

// Capabilities is the set of edit categories the host currently allows.
type Capabilities = rudeedit.Capabilities

// Document is one source document in its old and new version.
type Document struct {
	Path string
	Old  *syntax.Tree
	New  *syntax.Tree
	// OldCompilation and NewCompilation replace the request compilations for
	// this document when set.
	OldCompilation symbols.Compilation
	NewCompilation symbols.Compilation
}

// WithTreeSymbols returns docs where every document lacking compilations
// resolves symbols from its own trees through symbols.FromTree.
func WithTreeSymbols(docs []Document) []Document {
	resolved := slices.Clone(docs)

	for i := range resolved {
		doc := &resolved[i]

		if doc.OldCompilation == nil && doc.Old != nil {
			doc.OldCompilation = symbols.FromTree(doc.Old)
		}

		if doc.NewCompilation == nil && doc.New != nil {
			doc.NewCompilation = symbols.FromTree(doc.New)
		}
	}

	return resolved
}

// Request is the input of one analysis. Compilations are used for this call
// only and may be nil, which skips the semantic checks.
type Request struct {
	Documents        []Document
	ActiveStatements []activestmt.Statement
	// Capabilities defaults to rudeedit.DefaultCapabilities when zero.
	Capabilities   Capabilities
	OldCompilation symbols.Compilation
	NewCompilation symbols.Compilation
}

func (r Request) capabilities() Capabilities {
	if r.Capabilities == 0 {
		return rudeedit.DefaultCapabilities
	}

	return r.Capabilities
}

// Options configures an Engine.
type Options struct {
	// Workers bounds the documents analysed in parallel. Zero uses GOMAXPROCS.
	Workers int
	// StrictNonLeaf reports deleted non-leaf active statements as Blocking.
	StrictNonLeaf bool
	// Rules replaces the default body rule table.
	Rules *rudeedit.Table
	// SimilarityThreshold overrides the tree matcher threshold when positive.
	SimilarityThreshold float64
	// MaxDiagnostics caps the Informational diagnostics kept per document;
	// Blocking ones are always kept. Zero is unlimited.
	MaxDiagnostics int
	// Logger is the structured logger. When nil, a discard logger is used.
	Logger *slog.Logger
	// Tracer creates analysis spans. When nil, the global tracer is used.
	Tracer trace.Tracer
	// Metrics records analysis metrics. Nil-safe.
	Metrics *observability.AnalysisMetrics
}

// Engine analyses edits. It holds no state between calls and is safe for
// concurrent use.
type Engine struct {
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer
	rules  *rudeedit.Table
}

// New creates an engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	rules := opts.Rules
	if rules == nil {
		rules = rudeedit.DefaultTable()
	}

	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	return &Engine{opts: opts, logger: logger, tracer: tracer, rules: rules}
}

func (e *Engine) matchOptions() []treematch.Option {
	if e.opts.SimilarityThreshold > 0 {
		return []treematch.Option{treematch.WithSimilarityThreshold(e.opts.SimilarityThreshold)}
	}

	return nil
}

// Analyze runs the analysis of every document of req. Documents are analysed
// in parallel and reported in request order.
//
// On cancellation Analyze returns the context error and no result. Documents
// that violate a contract are reported as Failed and their errors are joined
// into the returned error, which then wraps ErrContractViolation; the result
// of the other documents is still returned.
func (e *Engine) Analyze(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	analysisID := uuid.NewString()

	ctx, span := e.tracer.Start(ctx, "liveedit.analyze", trace.WithAttributes(
		attribute.String("analysis.id", analysisID),
		attribute.Int("analysis.documents", len(req.Documents)),
	))
	defer span.End()

	logger := e.logger.With("analysis_id", analysisID)
	logger.DebugContext(ctx, "analysis: start", "documents", len(req.Documents), "workers", e.opts.Workers)

	results := make([]DocumentResult, len(req.Documents))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.opts.Workers)

	for idx, doc := range req.Documents {
		group.Go(func() error {
			result, err := e.analyzeDocument(groupCtx, req, doc)
			if err != nil {
				return err
			}

			results[idx] = result

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		span.SetStatus(codes.Error, "cancelled")

		return nil, fmt.Errorf("analysis %s: %w", analysisID, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis %s: %w", analysisID, err)
	}

	result := &Result{ID: analysisID, Documents: results}

	var failures []error

	for idx := range results {
		doc := &results[idx]
		if doc.State == Failed {
			failures = append(failures, doc.Err)
		}

		e.logDocument(ctx, logger, doc)
	}

	e.opts.Metrics.RecordAnalysis(ctx, stats(results, time.Since(start)))

	if len(failures) > 0 {
		span.SetStatus(codes.Error, "contract violation")

		return result, errors.Join(failures...)
	}

	return result, nil
}

func (e *Engine) logDocument(ctx context.Context, logger *slog.Logger, doc *DocumentResult) {
	attrs := []any{
		"document", doc.Document,
		"state", doc.State.String(),
		"diagnostics", len(doc.Diagnostics),
		"edits", len(doc.Edits),
	}

	switch doc.State {
	case Blocked:
		logger.InfoContext(ctx, "analysis: document blocked", attrs...)
	case Failed:
		logger.WarnContext(ctx, "analysis: document failed", append(attrs, "error", doc.Err)...)
	default:
		logger.DebugContext(ctx, "analysis: document analysed", attrs...)
	}
}

func stats(results []DocumentResult, elapsed time.Duration) observability.AnalysisStats {
	summary := observability.AnalysisStats{Documents: len(results), Duration: elapsed}

	for _, doc := range results {
		switch doc.State {
		case Blocked:
			summary.Blocked++
		case Failed:
			summary.Failed++
		default:
		}

		summary.BodyScripts += doc.BodyScripts
		summary.Edits += len(doc.Edits)

		for _, diag := range doc.Diagnostics {
			if diag.Severity == rudeedit.Blocking {
				summary.Blocking++
			} else {
				summary.Informational++
			}
		}
	}

	return summary
}
