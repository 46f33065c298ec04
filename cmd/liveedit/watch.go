package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/liveedit/internal/observability"
	"github.com/Sumatoshi-tech/liveedit/internal/render"
	"github.com/Sumatoshi-tech/liveedit/pkg/activestmt"
	"github.com/Sumatoshi-tech/liveedit/pkg/engine"
)

const (
	defaultDebounce = 200 * time.Millisecond
	watchMeterName  = "liveedit.watch"
	watchOp         = "analyze"
)

var errBaselineMissing = errors.New("baseline not loaded")

type watchFlags struct {
	active       string
	format       string
	metricsAddr  string
	maxSource    string
	capabilities []string
	debounce     time.Duration
	advance      bool
}

func watchCmd() *cobra.Command {
	var flags watchFlags

	cmd := &cobra.Command{
		Use:   "watch BASELINE [BASELINE ...]",
		Short: "Re-analyse documents against their baseline whenever they change",
		Long: `Read each BASELINE file once as the version loaded in the running program,
then re-analyse it every time it is saved. /healthz, /readyz and /metrics are
served on the metrics address while watching.

With --advance, a document whose edits can be applied becomes the new
baseline and its active statements move to their remapped positions.

Examples:
  liveedit watch --active frames.yaml worker.py
  liveedit watch --advance --metrics-addr :9090 jobs.go queue.go`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			return runWatch(ctx, cmd.OutOrStdout(), args, flags)
		},
	}

	cmd.Flags().StringVar(&flags.active, "active", "", "YAML file with the active statements of the baselines")
	cmd.Flags().StringVarP(&flags.format, "format", "f", render.FormatText, "output format (text, summary, json)")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "diagnostics listen address (default from config)")
	cmd.Flags().StringVar(&flags.maxSource, "max-source", defaultMaxSource, "maximum size of one input file")
	cmd.Flags().StringSliceVar(&flags.capabilities, "capabilities", nil, "host capabilities (default from config)")
	cmd.Flags().DurationVar(&flags.debounce, "debounce", defaultDebounce, "quiet period before re-analysing")
	cmd.Flags().BoolVar(&flags.advance, "advance", false, "adopt applicable edits as the new baseline")

	return cmd
}

// watcher holds the baselines and re-analyses changed documents.
type watcher struct {
	app     *app
	loader  *loader
	printer *render.Printer
	red     *observability.REDMetrics
	format  string
	advance bool

	// baseline maps a cleaned path to the source loaded in the program.
	baseline map[string]*source
	order    []string
	active   []activestmt.Statement
}

func runWatch(ctx context.Context, out io.Writer, paths []string, flags watchFlags) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(observability.ModeWatch, flags.capabilities)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	w, err := newWatcher(ctx, a, out, paths, flags)
	if err != nil {
		return err
	}

	handler, provider, err := observability.PrometheusMeter()
	if err != nil {
		return err
	}

	meter := provider.Meter(watchMeterName)

	err = a.useMeter(meter)
	if err != nil {
		return err
	}

	w.red, err = observability.NewREDMetrics(meter)
	if err != nil {
		return fmt.Errorf("create run metrics: %w", err)
	}

	addr := flags.metricsAddr
	if addr == "" {
		addr = a.cfg.Telemetry.MetricsAddr
	}

	server, err := observability.NewDiagnosticsServer(ctx, addr, handler, a.logger, w.ready)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := server.Close(context.WithoutCancel(ctx))
		if closeErr != nil {
			a.logger.WarnContext(ctx, "diagnostics server shutdown failed", "error", closeErr)
		}
	}()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fsw.Close()

	for _, dir := range w.dirs() {
		err = fsw.Add(dir)
		if err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	a.logger.InfoContext(ctx, "watching", "documents", len(w.order), "metrics_addr", server.Addr())

	return w.loop(ctx, fsw.Events, fsw.Errors, flags.debounce)
}

func newWatcher(ctx context.Context, a *app, out io.Writer, paths []string, flags watchFlags) (*watcher, error) {
	ld, err := newLoader(flags.maxSource)
	if err != nil {
		return nil, err
	}

	w := &watcher{
		app:      a,
		loader:   ld,
		printer:  render.NewPrinter(out, noColor),
		format:   flags.format,
		advance:  flags.advance,
		baseline: make(map[string]*source, len(paths)),
	}

	docs := make([]engine.Document, 0, len(paths))

	for _, path := range paths {
		src, err := ld.load(ctx, filepath.Clean(path))
		if err != nil {
			return nil, err
		}

		if _, seen := w.baseline[src.path]; seen {
			continue
		}

		w.baseline[src.path] = src
		w.order = append(w.order, src.path)
		docs = append(docs, engine.Document{Path: src.path, Old: src.tree, New: src.tree})
	}

	w.active, err = loadActive(flags.active, docs)
	if err != nil {
		return nil, err
	}

	return w, nil
}

func (w *watcher) ready(context.Context) error {
	if len(w.baseline) == 0 {
		return errBaselineMissing
	}

	return nil
}

func (w *watcher) dirs() []string {
	dirs := make([]string, 0, len(w.order))

	for _, path := range w.order {
		dir := filepath.Dir(path)
		if !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}

	return dirs
}

// loop collects change events until the debounce period passes without a
// new one, then re-analyses the changed documents.
func (w *watcher) loop(
	ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, debounce time.Duration,
) error {
	timer := time.NewTimer(debounce)
	timer.Stop()

	defer timer.Stop()

	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}

			path := filepath.Clean(event.Name)
			if _, watched := w.baseline[path]; !watched {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				pending[path] = true

				timer.Reset(debounce)
			}
		case err, ok := <-errs:
			if !ok {
				return nil
			}

			w.app.logger.WarnContext(ctx, "file watcher error", "error", err)
		case <-timer.C:
			w.run(ctx, pending)

			pending = make(map[string]bool)
		}
	}
}

// run analyses the pending documents against their baselines.
func (w *watcher) run(ctx context.Context, pending map[string]bool) {
	start := time.Now()
	done := w.red.TrackInflight(ctx, watchOp)

	defer done()

	status := observability.StatusOK

	err := w.analyze(ctx, pending)
	if err != nil {
		status = observability.StatusError

		w.app.logger.WarnContext(ctx, "re-analysis failed", "error", err)
	}

	w.red.RecordRun(ctx, watchOp, status, time.Since(start))
}

func (w *watcher) analyze(ctx context.Context, pending map[string]bool) error {
	docs := make([]engine.Document, 0, len(pending))
	current := make(map[string]*source, len(pending))

	for _, path := range w.order {
		if !pending[path] {
			continue
		}

		src, err := w.loader.load(ctx, path)
		if err != nil {
			return err
		}

		current[path] = src
		docs = append(docs, engine.Document{Path: path, Old: w.baseline[path].tree, New: src.tree})
	}

	if len(docs) == 0 {
		return nil
	}

	result, analyzeErr := w.app.engine.Analyze(ctx, w.app.request(docs, w.active))
	if result == nil {
		return analyzeErr
	}

	err := w.printer.Result(result, w.format)
	if err != nil {
		return err
	}

	if w.advance {
		w.adopt(result, current)
	}

	return analyzeErr
}

// adopt makes every document whose edits are ready the new baseline and
// moves its active statements to their remapped spans.
func (w *watcher) adopt(result *engine.Result, current map[string]*source) {
	for _, doc := range result.Documents {
		if doc.State != engine.EditsReady {
			continue
		}

		w.baseline[doc.Document] = current[doc.Document]
		w.active = advanceStatements(w.active, doc.ActiveStatements)
	}
}

// advanceStatements replaces each statement that has a remapped position by
// that position. The frame flags are kept.
func advanceStatements(stmts []activestmt.Statement, remapped []activestmt.Remapped) []activestmt.Statement {
	next := slices.Clone(stmts)

	for idx, stmt := range next {
		for _, moved := range remapped {
			if moved.Ordinal != stmt.Ordinal || moved.Document != stmt.Document {
				continue
			}

			next[idx].Span = moved.Span
			next[idx].ExceptionRegions = moved.ExceptionRegions
		}
	}

	return next
}
