package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/docshield/internal/domain/recovery"
	"github.com/GriffinCanCode/docshield/internal/domain/reporting"
	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/docshield/internal/providers/document"
	"github.com/GriffinCanCode/docshield/internal/shared/id"
	"github.com/GriffinCanCode/docshield/internal/shared/types"
)

// Config describes one batch.
type Config struct {
	Input   string
	Output  string
	Scan    ScanOptions
	Workers int
	// MaxRecoveryAttempts caps recovery actions per file. Zero uses the
	// orchestrator default.
	MaxRecoveryAttempts int
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records per-file outcomes and breaker transitions.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(r *Runner) {
		r.metrics = metrics
	}
}

// WithBreakers supplies the registry of per-format conversion breakers.
func WithBreakers(breakers *resilience.Registry) Option {
	return func(r *Runner) {
		r.breakers = breakers
	}
}

// Runner converts a directory of documents. Each file's primary conversion
// runs behind the breaker for its format; failures go through recovery and
// are reported. One file's failure never stops the batch unless recovery
// decides to abort it.
type Runner struct {
	converter types.Converter
	recovery  *recovery.Orchestrator
	reporter  *reporting.Reporter
	breakers  *resilience.Registry
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewRunner wires a runner.
func NewRunner(converter types.Converter, orchestrator *recovery.Orchestrator, reporter *reporting.Reporter, opts ...Option) *Runner {
	r := &Runner{
		converter: converter,
		recovery:  orchestrator,
		reporter:  reporter,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.breakers == nil {
		r.breakers = resilience.NewRegistry(resilience.DefaultConfig(),
			resilience.WithLogger(r.logger),
			resilience.WithStateChange(monitoring.BreakerObserver(r.metrics)))
	}
	return r
}

// Breakers returns the per-format conversion breakers.
func (r *Runner) Breakers() *resilience.Registry {
	return r.breakers
}

// BreakerName is the registry name of the breaker guarding format.
func BreakerName(format document.Format) string {
	return "convert." + string(format)
}

// Run scans cfg.Input and converts every file into cfg.Output. The
// returned error is non-nil when the scan fails, ctx is cancelled or
// recovery aborted the batch; the summary is valid in every case but the
// scan failure.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Summary, error) {
	runID := id.NewRunID()
	logger := r.logger.With(zap.String("run_id", runID.String()))

	scan := cfg.Scan
	if out, ok := within(cfg.Input, cfg.Output); ok {
		scan.Exclude = append(append([]string(nil), scan.Exclude...), out, out+"/**")
	}
	paths, err := Scan(ctx, cfg.Input, scan)
	if err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger.Info("Starting batch",
		zap.String("input", cfg.Input),
		zap.String("output", cfg.Output),
		zap.Int("files", len(paths)),
		zap.Int("workers", workers))

	summary := &Summary{
		RunID:   runID.String(),
		Started: r.now(),
		Files:   make([]FileResult, len(paths)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		if gctx.Err() != nil {
			summary.Files[i] = FileResult{Path: path, Outcome: OutcomeAborted}
			continue
		}
		g.Go(func() error {
			res := r.ProcessFile(gctx, cfg, path)
			summary.Files[i] = res
			if errors.Is(res.Err, recovery.ErrBatchAborted) {
				return res.Err
			}
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	summary.Finished = r.now()
	summary.tally()

	logger.Info("Batch finished",
		zap.Int("converted", summary.Converted),
		zap.Int("recovered", summary.Recovered),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("aborted", summary.Aborted),
		zap.Duration("duration", summary.Finished.Sub(summary.Started)))
	return summary, runErr
}

// ProcessFile converts one file, recovering and reporting on failure.
func (r *Runner) ProcessFile(ctx context.Context, cfg Config, path string) FileResult {
	start := r.now()
	res := FileResult{Path: path}
	if ctx.Err() != nil {
		res.Outcome = OutcomeAborted
		return res
	}

	file, err := types.Describe(path)
	if err != nil {
		file = types.FileDescriptor{Path: path, Name: filepath.Base(path)}
		return r.finish(res, file, OutcomeFailed, err, "describe", "", start)
	}

	format := document.FormatOfExtension(path)
	if det, derr := document.DetectFile(path); derr == nil {
		file.MimeType = det.MimeType
		format = det.Format
	}
	res.Format = string(format)
	res.OutputPath = OutputPath(cfg.Input, cfg.Output, path, format)

	timer := monitoring.NewTimer(r.metrics, string(format))
	breaker := r.breakers.Get(BreakerName(format))
	convert := func(ctx context.Context) (*types.ConversionResult, error) {
		return resilience.Do(ctx, breaker, func(ctx context.Context) (*types.ConversionResult, error) {
			out, err := r.converter.Convert(ctx, file, res.OutputPath)
			if err == nil && !out.Succeeded() {
				msg := "converter reported failure"
				if out != nil && out.ErrorMessage != "" {
					msg = out.ErrorMessage
				}
				err = taxonomy.Classify(errors.New(msg), file.Path)
			}
			return out, err
		})
	}

	_, err = convert(ctx)
	if err == nil {
		timer.Stop(monitoring.FileSucceeded)
		res.Outcome = OutcomeConverted
		res.Duration = r.now().Sub(start)
		return res
	}
	if ctx.Err() != nil {
		res.Outcome = OutcomeAborted
		res.Err = ctx.Err()
		return res
	}
	res.Err = err

	rec, rerr := r.recovery.RecoverFromError(ctx, res.Err, file, res.OutputPath, convert, cfg.MaxRecoveryAttempts)
	if rec != nil {
		res.Action = string(rec.Action)
		if s, ok := rec.Details["strategy"].(string); ok {
			res.Strategy = s
		}
	}

	switch {
	case errors.Is(rerr, recovery.ErrBatchAborted):
		timer.Stop(monitoring.FileFailed)
		res.Err = rerr
		return r.finish(res, file, OutcomeAborted, res.Err, "convert", "batch aborted", start)
	case rerr == nil && rec != nil && rec.Action == recovery.ActionSkipFile:
		timer.Stop(monitoring.FileSkipped)
		return r.finish(res, file, OutcomeSkipped, res.Err, "convert", "skipped", start)
	case rerr == nil && rec != nil && rec.Success:
		timer.Stop(monitoring.FileSucceeded)
		if rec.Output != nil && rec.Output.OutputPath != "" {
			res.OutputPath = rec.Output.OutputPath
		}
		return r.finish(res, file, OutcomeRecovered, res.Err, "convert", "recovered via "+recoveredBy(res), start)
	case ctx.Err() != nil:
		res.Outcome = OutcomeAborted
		res.Duration = r.now().Sub(start)
		return res
	default:
		timer.Stop(monitoring.FileFailed)
		if rerr != nil {
			res.Err = fmt.Errorf("%w (recovery: %v)", res.Err, rerr)
		}
		return r.finish(res, file, OutcomeFailed, res.Err, "convert", "failed", start)
	}
}

func recoveredBy(res FileResult) string {
	if res.Strategy != "" {
		return res.Action + "/" + res.Strategy
	}
	return res.Action
}

// finish reports err and completes res.
func (r *Runner) finish(res FileResult, file types.FileDescriptor, outcome Outcome, err error, op, recoveryNote string, start time.Time) FileResult {
	res.Outcome = outcome
	res.Err = err
	if outcome == OutcomeSkipped || outcome == OutcomeFailed {
		res.OutputPath = ""
	}
	if r.reporter != nil && err != nil {
		report := r.reporter.ReportError(err, reporting.Context{
			File:      &file,
			Operation: op,
			Recovery:  recoveryNote,
		})
		if report != nil {
			res.ReportID = report.ID
		}
	}
	res.Duration = r.now().Sub(start)
	return res
}

// OutputPath maps an input file to its converted path under output. The
// source extension is kept so report.pdf and report.txt never collide.
func OutputPath(input, output, path string, format document.Format) string {
	rel, err := filepath.Rel(input, path)
	if err != nil || strings.HasPrefix(rel, "..") || rel == "." {
		rel = filepath.Base(path)
	}
	rel = document.StripCompression(rel)

	ext := format.OutputExtension()
	if !strings.EqualFold(filepath.Ext(rel), ext) {
		rel += ext
	}
	return filepath.Join(output, rel)
}

// within returns dir relative to root, slash separated, when dir lies
// inside root.
func within(root, dir string) (string, bool) {
	if root == "" || dir == "" {
		return "", false
	}
	absRoot, err1 := filepath.Abs(root)
	absDir, err2 := filepath.Abs(dir)
	if err1 != nil || err2 != nil {
		return "", false
	}
	rel, err := filepath.Rel(absRoot, absDir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
