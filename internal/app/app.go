package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/docshield/internal/domain/fallback"
	"github.com/GriffinCanCode/docshield/internal/domain/recovery"
	"github.com/GriffinCanCode/docshield/internal/domain/reporting"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/config"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/logging"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/server"
	"github.com/GriffinCanCode/docshield/internal/pipeline"
	"github.com/GriffinCanCode/docshield/internal/providers/convert"
	"github.com/GriffinCanCode/docshield/internal/providers/extract"
	"github.com/GriffinCanCode/docshield/internal/providers/validate"
)

// App is the fully wired conversion stack.
type App struct {
	Config   *config.Config
	Logger   *logging.Logger
	Metrics  *monitoring.Metrics
	Breakers *resilience.Registry
	Fallback *fallback.Manager
	Recovery *recovery.Orchestrator
	Reporter *reporting.Reporter
	Runner   *pipeline.Runner
}

// New builds every component from cfg. logger may be nil.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	rules, err := cfg.RuleTable()
	if err != nil {
		return nil, err
	}
	intervention, err := cfg.InterventionAction()
	if err != nil {
		return nil, err
	}

	metrics := monitoring.NewMetrics()
	breakerCfg := cfg.Breaker.Resilience()
	observe := resilience.WithStateChange(monitoring.BreakerObserver(metrics))

	fallbackMgr := fallback.NewManager(
		fallback.WithLogger(logger.Component("fallback")),
		fallback.WithMetrics(metrics),
		fallback.WithBreakerConfig(breakerCfg),
		fallback.WithBreakerOptions(observe),
	)
	for _, s := range extract.Defaults(cfg.Pipeline.MaxFileSize, cfg.Fallback.DiagnosticStub) {
		if err := fallbackMgr.RegisterStrategy(s); err != nil {
			return nil, fmt.Errorf("register %s: %w", s.Name(), err)
		}
	}

	validator := validate.New(
		validate.WithLogger(logger.Component("validate")),
		validate.WithMaxSize(cfg.Pipeline.MaxFileSize),
	)

	recoveryLogger := logger.Component("recovery")
	opts := []recovery.Option{
		recovery.WithLogger(recoveryLogger),
		recovery.WithMetrics(metrics),
		recovery.WithRules(rules),
		recovery.WithBreakerConfig(breakerCfg),
		recovery.WithBreakerOptions(observe),
		recovery.WithFallbackAttempts(cfg.Fallback.MaxAttempts),
		recovery.WithInterventionHandler(fixedAnswer(intervention, recoveryLogger)),
	}
	if cfg.Recovery.RetryRate > 0 {
		opts = append(opts, recovery.WithRetryBudget(rate.Limit(cfg.Recovery.RetryRate), cfg.Recovery.RetryBurst))
	}
	orchestrator := recovery.New(fallbackMgr, validator, opts...)

	reporter := reporting.NewReporter(
		reporting.WithLogger(logger.Component("reporter")),
		reporting.WithMetrics(metrics),
		reporting.WithCapacity(cfg.Reporter.Capacity),
	)

	breakers := resilience.NewRegistry(breakerCfg,
		resilience.WithLogger(logger.Component("breaker")),
		observe)

	converter := convert.New(
		convert.WithLogger(logger.Component("convert")),
		convert.WithMaxSize(cfg.Pipeline.MaxFileSize),
	)
	runner := pipeline.NewRunner(converter, orchestrator, reporter,
		pipeline.WithLogger(logger.Component("pipeline")),
		pipeline.WithMetrics(metrics),
		pipeline.WithBreakers(breakers))

	return &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		Breakers: breakers,
		Fallback: fallbackMgr,
		Recovery: orchestrator,
		Reporter: reporter,
		Runner:   runner,
	}, nil
}

// fixedAnswer resolves every intervention request with the configured
// action. Batch runs have nobody to ask.
func fixedAnswer(action recovery.Action, logger *zap.Logger) recovery.InterventionHandler {
	return recovery.InterventionFunc(func(_ context.Context, req recovery.Intervention) (recovery.Action, error) {
		logger.Info("Answering intervention request",
			zap.String("file", req.File.Path),
			zap.String("kind", string(req.Err.Kind)),
			zap.String("answer", string(action)))
		return action, nil
	})
}

// Convert runs one batch from input into output using the configured
// pipeline settings.
func (a *App) Convert(ctx context.Context, input, output string) (*pipeline.Summary, error) {
	return a.Runner.Run(ctx, pipeline.Config{
		Input:  input,
		Output: output,
		Scan: pipeline.ScanOptions{
			Include: a.Config.Pipeline.Include,
			Exclude: a.Config.Pipeline.Exclude,
			Hidden:  a.Config.Pipeline.Hidden,
		},
		Workers:             a.Config.Pipeline.Workers,
		MaxRecoveryAttempts: a.Config.Recovery.MaxAttempts,
	})
}

// ExportReports writes the report history to Reporter.Path, if set.
func (a *App) ExportReports() error {
	path := a.Config.Reporter.Path
	if path == "" {
		return nil
	}
	format, err := reporting.ParseFormat(a.Config.Reporter.Format)
	if err != nil {
		return err
	}
	if err := a.Reporter.Export(path, format); err != nil {
		return err
	}
	a.Logger.Info("Reports exported",
		zap.String("path", path),
		zap.Int("reports", a.Reporter.Len()))
	return nil
}

// Server builds the status server over this stack.
func (a *App) Server() (*server.Server, error) {
	return server.NewServer(a.Config, server.Deps{
		Reporter: a.Reporter,
		Breakers: a.Breakers,
		Fallback: a.Fallback,
		Recovery: a.Recovery,
		Metrics:  a.Metrics,
		Logger:   a.Logger.Logger,
	})
}

// ExitCode maps a batch outcome onto a process exit status:
//
//	0  every file produced output
//	1  some files were skipped or failed
//	2  the batch could not start
//	3  recovery aborted the batch or it was interrupted
func ExitCode(summary *pipeline.Summary, err error) int {
	switch {
	case err != nil && (errors.Is(err, recovery.ErrBatchAborted) || errors.Is(err, context.Canceled)):
		return 3
	case err != nil:
		return 2
	case summary == nil || !summary.Succeeded():
		return 1
	}
	return 0
}
