package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/docshield/internal/domain/fallback"
	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/docshield/internal/shared/id"
	"github.com/GriffinCanCode/docshield/internal/shared/types"
)

// BreakerName is the name of the breaker guarding retries.
const BreakerName = "error_recovery"

// DefaultMaxAttempts caps the actions tried per RecoverFromError call.
const DefaultMaxAttempts = 3

var (
	ErrNotImplemented       = errors.New("recovery action not implemented")
	ErrBatchAborted         = errors.New("batch aborted")
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")
	ErrNoFallbackManager    = errors.New("no fallback manager configured")
	ErrRetryUnsuccessful    = errors.New("retry did not produce a successful result")
)

// Operation re-runs the primary conversion for a file.
type Operation func(ctx context.Context) (*types.ConversionResult, error)

// Repairer attempts to fix a malformed document and produce output.
type Repairer interface {
	Repair(ctx context.Context, file types.FileDescriptor, outputPath string, cause error) (*types.ConversionResult, error)
}

// Intervention is a decision request surfaced to the presentation layer.
type Intervention struct {
	File        types.FileDescriptor
	Err         *taxonomy.ConversionError
	Suggestions []string
	// Choices lists the actions the handler may answer with.
	Choices []Action
}

// InterventionHandler asks a user what to do about a failure. It returns
// one of the offered choices.
type InterventionHandler interface {
	Decide(ctx context.Context, req Intervention) (Action, error)
}

// InterventionFunc adapts a function into an InterventionHandler.
type InterventionFunc func(ctx context.Context, req Intervention) (Action, error)

func (f InterventionFunc) Decide(ctx context.Context, req Intervention) (Action, error) {
	return f(ctx, req)
}

var interventionChoices = []Action{ActionRetry, ActionFallback, ActionSkipFile, ActionAbortBatch}

// Result is the outcome of a recovery.
type Result struct {
	Action        Action                  `json:"action"`
	Success       bool                    `json:"success"`
	Output        *types.ConversionResult `json:"output,omitempty"`
	Err           error                   `json:"-"`
	ExecutionTime time.Duration           `json:"execution_time"`
	Details       map[string]interface{}  `json:"details,omitempty"`
	Attempted     []Action                `json:"attempted,omitempty"`
}

// Skipped reports whether the file was skipped rather than converted.
func (r *Result) Skipped() bool {
	return r != nil && r.Success && r.Action == ActionSkipFile
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records actions into metrics.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRules replaces the default rule table.
func WithRules(rules *RuleTable) Option {
	return func(o *Orchestrator) {
		if rules != nil {
			o.rules = rules
		}
	}
}

// WithBreakerConfig overrides the retry breaker configuration.
func WithBreakerConfig(cfg resilience.Config) Option {
	return func(o *Orchestrator) {
		o.breakerConfig = cfg
	}
}

// WithBreakerOptions passes options through to the retry breaker.
func WithBreakerOptions(opts ...resilience.Option) Option {
	return func(o *Orchestrator) {
		o.breakerOpts = append(o.breakerOpts, opts...)
	}
}

// WithRepairer installs a REPAIR_DOCUMENT implementation.
func WithRepairer(r Repairer) Option {
	return func(o *Orchestrator) {
		o.repairer = r
	}
}

// WithInterventionHandler installs a USER_INTERVENTION implementation.
func WithInterventionHandler(h InterventionHandler) Option {
	return func(o *Orchestrator) {
		o.intervention = h
	}
}

// WithRetryBudget limits RETRY actions to r per second with the given
// burst. A retry over budget fails immediately.
func WithRetryBudget(r rate.Limit, burst int) Option {
	return func(o *Orchestrator) {
		o.retryBudget = rate.NewLimiter(r, burst)
	}
}

// WithFallbackAttempts sets maxAttempts passed to the fallback manager.
func WithFallbackAttempts(n int) Option {
	return func(o *Orchestrator) {
		o.fallbackAttempts = n
	}
}

// Orchestrator turns a conversion failure into an ordered series of
// recovery actions and runs them until one succeeds.
type Orchestrator struct {
	fallback  *fallback.Manager
	validator types.Validator

	logger           *zap.Logger
	metrics          *monitoring.Metrics
	now              func() time.Time
	rules            *RuleTable
	breakerConfig    resilience.Config
	breakerOpts      []resilience.Option
	breaker          *resilience.Breaker
	repairer         Repairer
	intervention     InterventionHandler
	retryBudget      *rate.Limiter
	fallbackAttempts int

	mu    sync.Mutex
	stats stats
}

// New creates an orchestrator. fallbackMgr and validator may be nil; the
// FALLBACK and VALIDATE_FIRST actions then fail or degrade accordingly.
func New(fallbackMgr *fallback.Manager, validator types.Validator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fallback:         fallbackMgr,
		validator:        validator,
		logger:           zap.NewNop(),
		now:              time.Now,
		rules:            DefaultRuleTable(),
		breakerConfig:    resilience.DefaultConfig(),
		retryBudget:      rate.NewLimiter(rate.Inf, 0),
		fallbackAttempts: fallback.DefaultMaxAttempts,
		stats:            newStats(),
	}
	for _, opt := range opts {
		opt(o)
	}
	bopts := append([]resilience.Option{
		resilience.WithLogger(o.logger),
		resilience.WithClock(o.now),
	}, o.breakerOpts...)
	o.breaker = resilience.New(BreakerName, o.breakerConfig, bopts...)
	return o
}

// Breaker exposes the retry breaker.
func (o *Orchestrator) Breaker() *resilience.Breaker {
	return o.breaker
}

// Rules exposes the rule table.
func (o *Orchestrator) Rules() *RuleTable {
	return o.rules
}

// AddRecoveryRule sets the actions for kind, replacing any existing rule.
func (o *Orchestrator) AddRecoveryRule(kind taxonomy.Kind, actions ...Action) {
	o.rules.Add(kind, actions...)
}

// RemoveRecoveryRule deletes the rule for kind.
func (o *Orchestrator) RemoveRecoveryRule(kind taxonomy.Kind) bool {
	return o.rules.Remove(kind)
}

// RecoverFromError classifies err and runs the matching actions in order,
// at most maxAttempts of them (DefaultMaxAttempts when <= 0). It returns
// on the first success. When every action fails, the last action's error
// is returned alongside its result; an action that failed without an error
// is given one naming it, so a failed recovery never returns a nil error. ErrBatchAborted is returned as soon as
// an ABORT_BATCH action runs.
func (o *Orchestrator) RecoverFromError(ctx context.Context, err error, file types.FileDescriptor, outputPath string, op Operation, maxAttempts int) (*Result, error) {
	start := o.now()
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if err == nil {
		err = taxonomy.New(taxonomy.KindGenericConversion, "conversion failed without an error")
	}

	classified := classify(err, file.Path)
	actions, matched := o.rules.Lookup(classified.Kind)

	logger := o.logger.With(
		zap.String("attempt_id", id.NewAttemptID().String()),
		zap.String("file", file.Path),
		zap.String("kind", classified.Kind.String()),
	)
	logger.Info("Starting error recovery",
		zap.Strings("actions", actionNames(actions)),
		zap.String("rule", string(matched)),
		zap.Error(err))

	if len(actions) == 0 {
		res := &Result{
			Action:        ActionSkipFile,
			Err:           err,
			ExecutionTime: o.now().Sub(start),
			Details:       map[string]interface{}{"reason": "no recovery actions"},
		}
		o.recordRecovery(false)
		return res, nil
	}
	if len(actions) > maxAttempts {
		actions = actions[:maxAttempts]
	}

	attempted := make([]Action, 0, len(actions))
	var (
		last    *Result
		lastErr error
	)
	for i, action := range actions {
		if cerr := ctx.Err(); cerr != nil {
			lastErr = cerr
			break
		}
		attempted = append(attempted, action)

		res, aerr := o.run(ctx, action, classified, file, outputPath, op)
		if res == nil {
			res = &Result{Action: action}
		}
		o.recordAction(action, classified.Kind, aerr == nil && res.Success)

		if aerr == nil && res.Success {
			logger.Info("Recovery succeeded", zap.String("action", action.String()))
			res.Attempted = attempted
			res.ExecutionTime = o.now().Sub(start)
			o.recordRecovery(true)
			return res, nil
		}
		if aerr == nil {
			aerr = fmt.Errorf("recovery action %s failed", action)
		}
		res.Err = aerr
		last, lastErr = res, aerr

		if errors.Is(aerr, ErrBatchAborted) {
			logger.Warn("Recovery aborted batch", zap.Error(aerr))
			break
		}
		if i < len(actions)-1 {
			logger.Debug("Recovery action failed, trying next",
				zap.String("action", action.String()),
				zap.Error(aerr))
		}
	}

	if last == nil {
		last = &Result{}
	}
	last.Success = false
	last.Err = lastErr
	last.Attempted = attempted
	last.ExecutionTime = o.now().Sub(start)
	o.recordRecovery(false)

	logger.Warn("Recovery exhausted",
		zap.Strings("attempted", actionNames(attempted)),
		zap.Error(lastErr))
	return last, lastErr
}

// classify is taxonomy.Classify, except that a refusal by an open breaker
// is a generic conversion failure whatever the breaker's name says.
func classify(err error, path string) *taxonomy.ConversionError {
	if _, typed := taxonomy.AsConversionError(err); !typed && errors.Is(err, resilience.ErrCircuitOpen) {
		ce := taxonomy.Wrap(taxonomy.KindGenericConversion, "conversion refused by open circuit breaker", err)
		if path != "" {
			ce.SourceLocation = path
		}
		return ce
	}
	return taxonomy.Classify(err, path)
}

// run dispatches one action. Panics from collaborators become errors.
func (o *Orchestrator) run(ctx context.Context, action Action, cause *taxonomy.ConversionError, file types.FileDescriptor, outputPath string, op Operation) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = &Result{Action: action}
			err = taxonomy.FromPanic(r).WithDetail("action", string(action))
		}
	}()

	switch action {
	case ActionRetry:
		return o.retry(ctx, cause, op)
	case ActionFallback:
		return o.runFallback(ctx, cause, file, outputPath)
	case ActionValidateFirst:
		return o.validateFirst(ctx, cause, file, outputPath, op)
	case ActionRepairDocument:
		return o.repair(ctx, cause, file, outputPath)
	case ActionSkipFile:
		return o.skip(cause, file), nil
	case ActionAbortBatch:
		return &Result{Action: ActionAbortBatch}, fmt.Errorf("%w: %s: %w", ErrBatchAborted, file.Path, cause)
	case ActionUserIntervention:
		return o.userIntervention(ctx, cause, file, outputPath, op)
	default:
		return &Result{Action: action}, fmt.Errorf("unknown recovery action %q", action)
	}
}

func actionNames(actions []Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = string(a)
	}
	return out
}
