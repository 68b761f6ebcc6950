package recovery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/docshield/internal/domain/fallback"
	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/docshield/internal/shared/types"
)

var pdf = types.FileDescriptor{Path: "/in/scan.pdf", Name: "scan.pdf", Extension: ".pdf"}

type stubValidator struct {
	applies bool
	result  *types.ValidationResult
	err     error
	calls   int32
}

func (v *stubValidator) CanValidate(types.FileDescriptor) bool { return v.applies }

func (v *stubValidator) Validate(context.Context, types.FileDescriptor) (*types.ValidationResult, error) {
	atomic.AddInt32(&v.calls, 1)
	return v.result, v.err
}

// countingOp returns an Operation that counts calls and yields outcome.
func countingOp(calls *int32, outcome func() (*types.ConversionResult, error)) Operation {
	return func(ctx context.Context) (*types.ConversionResult, error) {
		atomic.AddInt32(calls, 1)
		return outcome()
	}
}

func succeeded() (*types.ConversionResult, error) {
	return types.Success("/out/scan.md", time.Millisecond, nil), nil
}

func managerWith(t *testing.T, succeed bool) (*fallback.Manager, *int32) {
	t.Helper()
	var calls int32
	m := fallback.NewManager()
	require.NoError(t, m.RegisterStrategy(&fallback.Func{
		StrategyName:     "text",
		StrategyPriority: fallback.PriorityHigh,
		Run: func(ctx context.Context, file types.FileDescriptor, out string, cause error) (*types.ConversionResult, error) {
			atomic.AddInt32(&calls, 1)
			if succeed {
				return types.Success(out, time.Millisecond, map[string]interface{}{"strategy": "text"}), nil
			}
			return nil, errors.New("text extraction failed")
		},
	}))
	return m, &calls
}

func TestFontDescriptorInvalidSkipsRetry(t *testing.T) {
	mgr, fallbackCalls := managerWith(t, true)
	validator := &stubValidator{applies: true, result: &types.ValidationResult{Valid: false, Issues: []string{"missing /FontBBox"}}}
	o := New(mgr, validator)

	actions, matched := o.Rules().Lookup(taxonomy.KindFontDescriptor)
	require.Equal(t, []Action{ActionValidateFirst, ActionFallback, ActionUserIntervention}, actions)
	require.Equal(t, taxonomy.KindFontDescriptor, matched)

	var opCalls int32
	cause := taxonomy.NewFontDescriptorError("Helvetica", 3, "FontBBox is malformed")
	res, err := o.RecoverFromError(context.Background(), cause, pdf, "/out/scan.md", countingOp(&opCalls, succeeded), 3)

	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, ActionValidateFirst, res.Action)
	assert.Equal(t, "invalid", res.Details["validation"])
	assert.Equal(t, "fallback", res.Details["then"])
	assert.Equal(t, []string{"missing /FontBBox"}, res.Details["validation_issues"])
	assert.Equal(t, int32(0), atomic.LoadInt32(&opCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(fallbackCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&validator.calls))
}

func TestValidateFirstValidRetries(t *testing.T) {
	mgr, fallbackCalls := managerWith(t, true)
	o := New(mgr, &stubValidator{applies: true, result: &types.ValidationResult{Valid: true}})

	var opCalls int32
	res, err := o.RecoverFromError(context.Background(),
		taxonomy.NewFontDescriptorError("Arial", 1, "bad descriptor"),
		pdf, "/out/scan.md", countingOp(&opCalls, succeeded), 3)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "retry", res.Details["then"])
	assert.Equal(t, int32(1), atomic.LoadInt32(&opCalls))
	assert.Equal(t, int32(0), atomic.LoadInt32(fallbackCalls))
}

func TestValidateFirstFallsBackOnValidatorTrouble(t *testing.T) {
	tests := []struct {
		name      string
		validator types.Validator
		verdict   string
	}{
		{"validator error", &stubValidator{applies: true, err: errors.New("validator crashed")}, "error"},
		{"not applicable", &stubValidator{applies: false}, "unavailable"},
		{"no validator", nil, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, fallbackCalls := managerWith(t, true)
			o := New(mgr, tt.validator)

			var opCalls int32
			res, err := o.RecoverFromError(context.Background(),
				taxonomy.NewFontDescriptorError("Arial", 1, "bad descriptor"),
				pdf, "/out/scan.md", countingOp(&opCalls, succeeded), 3)

			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Equal(t, tt.verdict, res.Details["validation"])
			assert.Equal(t, int32(0), atomic.LoadInt32(&opCalls))
			assert.Equal(t, int32(1), atomic.LoadInt32(fallbackCalls))
		})
	}
}

func TestNoRuleUsesDefaultAndAlwaysTerminates(t *testing.T) {
	o := New(nil, nil, WithRules(NewRuleTable()))

	for _, kind := range taxonomy.Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			cause := taxonomy.New(kind, "conversion blew up")
			res, err := o.RecoverFromError(context.Background(), cause, pdf, "/out/scan.md", nil, 0)

			require.NoError(t, err)
			require.True(t, res.Skipped())
			assert.Equal(t, []Action{ActionFallback, ActionSkipFile}, res.Attempted)
			require.NotNil(t, res.Output)
			assert.Equal(t, types.StatusCancelled, res.Output.Status)
			assert.Equal(t, cause.Error(), res.Output.Metadata["original_error"])
			assert.Equal(t, kind.Code(), res.Output.Metadata["error_code"])
		})
	}
}

func TestRawErrorIsClassified(t *testing.T) {
	o := New(nil, nil)

	res, err := o.RecoverFromError(context.Background(), errors.New("open /in/x.pdf: no such file or directory"), pdf, "/out/x.md", nil, 3)

	require.NoError(t, err)
	assert.True(t, res.Skipped())
	assert.Equal(t, []Action{ActionSkipFile}, res.Attempted)
	assert.Equal(t, string(taxonomy.KindFileNotFound), res.Output.Metadata["error_kind"])
}

func TestLastActionErrorPropagates(t *testing.T) {
	o := New(nil, nil)
	o.AddRecoveryRule(taxonomy.KindValidationFailed, ActionRepairDocument)

	res, err := o.RecoverFromError(context.Background(), taxonomy.NewValidationError([]string{"xref broken"}), pdf, "/out/scan.md", nil, 3)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotImplemented)
	assert.False(t, res.Success)
	assert.Equal(t, ActionRepairDocument, res.Action)
	assert.Equal(t, err, res.Err)
}

func TestMaxAttemptsCapsActions(t *testing.T) {
	o := New(nil, nil)
	o.AddRecoveryRule(taxonomy.KindPermission, ActionRepairDocument, ActionUserIntervention, ActionSkipFile)

	res, err := o.RecoverFromError(context.Background(), taxonomy.New(taxonomy.KindPermission, "denied"), pdf, "/out/scan.md", nil, 2)

	require.Error(t, err)
	assert.Equal(t, []Action{ActionRepairDocument, ActionUserIntervention}, res.Attempted)
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestEmptyRuleReturnsSkipFailure(t *testing.T) {
	o := New(nil, nil)
	o.AddRecoveryRule(taxonomy.KindPermission)

	res, err := o.RecoverFromError(context.Background(), taxonomy.New(taxonomy.KindPermission, "denied"), pdf, "/out/scan.md", nil, 3)

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ActionSkipFile, res.Action)
}

func TestAbortBatchStopsImmediately(t *testing.T) {
	o := New(nil, nil)
	o.AddRecoveryRule(taxonomy.KindConversionMemory, ActionAbortBatch, ActionSkipFile)

	res, err := o.RecoverFromError(context.Background(), taxonomy.NewMemoryError("out of memory", 1<<30), pdf, "/out/scan.md", nil, 3)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBatchAborted)
	assert.Equal(t, []Action{ActionAbortBatch}, res.Attempted)
	assert.False(t, res.Success)
}

func TestRetry(t *testing.T) {
	t.Run("failed status is a failure", func(t *testing.T) {
		o := New(nil, nil)
		o.AddRecoveryRule(taxonomy.KindPDFParsing, ActionRetry)

		var calls int32
		op := countingOp(&calls, func() (*types.ConversionResult, error) {
			return types.Failure("still broken", time.Millisecond), nil
		})
		_, err := o.RecoverFromError(context.Background(), taxonomy.NewPDFParsingError("bad xref", 2), pdf, "/out/scan.md", op, 3)

		assert.ErrorIs(t, err, ErrRetryUnsuccessful)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		assert.Equal(t, int64(1), o.Breaker().Metrics().TotalFailures)
	})

	t.Run("panicking operation is contained", func(t *testing.T) {
		o := New(nil, nil)
		o.AddRecoveryRule(taxonomy.KindPDFParsing, ActionRetry, ActionSkipFile)

		op := func(context.Context) (*types.ConversionResult, error) { panic("index out of range") }
		var res *Result
		var err error
		require.NotPanics(t, func() {
			res, err = o.RecoverFromError(context.Background(), taxonomy.NewPDFParsingError("bad xref", 2), pdf, "/out/scan.md", op, 3)
		})
		require.NoError(t, err)
		assert.True(t, res.Skipped())
	})

	t.Run("budget exhausted", func(t *testing.T) {
		o := New(nil, nil, WithRetryBudget(0, 1))
		o.AddRecoveryRule(taxonomy.KindPDFParsing, ActionRetry)

		var calls int32
		op := countingOp(&calls, succeeded)
		cause := taxonomy.NewPDFParsingError("bad xref", 2)

		res, err := o.RecoverFromError(context.Background(), cause, pdf, "/out/scan.md", op, 3)
		require.NoError(t, err)
		assert.True(t, res.Success)

		_, err = o.RecoverFromError(context.Background(), cause, pdf, "/out/scan.md", op, 3)
		assert.ErrorIs(t, err, ErrRetryBudgetExhausted)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}

func TestUserIntervention(t *testing.T) {
	t.Run("handler chooses skip", func(t *testing.T) {
		var asked Intervention
		o := New(nil, nil, WithInterventionHandler(InterventionFunc(func(ctx context.Context, req Intervention) (Action, error) {
			asked = req
			return ActionSkipFile, nil
		})))

		res, err := o.RecoverFromError(context.Background(), taxonomy.New(taxonomy.KindPermission, "permission denied"), pdf, "/out/scan.md", nil, 3)

		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, ActionUserIntervention, res.Action)
		assert.Equal(t, "skip_file", res.Details["user_decision"])
		assert.Equal(t, taxonomy.KindPermission, asked.Err.Kind)
		assert.Contains(t, asked.Choices, ActionSkipFile)
		assert.NotContains(t, asked.Choices, ActionUserIntervention)
	})

	t.Run("handler may not recurse", func(t *testing.T) {
		o := New(nil, nil, WithInterventionHandler(InterventionFunc(func(context.Context, Intervention) (Action, error) {
			return ActionUserIntervention, nil
		})))
		o.AddRecoveryRule(taxonomy.KindPermission, ActionUserIntervention)

		_, err := o.RecoverFromError(context.Background(), taxonomy.New(taxonomy.KindPermission, "permission denied"), pdf, "/out/scan.md", nil, 3)
		assert.ErrorContains(t, err, "not an offered choice")
	})
}

func TestFallbackFailureThenSkip(t *testing.T) {
	mgr, fallbackCalls := managerWith(t, false)
	o := New(mgr, nil)

	res, err := o.RecoverFromError(context.Background(), taxonomy.NewMemoryError("cannot allocate", 0), pdf, "/out/scan.md", nil, 3)

	require.NoError(t, err)
	assert.True(t, res.Skipped())
	assert.Equal(t, []Action{ActionFallback, ActionSkipFile}, res.Attempted)
	assert.Equal(t, int32(1), atomic.LoadInt32(fallbackCalls))
}

func TestCancelledContext(t *testing.T) {
	o := New(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := o.RecoverFromError(ctx, errors.New("boom"), pdf, "/out/scan.md", nil, 3)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, res.Success)
	assert.Empty(t, res.Attempted)
}

func TestMetrics(t *testing.T) {
	metrics := monitoring.NewMetrics()
	mgr, _ := managerWith(t, true)
	o := New(mgr, nil, WithMetrics(metrics))

	_, _ = o.RecoverFromError(context.Background(), taxonomy.NewMemoryError("oom", 0), pdf, "/out/a.md", nil, 3)
	_, _ = o.RecoverFromError(context.Background(), taxonomy.New(taxonomy.KindFileNotFound, "gone"), pdf, "/out/b.md", nil, 3)

	snap := o.Metrics()
	assert.Equal(t, Counts{Attempts: 2, Successes: 2}, snap.Recoveries)
	assert.Equal(t, 1.0, snap.SuccessRate)
	assert.Equal(t, Counts{Attempts: 1, Successes: 1}, snap.ByAction[ActionFallback])
	assert.Equal(t, Counts{Attempts: 1, Successes: 1}, snap.ByAction[ActionSkipFile])
	assert.Equal(t, Counts{Attempts: 1, Successes: 1}, snap.ByKind[taxonomy.KindConversionMemory])
	require.NotNil(t, snap.Fallback)
	assert.Equal(t, int64(1), snap.Fallback.SuccessfulFallbacks)
	assert.Equal(t, BreakerName, snap.Breaker.Name)
	assert.NotEmpty(t, snap.Rules)

	assert.Equal(t, int64(2), metrics.Snapshot().RecoveryActions)
}

func TestOpenFormatBreakerDoesNotTripRecovery(t *testing.T) {
	o := New(nil, nil)
	refusal := &resilience.CircuitBreakerError{Name: "convert.pdf", State: resilience.StateOpen, FailureCount: 5}

	var refusedCalls int32
	refused := countingOp(&refusedCalls, func() (*types.ConversionResult, error) { return nil, refusal })
	for i := 0; i < 2*resilience.DefaultConfig().FailureThreshold; i++ {
		res, err := o.RecoverFromError(context.Background(), refusal, pdf, "/out/scan.md", refused, 3)

		require.NoError(t, err)
		require.True(t, res.Skipped())
		assert.Equal(t, []Action{ActionRetry, ActionFallback, ActionSkipFile}, res.Attempted)
		assert.Equal(t, string(taxonomy.KindGenericConversion), res.Output.Metadata["error_kind"])
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&refusedCalls))
	assert.Equal(t, resilience.StateClosed, o.Breaker().State())
	assert.Equal(t, int64(0), o.Breaker().Metrics().TotalFailures)

	page := types.FileDescriptor{Path: "/in/page.html", Name: "page.html", Extension: ".html"}
	var htmlCalls int32
	res, err := o.RecoverFromError(context.Background(),
		taxonomy.New(taxonomy.KindGenericConversion, "converter crashed"),
		page, "/out/page.txt", countingOp(&htmlCalls, succeeded), 3)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, ActionRetry, res.Action)
	assert.Equal(t, int32(1), atomic.LoadInt32(&htmlCalls))
}

func TestRetryRefusedMidwayIsNotCounted(t *testing.T) {
	o := New(nil, nil)
	o.AddRecoveryRule(taxonomy.KindPDFParsing, ActionRetry)
	refusal := &resilience.CircuitBreakerError{Name: "convert.pdf", State: resilience.StateOpen}

	for i := 0; i < 2*resilience.DefaultConfig().FailureThreshold; i++ {
		_, err := o.RecoverFromError(context.Background(),
			taxonomy.NewPDFParsingError("xref table damaged", 0), pdf, "/out/scan.md",
			func(context.Context) (*types.ConversionResult, error) { return nil, refusal }, 3)
		assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	}

	assert.Equal(t, resilience.StateClosed, o.Breaker().State())
	assert.Equal(t, int64(0), o.Breaker().Metrics().TotalFailures)
}

func TestRetryFailureKeepsReportedKind(t *testing.T) {
	o := New(nil, nil)
	o.AddRecoveryRule(taxonomy.KindPDFParsing, ActionRetry)

	_, err := o.RecoverFromError(context.Background(),
		taxonomy.NewPDFParsingError("xref table damaged", 0), pdf, "/out/scan.md",
		func(context.Context) (*types.ConversionResult, error) {
			return types.Failure("FontBBox missing for /F1", time.Millisecond), nil
		}, 3)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetryUnsuccessful)
	kind, ok := taxonomy.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, taxonomy.KindFontDescriptor, kind)
}

type failingRepairer struct{}

func (failingRepairer) Repair(context.Context, types.FileDescriptor, string, error) (*types.ConversionResult, error) {
	return types.Failure("still broken", time.Millisecond), nil
}

func TestFailedRecoveryAlwaysReturnsError(t *testing.T) {
	o := New(nil, nil, WithRepairer(failingRepairer{}))
	o.AddRecoveryRule(taxonomy.KindValidationFailed, ActionRepairDocument)

	res, err := o.RecoverFromError(context.Background(), taxonomy.NewValidationError([]string{"xref broken"}), pdf, "/out/scan.md", nil, 3)

	require.Error(t, err)
	assert.ErrorContains(t, err, "did not produce output")
	assert.False(t, res.Success)
	assert.Equal(t, err, res.Err)
	assert.Equal(t, []Action{ActionRepairDocument}, res.Attempted)
}
