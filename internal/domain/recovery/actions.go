package recovery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/docshield/internal/shared/types"
)

// retry re-runs op through the recovery breaker. Success requires the
// operation's own status to be success. A failure caused by an open
// breaker is not retried: the same breaker would refuse again.
func (o *Orchestrator) retry(ctx context.Context, cause *taxonomy.ConversionError, op Operation) (*Result, error) {
	res := &Result{Action: ActionRetry}
	if op == nil {
		return res, fmt.Errorf("%w: no operation to retry", ErrNotImplemented)
	}
	if errors.Is(cause, resilience.ErrCircuitOpen) {
		return res, fmt.Errorf("retry skipped: %w", cause)
	}
	if !o.retryBudget.Allow() {
		return res, ErrRetryBudgetExhausted
	}

	out, err := resilience.Do(ctx, o.breaker, func(ctx context.Context) (*types.ConversionResult, error) {
		out, err := op(ctx)
		if err != nil {
			return out, err
		}
		if !out.Succeeded() {
			msg := ErrRetryUnsuccessful.Error()
			if out != nil && out.ErrorMessage != "" {
				msg = out.ErrorMessage
			}
			return out, taxonomy.Wrap(taxonomy.ClassifyKind(errors.New(msg)), msg, ErrRetryUnsuccessful)
		}
		return out, nil
	})
	res.Output = out
	if err != nil {
		return res, err
	}
	res.Success = true
	return res, nil
}

func (o *Orchestrator) runFallback(ctx context.Context, cause *taxonomy.ConversionError, file types.FileDescriptor, outputPath string) (*Result, error) {
	res := &Result{Action: ActionFallback}
	if o.fallback == nil {
		return res, ErrNoFallbackManager
	}

	fr := o.fallback.ExecuteFallback(ctx, file, outputPath, cause, o.fallbackAttempts)
	res.Details = map[string]interface{}{
		"fallback_level":       fr.FallbackLevel,
		"strategies_attempted": fr.Attempted,
	}
	if !fr.Success {
		return res, fr.Err
	}
	res.Success = true
	res.Output = fr.Output
	res.Details["strategy"] = fr.StrategyName
	return res, nil
}

// validateFirst retries only when the validator vouches for the file.
// An invalid file, a validator error, or no applicable validator all go
// straight to fallback.
func (o *Orchestrator) validateFirst(ctx context.Context, cause *taxonomy.ConversionError, file types.FileDescriptor, outputPath string, op Operation) (*Result, error) {
	verdict, issues := o.validate(ctx, file)

	var (
		res *Result
		err error
	)
	if verdict == "valid" {
		res, err = o.retry(ctx, cause, op)
	} else {
		res, err = o.runFallback(ctx, cause, file, outputPath)
	}

	if res.Details == nil {
		res.Details = make(map[string]interface{})
	}
	res.Details["validation"] = verdict
	if len(issues) > 0 {
		res.Details["validation_issues"] = issues
	}
	res.Details["then"] = string(res.Action)
	res.Action = ActionValidateFirst
	return res, err
}

// validate returns "valid", "invalid", "error" or "unavailable".
func (o *Orchestrator) validate(ctx context.Context, file types.FileDescriptor) (verdict string, issues []string) {
	if o.validator == nil || !o.validator.CanValidate(file) {
		return "unavailable", nil
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("Validator panicked", zap.String("file", file.Path), zap.Any("panic", r))
			verdict, issues = "error", nil
		}
	}()

	vr, err := o.validator.Validate(ctx, file)
	if err != nil {
		o.logger.Warn("Validator failed", zap.String("file", file.Path), zap.Error(err))
		return "error", nil
	}
	if vr == nil || !vr.Valid {
		if vr != nil {
			issues = vr.Issues
		}
		return "invalid", issues
	}
	return "valid", nil
}

func (o *Orchestrator) repair(ctx context.Context, cause *taxonomy.ConversionError, file types.FileDescriptor, outputPath string) (*Result, error) {
	res := &Result{Action: ActionRepairDocument}
	if o.repairer == nil {
		return res, fmt.Errorf("%w: %s", ErrNotImplemented, ActionRepairDocument)
	}

	out, err := o.repairer.Repair(ctx, file, outputPath, cause)
	res.Output = out
	if err != nil {
		return res, err
	}
	if !out.Succeeded() {
		return res, fmt.Errorf("repair of %s did not produce output", file.Path)
	}
	res.Success = true
	return res, nil
}

// skip always succeeds with a cancelled result that preserves the error.
func (o *Orchestrator) skip(cause *taxonomy.ConversionError, file types.FileDescriptor) *Result {
	out := &types.ConversionResult{
		Status:       types.StatusCancelled,
		ErrorMessage: cause.Error(),
		Metadata: map[string]interface{}{
			"skipped":        true,
			"file":           file.Path,
			"original_error": cause.Error(),
			"error_kind":     cause.Kind.String(),
			"error_code":     cause.Code(),
		},
	}
	return &Result{
		Action:  ActionSkipFile,
		Success: true,
		Output:  out,
		Details: map[string]interface{}{"original_error": cause.Error()},
	}
}

// userIntervention asks the handler for a decision and runs the chosen
// action. A handler may not answer with USER_INTERVENTION again.
func (o *Orchestrator) userIntervention(ctx context.Context, cause *taxonomy.ConversionError, file types.FileDescriptor, outputPath string, op Operation) (*Result, error) {
	res := &Result{Action: ActionUserIntervention}
	if o.intervention == nil {
		return res, fmt.Errorf("%w: %s", ErrNotImplemented, ActionUserIntervention)
	}

	decision, err := o.intervention.Decide(ctx, Intervention{
		File:        file,
		Err:         cause,
		Suggestions: cause.Suggestions,
		Choices:     append([]Action(nil), interventionChoices...),
	})
	if err != nil {
		return res, fmt.Errorf("user intervention: %w", err)
	}
	if !offered(decision) {
		return res, fmt.Errorf("user intervention: %q is not an offered choice", decision)
	}

	o.logger.Info("User chose recovery action",
		zap.String("file", file.Path),
		zap.String("decision", string(decision)))

	chosen, err := o.run(ctx, decision, cause, file, outputPath, op)
	if chosen.Details == nil {
		chosen.Details = make(map[string]interface{})
	}
	chosen.Details["user_decision"] = string(decision)
	chosen.Action = ActionUserIntervention
	return chosen, err
}

func offered(a Action) bool {
	for _, c := range interventionChoices {
		if a == c {
			return true
		}
	}
	return false
}
