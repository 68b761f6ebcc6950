package fallback

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/docshield/internal/shared/types"
)

// Priority orders strategies. Lower values are tried first.
type Priority int

const (
	PriorityHigh      Priority = 1
	PriorityMedium    Priority = 2
	PriorityLow       Priority = 3
	PriorityEmergency Priority = 4
)

// String implements fmt.Stringer
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	case PriorityEmergency:
		return "emergency"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Strategy is an alternative way to produce output for a file whose
// primary conversion failed. Execute must be safe to call again for the
// same file and output path.
type Strategy interface {
	Name() string
	Priority() Priority
	// CanHandle reports whether the strategy applies to file given the
	// error that made the primary conversion fail.
	CanHandle(file types.FileDescriptor, cause error) bool
	Execute(ctx context.Context, file types.FileDescriptor, outputPath string, cause error) (*types.ConversionResult, error)
}

// Func adapts plain functions into a Strategy.
type Func struct {
	StrategyName     string
	StrategyPriority Priority
	Applies          func(file types.FileDescriptor, cause error) bool
	Run              func(ctx context.Context, file types.FileDescriptor, outputPath string, cause error) (*types.ConversionResult, error)
}

func (f *Func) Name() string       { return f.StrategyName }
func (f *Func) Priority() Priority { return f.StrategyPriority }

func (f *Func) CanHandle(file types.FileDescriptor, cause error) bool {
	if f.Applies == nil {
		return true
	}
	return f.Applies(file, cause)
}

func (f *Func) Execute(ctx context.Context, file types.FileDescriptor, outputPath string, cause error) (*types.ConversionResult, error) {
	return f.Run(ctx, file, outputPath, cause)
}
