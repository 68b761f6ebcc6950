package reporting

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
)

// Severity ranks a report. Higher is worse.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String implements fmt.Stringer
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity accepts names in any case.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INFO":
		return SeverityInfo, nil
	case "WARNING", "WARN":
		return SeverityWarning, nil
	case "ERROR":
		return SeverityError, nil
	case "CRITICAL":
		return SeverityCritical, nil
	}
	return SeverityInfo, fmt.Errorf("unknown severity %q", s)
}

// zapLevel maps a severity onto the log level used for it.
func (s Severity) zapLevel() zapcore.Level {
	switch s {
	case SeverityInfo:
		return zapcore.InfoLevel
	case SeverityWarning:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// SeverityOf classifies err:
//
//   - recoverable conversion errors are warnings, unrecoverable ones errors
//   - out-of-memory and other system-level failures are critical
//   - missing files and permission problems are errors
//   - value and type mismatches are warnings
//   - anything else is an error
func SeverityOf(err error) Severity {
	if err == nil {
		return SeverityInfo
	}
	if ce, ok := taxonomy.AsConversionError(err); ok {
		if ce.Recoverable() {
			return SeverityWarning
		}
		return SeverityError
	}
	if isSystemFailure(err) {
		return SeverityCritical
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return SeverityError
	}
	if isValueMismatch(err) {
		return SeverityWarning
	}
	return SeverityError
}

func isSystemFailure(err error) bool {
	if errors.Is(err, syscall.ENOMEM) || errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EMFILE) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "out of memory") || strings.Contains(msg, "cannot allocate memory")
}

func isValueMismatch(err error) bool {
	var (
		numErr    *strconv.NumError
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
	)
	return errors.As(err, &numErr) || errors.As(err, &typeErr) || errors.As(err, &syntaxErr)
}
