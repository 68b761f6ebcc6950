// Package id provides ULID-based identifiers for reports and batch runs.
//
// IDs are lexicographically sortable by creation time and carry a short
// type prefix so they read clearly in logs and exported reports:
//   - rpt_<ulid>: an ErrorReport
//   - run_<ulid>: a batch run
//   - att_<ulid>: one recovery of one file
//   - req_<ulid>: a status API request
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ReportID identifies an error report
type ReportID string

// RunID identifies a batch conversion run
type RunID string

// AttemptID identifies one recovery of one file
type AttemptID string

// RequestID identifies a status API request
type RequestID string

const (
	ReportPrefix  = "rpt"
	RunPrefix     = "run"
	AttemptPrefix = "att"
	RequestPrefix = "req"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
	now       func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source
// and clock. Useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{entropy: entropy, now: now}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewReportID generates a report ID
func NewReportID() ReportID {
	return ReportID(Default().GenerateWithPrefix(ReportPrefix))
}

// NewRunID generates a batch run ID
func NewRunID() RunID {
	return RunID(Default().GenerateWithPrefix(RunPrefix))
}

// NewAttemptID generates a recovery attempt ID
func NewAttemptID() AttemptID {
	return AttemptID(Default().GenerateWithPrefix(AttemptPrefix))
}

// NewRequestID generates a request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id ReportID) String() string  { return string(id) }
func (id RunID) String() string     { return string(id) }
func (id AttemptID) String() string { return string(id) }
func (id RequestID) String() string { return string(id) }

// IsValid reports whether s is a ULID, optionally prefixed.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Parse parses a ULID string, stripping a type prefix if present.
func Parse(s string) (ulid.ULID, error) {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	return ulid.Parse(s)
}

// Timestamp extracts the creation time from an ID
func Timestamp(s string) (time.Time, error) {
	parsed, err := Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
