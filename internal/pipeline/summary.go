package pipeline

import "time"

// Outcome is what happened to one file.
type Outcome string

const (
	OutcomeConverted Outcome = "converted"
	OutcomeRecovered Outcome = "recovered"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
	OutcomeAborted   Outcome = "aborted"
)

// FileResult describes one file of a batch.
type FileResult struct {
	Path       string        `json:"path"`
	Format     string        `json:"format,omitempty"`
	Outcome    Outcome       `json:"outcome"`
	OutputPath string        `json:"output_path,omitempty"`
	Action     string        `json:"recovery_action,omitempty"`
	Strategy   string        `json:"fallback_strategy,omitempty"`
	ReportID   string        `json:"report_id,omitempty"`
	Err        error         `json:"-"`
	Duration   time.Duration `json:"duration"`
}

// Summary aggregates a batch.
type Summary struct {
	RunID     string       `json:"run_id"`
	Started   time.Time    `json:"started"`
	Finished  time.Time    `json:"finished"`
	Total     int          `json:"total"`
	Converted int          `json:"converted"`
	Recovered int          `json:"recovered"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Aborted   int          `json:"aborted"`
	Files     []FileResult `json:"files"`
}

func (s *Summary) tally() {
	s.Total = len(s.Files)
	s.Converted, s.Recovered, s.Skipped, s.Failed, s.Aborted = 0, 0, 0, 0, 0
	for i := range s.Files {
		switch s.Files[i].Outcome {
		case OutcomeConverted:
			s.Converted++
		case OutcomeRecovered:
			s.Recovered++
		case OutcomeSkipped:
			s.Skipped++
		case OutcomeFailed:
			s.Failed++
		default:
			s.Files[i].Outcome = OutcomeAborted
			s.Aborted++
		}
	}
}

// Succeeded reports whether every file produced output.
func (s *Summary) Succeeded() bool {
	return s.Converted+s.Recovered == s.Total
}
