package types

import "time"

// Kind labels one side of the reader-writer protocol.
type Kind string

const (
	KindReader Kind = "reader"
	KindWriter Kind = "writer"
)

// Admission records one granted acquisition during a simulation run.
type Admission struct {
	// Seq is the global admission order within the run, starting at 1.
	Seq    int           `json:"seq"`
	Worker string        `json:"worker"`
	Kind   Kind          `json:"kind"`
	Waited time.Duration `json:"waited_ns"`
	Held   time.Duration `json:"held_ns"`
}

// KindStats aggregates admissions of one worker kind.
type KindStats struct {
	Admissions int           `json:"admissions"`
	TotalWait  time.Duration `json:"total_wait_ns"`
	MaxWait    time.Duration `json:"max_wait_ns"`
}

// AvgWait returns the mean wait per admission, zero when empty.
func (s *KindStats) AvgWait() time.Duration {
	if s == nil || s.Admissions == 0 {
		return 0
	}
	return s.TotalWait / time.Duration(s.Admissions)
}

// RunReport is the persisted outcome of one simulation run.
type RunReport struct {
	ID         string              `json:"id"`
	Policy     string              `json:"policy"`
	StartedAt  time.Time           `json:"started_at"`
	Duration   time.Duration       `json:"duration_ns"`
	Readers    int                 `json:"readers"`
	Writers    int                 `json:"writers"`
	Iterations int                 `json:"iterations"`
	Seed       int64               `json:"seed"`
	Stats      map[Kind]*KindStats `json:"stats"`
	Trace      []Admission         `json:"trace,omitempty"`
}

// RunHistory is the top-level structure of the history file.
type RunHistory struct {
	Runs []RunReport `json:"runs"`
}
