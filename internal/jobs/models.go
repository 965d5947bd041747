package jobs

import (
	"time"

	"stock-finder/internal/calls"
	"stock-finder/internal/reporting"
)

type Status string

const (
	StatusStarting   Status = "starting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) rank() int {
	switch s {
	case StatusStarting:
		return 0
	case StatusInProgress:
		return 1
	default:
		return 2
	}
}

// Job is the shared progress record of one batch run.
//
// Invariants:
// - Completed == len(Results) and Completed <= Total.
// - Completed and failed are absorbing.
type Job struct {
	ID        string         `json:"job_id"`
	Status    Status         `json:"status"`
	Total     int            `json:"total"`
	Completed int            `json:"completed"`
	Results   []calls.Result `json:"results"`

	// Current is the display name of the target being called, if any.
	Current string `json:"current_retailer,omitempty"`
	Error   string `json:"error,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Status  *Status
	Current *string
	Error   *string
}

// View is the read projection returned to pollers.
type View struct {
	JobID           string                  `json:"job_id"`
	Status          Status                  `json:"status"`
	Total           int                     `json:"total"`
	Completed       int                     `json:"completed"`
	CurrentRetailer string                  `json:"current_retailer,omitempty"`
	Results         []calls.Result          `json:"results"`
	Error           string                  `json:"error,omitempty"`
	StartedAt       time.Time               `json:"started_at"`
	CompletedAt     *time.Time              `json:"completed_at,omitempty"`
	Summary         *reporting.BatchSummary `json:"summary,omitempty"`
}

// ViewOf projects j. The batch summary is only attached once the job completed.
func ViewOf(j Job) View {
	v := View{
		JobID:           j.ID,
		Status:          j.Status,
		Total:           j.Total,
		Completed:       j.Completed,
		CurrentRetailer: j.Current,
		Results:         j.Results,
		Error:           j.Error,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
	if v.Results == nil {
		v.Results = []calls.Result{}
	}
	if j.Status == StatusCompleted {
		s := reporting.Summarize(j.Results)
		v.Summary = &s
	}
	return v
}
