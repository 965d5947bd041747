package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"stock-finder/internal/calls"
)

var (
	ErrNotFound    = errors.New("jobs: job not found")
	ErrJobFrozen   = errors.New("jobs: job already finished")
	ErrInvalidMove = errors.New("jobs: invalid status transition")
	ErrJobFull     = errors.New("jobs: job already has all results")
)

// Tracker holds batch jobs in memory. Safe for concurrent use by one writer
// per job and any number of readers.
type Tracker struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	clock func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{jobs: map[string]*Job{}, clock: time.Now}
}

// Create registers a new job in the starting state and returns its id.
func (t *Tracker) Create(total int) string {
	if total < 0 {
		total = 0
	}
	id := uuid.NewString()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[id] = &Job{
		ID:        id,
		Status:    StatusStarting,
		Total:     total,
		Results:   []calls.Result{},
		StartedAt: t.clock().UTC(),
	}
	return id
}

// Update applies p to job id. Status may only move forward; once the job is
// terminal every update returns ErrJobFrozen.
func (t *Tracker) Update(id string, p Patch) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status.Terminal() {
		return ErrJobFrozen
	}
	if p.Status != nil {
		next := *p.Status
		if next.rank() < j.Status.rank() {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidMove, j.Status, next)
		}
		j.Status = next
		if next.Terminal() {
			now := t.clock().UTC()
			j.CompletedAt = &now
			j.Current = ""
		}
	}
	if p.Current != nil && !j.Status.Terminal() {
		j.Current = *p.Current
	}
	if p.Error != nil {
		j.Error = *p.Error
	}
	return nil
}

// Append records one finished call and bumps Completed.
func (t *Tracker) Append(id string, r calls.Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status.Terminal() {
		return ErrJobFrozen
	}
	if j.Completed >= j.Total {
		return ErrJobFull
	}
	j.Results = append(j.Results, r)
	j.Completed = len(j.Results)
	return nil
}

// Get returns a snapshot of job id that later writes will not affect.
func (t *Tracker) Get(id string) (Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	j, ok := t.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	out := *j
	out.Results = make([]calls.Result, len(j.Results))
	copy(out.Results, j.Results)
	if j.CompletedAt != nil {
		at := *j.CompletedAt
		out.CompletedAt = &at
	}
	return out, nil
}

// DefaultRetention is how long a finished job stays pollable.
const DefaultRetention = 24 * time.Hour

// Prune drops jobs that finished more than retention ago and returns how many
// were removed. Jobs still running are kept.
func (t *Tracker) Prune(retention time.Duration) int {
	cutoff := t.clock().UTC().Add(-retention)
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, j := range t.jobs {
		if j.Status.Terminal() && j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
			delete(t.jobs, id)
			n++
		}
	}
	return n
}

// Sweep runs Prune every interval until ctx is done.
func (t *Tracker) Sweep(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Prune(retention)
		}
	}
}

// Len returns the number of tracked jobs.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.jobs)
}

// StatusPtr is a convenience for building a Patch.
func StatusPtr(s Status) *Status { return &s }

// StringPtr is a convenience for building a Patch.
func StringPtr(s string) *string { return &s }
