package audit

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory append-only repository. It keeps at most limit
// events, dropping the oldest first; limit <= 0 keeps everything.
type MemoryRepo struct {
	mu     sync.Mutex
	limit  int
	events []Event
}

func NewMemoryRepo(limit int) *MemoryRepo { return &MemoryRepo{limit: limit} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = append([]Event(nil), r.events[len(r.events)-r.limit:]...)
	}
	return nil
}

// Events returns a copy, oldest first.
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
