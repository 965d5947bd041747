package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" || e.ActorOperatorID == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Actor identifies who triggered an audited action.
type Actor struct {
	OperatorID string
	Role       string
	IP         string
}

// LogBatchStarted records an operator starting a batch of store calls.
func (s *Service) LogBatchStarted(ctx context.Context, a Actor, jobID, product string, targets int) error {
	return s.Append(ctx, Event{
		Type:            EventTypeBatchStarted,
		ActorOperatorID: a.OperatorID,
		ActorRole:       a.Role,
		IPAddress:       a.IP,
		JobID:           jobID,
		Product:         product,
		Targets:         targets,
		Message:         "batch started",
	})
}

// LogSingleCall records an operator calling one store directly.
func (s *Service) LogSingleCall(ctx context.Context, a Actor, retailer, product string) error {
	return s.Append(ctx, Event{
		Type:            EventTypeSingleCall,
		ActorOperatorID: a.OperatorID,
		ActorRole:       a.Role,
		IPAddress:       a.IP,
		Product:         product,
		Targets:         1,
		Message:         "single call to " + retailer,
	})
}
