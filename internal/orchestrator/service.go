package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"stock-finder/internal/calls"
	"stock-finder/internal/catalog"
	"stock-finder/internal/inventory"
	"stock-finder/internal/jobs"
	"stock-finder/internal/summarizer"
	"stock-finder/pkg/logger"
)

// Dialer places one call and always returns a result, failed calls included.
type Dialer interface {
	PlaceCall(ctx context.Context, t calls.Target) calls.Result
}

// DialerFactory returns a Dialer scripted for product p.
type DialerFactory func(p catalog.Product) Dialer

// WebsiteChecker looks a product up on a retailer's website.
type WebsiteChecker interface {
	CheckRetailer(ctx context.Context, retailerName string, p catalog.Product) (calls.WebsiteCheck, bool)
}

type Options struct {
	Summarizer summarizer.Summarizer
	Limiter    Limiter
	Websites   WebsiteChecker

	// BaseContext is the parent of background batches started with Start.
	// It should be canceled on shutdown.
	BaseContext context.Context

	// Sleep waits between calls. Defaults to a timer that honors ctx.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

type BatchOptions struct {
	// Delay is the pause between two consecutive calls. It is never shortened.
	Delay time.Duration
	// MaxCalls caps the batch to the first MaxCalls targets. Zero means no cap.
	MaxCalls int

	Product catalog.Product

	// WebsiteFallback checks the retailer website after calls that did not
	// produce a stock answer.
	WebsiteFallback bool
}

// Service runs call batches and single refined calls.
type Service struct {
	tracker    *jobs.Tracker
	newDialer  DialerFactory
	summarizer summarizer.Summarizer
	limiter    Limiter
	websites   WebsiteChecker
	baseCtx    context.Context
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time

	wg sync.WaitGroup
}

func NewService(tracker *jobs.Tracker, newDialer DialerFactory, opts Options) *Service {
	if tracker == nil {
		tracker = jobs.NewTracker()
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		tracker:    tracker,
		newDialer:  newDialer,
		summarizer: opts.Summarizer,
		limiter:    opts.Limiter,
		websites:   opts.Websites,
		baseCtx:    opts.BaseContext,
		sleep:      opts.Sleep,
		now:        opts.Now,
	}
}

var (
	ErrNoTargets = errors.New("orchestrator: no targets to call")
	ErrNoDialer  = errors.New("orchestrator: dialer not configured")
)

// Cap returns the first max targets, or all of them when max <= 0.
func Cap(targets []calls.Target, max int) []calls.Target {
	if max <= 0 || max >= len(targets) {
		return targets
	}
	return targets[:max]
}

// Start creates a job for targets and runs the batch in the background.
// The returned id can be polled through the tracker immediately.
func (s *Service) Start(ctx context.Context, targets []calls.Target, opts BatchOptions) (string, error) {
	if s.newDialer == nil {
		return "", ErrNoDialer
	}
	capped := Cap(targets, opts.MaxCalls)
	if len(capped) == 0 {
		return "", ErrNoTargets
	}
	opts.MaxCalls = 0

	jobID := s.tracker.Create(len(capped))
	log := logger.From(ctx).With("job_id", jobID)
	batchCtx := logger.With(s.baseCtx, log)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.limiter != nil {
			s.patch(log, jobID, jobs.Patch{Current: jobs.StringPtr(queuedCurrent)})
			if err := s.limiter.Acquire(batchCtx); err != nil {
				log.Warn("batch could not get a slot", "err", err)
				s.failJob(log, jobID, capped, fmt.Sprintf("Could not start calls: %v", err))
				return
			}
			defer func() {
				// Release must not depend on the batch context surviving shutdown.
				relCtx, cancel := context.WithTimeout(context.WithoutCancel(batchCtx), 5*time.Second)
				defer cancel()
				if err := s.limiter.Release(relCtx); err != nil {
					log.Warn("batch slot release failed", "err", err)
				}
			}()
		}
		s.RunBatch(batchCtx, jobID, capped, opts)
	}()

	log.Info("batch started", "targets", len(capped), "reference", opts.Product.Reference)
	return jobID, nil
}

// queuedCurrent is shown while a batch waits for a free slot.
const queuedCurrent = "Waiting for another batch to finish"

// failJob records one call_failed result per target before failing the job,
// so the job still holds a result for every target.
func (s *Service) failJob(log *slog.Logger, jobID string, targets []calls.Target, reason string) {
	at := s.now().UTC()
	for _, t := range targets {
		if err := s.tracker.Append(jobID, calls.Failed(t, "", reason, at)); err != nil {
			log.Warn("job append failed", "err", err)
		}
	}
	s.patch(log, jobID, jobs.Patch{
		Status: jobs.StatusPtr(jobs.StatusFailed),
		Error:  jobs.StringPtr(reason),
	})
}

// Jobs returns the tracker batches report progress to.
func (s *Service) Jobs() *jobs.Tracker { return s.tracker }

// Wait blocks until every batch started with Start has returned.
func (s *Service) Wait() { s.wg.Wait() }

// RunBatch calls targets one at a time in input order and returns one result
// per attempted target. When jobID is non-empty the tracker is updated after
// every call.
func (s *Service) RunBatch(ctx context.Context, jobID string, targets []calls.Target, opts BatchOptions) []calls.Result {
	log := logger.From(ctx)
	targets = Cap(targets, opts.MaxCalls)
	results := make([]calls.Result, 0, len(targets))

	s.patch(log, jobID, jobs.Patch{Status: jobs.StatusPtr(jobs.StatusInProgress)})

	var dialer Dialer
	if s.newDialer != nil {
		dialer = s.newDialer(opts.Product)
	}

	for i, t := range targets {
		s.patch(log, jobID, jobs.Patch{Current: jobs.StringPtr(t.DisplayName)})
		log.Info("calling retailer", "index", i+1, "total", len(targets), "retailer", t.DisplayName)

		var res calls.Result
		switch {
		case ctx.Err() != nil:
			res = calls.Failed(t, "", fmt.Sprintf("Batch canceled: %v", ctx.Err()), s.now().UTC())
		case dialer == nil:
			res = calls.Failed(t, "", "Voice provider not configured", s.now().UTC())
		default:
			res = dialer.PlaceCall(ctx, t)
		}
		if opts.WebsiteFallback {
			res = s.withWebsite(ctx, res, opts.Product)
		}

		results = append(results, res)
		if jobID != "" {
			if err := s.tracker.Append(jobID, res); err != nil {
				log.Warn("job append failed", "err", err)
			}
		}

		if i < len(targets)-1 && opts.Delay > 0 && ctx.Err() == nil {
			if err := s.sleep(ctx, opts.Delay); err != nil {
				log.Warn("batch delay interrupted", "err", err)
			}
		}
	}

	s.patch(log, jobID, jobs.Patch{Status: jobs.StatusPtr(jobs.StatusCompleted)})
	log.Info("batch finished", "results", len(results))
	return results
}

// CallOne places a single call and refines its status with a fresh summary
// of the transcript. The returned summary is never empty.
func (s *Service) CallOne(ctx context.Context, t calls.Target, p catalog.Product) calls.Result {
	if s.newDialer == nil {
		return calls.Failed(t, "", "Voice provider not configured", s.now().UTC())
	}
	res := s.newDialer(p).PlaceCall(ctx, t)
	return s.Refine(ctx, res, p)
}

// Refine re-classifies res against a summarizer-produced summary. On summarizer
// failure the original status is kept and a fixed sentence fills the summary.
func (s *Service) Refine(ctx context.Context, res calls.Result, p catalog.Product) calls.Result {
	log := logger.From(ctx).With("retailer", res.TargetName)

	if !res.Status.Reclassifiable() {
		if strings.TrimSpace(res.Summary) == "" {
			res.Summary = inventory.Sentence(res.Status)
		}
		return res
	}
	if strings.TrimSpace(res.Transcript) == "" || s.summarizer == nil {
		res.Summary = inventory.Sentence(res.Status)
		return res
	}

	refined, err := s.summarizer.Summarize(ctx, summarizer.Request{
		Transcript: res.Transcript,
		EntityName: res.TargetName,
		Subject:    p.FullName,
	})
	refined = strings.TrimSpace(refined)
	if err != nil || refined == "" {
		log.Warn("summary refinement failed, keeping call status", "err", err, "status", res.Status)
		res.Summary = inventory.Sentence(res.Status)
		return res
	}

	next := res.Reclassify(refined)
	if next != res.Status {
		log.Info("status refined", "from", res.Status, "to", next)
	}
	res.Status = next
	res.Summary = refined
	return res
}

func (s *Service) withWebsite(ctx context.Context, res calls.Result, p catalog.Product) calls.Result {
	if s.websites == nil {
		return res
	}
	switch res.Status {
	case inventory.StatusNoAnswer, inventory.StatusCallFailed, inventory.StatusUnknown:
	default:
		return res
	}
	check, ok := s.websites.CheckRetailer(ctx, res.TargetName, p)
	if !ok {
		return res
	}
	res.Website = &check
	note := "Website check: " + check.Status
	if check.Message != "" {
		note += " (" + check.Message + ")"
	}
	if res.Summary == "" {
		res.Summary = note
	} else {
		res.Summary = res.Summary + ". " + note
	}
	return res
}

func (s *Service) patch(log *slog.Logger, jobID string, p jobs.Patch) {
	if jobID == "" {
		return
	}
	if err := s.tracker.Update(jobID, p); err != nil {
		log.Warn("job update failed", "err", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
