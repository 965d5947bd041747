package telephony

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stock-finder/internal/calls"
	"stock-finder/internal/inventory"
	"stock-finder/pkg/logger"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxWait      = 300 * time.Second
)

// Driver places one call and waits for its outcome.
//
// PlaceCall never returns an error: provider failures, timeouts and
// cancellation all become call_failed results so a batch always gets one
// result per target.
type Driver struct {
	provider     VoiceProvider
	script       Script
	pollInterval time.Duration
	maxWait      time.Duration
	now          func() time.Time
}

type DriverOptions struct {
	PollInterval time.Duration
	MaxWait      time.Duration
	Now          func() time.Time
}

func NewDriver(provider VoiceProvider, script Script, opts DriverOptions) *Driver {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Driver{
		provider:     provider,
		script:       script,
		pollInterval: opts.PollInterval,
		maxWait:      opts.MaxWait,
		now:          opts.Now,
	}
}

// WithScript returns a copy of d that dials with s.
func (d *Driver) WithScript(s Script) *Driver {
	cp := *d
	cp.script = s
	return &cp
}

func (d *Driver) PlaceCall(ctx context.Context, t calls.Target) calls.Result {
	log := logger.From(ctx).With("retailer", t.DisplayName)
	at := d.now().UTC()
	target := calls.Target{DisplayName: t.DisplayName, Phone: calls.NormalizePhone(t.Phone)}

	if d.provider == nil {
		return calls.Failed(target, "", "Voice provider not configured", at)
	}
	if !calls.IsE164(target.Phone) {
		log.Warn("phone number not in E.164 form, dialing as-is", "phone", target.Phone)
	}

	log.Info("placing call", "phone", target.Phone, "provider", d.provider.Name())
	created, err := d.provider.CreateCall(ctx, CallRequest{
		To:              target.Phone,
		OpeningLine:     d.script.OpeningLine,
		Task:            d.script.Task,
		VoiceID:         d.script.VoiceID,
		Model:           d.script.Model,
		Language:        d.script.Language,
		MaxDurationSecs: d.script.MaxDurationSecs,
		WaitForGreeting: d.script.WaitForGreeting,
		Record:          d.script.Record,
		Metadata: map[string]string{
			"retailer_name": target.DisplayName,
			"reference":     d.script.Reference,
			"timestamp":     at.Format(time.RFC3339),
		},
	})
	if err != nil {
		log.Warn("call request failed", "err", err)
		return calls.Failed(target, "", failureMessage(err), at)
	}

	res := d.await(ctx, log, target, created.CallID)
	res.Timestamp = at
	return res
}

// await polls callID right away, then every pollInterval, until the call
// ends, ctx is done or maxWait elapses. The status is read one last time when
// the deadline fires.
func (d *Driver) await(ctx context.Context, log *slog.Logger, target calls.Target, callID string) calls.Result {
	deadline := time.NewTimer(d.maxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		if res, ok := d.poll(ctx, log, target, callID); ok {
			return res
		}
		select {
		case <-ctx.Done():
			log.Warn("call polling canceled", "call_id", callID, "err", ctx.Err())
			return calls.Failed(target, callID, fmt.Sprintf("Call polling canceled: %v", ctx.Err()), time.Time{})
		case <-deadline.C:
			if res, ok := d.poll(ctx, log, target, callID); ok {
				return res
			}
			log.Warn("call timed out", "call_id", callID, "max_wait", d.maxWait.String())
			return calls.Failed(target, callID, "Call timed out waiting for completion", time.Time{})
		case <-ticker.C:
		}
	}
}

// poll reads the call once. ok is false until the provider reports a
// terminal status.
func (d *Driver) poll(ctx context.Context, log *slog.Logger, target calls.Target, callID string) (calls.Result, bool) {
	st, err := d.provider.GetCall(ctx, callID)
	if err != nil {
		log.Warn("call status poll failed", "call_id", callID, "err", err)
		return calls.Result{}, false
	}
	if st.Status == "" {
		log.Debug("call status: waiting (empty response)", "call_id", callID)
		return calls.Result{}, false
	}
	if !IsTerminal(st.Status) {
		log.Debug("call status", "call_id", callID, "status", st.Status)
		return calls.Result{}, false
	}
	res := finish(target, callID, st)
	log.Info("call finished", "call_id", callID, "provider_status", st.Status, "status", res.Status)
	return res, true
}

// finish converts a terminal provider status into a Result.
func finish(target calls.Target, callID string, st CallStatus) calls.Result {
	res := calls.Result{
		TargetName:      target.DisplayName,
		TargetPhone:     target.Phone,
		ProviderCallID:  callID,
		Transcript:      st.Transcript,
		DurationSeconds: st.DurationSeconds,
		RawPayload:      st.Raw,
	}
	if IsUnanswered(st.Status) {
		res.Status = inventory.StatusNoAnswer
		res.Summary = "Call ended with status: " + st.Status
		return res
	}
	res.Summary = st.Summary
	res.Status = inventory.Classify(st.Transcript, st.Summary)
	return res
}

func failureMessage(err error) string {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr) && reqErr.StatusCode != 0:
		return fmt.Sprintf("API error: %d - %s", reqErr.StatusCode, reqErr.Body)
	case errors.Is(err, ErrNoCallID):
		return "API returned no call_id"
	default:
		return "Exception: " + err.Error()
	}
}
