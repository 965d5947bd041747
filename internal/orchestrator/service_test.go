package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stock-finder/internal/calls"
	"stock-finder/internal/catalog"
	"stock-finder/internal/inventory"
	"stock-finder/internal/jobs"
	"stock-finder/internal/summarizer"
	"stock-finder/internal/telephony"
)

// scriptedProvider answers each destination number with a fixed terminal status.
type scriptedProvider struct {
	mu      sync.Mutex
	byPhone map[string]telephony.CallStatus
	ids     map[string]string
	dialed  []string
}

func (p *scriptedProvider) Name() string                    { return "scripted" }
func (p *scriptedProvider) HealthCheck(context.Context) error { return nil }

func (p *scriptedProvider) CreateCall(_ context.Context, req telephony.CallRequest) (telephony.CreateCallResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ids == nil {
		p.ids = map[string]string{}
	}
	id := "call-" + req.To
	p.ids[id] = req.To
	p.dialed = append(p.dialed, req.To)
	return telephony.CreateCallResult{CallID: id}, nil
}

func (p *scriptedProvider) GetCall(_ context.Context, callID string) (telephony.CallStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.byPhone[p.ids[callID]]
	st.CallID = callID
	return st, nil
}

func driverFactory(p telephony.VoiceProvider) DialerFactory {
	d := telephony.NewDriver(p, telephony.Script{}, telephony.DriverOptions{PollInterval: time.Millisecond, MaxWait: time.Second})
	return func(prod catalog.Product) Dialer {
		return d.WithScript(telephony.NewScript(prod, telephony.ScriptDefaults{}))
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

var threeStores = []calls.Target{
	{DisplayName: "Voicemail Jewelers", Phone: "2125550001"},
	{DisplayName: "Order Watches", Phone: "2125550002"},
	{DisplayName: "Stock Time", Phone: "2125550003"},
}

func threeStoreProvider() *scriptedProvider {
	return &scriptedProvider{byPhone: map[string]telephony.CallStatus{
		"+12125550001": {Status: "voicemail"},
		"+12125550002": {Status: "completed", Transcript: "we don't have that in stock but we can special order it"},
		"+12125550003": {Status: "completed", Transcript: "yes we have one, come pick it up"},
	}}
}

func TestRunBatch_EndToEnd(t *testing.T) {
	tracker := jobs.NewTracker()
	svc := NewService(tracker, driverFactory(threeStoreProvider()), Options{Sleep: noSleep})

	id := tracker.Create(len(threeStores))
	results := svc.RunBatch(context.Background(), id, threeStores, BatchOptions{Delay: 30 * time.Second})

	want := []inventory.Status{inventory.StatusNoAnswer, inventory.StatusCanOrder, inventory.StatusInStock}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(results))
	}
	for i, w := range want {
		if results[i].Status != w {
			t.Fatalf("result %d: expected %s, got %s", i, w, results[i].Status)
		}
		if results[i].TargetName != threeStores[i].DisplayName {
			t.Fatalf("result %d out of order: %s", i, results[i].TargetName)
		}
	}

	j, err := tracker.Get(id)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if j.Status != jobs.StatusCompleted || j.Completed != 3 {
		t.Fatalf("expected completed job with 3 results, got %s/%d", j.Status, j.Completed)
	}
}

type recordingDialer struct {
	mu      sync.Mutex
	tracker *jobs.Tracker
	jobID   string
	seen    []int
	fail    bool
}

func (d *recordingDialer) PlaceCall(_ context.Context, t calls.Target) calls.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tracker != nil {
		j, _ := d.tracker.Get(d.jobID)
		d.seen = append(d.seen, j.Completed)
	}
	if d.fail {
		return calls.Failed(t, "", "API error: 500 - down", time.Now())
	}
	return calls.Result{TargetName: t.DisplayName, TargetPhone: t.Phone, Status: inventory.StatusUnknown}
}

func TestRunBatch_AllFailuresStillYieldOneResultEach(t *testing.T) {
	d := &recordingDialer{fail: true}
	svc := NewService(nil, func(catalog.Product) Dialer { return d }, Options{Sleep: noSleep})
	results := svc.RunBatch(context.Background(), "", threeStores, BatchOptions{})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Status != inventory.StatusCallFailed {
			t.Fatalf("expected call_failed, got %s", r.Status)
		}
	}
}

func TestRunBatch_ProgressIsMonotonic(t *testing.T) {
	tracker := jobs.NewTracker()
	id := tracker.Create(3)
	d := &recordingDialer{tracker: tracker, jobID: id}
	svc := NewService(tracker, func(catalog.Product) Dialer { return d }, Options{Sleep: noSleep})

	svc.RunBatch(context.Background(), id, threeStores, BatchOptions{})
	for i, n := range d.seen {
		if n != i {
			t.Fatalf("call %d saw completed=%d", i, n)
		}
	}
}

func TestRunBatch_CapKeepsInputOrder(t *testing.T) {
	d := &recordingDialer{}
	svc := NewService(nil, func(catalog.Product) Dialer { return d }, Options{Sleep: noSleep})
	results := svc.RunBatch(context.Background(), "", threeStores, BatchOptions{MaxCalls: 2})
	if len(results) != 2 || results[0].TargetName != "Voicemail Jewelers" || results[1].TargetName != "Order Watches" {
		t.Fatalf("unexpected capped results: %+v", results)
	}
}

func TestRunBatch_SleepsOnlyBetweenCalls(t *testing.T) {
	var slept []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	svc := NewService(nil, func(catalog.Product) Dialer { return &recordingDialer{} }, Options{Sleep: sleep})
	svc.RunBatch(context.Background(), "", threeStores, BatchOptions{Delay: 30 * time.Second})
	if len(slept) != 2 {
		t.Fatalf("expected 2 pauses for 3 calls, got %d", len(slept))
	}
	for _, d := range slept {
		if d != 30*time.Second {
			t.Fatalf("expected full delay, got %s", d)
		}
	}
}

func TestRunBatch_CanceledContextFailsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := NewService(nil, func(catalog.Product) Dialer { return &recordingDialer{} }, Options{Sleep: noSleep})
	results := svc.RunBatch(ctx, "", threeStores, BatchOptions{Delay: time.Hour})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Status != inventory.StatusCallFailed {
			t.Fatalf("expected call_failed after cancel, got %s", r.Status)
		}
	}
}

func TestStart_RunsInBackground(t *testing.T) {
	svc := NewService(nil, driverFactory(threeStoreProvider()), Options{Sleep: noSleep})
	id, err := svc.Start(context.Background(), threeStores, BatchOptions{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	svc.Wait()
	j, err := svc.Jobs().Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if j.Status != jobs.StatusCompleted || j.Completed != 3 || j.Total != 3 {
		t.Fatalf("unexpected job: %+v", j)
	}
}

func TestStart_NoTargets(t *testing.T) {
	svc := NewService(nil, driverFactory(threeStoreProvider()), Options{})
	if _, err := svc.Start(context.Background(), nil, BatchOptions{}); !errors.Is(err, ErrNoTargets) {
		t.Fatalf("expected ErrNoTargets, got %v", err)
	}
}

func TestStart_QueuesWhileSlotsBusy(t *testing.T) {
	lim := NewLocalLimiter(1)
	if err := lim.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	svc := NewService(nil, driverFactory(threeStoreProvider()), Options{Limiter: lim, Sleep: noSleep})
	id, err := svc.Start(context.Background(), threeStores, BatchOptions{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		j, _ := svc.Jobs().Get(id)
		if j.Current == queuedCurrent {
			if j.Status != jobs.StatusStarting || j.Completed != 0 {
				t.Fatalf("queued job should not have started: %+v", j)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never reported waiting for a slot: %+v", j)
		}
		time.Sleep(time.Millisecond)
	}

	_ = lim.Release(context.Background())
	svc.Wait()
	j, _ := svc.Jobs().Get(id)
	if j.Status != jobs.StatusCompleted || j.Completed != 3 || len(j.Results) != 3 {
		t.Fatalf("expected completed job with 3 results after slot freed, got %+v", j)
	}
}

func TestStart_AbortedSlotWaitFailsEveryTarget(t *testing.T) {
	lim := NewLocalLimiter(1)
	if err := lim.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	base, cancel := context.WithCancel(context.Background())
	cancel()
	svc := NewService(nil, driverFactory(threeStoreProvider()), Options{Limiter: lim, Sleep: noSleep, BaseContext: base})

	id, err := svc.Start(context.Background(), threeStores[:2], BatchOptions{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	svc.Wait()

	j, _ := svc.Jobs().Get(id)
	if j.Status != jobs.StatusFailed || j.Error == "" {
		t.Fatalf("expected failed job with error, got %+v", j)
	}
	if j.Total != 2 || j.Completed != 2 || len(j.Results) != 2 {
		t.Fatalf("expected one result per target, got total=%d completed=%d results=%d", j.Total, j.Completed, len(j.Results))
	}
	for i, r := range j.Results {
		if r.Status != inventory.StatusCallFailed || r.TargetName != threeStores[i].DisplayName {
			t.Fatalf("result %d: unexpected %+v", i, r)
		}
	}
}

func TestLocalLimiter_AcquireHonorsContext(t *testing.T) {
	lim := NewLocalLimiter(1)
	if err := lim.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := lim.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

type fakeSummarizer struct {
	text string
	err  error
}

func (f fakeSummarizer) Summarize(context.Context, summarizer.Request) (string, error) {
	return f.text, f.err
}

type fixedDialer calls.Result

func (d fixedDialer) PlaceCall(context.Context, calls.Target) calls.Result { return calls.Result(d) }

func TestCallOne_RefinedSummaryWins(t *testing.T) {
	d := fixedDialer{TargetName: "A", Status: inventory.StatusUnknown, Transcript: "assistant: hello? user: one moment"}
	svc := NewService(nil, func(catalog.Product) Dialer { return d }, Options{
		Summarizer: fakeSummarizer{text: "The store said the watch is sold out but can order one for you."},
	})
	res := svc.CallOne(context.Background(), calls.Target{DisplayName: "A"}, catalog.Product{})
	if res.Status != inventory.StatusCanOrder {
		t.Fatalf("expected can_order, got %s", res.Status)
	}
	if res.Summary != "The store said the watch is sold out but can order one for you." {
		t.Fatalf("expected refined summary, got %q", res.Summary)
	}
}

func TestCallOne_SummarizerFailureKeepsStatus(t *testing.T) {
	for _, sum := range []fakeSummarizer{{err: errors.New("down")}, {text: "   "}} {
		d := fixedDialer{Status: inventory.StatusOutOfStock, Transcript: "we don't have it"}
		svc := NewService(nil, func(catalog.Product) Dialer { return d }, Options{Summarizer: sum})
		res := svc.CallOne(context.Background(), calls.Target{}, catalog.Product{})
		if res.Status != inventory.StatusOutOfStock {
			t.Fatalf("expected out_of_stock kept, got %s", res.Status)
		}
		if res.Summary != inventory.Sentence(inventory.StatusOutOfStock) {
			t.Fatalf("expected template sentence, got %q", res.Summary)
		}
	}
}

func TestCallOne_UnansweredIsNotRefined(t *testing.T) {
	d := fixedDialer{Status: inventory.StatusNoAnswer, Summary: "Call ended with status: voicemail", Transcript: "we have it in stock"}
	svc := NewService(nil, func(catalog.Product) Dialer { return d }, Options{
		Summarizer: fakeSummarizer{text: "The store has it in stock."},
	})
	res := svc.CallOne(context.Background(), calls.Target{}, catalog.Product{})
	if res.Status != inventory.StatusNoAnswer || res.Summary != "Call ended with status: voicemail" {
		t.Fatalf("expected untouched no_answer result, got %+v", res)
	}
}

func TestCallOne_SummaryNeverEmpty(t *testing.T) {
	d := fixedDialer{Status: inventory.StatusCallFailed}
	svc := NewService(nil, func(catalog.Product) Dialer { return d }, Options{})
	if res := svc.CallOne(context.Background(), calls.Target{}, catalog.Product{}); res.Summary == "" {
		t.Fatalf("expected non-empty summary")
	}
}

type fakeWebsites struct{ check calls.WebsiteCheck }

func (f fakeWebsites) CheckRetailer(context.Context, string, catalog.Product) (calls.WebsiteCheck, bool) {
	return f.check, true
}

func TestRunBatch_WebsiteFallback(t *testing.T) {
	d := fixedDialer{TargetName: "A", Status: inventory.StatusNoAnswer, Summary: "Call ended with status: busy"}
	svc := NewService(nil, func(catalog.Product) Dialer { return d }, Options{
		Sleep:    noSleep,
		Websites: fakeWebsites{check: calls.WebsiteCheck{Status: "in_stock", Message: "Found 1 product"}},
	})
	res := svc.RunBatch(context.Background(), "", threeStores[:1], BatchOptions{WebsiteFallback: true})
	if res[0].Website == nil || res[0].Website.Status != "in_stock" {
		t.Fatalf("expected website check attached, got %+v", res[0].Website)
	}
	if res[0].Status != inventory.StatusNoAnswer {
		t.Fatalf("website fallback must not change call status")
	}
	if res[0].Summary != "Call ended with status: busy. Website check: in_stock (Found 1 product)" {
		t.Fatalf("unexpected summary %q", res[0].Summary)
	}
}
