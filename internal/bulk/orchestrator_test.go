package bulk

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/move-sure/ss-transport-sub000/internal/resolver"
	"github.com/move-sure/ss-transport-sub000/internal/update"
	"github.com/move-sure/ss-transport-sub000/pkg/logger"
)

type fakeDirectory struct {
	mu             sync.Mutex
	cities         []resolver.City
	transporters   map[int64][]resolver.TransportCandidate
	cityCalls      int
	transportCalls int
}

func (f *fakeDirectory) Cities(context.Context) ([]resolver.City, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cityCalls++
	return f.cities, nil
}

func (f *fakeDirectory) TransportersByCity(_ context.Context, cityID int64) ([]resolver.TransportCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transportCalls++
	return f.transporters[cityID], nil
}

type updateCall struct {
	ewbID         string
	transporterID int64
	name          string
}

type fakeUpdater struct {
	mu     sync.Mutex
	calls  []updateCall
	fail   map[string]string
	onCall func(n int)
}

func (f *fakeUpdater) PerformUpdate(_ context.Context, ewbID string, transporterID int64, name string) (*update.Outcome, *update.UpdateError) {
	f.mu.Lock()
	f.calls = append(f.calls, updateCall{ewbID, transporterID, name})
	n := len(f.calls)
	msg, failing := f.fail[ewbID]
	hook := f.onCall
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if failing {
		return nil, &update.UpdateError{Stage: update.StageApply, Message: msg}
	}
	return &update.Outcome{
		EwbID:           ewbID,
		Success:         true,
		TransporterID:   transporterID,
		TransporterName: name,
		DocumentURL:     "https://docs.example.com/" + ewbID + ".pdf",
		Timestamp:       time.Now(),
	}, nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []update.Outcome
	err      error
}

func (f *fakeRecorder) RecordOutcome(_ context.Context, o *update.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, *o)
	return f.err
}

type countingBackoff struct {
	mu sync.Mutex
	n  int
}

func (b *countingBackoff) Wait(context.Context) error {
	b.mu.Lock()
	b.n++
	b.mu.Unlock()
	return nil
}

func newDirectory() *fakeDirectory {
	return &fakeDirectory{
		cities: []resolver.City{
			{ID: 1, Name: "Kanpur", Code: "KNP"},
			{ID: 2, Name: "Lucknow", Code: "LKO"},
		},
		transporters: map[int64][]resolver.TransportCandidate{
			1: {
				{ID: 11, Name: "Zeta Roadways", GSTIN: "09ZZZ", CityID: 1},
				{ID: 12, Name: "Kanpur Express", GSTIN: "09KXP", CityID: 1},
			},
			2: {{ID: 21, Name: "Lucknow Cargo", GSTIN: "09LKO", CityID: 2}},
		},
	}
}

func newOrchestrator(dir *fakeDirectory, upd *fakeUpdater, rec OutcomeRecorder, status *StatusMap, b Backoff) *Orchestrator {
	log := logger.NewNop()
	return NewOrchestrator(resolver.NewResolver(dir, log), upd, rec, status, log, Options{RunID: "run-test", Backoff: b})
}

func items(n int) []WorkItem {
	out := make([]WorkItem, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, WorkItem{
			GroupKey:    "GR-1",
			GroupLabel:  "GR 1",
			EwbID:       ewbOf(i),
			Destination: resolver.Destination{Raw: "Kanpur (KNP)"},
		})
	}
	return out
}

func ewbOf(i int) string {
	return "4480091956" + string(rune('0'+i/10)) + string(rune('0'+i%10))
}

func TestRun_ExampleScenario(t *testing.T) {
	dir := newDirectory()
	upd := &fakeUpdater{}
	rec := &fakeRecorder{}
	o := newOrchestrator(dir, upd, rec, nil, ConstantBackoff{})

	work := []WorkItem{
		{GroupKey: "G1", GroupLabel: "GR-G1", EwbID: "111111111111", Destination: resolver.Destination{Raw: "Kanpur (KNP)"}},
		{GroupKey: "G1", GroupLabel: "GR-G1", EwbID: "222222222222", Destination: resolver.Destination{Raw: "Kanpur (KNP)"}},
		{GroupKey: "G2", GroupLabel: "GR-G2", EwbID: "333333333333", Destination: resolver.Destination{Raw: "Atlantis (ATL)"}},
	}

	var progress []Progress
	summary, err := o.Run(context.Background(), work, nil, func(p Progress) { progress = append(progress, p) })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.State != StateCompleted || o.State() != StateCompleted {
		t.Fatalf("expected completed, got %s / %s", summary.State, o.State())
	}
	if summary.Success != 2 || summary.Failure != 1 || summary.Processed != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if dir.cityCalls != 2 {
		t.Fatalf("expected 2 city lookups (G1 once, G2 once), got %d", dir.cityCalls)
	}
	if dir.transportCalls != 1 {
		t.Fatalf("expected 1 transporter lookup, got %d", dir.transportCalls)
	}

	if len(upd.calls) != 2 {
		t.Fatalf("expected 2 update calls, got %d", len(upd.calls))
	}
	for _, c := range upd.calls {
		if c.transporterID != 12 || c.name != "Kanpur Express" {
			t.Fatalf("expected alphabetical transporter with gstin, got %+v", c)
		}
	}

	e3 := summary.Outcomes[2]
	if e3.Success || e3.ErrorReason != string(resolver.ReasonCityNotFound) || e3.ErrorMessage == "" {
		t.Fatalf("unexpected E3 outcome: %+v", e3)
	}
	if len(summary.Failures) != 1 || summary.Failures[0].EwbID != "333333333333" {
		t.Fatalf("failures should retain E3, got %+v", summary.Failures)
	}

	if len(progress) != 3 {
		t.Fatalf("expected 3 progress events, got %d", len(progress))
	}
	for i, p := range progress {
		if p.Current != i+1 || p.Total != 3 || p.EwbID != work[i].EwbID {
			t.Fatalf("unexpected progress %d: %+v", i, p)
		}
	}

	if !o.Status().IsUpdated("1111-1111-1111") || o.Status().IsUpdated("333333333333") {
		t.Fatalf("status map should mark successes only")
	}

	if len(rec.outcomes) != 3 {
		t.Fatalf("expected 3 persisted outcomes, got %d", len(rec.outcomes))
	}
}

func TestRun_EmitsProgressNTimesAndBacksOffEveryItem(t *testing.T) {
	const n = 7
	upd := &fakeUpdater{fail: map[string]string{ewbOf(3): "rejected"}}
	b := &countingBackoff{}
	o := newOrchestrator(newDirectory(), upd, nil, nil, b)

	last := 0
	count := 0
	summary, err := o.Run(context.Background(), items(n), nil, func(p Progress) {
		count++
		if p.Current != last+1 {
			t.Errorf("progress not strictly increasing: %d after %d", p.Current, last)
		}
		last = p.Current
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if count != n || len(summary.Outcomes) != n {
		t.Fatalf("expected %d progress/outcomes, got %d/%d", n, count, len(summary.Outcomes))
	}
	if b.n != n {
		t.Fatalf("backoff should run after every item, got %d", b.n)
	}
	if summary.Failure != 1 || summary.Outcomes[3].ErrorMessage != "rejected" {
		t.Fatalf("expected item 4 to fail, got %+v", summary.Outcomes[3])
	}
	for i, out := range summary.Outcomes {
		if out.EwbID != ewbOf(i) {
			t.Fatalf("outcomes out of order at %d: %s", i, out.EwbID)
		}
	}
}

func TestRun_CancelAfterK(t *testing.T) {
	const n, k = 6, 2
	upd := &fakeUpdater{}
	o := newOrchestrator(newDirectory(), upd, nil, nil, ConstantBackoff{})
	upd.onCall = func(call int) {
		if call == k {
			o.Cancel()
		}
	}

	summary, err := o.Run(context.Background(), items(n), nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.State != StateCancelled || o.State() != StateCancelled {
		t.Fatalf("expected cancelled, got %s", summary.State)
	}
	if len(summary.Outcomes) != k {
		t.Fatalf("expected outcomes for first %d items, got %d", k, len(summary.Outcomes))
	}
	for i, out := range summary.Outcomes {
		if out.EwbID != ewbOf(i) || !out.Success {
			t.Fatalf("unexpected outcome %d: %+v", i, out)
		}
	}
	if len(upd.calls) != k {
		t.Fatalf("no update may start after cancel, got %d calls", len(upd.calls))
	}
}

func TestRun_CancelInterruptsBackoff(t *testing.T) {
	const n = 4
	upd := &fakeUpdater{}
	o := newOrchestrator(newDirectory(), upd, nil, nil, ConstantBackoff{Delay: time.Hour})

	done := make(chan *Summary, 1)
	go func() {
		s, _ := o.Run(context.Background(), items(n), nil, func(p Progress) {
			if p.Current == 1 {
				o.Cancel()
			}
		})
		done <- s
	}()

	var summary *Summary
	select {
	case summary = <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("cancel should interrupt the inter-item wait")
	}

	if summary.State != StateCancelled {
		t.Fatalf("expected cancelled, got %s", summary.State)
	}
	if len(summary.Outcomes) != 1 || len(upd.calls) != 1 {
		t.Fatalf("expected exactly one processed item, got %d outcomes, %d calls", len(summary.Outcomes), len(upd.calls))
	}
}

func TestRun_ContextCancelledBeforeStart(t *testing.T) {
	upd := &fakeUpdater{}
	o := newOrchestrator(newDirectory(), upd, nil, nil, ConstantBackoff{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, _ := o.Run(ctx, items(3), nil, nil)
	if summary.State != StateCancelled || summary.Processed != 0 || len(upd.calls) != 0 {
		t.Fatalf("expected nothing processed, got %+v", summary)
	}
}

func TestRun_SkipsAlreadyUpdatedAndIsIdempotent(t *testing.T) {
	status := NewStatusMap()
	upd := &fakeUpdater{fail: map[string]string{ewbOf(1): "temporary"}}
	work := items(3)

	first := newOrchestrator(newDirectory(), upd, nil, status, ConstantBackoff{})
	s1, _ := first.Run(context.Background(), work, status.IsUpdated, nil)
	if s1.Success != 2 || s1.Failure != 1 {
		t.Fatalf("unexpected first run: %+v", s1)
	}

	upd.fail = nil
	upd.calls = nil
	second := newOrchestrator(newDirectory(), upd, nil, status, ConstantBackoff{})
	s2, _ := second.Run(context.Background(), work, status.IsUpdated, nil)
	if s2.Skipped != 2 || s2.Total != 1 || s2.Success != 1 {
		t.Fatalf("second run should only process the failed item, got %+v", s2)
	}
	if len(upd.calls) != 1 || upd.calls[0].ewbID != ewbOf(1) {
		t.Fatalf("unexpected calls: %+v", upd.calls)
	}

	third := newOrchestrator(newDirectory(), upd, nil, status, ConstantBackoff{})
	s3, _ := third.Run(context.Background(), work, nil, nil)
	if s3.State != StateCompleted || s3.Processed != 0 || s3.Skipped != 3 {
		t.Fatalf("empty pending set should complete immediately, got %+v", s3)
	}
}

func TestRun_NotReentrant(t *testing.T) {
	o := newOrchestrator(newDirectory(), &fakeUpdater{}, nil, nil, ConstantBackoff{})
	if _, err := o.Run(context.Background(), nil, nil, nil); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := o.Run(context.Background(), nil, nil, nil); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
	if _, _, err := o.Start(context.Background(), nil, nil); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted from Start, got %v", err)
	}
}

func TestRun_PersistenceErrorsAreSwallowed(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("mysql: connection refused")}
	o := newOrchestrator(newDirectory(), &fakeUpdater{}, rec, nil, ConstantBackoff{})

	summary, err := o.Run(context.Background(), items(2), nil, nil)
	if err != nil || summary.Success != 2 {
		t.Fatalf("persistence failure must not affect the run: %+v %v", summary, err)
	}
	if len(rec.outcomes) != 2 {
		t.Fatalf("expected both outcomes to be attempted, got %d", len(rec.outcomes))
	}
}

func TestStart_StreamsProgressThenSummary(t *testing.T) {
	o := newOrchestrator(newDirectory(), &fakeUpdater{}, nil, nil, ConstantBackoff{})

	progressCh, summaryCh, err := o.Start(context.Background(), items(4), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	var got []int
	for p := range progressCh {
		got = append(got, p.Current)
	}
	summary := <-summaryCh
	if summary == nil || summary.Success != 4 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(got) != 4 || got[0] != 1 || got[3] != 4 {
		t.Fatalf("unexpected progress sequence: %v", got)
	}
}

func TestBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (ConstantBackoff{Delay: time.Hour}).Wait(ctx); err == nil {
		t.Fatalf("expected cancelled wait to return error")
	}

	start := time.Now()
	if err := (ConstantBackoff{Delay: 20 * time.Millisecond}).Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatalf("constant backoff returned early")
	}

	if _, ok := NewBackoff(time.Second, 0).(ConstantBackoff); !ok {
		t.Fatalf("expected constant backoff when rps is 0")
	}
	if _, ok := NewBackoff(time.Second, 5).(*RateBackoff); !ok {
		t.Fatalf("expected rate backoff when rps > 0")
	}
}
