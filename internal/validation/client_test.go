package validation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/move-sure/ss-transport-sub000/internal/cache"
	"github.com/move-sure/ss-transport-sub000/pkg/logger"
)

const (
	successBody = `{"results":{"message":{"eway_bill_number":448009195664,"eway_bill_status":"ACT"},"status":"Success","code":200}}`
	noContent   = `{"results":{"message":"Could not retrieve data","status":"No Content","code":204,"nic_code":"325"}}`
)

type fakeRecorder struct {
	mu      sync.Mutex
	records []*Record
}

func (f *fakeRecorder) RecordValidation(_ context.Context, r *Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r)
	return nil
}

func newServer(t *testing.T, status int, body string, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.URL.Path != EndpointPath {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("eway_bill_number"); got != "448009195664" {
			t.Errorf("expected normalized id, got %q", got)
		}
		if got := r.URL.Query().Get("gstin"); got != "09AAACH7409R1ZZ" {
			t.Errorf("expected account gstin, got %q", got)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(baseURL string) (*Client, *cache.ValidationCache) {
	log := logger.NewNop()
	vc := cache.NewValidationCache(cache.NewMemoryStore(), time.Hour, IsErrorPayload, log)
	c := NewClient(Config{BaseURL: baseURL, AccountGSTIN: "09AAACH7409R1ZZ"}, nil, vc, log)
	return c, vc
}

func TestValidate_SuccessIsCached(t *testing.T) {
	var calls int32
	srv := newServer(t, http.StatusOK, successBody, &calls)
	c, _ := newClient(srv.URL)
	rec := &fakeRecorder{}
	c.SetRecorder(rec)

	ctx := context.Background()
	res, failure := c.Validate(ctx, "4480-0919-5664")
	if failure != nil {
		t.Fatalf("unexpected failure: %v", failure)
	}
	if res.FromCache {
		t.Fatalf("first call must not be from cache")
	}

	res, failure = c.Validate(ctx, "448009195664")
	if failure != nil || !res.FromCache {
		t.Fatalf("second call should hit cache, got res=%+v failure=%v", res, failure)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls)
	}

	c.Flush()
	if len(rec.records) != 1 || !rec.records[0].Valid {
		t.Fatalf("expected one valid record, got %+v", rec.records)
	}
}

func TestValidate_InvalidNeverCached(t *testing.T) {
	var calls int32
	srv := newServer(t, http.StatusOK, noContent, &calls)
	c, vc := newClient(srv.URL)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		res, failure := c.Validate(ctx, "448009195664")
		if res != nil || failure == nil || failure.Reason != ReasonInvalid {
			t.Fatalf("expected invalid failure, got res=%+v failure=%+v", res, failure)
		}
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("invalid results must not be cached, upstream calls=%d", calls)
	}
	if stats, _ := vc.Stats(ctx); stats.Total != 0 {
		t.Fatalf("cache should be empty, got %+v", stats)
	}
}

func TestValidate_RequestErrorNeverCached(t *testing.T) {
	var calls int32
	srv := newServer(t, http.StatusBadGateway, `<html>bad gateway</html>`, &calls)
	c, _ := newClient(srv.URL)

	_, failure := c.Validate(context.Background(), "448009195664")
	if failure == nil || failure.Reason != ReasonRequestError {
		t.Fatalf("expected request-error, got %+v", failure)
	}
	_, _ = c.Validate(context.Background(), "448009195664")
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls)
	}
}

func TestValidate_TransportErrorIsRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, _ := newClient(url)
	res, failure := c.Validate(context.Background(), "448009195664")
	if res != nil || failure == nil || failure.Reason != ReasonRequestError {
		t.Fatalf("expected request-error, got res=%+v failure=%+v", res, failure)
	}
}

func TestValidate_MalformedID(t *testing.T) {
	c, _ := newClient("http://127.0.0.1:1")
	_, failure := c.Validate(context.Background(), "12345")
	if failure == nil || failure.Reason != ReasonInvalid {
		t.Fatalf("expected invalid for malformed id, got %+v", failure)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Reason
	}{
		{name: "success", status: 200, body: successBody, want: ""},
		{name: "no content code", status: 200, body: `{"results":{"message":"x","status":"No Content","code":204}}`, want: ReasonInvalid},
		{name: "nic code", status: 200, body: `{"results":{"message":"x","status":"Failed","code":"400","nic_code":325}}`, want: ReasonInvalid},
		{name: "message substring", status: 200, body: `{"results":{"message":{"error":"Could not retrieve data for ewb"},"status":"Failed","code":400}}`, want: ReasonInvalid},
		{name: "failed status", status: 200, body: `{"results":{"message":"token expired","status":"Failed","code":401}}`, want: ReasonRequestError},
		{name: "non 2xx", status: 500, body: `{"results":{"message":"","status":"Success","code":200}}`, want: ReasonRequestError},
		{name: "garbage", status: 200, body: `not json`, want: ReasonRequestError},
		{name: "missing results", status: 200, body: `{}`, want: ReasonRequestError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.status, []byte(tt.body))
			if got.reason != tt.want {
				t.Fatalf("got reason %q (%s), want %q", got.reason, got.message, tt.want)
			}
		})
	}

	if IsErrorPayload(json.RawMessage(successBody)) {
		t.Fatalf("success payload flagged as error")
	}
	if !IsErrorPayload(json.RawMessage(noContent)) {
		t.Fatalf("no content payload not flagged")
	}
}

type countingPacer struct{ n int }

func (p *countingPacer) Wait(context.Context) error {
	p.n++
	return nil
}

func TestValidateMany_PacesOnlyRemoteCalls(t *testing.T) {
	var calls int32
	srv := newServer(t, http.StatusOK, successBody, &calls)
	c, _ := newClient(srv.URL)

	pacer := &countingPacer{}
	out := c.ValidateMany(context.Background(), []string{"448009195664", "4480-0919-5664", "448009195664"}, pacer)
	if len(out) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(out))
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected one upstream call, got %d", calls)
	}
	if pacer.n != 1 {
		t.Fatalf("expected one pacing wait, got %d", pacer.n)
	}
}

func TestValidateMany_MalformedIDIsNotPaced(t *testing.T) {
	var calls int32
	srv := newServer(t, http.StatusOK, successBody, &calls)
	c, _ := newClient(srv.URL)

	pacer := &countingPacer{}
	out := c.ValidateMany(context.Background(), []string{"12AB", "448009195664", "999"}, pacer)
	if len(out) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(out))
	}
	if out[0].Failure == nil || out[0].Failure.Reason != ReasonInvalid {
		t.Fatalf("malformed id should be invalid, got %+v", out[0])
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected one upstream call, got %d", calls)
	}
	if pacer.n != 1 {
		t.Fatalf("only the remote call should be paced, got %d waits", pacer.n)
	}
}
