package update

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/move-sure/ss-transport-sub000/pkg/logger"
)

type scriptedServer struct {
	mu        sync.Mutex
	responses []scripted
	bodies    []request
	raw       []map[string]any
}

type scripted struct {
	status int
	body   string
}

func (s *scriptedServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		data, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read request: %v", err)
		}
		var req request
		if err := json.Unmarshal(data, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			t.Errorf("decode raw request: %v", err)
		}

		s.mu.Lock()
		idx := len(s.bodies)
		s.bodies = append(s.bodies, req)
		s.raw = append(s.raw, raw)
		resp := scripted{status: http.StatusInternalServerError, body: `{}`}
		if idx < len(s.responses) {
			resp = s.responses[idx]
		}
		s.mu.Unlock()

		w.WriteHeader(resp.status)
		_, _ = w.Write([]byte(resp.body))
	}
}

func (s *scriptedServer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bodies)
}

func newTestClient(t *testing.T, responses ...scripted) (*Client, *scriptedServer) {
	t.Helper()
	ss := &scriptedServer{responses: responses}
	srv := httptest.NewServer(ss.handler(t))
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		Endpoint:        srv.URL + "/api/v1/transporterIdUpdate/",
		AccountGSTIN:    "09AAACH7409R1ZZ",
		DocumentBaseURL: "https://docs.example.com",
	}, nil, logger.NewNop())
	return c, ss
}

const (
	applyOK  = `{"results":{"message":{"ewayBillNo":448009195664,"transporterId":"09AAA","transUpdateDate":"17/10/2026 10:00:00 AM"},"status":"Success","code":200}}`
	docOK    = `{"results":{"message":{"ewayBillNo":448009195664,"transUpdateDate":"17/10/2026 10:00:01 AM","url":"/media/ewb/448009195664.pdf"},"status":"Success","code":200}}`
	rejected = `{"results":{"message":"Invalid transporter id","status":"Failed","code":400}}`
)

func TestPerformUpdate_TwoPhaseSuccess(t *testing.T) {
	c, ss := newTestClient(t, scripted{200, applyOK}, scripted{200, docOK})

	out, uerr := c.PerformUpdate(context.Background(), "4480-0919-5664", 42, "Kanpur Express")
	if uerr != nil {
		t.Fatalf("unexpected error: %v", uerr)
	}
	if !out.Success || out.TransporterID != 42 || out.TransporterName != "Kanpur Express" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.DocumentURL != "https://docs.example.com/media/ewb/448009195664.pdf" {
		t.Fatalf("relative link should be absolutized, got %q", out.DocumentURL)
	}
	if out.UpdatedDate != "17/10/2026 10:00:01 AM" {
		t.Fatalf("unexpected updated date %q", out.UpdatedDate)
	}
	if ss.calls() != 2 {
		t.Fatalf("expected 2 calls, got %d", ss.calls())
	}
	for _, b := range ss.bodies {
		if b.EwayBillNumber != "448009195664" || b.TransporterID != "42" || b.UserGSTIN != "09AAACH7409R1ZZ" {
			t.Fatalf("unexpected request body: %+v", b)
		}
	}
	if ss.bodies[0] != ss.bodies[1] {
		t.Fatalf("both calls must send the identical payload")
	}
}

func TestPerformUpdate_WireFieldNames(t *testing.T) {
	c, ss := newTestClient(t, scripted{200, applyOK}, scripted{200, docOK})

	if _, uerr := c.PerformUpdate(context.Background(), "448009195664", 42, "Kanpur Express"); uerr != nil {
		t.Fatalf("unexpected error: %v", uerr)
	}

	want := map[string]any{
		"user_gstin":       "09AAACH7409R1ZZ",
		"eway_bill_number": "448009195664",
		"transporter_id":   "42",
		"transporter_name": "Kanpur Express",
	}
	got := ss.raw[0]
	if len(got) != len(want) {
		t.Fatalf("unexpected request keys: %v", got)
	}
	for key, v := range want {
		if got[key] != v {
			t.Fatalf("field %s: expected %v, got %v", key, v, got[key])
		}
	}
}

func TestPerformUpdate_FirstCallErrorSkipsSecond(t *testing.T) {
	c, ss := newTestClient(t, scripted{200, rejected}, scripted{200, docOK})

	out, uerr := c.PerformUpdate(context.Background(), "448009195664", 42, "Kanpur Express")
	if out != nil || uerr == nil {
		t.Fatalf("expected failure, got out=%+v err=%v", out, uerr)
	}
	if uerr.Stage != StageApply || uerr.Message != "Invalid transporter id" || uerr.Transport {
		t.Fatalf("unexpected error: %+v", uerr)
	}
	if ss.calls() != 1 {
		t.Fatalf("second call must not be issued, got %d calls", ss.calls())
	}
}

func TestPerformUpdate_HTTPErrorOnFirstCall(t *testing.T) {
	c, ss := newTestClient(t, scripted{http.StatusServiceUnavailable, `upstream busy`})

	_, uerr := c.PerformUpdate(context.Background(), "448009195664", 1, "X")
	if uerr == nil || uerr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected HTTP error, got %+v", uerr)
	}
	if ss.calls() != 1 {
		t.Fatalf("expected 1 call, got %d", ss.calls())
	}
}

func TestPerformUpdate_SecondCallFailureKeepsSuccess(t *testing.T) {
	c, _ := newTestClient(t, scripted{200, applyOK}, scripted{500, `oops`})

	out, uerr := c.PerformUpdate(context.Background(), "448009195664", 7, "Y")
	if uerr != nil {
		t.Fatalf("unexpected error: %v", uerr)
	}
	if !out.Success || out.DocumentURL != "" {
		t.Fatalf("expected success without link, got %+v", out)
	}
}

func TestPerformUpdate_SecondCallWithoutLink(t *testing.T) {
	c, _ := newTestClient(t, scripted{200, applyOK}, scripted{200, applyOK})

	out, uerr := c.PerformUpdate(context.Background(), "448009195664", 7, "Y")
	if uerr != nil || !out.Success || out.DocumentURL != "" {
		t.Fatalf("expected success without link, got %+v %v", out, uerr)
	}
}

func TestPerformUpdate_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	c := NewClient(Config{Endpoint: endpoint}, nil, logger.NewNop())
	_, uerr := c.PerformUpdate(context.Background(), "448009195664", 1, "X")
	if uerr == nil || !uerr.Transport {
		t.Fatalf("expected transport error, got %+v", uerr)
	}
}

func TestAbsolute(t *testing.T) {
	c := NewClient(Config{Endpoint: "https://api.example.com/v1/update/"}, nil, logger.NewNop())

	tests := map[string]string{
		"https://cdn.example.com/a.pdf": "https://cdn.example.com/a.pdf",
		"//cdn.example.com/a.pdf":       "https://cdn.example.com/a.pdf",
		"/media/a.pdf":                  "https://api.example.com/media/a.pdf",
		"media/a.pdf":                   "https://api.example.com/media/a.pdf",
	}
	for in, want := range tests {
		if got := c.absolute(in); got != want {
			t.Fatalf("absolute(%q) = %q, want %q", in, got, want)
		}
	}
}
