package errorutil

import (
	"errors"
	"fmt"
	"testing"
)

type reasonErr struct{ reason string }

func (e *reasonErr) Error() string       { return "lookup failed: " + e.reason }
func (e *reasonErr) ErrorReason() string { return e.reason }

func TestWrap(t *testing.T) {
	if Wrap(nil) != nil {
		t.Fatalf("Wrap(nil) should be nil")
	}

	orig := Retriable("redis down")
	if got := Wrap(fmt.Errorf("ctx: %w", orig)); got != orig {
		t.Fatalf("expected wrapped *Error to be returned as is, got %#v", got)
	}

	got := Wrap(fmt.Errorf("item: %w", &reasonErr{reason: "city-not-found"}))
	if got.Reason != "city-not-found" || got.Retryable || got.Code != 400 {
		t.Fatalf("unexpected reasoned error: %#v", got)
	}

	plain := Wrap(errors.New("boom"))
	if plain.Code != 500 || plain.Retryable || plain.Message != "boom" {
		t.Fatalf("unexpected plain error: %#v", plain)
	}
}

func TestConstructors(t *testing.T) {
	if e := NonRetriableWithDetails("bad", "d"); e.Code != 400 || e.Retryable || e.DevDetails != "d" {
		t.Fatalf("unexpected: %#v", e)
	}
	if e := RetriableWithDetails("later", "d"); e.Code != 500 || !e.Retryable {
		t.Fatalf("unexpected: %#v", e)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":          {err: nil, want: false},
		"retriable":    {err: fmt.Errorf("seed: %w", Retriable("mysql down")), want: true},
		"nonretriable": {err: NonRetriable("items is required"), want: false},
		"plain":        {err: errors.New("boom"), want: false},
	}
	for name, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", name, tc.want, got)
		}
	}
}
