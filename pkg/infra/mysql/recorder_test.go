package mysql

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/move-sure/ss-transport-sub000/internal/bulk"
	"github.com/move-sure/ss-transport-sub000/internal/update"
	"github.com/move-sure/ss-transport-sub000/internal/validation"
)

func TestUpdateEntityRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	in := &update.Outcome{
		EwbID:           "4480-0919-5601",
		Success:         true,
		TransporterID:   42,
		TransporterName: "Kanpur Express",
		UpdatedDate:     "01/03/2026 10:00:00 AM",
		DocumentURL:     "https://docs.example.com/a.pdf",
	}

	row := toUpdateEntity(in, now)
	if row.EwbNumber != "448009195601" {
		t.Fatalf("expected clean ewb number, got %q", row.EwbNumber)
	}
	if !row.ProcessedAt.Equal(now) {
		t.Fatalf("zero timestamp should default to now, got %v", row.ProcessedAt)
	}

	out := fromUpdateEntity(row)
	if out.TransporterID != 42 || out.DocumentURL != in.DocumentURL || !out.Success {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestValidationEntity_DropsInvalidPayload(t *testing.T) {
	now := time.Now()

	ok := toValidationEntity(&validation.Record{
		EwbID:   "448009195601",
		Valid:   true,
		Payload: json.RawMessage(`{"status":"Success"}`),
	}, now)
	if string(ok.Payload) != `{"status":"Success"}` || !ok.ValidatedAt.Equal(now) {
		t.Fatalf("unexpected row: %+v", ok)
	}

	bad := toValidationEntity(&validation.Record{
		EwbID:   "448009195601",
		Reason:  validation.ReasonRequestError,
		Message: "bad gateway",
		Payload: json.RawMessage(`<html>502</html>`),
	}, now)
	if bad.Payload != nil {
		t.Fatalf("non-json payload must not be stored, got %s", bad.Payload)
	}
	if bad.Reason != string(validation.ReasonRequestError) {
		t.Fatalf("unexpected reason %q", bad.Reason)
	}
}

func TestBulkRunEntity(t *testing.T) {
	s := &bulk.Summary{RunID: "run-1", State: bulk.StateCancelled, Total: 3, Processed: 1, Success: 1}
	row, err := toBulkRunEntity(s, time.Now())
	if err != nil {
		t.Fatalf("toBulkRunEntity: %v", err)
	}
	if row.State != "CANCELLED" || row.Success != 1 {
		t.Fatalf("unexpected row: %+v", row)
	}

	var back bulk.Summary
	if err := json.Unmarshal(row.Summary, &back); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if back.State != bulk.StateCancelled || back.RunID != "run-1" {
		t.Fatalf("unexpected summary: %+v", back)
	}
}
