package bulk

import (
	"sync"
	"testing"

	"github.com/move-sure/ss-transport-sub000/internal/update"
)

func TestStatusMap_PutReplacesWholeRecord(t *testing.T) {
	m := NewStatusMap()
	m.Put(update.Outcome{EwbID: "4480-0919-5601", Success: false, ErrorMessage: "rejected"})

	if m.IsUpdated("448009195601") {
		t.Fatalf("failed outcome must not count as updated")
	}

	m.Put(update.Outcome{EwbID: "448009195601", Success: true, TransporterID: 7})
	got, ok := m.Get("4480 0919 5601")
	if !ok || !got.Success || got.ErrorMessage != "" || got.TransporterID != 7 {
		t.Fatalf("expected replaced record, got %+v", got)
	}
	if m.Len() != 1 {
		t.Fatalf("expected one record keyed by clean id, got %d", m.Len())
	}

	snap := m.Snapshot()
	delete(snap, "448009195601")
	if m.Len() != 1 {
		t.Fatalf("snapshot must be a copy")
	}
}

func TestStatusMap_ConcurrentAccess(t *testing.T) {
	m := NewStatusMap()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			m.Put(update.Outcome{EwbID: ewbOf(i), Success: true})
		}(i)
		go func(i int) {
			defer wg.Done()
			_ = m.IsUpdated(ewbOf(i))
		}(i)
	}
	wg.Wait()
	if m.Len() != 20 {
		t.Fatalf("expected 20 records, got %d", m.Len())
	}
}
