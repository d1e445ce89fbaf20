package calls

import (
	"context"
	"fmt"
	"testing"

	"github.com/nexahq/nexa-backend/internal/app/storage/memory"
	"github.com/nexahq/nexa-backend/internal/vapi"
)

type staticLister struct {
	records []vapi.CallRecord
	err     error
}

func (l staticLister) ListCalls(context.Context) ([]vapi.CallRecord, error) {
	return l.records, l.err
}

func TestSyncerProcessesAndSkips(t *testing.T) {
	store := memory.New()
	svc := New(store, store, stubExtractor(namedInsight("Asha"), nil), nil)

	lister := staticLister{records: []vapi.CallRecord{
		{ID: "c1", Phone: "9876543210", Transcript: transcript},
		{ID: "c2", Phone: "9876543210", Transcript: transcript}, // duplicate of c1
		{ID: "c3", Phone: "Unknown", Transcript: transcript},    // invalid phone
		{ID: "c4", Phone: "9123456780", Transcript: "User: different call"},
	}}

	syncer := NewSyncer(lister, svc, 2, nil)
	report, err := syncer.Sync(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if report.Total != 4 {
		t.Fatalf("total = %d", report.Total)
	}
	if report.Processed != 2 {
		t.Fatalf("processed = %d", report.Processed)
	}
	if report.Skipped+report.Failed != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}

	if _, err := store.GetUserByPhone(context.Background(), "+919123456780"); err != nil {
		t.Fatalf("second user missing: %v", err)
	}
}

func TestSyncerListFailure(t *testing.T) {
	store := memory.New()
	svc := New(store, store, stubExtractor(namedInsight("Asha"), nil), nil)

	syncer := NewSyncer(staticLister{err: fmt.Errorf("api down")}, svc, 1, nil)
	if _, err := syncer.Sync(context.Background()); err == nil {
		t.Fatalf("expected error when listing fails")
	}
}
