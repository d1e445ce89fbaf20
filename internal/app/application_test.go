package app

import (
	"context"
	"testing"

	"github.com/nexahq/nexa-backend/internal/app/domain/insight"
	"github.com/nexahq/nexa-backend/internal/app/services/insights"
	"github.com/nexahq/nexa-backend/internal/cache"
	"github.com/nexahq/nexa-backend/internal/vapi"
)

func defaultExtractor() insights.Extractor {
	return insights.ExtractorFunc(func(context.Context, string) (insight.Insight, error) {
		ins := insight.Default()
		ins.Name = "Asha"
		return ins, nil
	})
}

type noCalls struct{}

func (noCalls) ListCalls(context.Context) ([]vapi.CallRecord, error) { return nil, nil }

func TestNewDefaultsToMemoryStores(t *testing.T) {
	application, err := New(Options{Extractor: defaultExtractor()})
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	res, err := application.Calls.HandleTranscript(context.Background(), "9876543210", "User: hello")
	if err != nil {
		t.Fatalf("handle transcript: %v", err)
	}
	if res.User.NexaID != "NEXA00001" {
		t.Fatalf("nexa id = %q", res.User.NexaID)
	}

	payload, err := application.Users.Context(context.Background(), "9876543210")
	if err != nil {
		t.Fatalf("user context: %v", err)
	}
	if !payload.Exists {
		t.Fatalf("expected user to exist after ingest")
	}
}

func TestNewRequiresExtractor(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("expected error without extractor")
	}
}

func TestProcessingInvalidatesCachedContext(t *testing.T) {
	c := cache.NewMemory()
	application, err := New(Options{Extractor: defaultExtractor(), Cache: c, Lister: noCalls{}})
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	before, err := application.Users.Context(context.Background(), "9876543210")
	if err != nil {
		t.Fatalf("context before ingest: %v", err)
	}
	if before.Exists {
		t.Fatalf("expected unknown user")
	}

	if _, err := application.Calls.HandleTranscript(context.Background(), "9876543210", "User: hello"); err != nil {
		t.Fatalf("handle transcript: %v", err)
	}

	after, err := application.Users.Context(context.Background(), "9876543210")
	if err != nil {
		t.Fatalf("context after ingest: %v", err)
	}
	if !after.Exists {
		t.Fatalf("stale context served after processing")
	}
}

func TestLifecycleStartStop(t *testing.T) {
	application, err := New(Options{
		Extractor:    defaultExtractor(),
		Lister:       noCalls{},
		SyncSchedule: "@every 1h",
	})
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := application.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
