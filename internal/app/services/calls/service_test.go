package calls

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nexahq/nexa-backend/internal/app/domain/insight"
	"github.com/nexahq/nexa-backend/internal/app/services/insights"
	"github.com/nexahq/nexa-backend/internal/app/storage/memory"
)

const transcript = "AI: Hello, who am I speaking with?\nUser: I'm Asha, co-founder of MedX AI."

func stubExtractor(ins insight.Insight, err error) insights.Extractor {
	return insights.ExtractorFunc(func(context.Context, string) (insight.Insight, error) {
		return ins, err
	})
}

func namedInsight(name string) insight.Insight {
	ins := insight.Default()
	ins.Name = name
	ins.Profession = "Co-founder, MedX AI"
	ins.Bio.Company = "MedX AI"
	ins.Bio.Industry = "Healthcare"
	ins.NetworkingGoal = "Meet seed investors"
	ins.CallSummary = "Intro call with " + name
	return ins
}

func TestHandleTranscriptNewUser(t *testing.T) {
	store := memory.New()
	svc := New(store, store, stubExtractor(namedInsight("Asha"), nil), nil)

	var invalidated []string
	svc.OnProcessed(func(_ context.Context, phone string) {
		invalidated = append(invalidated, phone)
	})

	res, err := svc.HandleTranscript(context.Background(), "9876543210", transcript)
	if err != nil {
		t.Fatalf("handle transcript: %v", err)
	}
	if !res.UserCreated {
		t.Fatalf("expected a new user")
	}
	if res.User.NexaID != "NEXA00001" {
		t.Fatalf("unexpected nexa id %q", res.User.NexaID)
	}
	if res.User.Phone != "+919876543210" {
		t.Fatalf("phone not normalized: %q", res.User.Phone)
	}
	if res.User.SignupStatus != "Incomplete" {
		t.Fatalf("unexpected signup status %q", res.User.SignupStatus)
	}
	if len(res.User.Calls) != 1 || res.User.Calls[0].CallNumber != 1 {
		t.Fatalf("call entry not appended: %+v", res.User.Calls)
	}
	if got := res.User.Calls[0].MeetingStatus; got != "Pending Confirmation" {
		t.Fatalf("unexpected meeting status %q", got)
	}
	if len(res.User.Calls[0].Conversation) != 2 {
		t.Fatalf("conversation not parsed: %+v", res.User.Calls[0].Conversation)
	}

	log, err := store.GetCallLog(context.Background(), "+919876543210", HashTranscript(transcript))
	if err != nil {
		t.Fatalf("get call log: %v", err)
	}
	if !log.Processed || log.CallSummary != "Intro call with Asha" {
		t.Fatalf("call log not marked processed: %+v", log)
	}
	if len(invalidated) != 1 || invalidated[0] != "+919876543210" {
		t.Fatalf("processed hook not invoked: %v", invalidated)
	}
}

func TestHandleTranscriptDuplicate(t *testing.T) {
	store := memory.New()
	svc := New(store, store, stubExtractor(namedInsight("Asha"), nil), nil)

	if _, err := svc.HandleTranscript(context.Background(), "9876543210", transcript); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if _, err := svc.HandleTranscript(context.Background(), "+91 98765 43210", transcript); !errors.Is(err, ErrDuplicateCall) {
		t.Fatalf("expected ErrDuplicateCall, got %v", err)
	}

	u, err := store.GetUserByPhone(context.Background(), "+919876543210")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if len(u.Calls) != 1 {
		t.Fatalf("duplicate ingested a second call entry: %d", len(u.Calls))
	}
}

func TestHandleTranscriptUpdatesExistingUser(t *testing.T) {
	store := memory.New()
	svc := New(store, store, stubExtractor(namedInsight("Asha"), nil), nil)

	if _, err := svc.HandleTranscript(context.Background(), "9876543210", transcript); err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	second := namedInsight("Asha Rao")
	svc.extractor = stubExtractor(second, nil)
	res, err := svc.HandleTranscript(context.Background(), "9876543210", transcript+"\nUser: My full name is Asha Rao.")
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if res.UserCreated {
		t.Fatalf("expected existing user")
	}
	if res.User.Name != "Asha Rao" {
		t.Fatalf("name not refreshed: %q", res.User.Name)
	}
	if res.User.NexaID != "NEXA00001" {
		t.Fatalf("nexa id changed: %q", res.User.NexaID)
	}
	if len(res.User.Calls) != 2 || res.User.Calls[1].CallNumber != 2 {
		t.Fatalf("second call entry missing: %+v", res.User.Calls)
	}
}

func TestHandleTranscriptExtractionFailureDegrades(t *testing.T) {
	store := memory.New()
	svc := New(store, store, stubExtractor(insight.Insight{}, fmt.Errorf("model unavailable")), nil)

	res, err := svc.HandleTranscript(context.Background(), "9876543210", transcript)
	if err != nil {
		t.Fatalf("handle transcript: %v", err)
	}
	if res.User.Name != insight.NotMentioned {
		t.Fatalf("expected default insight fields, got %q", res.User.Name)
	}
	if !res.Log.Processed {
		t.Fatalf("log should still be processed: %+v", res.Log)
	}
	if res.Log.Transcript != transcript {
		t.Fatalf("raw transcript lost")
	}
}

func TestHandleTranscriptInvalidPhone(t *testing.T) {
	store := memory.New()
	svc := New(store, store, stubExtractor(namedInsight("Asha"), nil), nil)

	if _, err := svc.HandleTranscript(context.Background(), "12345", transcript); !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
}

func TestComposeBio(t *testing.T) {
	full := insight.BioComponents{
		Company:       "MedX AI",
		Experience:    "8 years",
		Industry:      "Healthcare",
		Background:    "Builds clinical triage models",
		Achievements:  "scaled to 40 hospitals",
		CurrentStatus: "raising a seed round",
	}
	got := ComposeBio(full)
	want := "Co-founder at MedX AI with 8 years of experience in the Healthcare industry. Builds clinical triage models. Key achievements include scaled to 40 hospitals. Currently raising a seed round."
	if got != want {
		t.Fatalf("bio = %q, want %q", got, want)
	}

	sparse := insight.BioComponents{
		Company:       insight.NotMentioned,
		Experience:    insight.NotMentioned,
		Industry:      insight.NotMentioned,
		Background:    insight.NotMentioned,
		Achievements:  insight.NotMentioned,
		CurrentStatus: insight.NotMentioned,
	}
	if got := ComposeBio(sparse); got != "Co-founder at their company ." {
		t.Fatalf("sparse bio = %q", got)
	}
}

func TestParseConversation(t *testing.T) {
	msgs := ParseConversation("AI: Hello\nUser: Hi there\nnoise line\nAI: Bye")
	if len(msgs) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(msgs))
	}
	if msgs[0].Role != "bot" || msgs[0].Text != "Hello" {
		t.Fatalf("unexpected first turn: %+v", msgs[0])
	}
	if msgs[1].Role != "user" || msgs[1].Text != "Hi there" {
		t.Fatalf("unexpected second turn: %+v", msgs[1])
	}
}
