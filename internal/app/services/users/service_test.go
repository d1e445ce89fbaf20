package users

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nexahq/nexa-backend/internal/app/domain/user"
	"github.com/nexahq/nexa-backend/internal/app/storage/memory"
	"github.com/nexahq/nexa-backend/internal/cache"
	"github.com/nexahq/nexa-backend/internal/phone"
)

func seedUser(t *testing.T, store *memory.Store, calls int) user.User {
	t.Helper()
	u := user.User{
		NexaID:       "NEXA00001",
		Name:         "Asha",
		Phone:        "+919876543210",
		Profession:   "Co-founder, MedX AI",
		Bio:          "Co-founder at MedX AI.",
		SignupStatus: user.SignupIncomplete,
	}
	created, err := store.CreateUser(context.Background(), u)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	for i := 1; i <= calls; i++ {
		entry := user.CallEntry{
			CallNumber:     i,
			Timestamp:      time.Date(2026, 1, i, 10, 0, 0, 0, time.UTC),
			NetworkingGoal: fmt.Sprintf("Goal %d", i),
			MeetingStatus:  user.MeetingPending,
			CallSummary:    fmt.Sprintf("Call %d summary", i),
		}
		created, err = store.AppendCall(context.Background(), u.Phone, entry)
		if err != nil {
			t.Fatalf("seed call %d: %v", i, err)
		}
	}
	return created
}

func TestContextUnknownUser(t *testing.T) {
	svc := New(memory.New(), nil, nil)

	got, err := svc.Context(context.Background(), "9876543210")
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if got.Exists {
		t.Fatalf("expected exists=false for unknown user")
	}
	if got.Message != "New user detected" {
		t.Fatalf("unexpected message %q", got.Message)
	}
	if got.UserInfo != nil {
		t.Fatalf("unexpected user info: %+v", got.UserInfo)
	}
}

func TestContextKnownUserRecentWindow(t *testing.T) {
	store := memory.New()
	seedUser(t, store, 5)
	svc := New(store, nil, nil)

	got, err := svc.Context(context.Background(), "+91 98765 43210")
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if !got.Exists || got.UserInfo == nil {
		t.Fatalf("expected existing user, got %+v", got)
	}
	if got.UserInfo.NexaID != "NEXA00001" || got.UserInfo.TotalCalls != 5 {
		t.Fatalf("unexpected user info: %+v", got.UserInfo)
	}
	if len(got.RecentInteractions) != 3 {
		t.Fatalf("expected last 3 calls, got %d", len(got.RecentInteractions))
	}
	if got.RecentInteractions[0].CallNumber != 3 || got.RecentInteractions[2].CallNumber != 5 {
		t.Fatalf("wrong window: %+v", got.RecentInteractions)
	}
	if len(got.UserInfo.NetworkingGoals) != 3 || got.UserInfo.NetworkingGoals[0] != "Goal 3" {
		t.Fatalf("unexpected goals: %v", got.UserInfo.NetworkingGoals)
	}
}

func TestContextInvalidPhone(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	if _, err := svc.Context(context.Background(), "12345"); err != phone.ErrInvalidFormat {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestContextCaching(t *testing.T) {
	store := memory.New()
	seedUser(t, store, 1)
	c := cache.NewMemory()
	svc := New(store, c, nil)

	first, err := svc.Context(context.Background(), "9876543210")
	if err != nil {
		t.Fatalf("first context: %v", err)
	}

	// A profile change is invisible until the cache entry goes away.
	u, _ := store.GetUserByPhone(context.Background(), "+919876543210")
	u.Name = "Asha Rao"
	if _, err := store.UpdateUser(context.Background(), u); err != nil {
		t.Fatalf("update user: %v", err)
	}

	second, err := svc.Context(context.Background(), "9876543210")
	if err != nil {
		t.Fatalf("second context: %v", err)
	}
	if second.UserInfo.Name != first.UserInfo.Name {
		t.Fatalf("expected cached payload, got %q", second.UserInfo.Name)
	}

	svc.Invalidate(context.Background(), "+919876543210")
	third, err := svc.Context(context.Background(), "9876543210")
	if err != nil {
		t.Fatalf("third context: %v", err)
	}
	if third.UserInfo.Name != "Asha Rao" {
		t.Fatalf("expected fresh payload after invalidation, got %q", third.UserInfo.Name)
	}
}
