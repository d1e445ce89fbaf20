package system

import (
	"context"
	"fmt"
	"testing"
)

type recordingService struct {
	name     string
	events   *[]string
	startErr error
}

func (s recordingService) Name() string { return s.name }

func (s recordingService) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	*s.events = append(*s.events, "start:"+s.name)
	return nil
}

func (s recordingService) Stop(context.Context) error {
	*s.events = append(*s.events, "stop:"+s.name)
	return nil
}

func TestManagerStartStopOrder(t *testing.T) {
	var events []string
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(recordingService{name: name, events: &events}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start:a", "start:b", "start:c", "stop:c", "stop:b", "stop:a"}
	if len(events) != len(want) {
		t.Fatalf("events = %v", events)
	}
	for i, e := range want {
		if events[i] != e {
			t.Fatalf("event %d = %q, want %q", i, events[i], e)
		}
	}
}

func TestManagerStartFailureUnwinds(t *testing.T) {
	var events []string
	m := NewManager()
	_ = m.Register(recordingService{name: "a", events: &events})
	_ = m.Register(recordingService{name: "b", events: &events, startErr: fmt.Errorf("boom")})

	if err := m.Start(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}
	if len(events) != 2 || events[1] != "stop:a" {
		t.Fatalf("unwind events = %v", events)
	}
}

func TestManagerRejectsDuplicateNames(t *testing.T) {
	var events []string
	m := NewManager()
	_ = m.Register(recordingService{name: "a", events: &events})
	if err := m.Register(recordingService{name: "a", events: &events}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
