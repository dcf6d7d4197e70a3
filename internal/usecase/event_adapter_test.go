package usecase

import (
	"encoding/json"
	"sync"
	"testing"

	"workx/internal/domain"
	"workx/internal/eventbus"
	"workx/internal/logging"
)

func TestSubscribeBackendEventsDecodesPayloads(t *testing.T) {
	t.Parallel()

	bus := eventbus.New(logging.Discard())
	var (
		mu  sync.Mutex
		got []domain.Event
	)
	release, err := subscribeBackendEvents(bus, logging.Discard(), func(event domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, event)
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer release()

	bus.Publish(string(domain.EventRecordingProgress), 42)
	bus.Publish(string(domain.EventRecordingFinished), "clip_001.wav")
	bus.Publish(string(domain.EventContinuousProgress), json.Number("3"))
	bus.Publish(string(domain.EventContinuousStopped), "4")
	bus.Publish(string(domain.EventRecordingError))
	bus.Publish(string(domain.EventRecordingFinished), 12)

	want := []domain.Event{
		domain.RecordingProgress{Percent: 42},
		domain.RecordingFinished{Artifact: "clip_001.wav"},
		domain.ContinuousProgress{Count: 3},
		domain.ContinuousStopped{FinalCount: 4},
		domain.RecordingFailed{Message: "backend reported an unknown error"},
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d: %#v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %#v, got %#v", i, want[i], got[i])
		}
	}
}

func TestSubscribeBackendEventsReleasesEveryListener(t *testing.T) {
	t.Parallel()

	bus := eventbus.New(logging.Discard())
	release, err := subscribeBackendEvents(bus, logging.Discard(), func(domain.Event) {})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	for _, name := range domain.BackendEventNames {
		if bus.Listeners(string(name)) != 1 {
			t.Fatalf("expected one listener for %s", name)
		}
	}

	release()
	release()
	for _, name := range domain.BackendEventNames {
		if n := bus.Listeners(string(name)); n != 0 {
			t.Fatalf("expected no listeners for %s, got %d", name, n)
		}
	}
}

func TestSubscribeBackendEventsPartialFailureReleasesAcquired(t *testing.T) {
	t.Parallel()

	bus := newFailingBus(3)
	release, err := subscribeBackendEvents(bus, logging.Discard(), func(domain.Event) {})
	if err == nil {
		t.Fatalf("expected subscription error")
	}
	if release != nil {
		t.Fatalf("expected no release func on failure")
	}
	if n := bus.liveCount(); n != 0 {
		t.Fatalf("expected all acquired subscriptions released, %d still live", n)
	}
	if released := bus.releasedNames(); len(released) != 3 {
		t.Fatalf("expected 3 releases, got %v", released)
	}
}

func TestDecodeEventRejectsBadPayloads(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    domain.EventName
		payload []any
	}{
		{domain.EventRecordingProgress, nil},
		{domain.EventRecordingProgress, []any{"lots"}},
		{domain.EventContinuousProgress, []any{-1}},
		{domain.EventRecordingFinished, []any{}},
		{domain.EventName("recording_paused"), nil},
	}
	for _, tc := range cases {
		if _, err := decodeEvent(tc.name, tc.payload); err == nil {
			t.Fatalf("expected error for %s %v", tc.name, tc.payload)
		}
	}
}
