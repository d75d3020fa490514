package eventbus

import (
	"testing"
	"time"

	"pty.systems/botty/core"
)

func TestSubscribeAndPublishOutput(t *testing.T) {
	bus := New(nil, nil)
	ch, cancel := bus.Subscribe(Filter{})
	defer cancel()

	bus.PublishOutput("agent-1", 12)

	select {
	case got := <-ch:
		if got.Kind != KindOutput {
			t.Fatalf("expected output event, got %v", got.Kind)
		}
		if got.AgentID != "agent-1" || got.OutputBytes != 12 {
			t.Fatalf("unexpected payload: %+v", got)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New(nil, nil)
	ch, cancel := bus.Subscribe(Filter{})
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
}

func TestFilterByID(t *testing.T) {
	bus := New(nil, nil)
	ch, cancel := bus.Subscribe(Filter{IDs: []string{"agent-1"}})
	defer cancel()

	bus.PublishOutput("agent-2", 4)
	bus.PublishOutput("agent-1", 8)

	select {
	case got := <-ch:
		if got.AgentID != "agent-1" {
			t.Fatalf("expected agent-1, got %s", got.AgentID)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for filtered event")
	}

	select {
	case got := <-ch:
		t.Fatalf("expected no further events, got %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFilterByLabel(t *testing.T) {
	labels := map[string][]string{"agent-1": {"build"}}
	bus := New(nil, func(id string) []string { return labels[id] })
	ch, cancel := bus.Subscribe(Filter{Labels: []string{"build"}})
	defer cancel()

	bus.PublishOutput("agent-1", 1)

	select {
	case got := <-ch:
		if got.AgentID != "agent-1" {
			t.Fatalf("unexpected agent: %s", got.AgentID)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for label-filtered event")
	}
}

func TestOutputDropsOldestWhenFull(t *testing.T) {
	bus := New(nil, nil)
	bus.depth = 1
	ch, cancel := bus.Subscribe(Filter{})
	defer cancel()

	bus.PublishOutput("agent-1", 1)
	bus.PublishOutput("agent-1", 2)

	got := <-ch
	if got.OutputBytes != 2 {
		t.Fatalf("expected drop-oldest to keep the newest event, got %+v", got)
	}
	if got.Lagged != 1 {
		t.Fatalf("expected lagged=1 after one dropped event, got %d", got.Lagged)
	}
}

func TestLifecycleDeliveredOverBackpressure(t *testing.T) {
	bus := New(nil, nil)
	bus.depth = 1
	ch, cancel := bus.Subscribe(Filter{})
	defer cancel()

	bus.PublishOutput("agent-1", 1) // fills the queue
	bus.PublishSpawned("agent-2")   // must still land, via drop-oldest fallback

	got := <-ch
	if got.Kind != KindAgentSpawned {
		t.Fatalf("expected lifecycle event to survive backpressure, got %+v", got)
	}
}

func TestKindFilter(t *testing.T) {
	bus := New(nil, nil)
	ch, cancel := bus.Subscribe(Filter{Kinds: []Kind{KindAgentExited}})
	defer cancel()

	bus.PublishOutput("agent-1", 1)
	bus.PublishExited("agent-1", core.Exit{Reason: core.ExitNatural})

	select {
	case got := <-ch:
		if got.Kind != KindAgentExited {
			t.Fatalf("expected only exit events, got %v", got.Kind)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for exit event")
	}
}
