package core

import (
	"context"
	"testing"
	"time"
)

func newTestRegistry() *Registry {
	return NewRegistry(1<<16, nil)
}

func TestRegistrySpawnAssignsGeneratedID(t *testing.T) {
	r := newTestRegistry()
	a, err := r.Spawn(SpawnRequest{Argv: []string{"/bin/sh", "-c", "sleep 1"}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if a.ID == "" {
		t.Fatalf("expected a generated id")
	}
	_ = r.Kill(SelectByID(a.ID), func(agent *Agent) error { return agent.PTY.Signal(9) })
}

func TestRegistrySpawnRejectsDuplicateName(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Spawn(SpawnRequest{Name: "web-1", Argv: []string{"/bin/sh", "-c", "sleep 1"}}); err != nil {
		t.Fatalf("first spawn: %v", err)
	}
	_, err := r.Spawn(SpawnRequest{Name: "web-1", Argv: []string{"/bin/sh", "-c", "sleep 1"}})
	if err == nil || KindOf(err) != ErrorKindNameInUse {
		t.Fatalf("expected ErrorKindNameInUse, got %v", err)
	}
	agents := r.List()
	if len(agents) != 1 {
		t.Fatalf("expected exactly one registered agent, got %d", len(agents))
	}
}

func TestRegistryResolveByLabel(t *testing.T) {
	r := newTestRegistry()
	a, err := r.Spawn(SpawnRequest{Argv: []string{"/bin/sh", "-c", "sleep 1"}, Labels: []string{"worker"}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	matched := r.Resolve(SelectByLabel("worker"))
	if len(matched) != 1 || matched[0].ID != a.ID {
		t.Fatalf("expected label selector to resolve the labeled agent, got %+v", matched)
	}
	if none := r.Resolve(SelectByLabel("nonexistent")); len(none) != 0 {
		t.Fatalf("expected no matches for unused label")
	}
}

func TestRegistryKillEmptySelectionSucceeds(t *testing.T) {
	r := newTestRegistry()
	err := r.Kill(SelectByID("nope"), func(*Agent) error { return nil })
	if err != nil {
		t.Fatalf("expected empty Kill selection to succeed, got %v", err)
	}
}

func TestRegistryKillOnAlreadyExitedSucceeds(t *testing.T) {
	r := newTestRegistry()
	a, err := r.Spawn(SpawnRequest{Argv: []string{"/bin/sh", "-c", "exit 0"}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if res := a.Wait(ctx, Predicate{OnExit: true}, 0); res.Outcome != WaitExited {
		t.Fatalf("expected agent to exit naturally, got %v", res.Outcome)
	}

	signalled := false
	err = r.Kill(SelectByID(a.ID), func(*Agent) error {
		signalled = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected Kill on an exited agent to succeed, got %v", err)
	}
	if signalled {
		t.Fatalf("expected Kill to skip signaling an already-exited agent")
	}
}

func TestRegistryResolveOneEmptyIsNotFound(t *testing.T) {
	r := newTestRegistry()
	_, err := r.ResolveOne(SelectByID("nope"))
	if err != ErrAgentNotFound {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestRegistryGcRemovesExitedOnly(t *testing.T) {
	r := newTestRegistry()
	a, err := r.Spawn(SpawnRequest{Argv: []string{"/bin/sh", "-c", "exit 0"}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res := a.Wait(ctx, Predicate{OnExit: true}, 0)
	if res.Outcome != WaitExited {
		t.Fatalf("expected agent to exit naturally, got %v", res.Outcome)
	}

	b, err := r.Spawn(SpawnRequest{Argv: []string{"/bin/sh", "-c", "sleep 1"}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	removed := r.Gc()
	if len(removed) != 1 || removed[0] != a.ID {
		t.Fatalf("expected Gc to remove only the exited agent, got %v", removed)
	}
	if _, err := r.Get(a.ID); err != ErrAgentNotFound {
		t.Fatalf("expected exited agent id to be freed after Gc")
	}
	if _, err := r.Get(b.ID); err != nil {
		t.Fatalf("expected live agent to remain after Gc: %v", err)
	}
	_ = r.Kill(SelectByID(b.ID), func(agent *Agent) error { return agent.PTY.Signal(9) })
}
