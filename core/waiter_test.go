package core

import (
	"context"
	"regexp"
	"testing"
	"time"
)

func TestWaitContainsResolvesOnOutput(t *testing.T) {
	r := newTestRegistry()
	a, err := r.Spawn(SpawnRequest{Argv: []string{"/bin/sh", "-c", "sleep 0.2; echo ready; sleep 2"}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer func() { _ = r.Kill(SelectByID(a.ID), func(ag *Agent) error { return ag.PTY.Signal(9) }) }()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	res := a.Wait(ctx, Predicate{Contains: "ready"}, 0)
	if res.Outcome != WaitMatched {
		t.Fatalf("expected WaitMatched, got %v", res.Outcome)
	}
}

func TestWaitRegexResolves(t *testing.T) {
	r := newTestRegistry()
	a, err := r.Spawn(SpawnRequest{Argv: []string{"/bin/sh", "-c", "echo build-42-ok; sleep 2"}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer func() { _ = r.Kill(SelectByID(a.ID), func(ag *Agent) error { return ag.PTY.Signal(9) }) }()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	res := a.Wait(ctx, Predicate{Regex: regexp.MustCompile(`build-\d+-ok`)}, 0)
	if res.Outcome != WaitMatched {
		t.Fatalf("expected WaitMatched, got %v", res.Outcome)
	}
}

func TestWaitExitResolvesOnNaturalExit(t *testing.T) {
	r := newTestRegistry()
	a, err := r.Spawn(SpawnRequest{Argv: []string{"/bin/sh", "-c", "exit 3"}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	res := a.Wait(context.Background(), Predicate{OnExit: true}, 0)
	if res.Outcome != WaitExited {
		t.Fatalf("expected WaitExited, got %v", res.Outcome)
	}
	if res.Exit == nil || res.Exit.Code != 3 {
		t.Fatalf("expected exit code 3, got %+v", res.Exit)
	}
}

func TestContentPredicateMatchesScrolledOffTranscript(t *testing.T) {
	a := NewAgent("test-scroll", []string{"/bin/true"}, nil, nil, Size{Rows: 3, Cols: 20}, Limits{}, 1<<16)

	a.Transcript.Append([]byte("needle\r\n"))
	a.Screen.Write([]byte("needle\r\n"))
	for i := 0; i < 10; i++ {
		a.Transcript.Append([]byte("filler line\r\n"))
		a.Screen.Write([]byte("filler line\r\n"))
	}

	if a.Screen.SnapshotText(SnapshotOpts{StripColor: true}) == "" {
		t.Fatalf("expected a non-empty rendered screen")
	}
	if !a.contentPredicateHolds(Predicate{Contains: "needle"}) {
		t.Fatalf("expected the transcript-backed predicate to still see content scrolled off the visible grid")
	}
}

func TestWaitTimesOut(t *testing.T) {
	r := newTestRegistry()
	a, err := r.Spawn(SpawnRequest{Argv: []string{"/bin/sh", "-c", "sleep 2"}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer func() { _ = r.Kill(SelectByID(a.ID), func(ag *Agent) error { return ag.PTY.Signal(9) }) }()

	res := a.Wait(context.Background(), Predicate{Contains: "never appears"}, 200*time.Millisecond)
	if res.Outcome != WaitTimeout {
		t.Fatalf("expected WaitTimeout, got %v", res.Outcome)
	}
}
