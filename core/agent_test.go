package core

import "testing"

func TestAgentStateTransitionsAreMonotonic(t *testing.T) {
	a := NewAgent("test-1", []string{"/bin/true"}, nil, nil, DefaultSize, Limits{}, 1024)
	if a.State() != Starting {
		t.Fatalf("expected Starting, got %v", a.State())
	}
	if !a.MarkRunning() {
		t.Fatalf("expected Starting -> Running to succeed")
	}
	if a.transition(Starting) {
		t.Fatalf("expected regression to Starting to be rejected")
	}
	if !a.MarkExiting() {
		t.Fatalf("expected Running -> Exiting to succeed")
	}
	if !a.MarkExited(Exit{Reason: ExitNatural}) {
		t.Fatalf("expected Exiting -> Exited to succeed")
	}
	if a.MarkExited(Exit{Reason: ExitKilled}) {
		t.Fatalf("expected a second MarkExited to be rejected")
	}
	if a.Exit().Reason != ExitNatural {
		t.Fatalf("expected exit reason to remain from the first MarkExited call, got %v", a.Exit().Reason)
	}
}

func TestAgentLabels(t *testing.T) {
	a := NewAgent("test-2", []string{"/bin/true"}, nil, []string{"build", "ci"}, DefaultSize, Limits{}, 1024)
	if !a.HasLabel("build") || !a.HasLabel("ci") {
		t.Fatalf("expected both labels to be present")
	}
	if a.HasLabel("missing") {
		t.Fatalf("did not expect an unset label to be present")
	}
}

func TestAgentSnapshotReflectsState(t *testing.T) {
	a := NewAgent("test-3", []string{"/bin/true"}, nil, nil, Size{Rows: 10, Cols: 40}, Limits{}, 1024)
	snap := a.Snapshot()
	if snap.State != "starting" || snap.Rows != 10 || snap.Cols != 40 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	a.MarkRunning()
	a.MarkExiting()
	a.MarkExited(Exit{Code: 1, Reason: ExitNatural})
	snap = a.Snapshot()
	if snap.State != "exited" || snap.Exit == nil || snap.ExitedAt == nil {
		t.Fatalf("expected exited snapshot to carry Exit and ExitedAt, got %+v", snap)
	}
}
