package format

import (
	"strings"
	"testing"

	"pty.systems/botty/core"
)

func TestParseKindDefaultsToJSON(t *testing.T) {
	kind, err := ParseKind("")
	if err != nil {
		t.Fatalf("parse kind: %v", err)
	}
	if kind != KindJSON {
		t.Fatalf("expected json default, got %v", kind)
	}
}

func TestParseKindRejectsUnknown(t *testing.T) {
	if _, err := ParseKind("xml"); err == nil {
		t.Fatalf("expected an error for an unsupported format")
	}
}

func TestRenderJSONRoundTrips(t *testing.T) {
	agents := []core.Snapshot{{ID: "a1", PID: 100, State: "running", Rows: 24, Cols: 80, Argv: []string{"/bin/sh"}}}
	out, err := Render(KindJSON, agents)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, `"id": "a1"`) {
		t.Fatalf("expected id field in JSON output, got %q", out)
	}
}

func TestRenderToonHeaderAndRow(t *testing.T) {
	agents := []core.Snapshot{{ID: "a1", PID: 100, State: "running", Rows: 24, Cols: 80, Argv: []string{"/bin/sh", "-c", "echo hi"}}}
	out, err := Render(KindToon, agents)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + one row, got %d lines: %v", len(lines), lines)
	}
	if lines[0] != "agents[1]{id,pid,state,rows,cols,argv}:" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if lines[1] != "  a1,100,running,24,80,/bin/sh -c echo hi" {
		t.Fatalf("unexpected row: %q", lines[1])
	}
}

func TestRenderToonEscapesCommaInArgv(t *testing.T) {
	agents := []core.Snapshot{{ID: "a1", Argv: []string{"echo", "a,b"}}}
	out, err := Render(KindToon, agents)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, `"echo a,b"`) {
		t.Fatalf("expected quoted argv containing a comma, got %q", out)
	}
}
