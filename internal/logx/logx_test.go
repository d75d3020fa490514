package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/pslog"
)

func TestWithAgentAddsField(t *testing.T) {
	capture := &logCapture{}
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
	ctx := pslog.ContextWithLogger(context.Background(), logger)
	log := WithAgent(ctx, "build-1")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["agent"] != "build-1" {
		t.Fatalf("expected agent field, got %+v", entry)
	}
}

func TestWithAgentSkipsDuplicateMarker(t *testing.T) {
	capture := &logCapture{}
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
	ctx := pslog.ContextWithLogger(context.Background(), logger)
	ctx = ContextWithAgent(ctx, "build-1")
	log := WithAgent(ctx, "build-1")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if _, ok := entry["agent"]; ok {
		t.Fatalf("did not expect a duplicate agent field, got %+v", entry)
	}
}

func TestWithAgentRequestAddsBothFields(t *testing.T) {
	capture := &logCapture{}
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
	ctx := pslog.ContextWithLogger(context.Background(), logger)
	log := WithAgentRequest(ctx, "build-1", "req-9")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["agent"] != "build-1" {
		t.Fatalf("expected agent field, got %+v", entry)
	}
	if entry["request"] != "req-9" {
		t.Fatalf("expected request field, got %+v", entry)
	}
}

func TestCopyContextFieldsPreservesDeduplication(t *testing.T) {
	capture := &logCapture{}
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
	requestLogger := logger.With("agent", "build-1")
	src := ContextWithAgentLogger(context.Background(), requestLogger, "build-1")

	// A detached goroutine builds its own context from a fresh parent but
	// wants the same de-duplication behavior for the agent it already knows.
	dst := pslog.ContextWithLogger(context.Background(), requestLogger)
	dst = CopyContextFields(dst, src)

	log := WithAgent(dst, "build-1")
	log.Info("hello")

	entry := capture.firstEntry(t)
	// requestLogger already carries "agent"; WithAgent must not add a second one.
	if entry["agent"] != "build-1" {
		t.Fatalf("expected single agent field, got %+v", entry)
	}
	if n := bytes.Count(capture.buf.Bytes(), []byte(`"agent"`)); n != 1 {
		t.Fatalf("expected exactly one agent field, got %d in %q", n, capture.buf.String())
	}
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
