package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 999
socket:
  path: /tmp/botty-test.sock
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsNonPositiveTranscriptCapacity(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
agent:
  transcript_capacity: 0
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "transcript_capacity") {
		t.Fatalf("expected transcript_capacity error, got %v", err)
	}
}

func TestLoadRejectsNonPositiveQueueDepth(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
bus:
  queue_depth: -1
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "queue_depth") {
		t.Fatalf("expected queue_depth error, got %v", err)
	}
}

func TestLoadExpandsSocketPath(t *testing.T) {
	t.Setenv("FOO", "botty-run")
	path := writeConfig(t, `
config_version: 1
socket:
  path: /tmp/$FOO/botty.sock
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Socket.Path != "/tmp/botty-run/botty.sock" {
		t.Fatalf("expected expanded socket path, got %q", cfg.Socket.Path)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") || strings.Contains(value, "$GID") {
		t.Fatalf("expected UID/GID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config to exist: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
