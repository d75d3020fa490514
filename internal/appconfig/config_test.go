package appconfig

import "testing"

func TestDefaultConfigAgentGeometry(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Agent.DefaultRows != 24 || cfg.Agent.DefaultCols != 80 {
		t.Fatalf("expected 24x80 default geometry, got %dx%d", cfg.Agent.DefaultRows, cfg.Agent.DefaultCols)
	}
	if cfg.Server.ExitWhenEmpty {
		t.Fatalf("expected exit_when_empty to default false")
	}
}

func TestDefaultSocketPathFallsBackToTmp(t *testing.T) {
	t.Setenv("BOTTY_SOCKET", "")
	t.Setenv("XDG_RUNTIME_DIR", "")
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Socket.Path == "" {
		t.Fatalf("expected a non-empty fallback socket path")
	}
}

func TestDefaultSocketPathPrefersEnvOverride(t *testing.T) {
	t.Setenv("BOTTY_SOCKET", "/tmp/explicit.sock")
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Socket.Path != "/tmp/explicit.sock" {
		t.Fatalf("expected BOTTY_SOCKET override, got %q", cfg.Socket.Path)
	}
}
