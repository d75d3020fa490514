package appconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"pty.systems/botty/core"
)

// Config is the top-level application configuration for the botty server
// and its CLI. Every path field is subject to $VAR expansion (see
// expandConfigEnv) after unmarshal, so defaults may reference $XDG_*/$UID
// even though viper itself does no shell-style expansion.
type Config struct {
	ConfigVersion int                `mapstructure:"config_version" yaml:"config_version"`
	Socket        SocketConfig       `mapstructure:"socket" yaml:"socket"`
	Agent         AgentDefaults      `mapstructure:"agent" yaml:"agent"`
	Bus           BusConfig          `mapstructure:"bus" yaml:"bus"`
	Orchestrator  OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	WordList      WordListConfig     `mapstructure:"word_list" yaml:"word_list"`
	Server        ServerConfig       `mapstructure:"server" yaml:"server"`
	Logging       LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// SocketConfig controls the Unix-domain listener botty binds.
type SocketConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AgentDefaults seeds per-agent geometry and buffer sizing absent explicit
// spawn overrides.
type AgentDefaults struct {
	DefaultRows        int   `mapstructure:"default_rows" yaml:"default_rows"`
	DefaultCols        int   `mapstructure:"default_cols" yaml:"default_cols"`
	TranscriptCapacity int   `mapstructure:"transcript_capacity" yaml:"transcript_capacity"`
	MaxOutputDefault   int64 `mapstructure:"max_output_default" yaml:"max_output_default"`
}

// BusConfig describes the event bus's per-subscriber queue. The server does
// not pass QueueDepth to the bus, which always uses a depth of 256.
type BusConfig struct {
	QueueDepth int `mapstructure:"queue_depth" yaml:"queue_depth"`
}

// OrchestratorConfig describes the --timeout grace period. The server does
// not read it: the SIGTERM-to-SIGKILL grace is the fixed core.TimeoutGrace.
type OrchestratorConfig struct {
	TimeoutGraceSeconds int `mapstructure:"timeout_grace_seconds" yaml:"timeout_grace_seconds"`
}

// WordListConfig points at the adjective+noun word list used to generate
// handle-style agent ids when a spawn omits --name. Empty Path uses the
// built-in list compiled into the binary.
type WordListConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ServerConfig describes process-lifecycle policy that has no per-request
// analogue. The server does not read ExitWhenEmpty and never exits on its
// own when the agent count reaches zero.
type ServerConfig struct {
	ExitWhenEmpty bool `mapstructure:"exit_when_empty" yaml:"exit_when_empty"`
}

// LoggingConfig describes pslog output settings. The CLI does not read it;
// the logger is configured from the environment (pslog.LoggerFromEnv).
type LoggingConfig struct {
	Level         string `mapstructure:"level" yaml:"level"`
	Mode          string `mapstructure:"mode" yaml:"mode"`
	VerboseFields bool   `mapstructure:"verbose_fields" yaml:"verbose_fields"`
}

// DefaultConfig returns a config with sensible defaults, resolving the
// socket path per the fallback chain: $BOTTY_SOCKET, then
// $XDG_RUNTIME_DIR/botty/botty.sock, then /tmp/botty-$UID.sock.
func DefaultConfig() (Config, error) {
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Socket: SocketConfig{
			Path: defaultSocketPath(),
		},
		Agent: AgentDefaults{
			DefaultRows:        core.DefaultSize.Rows,
			DefaultCols:        core.DefaultSize.Cols,
			TranscriptCapacity: 1 << 20,
			MaxOutputDefault:   0,
		},
		Bus: BusConfig{
			QueueDepth: 256,
		},
		Orchestrator: OrchestratorConfig{
			TimeoutGraceSeconds: 5,
		},
		WordList: WordListConfig{
			Path: "",
		},
		Server: ServerConfig{
			ExitWhenEmpty: false,
		},
		Logging: LoggingConfig{
			Level:         "info",
			Mode:          "structured",
			VerboseFields: false,
		},
	}, nil
}

func defaultSocketPath() string {
	if p := os.Getenv("BOTTY_SOCKET"); p != "" {
		return p
	}
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "botty", "botty.sock")
	}
	return fmt.Sprintf("/tmp/botty-%d.sock", os.Getuid())
}

// DefaultConfigPath returns the standard config file path.
func DefaultConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "botty", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".botty", "config.yaml"), nil
}
