package appconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("socket.path", cfg.Socket.Path)
	v.SetDefault("agent.default_rows", cfg.Agent.DefaultRows)
	v.SetDefault("agent.default_cols", cfg.Agent.DefaultCols)
	v.SetDefault("agent.transcript_capacity", cfg.Agent.TranscriptCapacity)
	v.SetDefault("agent.max_output_default", cfg.Agent.MaxOutputDefault)
	v.SetDefault("bus.queue_depth", cfg.Bus.QueueDepth)
	v.SetDefault("orchestrator.timeout_grace_seconds", cfg.Orchestrator.TimeoutGraceSeconds)
	v.SetDefault("word_list.path", cfg.WordList.Path)
	v.SetDefault("server.exit_when_empty", cfg.Server.ExitWhenEmpty)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.mode", cfg.Logging.Mode)
	v.SetDefault("logging.verbose_fields", cfg.Logging.VerboseFields)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
		if v.IsSet("http") {
			return Config{}, fmt.Errorf("http is no longer a supported config section")
		}
		if v.IsSet("agent.transcript_capacity") && v.GetInt("agent.transcript_capacity") <= 0 {
			return Config{}, fmt.Errorf("agent.transcript_capacity must be positive")
		}
		if v.IsSet("bus.queue_depth") && v.GetInt("bus.queue_depth") <= 0 {
			return Config{}, fmt.Errorf("bus.queue_depth must be positive")
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	return cfg, nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Socket.Path = expandEnv(cfg.Socket.Path)
	cfg.WordList.Path = expandEnv(cfg.WordList.Path)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
