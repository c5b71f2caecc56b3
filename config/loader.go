package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "guardian.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/guardian"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/guardian/config.yaml)
// 3. Project config (guardian.yaml in current or parent directories)
// 4. GUARDIAN_* environment variables
//
// A .env file in the working directory is loaded first so credentials like
// OPENAI_API_KEY reach the process without living in the config file.
func (l *Loader) Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		l.logger.Debug("Loaded .env file")
	}

	config := DefaultConfig()

	userConfigPath := l.userConfigPath()
	if userConfig, err := LoadFromFile(userConfigPath); err == nil {
		l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
		config = userConfig
	} else if !errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
	}

	projectConfigPath := l.findProjectConfig()
	if projectConfigPath != "" {
		if projectConfig, err := LoadFromFile(projectConfigPath); err == nil {
			l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
			config = projectConfig
		} else {
			l.logger.Warn("Failed to load project config", slog.String("path", projectConfigPath), slog.String("error", err.Error()))
		}
	} else {
		l.logger.Debug("No project config found")
	}

	l.applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies GUARDIAN_* environment variables on top of the
// file-derived config.
func (l *Loader) applyEnvOverrides(config *Config) {
	if addr := os.Getenv("GUARDIAN_ADDR"); addr != "" {
		config.Server.Addr = addr
	}
	if dir := os.Getenv("GUARDIAN_CORPUS_DIR"); dir != "" {
		config.Retrieval.CorpusDir = dir
	}
	if url := os.Getenv("GUARDIAN_EMBED_URL"); url != "" {
		config.Retrieval.EmbedURL = url
	}
	if model := os.Getenv("GUARDIAN_EMBED_MODEL"); model != "" {
		config.Retrieval.EmbedModel = model
	}
	if timeout := os.Getenv("GUARDIAN_MODEL_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Model.Timeout = d
		} else {
			l.logger.Warn("Invalid GUARDIAN_MODEL_TIMEOUT", slog.String("value", timeout))
		}
	}
	if sim := os.Getenv("GUARDIAN_FORCE_SIMULATION"); sim != "" {
		if v, err := strconv.ParseBool(sim); err == nil {
			config.Scenario.ForceSimulation = v
		} else {
			l.logger.Warn("Invalid GUARDIAN_FORCE_SIMULATION", slog.String("value", sim))
		}
	}
}

// EnsureUserConfig creates the user config file with defaults if it doesn't exist
func (l *Loader) EnsureUserConfig() error {
	userConfigPath := l.userConfigPath()

	if _, err := os.Stat(userConfigPath); err == nil {
		return nil // Already exists
	}

	config := DefaultConfig()
	if err := config.SaveToFile(userConfigPath); err != nil {
		return err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return nil
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for guardian.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
