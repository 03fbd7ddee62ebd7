package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds local console server settings.
type ServerConfig struct {
	Addr      string
	AuthToken string
}

// BackendConfig holds settings for the remote batch-send backend.
type BackendConfig struct {
	BaseURL         string
	PollInterval    time.Duration
	DefaultRootPath string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level       string
	HistoryKeep int
}

// BarkConfig holds Bark notification settings.
type BarkConfig struct {
	URL     string
	Enabled bool
}

// NotificationConfig holds all notification settings.
type NotificationConfig struct {
	Bark BarkConfig
}

// Config holds all runtime configuration options for the daemon.
type Config struct {
	Server       ServerConfig
	Backend      BackendConfig
	Log          LogConfig
	Notification NotificationConfig

	Mode          string
	StateDir      string
	ShutdownGrace time.Duration
}

const (
	defaultAddr          = "127.0.0.1:7080"
	defaultBackendURL    = "http://127.0.0.1:8000"
	defaultPollInterval  = 3 * time.Second
	defaultRootPath      = "/data/inbox"
	defaultLogLevel      = "info"
	defaultHistoryKeep   = 200
	defaultShutdownGrace = 5 * time.Second
)

// getEnvString returns the environment variable value or default
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt returns the environment variable as int or default
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvBool returns the environment variable as bool or default
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		lower := strings.ToLower(val)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultVal
}

// getEnvDuration returns the environment variable as duration or default
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// Parse parses command line flags and environment variables into Config.
// Priority: CLI flags > Environment variables > .env file > defaults
func Parse() (*Config, error) {
	// Load .env file if exists (silent fail if not present)
	envFiles := []string{".env"}
	if configDir, err := os.UserConfigDir(); err == nil {
		envFiles = append(envFiles, filepath.Join(configDir, "wecomsender", ".env"))
	}
	_ = godotenv.Load(envFiles...) // Ignore error - file is optional

	cfg := &Config{
		Server: ServerConfig{
			Addr:      getEnvString("WECOMSENDER_ADDR", defaultAddr),
			AuthToken: getEnvString("WECOMSENDER_AUTH_TOKEN", ""),
		},
		Backend: BackendConfig{
			BaseURL:         getEnvString("WECOMSENDER_BACKEND_URL", defaultBackendURL),
			PollInterval:    getEnvDuration("WECOMSENDER_POLL_INTERVAL", defaultPollInterval),
			DefaultRootPath: getEnvString("WECOMSENDER_ROOT_PATH", defaultRootPath),
		},
		Log: LogConfig{
			Level:       getEnvString("WECOMSENDER_LOG_LEVEL", defaultLogLevel),
			HistoryKeep: getEnvInt("WECOMSENDER_HISTORY_KEEP", defaultHistoryKeep),
		},
		Notification: NotificationConfig{
			Bark: BarkConfig{
				URL:     getEnvString("WECOMSENDER_BARK_URL", ""),
				Enabled: getEnvBool("WECOMSENDER_BARK_ENABLED", false),
			},
		},
		Mode:          getEnvString("WECOMSENDER_MODE", "http"),
		StateDir:      getEnvString("WECOMSENDER_STATE_DIR", ""),
		ShutdownGrace: getEnvDuration("WECOMSENDER_SHUTDOWN_GRACE", defaultShutdownGrace),
	}

	// CLI flags override environment variables
	var addr, backendURL, logLevel, stateDir, mode string
	var historyKeep int
	var pollInterval, shutdownGrace time.Duration

	flag.StringVar(&addr, "addr", "", "Console listen address (overrides env)")
	flag.StringVar(&backendURL, "backend-url", "", "Base URL of the batch-send backend")
	flag.StringVar(&mode, "mode", "", "Run mode: http, mcp or both")
	flag.StringVar(&stateDir, "state-dir", "", "Directory to store the local history database")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.IntVar(&historyKeep, "history-keep", 0, "Number of status samples to retain")
	flag.DurationVar(&pollInterval, "poll-interval", 0, "Backend refresh interval")
	flag.DurationVar(&shutdownGrace, "shutdown-grace", 0, "Grace period when shutting down")

	flag.Parse()

	if addr != "" {
		cfg.Server.Addr = addr
	}
	if backendURL != "" {
		cfg.Backend.BaseURL = backendURL
	}
	if mode != "" {
		cfg.Mode = mode
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if historyKeep > 0 {
		cfg.Log.HistoryKeep = historyKeep
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "poll-interval":
			cfg.Backend.PollInterval = pollInterval
		case "shutdown-grace":
			cfg.ShutdownGrace = shutdownGrace
		}
	})

	if cfg.StateDir == "" {
		dir, err := defaultStateDir()
		if err != nil {
			return nil, fmt.Errorf("resolve default state dir: %w", err)
		}
		cfg.StateDir = dir
	}

	if cfg.Backend.PollInterval < time.Second {
		cfg.Backend.PollInterval = defaultPollInterval
	}
	if cfg.Log.HistoryKeep < 1 {
		cfg.Log.HistoryKeep = defaultHistoryKeep
	}

	return cfg, nil
}

func defaultStateDir() (string, error) {
	baseDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(baseDir, "wecomsender")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}
