package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the TerraLens server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Analysis AnalysisConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// AnalysisConfig configures the external executor processes.
type AnalysisConfig struct {
	// ScriptsDir holds the per-kind analysis executables.
	ScriptsDir string
	// PythonBin is the interpreter used to launch them.
	PythonBin string
	// OutputDir is handed to every executor for artifact output.
	OutputDir string
	// ScratchDir holds transient parameter files, one per job.
	ScratchDir string
	// Timeout bounds a single invocation. Zero means no timeout, which matches
	// the historical behavior of letting a hung process hold its job in
	// processing indefinitely.
	Timeout time.Duration
	// MaxConcurrent caps how many external processes run at once.
	MaxConcurrent int
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value is
// missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("TERRALENS_PORT", 8080),
			Env:  envString("TERRALENS_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Analysis: AnalysisConfig{
			ScriptsDir:    envString("ANALYSIS_SCRIPTS_DIR", "scripts"),
			PythonBin:     envString("ANALYSIS_PYTHON_BIN", "python3"),
			OutputDir:     envString("ANALYSIS_OUTPUT_DIR", "uploads/results"),
			ScratchDir:    envString("ANALYSIS_SCRATCH_DIR", os.TempDir()),
			Timeout:       envDurationSecs("ANALYSIS_TIMEOUT_SECS", 0),
			MaxConcurrent: envInt("ANALYSIS_MAX_CONCURRENT", 8),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Analysis.ScriptsDir == "" {
		return fmt.Errorf("ANALYSIS_SCRIPTS_DIR must not be empty")
	}

	if c.Analysis.MaxConcurrent < 1 {
		return fmt.Errorf("ANALYSIS_MAX_CONCURRENT must be at least 1, got %d", c.Analysis.MaxConcurrent)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
