package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Logging     LoggingConfig    `toml:"logging"`
	Storage     StorageConfig    `toml:"storage"`
	JobService  JobServiceConfig `toml:"job_service"`
	Tracking    TrackingConfig   `toml:"tracking"`
	Chat        ChatConfig       `toml:"chat"`
	Claude      ClaudeConfig     `toml:"claude"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

// JobServiceConfig configures the external document-analysis backend client.
type JobServiceConfig struct {
	BaseURL   string `toml:"base_url" validate:"required,url"` // Analysis backend base URL
	APIKey    string `toml:"api_key"`                          // Optional API key (env: LEXIGUARD_JOB_SERVICE_API_KEY)
	Timeout   string `toml:"timeout"`                          // HTTP request timeout, e.g. "30s"
	RateLimit int    `toml:"rate_limit"`                       // Max requests per second
}

// TrackingConfig configures per-session job tracking behavior.
type TrackingConfig struct {
	PollInterval      string  `toml:"poll_interval"`                                 // Status poll cadence, e.g. "3s"
	TickInterval      string  `toml:"tick_interval"`                                 // Cosmetic progress tick cadence, e.g. "1s"
	MaxWait           string  `toml:"max_wait"`                                      // Give up after this long without a terminal status ("0" disables)
	FailurePolicy     string  `toml:"failure_policy" validate:"oneof=fail continue"` // "fail": terminal on status=failed; "continue": keep polling
	SimulatedCeiling  float64 `toml:"simulated_ceiling" validate:"gt=0,lt=100"`      // Ceiling for simulated progress when no timing data
	SimulatedFraction float64 `toml:"simulated_fraction" validate:"gt=0,lt=1"`       // Fraction of remaining gap consumed per tick
	AssumedDuration   string  `toml:"assumed_duration"`                              // Coarse countdown shown before timing data arrives
}

// ChatConfig configures the chat proxy context assembly and fallbacks.
type ChatConfig struct {
	SampleReportPath string  `toml:"sample_report_path"`                // Static sample report used when the session store has no report
	DocumentTextDir  string  `toml:"document_text_dir"`                 // Directory of pre-extracted document text files (<pdf base>.txt)
	DefaultDocument  string  `toml:"default_document"`                  // Document filename assumed when the session has no pdf_path
	LogSummaryLines  int     `toml:"log_summary_lines" validate:"gt=0"` // Analysis log lines forwarded to the LLM
	RateLimit        float64 `toml:"rate_limit"`                        // Chat endpoint requests per second (0 disables limiting)
}

type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // User must provide API key (ANTHROPIC_API_KEY or config)
	Model       string  `toml:"model"`       // Model for chat completions
	MaxTokens   int     `toml:"max_tokens"`  // Bounded output length
	Timeout     string  `toml:"timeout"`     // Per-request timeout
	Temperature float64 `toml:"temperature"` // Sampling temperature
}

// NewDefaultConfig returns a Config populated with defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/lexiguard.db",
				ResetOnStartup: false,
			},
		},
		JobService: JobServiceConfig{
			BaseURL:   "http://localhost:8000",
			Timeout:   "30s",
			RateLimit: 10,
		},
		Tracking: TrackingConfig{
			PollInterval:      "3s", // Reference cadence from the processing UI
			TickInterval:      "1s",
			MaxWait:           "15m", // Indefinite polling is a resource leak
			FailurePolicy:     "fail",
			SimulatedCeiling:  95,
			SimulatedFraction: 0.08,
			AssumedDuration:   "2m", // "This process typically takes about 2 minutes"
		},
		Chat: ChatConfig{
			SampleReportPath: "./data/sample-report.md",
			DocumentTextDir:  "./data/pdf-text",
			DefaultDocument:  "employment-agreement.pdf",
			LogSummaryLines:  20,
			RateLimit:        2,
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (no fallback)
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   1000, // Reasonable response length
			Timeout:     "2m",
			Temperature: 0.3, // Lower temperature for more focused responses
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files; CLI flags are applied by the caller on top.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration against struct validation rules.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority).
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("LEXIGUARD_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("LEXIGUARD_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("LEXIGUARD_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if level := os.Getenv("LEXIGUARD_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if path := os.Getenv("LEXIGUARD_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	// Job Service backend
	if url := os.Getenv("LEXIGUARD_JOB_SERVICE_URL"); url != "" {
		config.JobService.BaseURL = url
	}
	if key := os.Getenv("LEXIGUARD_JOB_SERVICE_API_KEY"); key != "" {
		config.JobService.APIKey = key
	}

	// LLM provider key: standard variable first, then app-specific override
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if key := os.Getenv("LEXIGUARD_CLAUDE_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
}

// durationOr parses a duration string, falling back to def on empty or invalid input.
func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// PollIntervalDuration returns the parsed status poll cadence.
func (t TrackingConfig) PollIntervalDuration() time.Duration {
	return durationOr(t.PollInterval, 3*time.Second)
}

// TickIntervalDuration returns the parsed cosmetic tick cadence.
func (t TrackingConfig) TickIntervalDuration() time.Duration {
	return durationOr(t.TickInterval, time.Second)
}

// MaxWaitDuration returns the parsed maximum wait. Zero disables the timeout.
func (t TrackingConfig) MaxWaitDuration() time.Duration {
	if t.MaxWait == "0" {
		return 0
	}
	return durationOr(t.MaxWait, 15*time.Minute)
}

// AssumedDurationValue returns the parsed assumed job duration.
func (t TrackingConfig) AssumedDurationValue() time.Duration {
	return durationOr(t.AssumedDuration, 2*time.Minute)
}

// TimeoutDuration returns the parsed Job Service request timeout.
func (j JobServiceConfig) TimeoutDuration() time.Duration {
	return durationOr(j.Timeout, 30*time.Second)
}

// TimeoutDuration returns the parsed Claude request timeout.
func (c ClaudeConfig) TimeoutDuration() time.Duration {
	return durationOr(c.Timeout, 2*time.Minute)
}
