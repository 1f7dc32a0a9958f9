// Package config loads the graderd configuration: YAML file for tunables,
// environment for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30m"
// or from plain integers, which are taken as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		dur, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(dur)
		return nil
	}
	var secs int64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration value %q", value.Value)
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds the daemon configuration.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string `yaml:"listen_addr"`
	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`
	// MaxConcurrentReviews bounds parallel reviewer calls across all jobs.
	MaxConcurrentReviews int `yaml:"max_concurrent_reviews"`
	// JobTTL is how long finished and unfinished jobs stay pollable.
	JobTTL Duration `yaml:"job_ttl"`
	// ReapInterval is how often expired jobs are swept.
	ReapInterval Duration `yaml:"reap_interval"`
	// PassThreshold is the minimum rubric-backed score that passes.
	PassThreshold int `yaml:"pass_threshold"`
	// PlagiarismThreshold is the Jaccard similarity above which a pair is flagged.
	PlagiarismThreshold float64 `yaml:"plagiarism_threshold"`
	// Reviewer tunes the external review model.
	Reviewer ReviewerConfig `yaml:"reviewer"`
	// Bank configures the problem-bank client.
	Bank BankConfig `yaml:"bank"`
	// Webhook configures completion notifications.
	Webhook WebhookConfig `yaml:"webhook"`
}

// ReviewerConfig tunes the external review model.
type ReviewerConfig struct {
	Model           string   `yaml:"model"`
	Temperature     float32  `yaml:"temperature"`
	MaxOutputTokens int32    `yaml:"max_output_tokens"`
	Timeout         Duration `yaml:"timeout"`
}

// BankConfig configures the problem-bank client.
type BankConfig struct {
	BaseURL   string   `yaml:"base_url"`
	Timeout   Duration `yaml:"timeout"`
	CacheSize int      `yaml:"cache_size"`
}

// WebhookConfig configures completion notifications.
type WebhookConfig struct {
	Timeout     Duration `yaml:"timeout"`
	MaxInFlight int      `yaml:"max_in_flight"`
}

// Secrets are read from the environment, never from the config file.
// A local .env is honored when present.
type Secrets struct {
	// GeminiAPIKey enables the external reviewer; empty means fallback scoring.
	GeminiAPIKey string
	// BankAPIKey is sent as x-api-key on problem-bank requests.
	BankAPIKey string
	// APIKey, when set, gates mutating endpoints behind an x-api-key header.
	APIKey string
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		ListenAddr:           "127.0.0.1:8470",
		DBPath:               filepath.Join(home, ".gograder", "gograder.db"),
		MaxConcurrentReviews: 5,
		JobTTL:               Duration(time.Hour),
		ReapInterval:         Duration(time.Hour),
		PassThreshold:        50,
		PlagiarismThreshold:  0.80,
		Reviewer: ReviewerConfig{
			Model:           "gemini-2.5-flash",
			Temperature:     0.3,
			MaxOutputTokens: 4096,
			Timeout:         Duration(60 * time.Second),
		},
		Bank: BankConfig{
			Timeout:   Duration(10 * time.Second),
			CacheSize: 256,
		},
		Webhook: WebhookConfig{
			Timeout:     Duration(10 * time.Second),
			MaxInFlight: 4,
		},
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults; a present file overlays them.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadFromHome loads configuration from ~/.gograder/config.yaml.
func LoadFromHome() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}
	return Load(filepath.Join(home, ".gograder", "config.yaml"))
}

// LoadSecrets reads the secret material from the environment. A .env file
// in the working directory is loaded first when present.
func LoadSecrets() Secrets {
	_ = godotenv.Load()
	return Secrets{
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		BankAPIKey:   os.Getenv("GRADER_BANK_API_KEY"),
		APIKey:       os.Getenv("GRADER_API_KEY"),
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.MaxConcurrentReviews < 1 {
		return fmt.Errorf("max_concurrent_reviews must be at least 1")
	}
	if c.JobTTL <= 0 {
		return fmt.Errorf("job_ttl must be positive")
	}
	if c.ReapInterval <= 0 {
		return fmt.Errorf("reap_interval must be positive")
	}
	if c.PassThreshold < 1 || c.PassThreshold > 100 {
		return fmt.Errorf("pass_threshold must be between 1 and 100")
	}
	if c.PlagiarismThreshold <= 0 || c.PlagiarismThreshold >= 1 {
		return fmt.Errorf("plagiarism_threshold must be between 0 and 1 exclusive")
	}
	return nil
}
