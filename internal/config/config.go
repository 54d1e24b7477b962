package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Watchdog WatchdogConfig `mapstructure:"watchdog"`
	Database DatabaseConfig `mapstructure:"database"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Parser   ParserConfig   `mapstructure:"parser"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Log      LogConfig      `mapstructure:"log"`
}

// APIConfig holds API server configuration.
type APIConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// WorkerConfig holds worker scheduler configuration.
type WorkerConfig struct {
	Concurrency  int           `mapstructure:"concurrency"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// PipelineConfig holds per-stage timeout budgets and the external execution
// ceiling the whole attempt must fit under.
//
// The hard limit models the host environment's kill timeout. Exceeding it is
// indistinguishable from a crash: no failure path runs and the job is left
// stuck in processing for the watchdog to find. The safety reserve keeps a
// finalization buffer under that ceiling, and Validate rejects stage budgets
// that do not fit.
type PipelineConfig struct {
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	ParseTimeout    time.Duration `mapstructure:"parse_timeout"`
	ChunkTimeout    time.Duration `mapstructure:"chunk_timeout"`
	EmbedTimeout    time.Duration `mapstructure:"embed_timeout"`
	AnalyzeTimeout  time.Duration `mapstructure:"analyze_timeout"`
	HardLimit       time.Duration `mapstructure:"hard_limit"`
	SafetyReserve   float64       `mapstructure:"safety_reserve"`
}

// StageBudget returns the total of the per-stage timeouts.
func (p PipelineConfig) StageBudget() time.Duration {
	return p.DownloadTimeout + p.ParseTimeout + p.ChunkTimeout + p.EmbedTimeout + p.AnalyzeTimeout
}

// UsableLimit returns the hard limit minus the safety reserve.
func (p PipelineConfig) UsableLimit() time.Duration {
	return time.Duration(float64(p.HardLimit) * (1 - p.SafetyReserve))
}

// RetryConfig holds automatic-retry configuration.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// WatchdogConfig holds stale-job reaper configuration.
type WatchdogConfig struct {
	StaleThreshold time.Duration `mapstructure:"stale_threshold"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Name           string `mapstructure:"name"`
	SSLMode        string `mapstructure:"sslmode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the database connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// NATSConfig holds NATS configuration for the live progress channel.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// StorageConfig holds document object-store configuration.
type StorageConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ParserConfig holds parsing-backend configuration.
type ParserConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// OpenAIConfig holds embedding and analysis backend configuration.
type OpenAIConfig struct {
	APIKey             string `mapstructure:"api_key"`
	EmbeddingModel     string `mapstructure:"embedding_model"`
	EmbeddingDimension int    `mapstructure:"embedding_dimension"`
	AnalysisModel      string `mapstructure:"analysis_model"`
	MaxBatchSize       int    `mapstructure:"max_batch_size"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ClassifierRulesFile is the optional YAML file with operator classification
// rule overrides, resolved relative to the working directory.
const ClassifierRulesFile = "configs/classifier_rules.yaml"

// New creates a new Config instance from Viper.
func New(v *viper.Viper) *Config {
	var config Config

	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}

	if err := config.Validate(); err != nil {
		panic(fmt.Errorf("invalid configuration: %w", err))
	}

	return &config
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.Name == "" {
		return errors.New("database.name is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return errors.New("database.port must be between 1 and 65535")
	}

	if c.Worker.Concurrency < 1 {
		return errors.New("worker.concurrency must be at least 1")
	}
	if c.Worker.PollInterval <= 0 {
		return errors.New("worker.poll_interval must be positive")
	}

	if c.Retry.MaxAttempts < 0 {
		return errors.New("retry.max_attempts cannot be negative")
	}
	if c.Retry.BaseDelay <= 0 {
		return errors.New("retry.base_delay must be positive")
	}

	if c.Watchdog.StaleThreshold <= 0 {
		return errors.New("watchdog.stale_threshold must be positive")
	}
	if c.Watchdog.SweepInterval <= 0 {
		return errors.New("watchdog.sweep_interval must be positive")
	}

	return c.validatePipeline()
}

func (c *Config) validatePipeline() error {
	p := c.Pipeline
	for name, d := range map[string]time.Duration{
		"pipeline.download_timeout": p.DownloadTimeout,
		"pipeline.parse_timeout":    p.ParseTimeout,
		"pipeline.chunk_timeout":    p.ChunkTimeout,
		"pipeline.embed_timeout":    p.EmbedTimeout,
		"pipeline.analyze_timeout":  p.AnalyzeTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if p.SafetyReserve < 0 || p.SafetyReserve >= 1 {
		return errors.New("pipeline.safety_reserve must be in [0, 1)")
	}
	if p.HardLimit <= 0 {
		return errors.New("pipeline.hard_limit must be positive")
	}
	if p.StageBudget() > p.UsableLimit() {
		return fmt.Errorf(
			"pipeline stage budget %s exceeds usable limit %s (hard limit %s minus %.0f%% reserve)",
			p.StageBudget(), p.UsableLimit(), p.HardLimit, p.SafetyReserve*100,
		)
	}

	return nil
}
