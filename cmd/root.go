// Package cmd provides the command-line interface for the documine services.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"documine/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "documine",
	Short: "Document processing pipeline for insurance documents",
	Long: `docuMINE processes uploaded insurance documents through an asynchronous
pipeline: download, parse, chunk, embed, and analyze.

The system provides:
- An HTTP API for document registration, status, retry, and live progress
- A pull-based worker pool claiming jobs from PostgreSQL
- Automatic retry with exponential backoff for transient failures
- Stale-job recovery after worker crashes
- Vector storage with PostgreSQL/pgvector for downstream search`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json, text)")

	if err := viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-level flag: %v\n", err)
	}
	if err := viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-format flag: %v\n", err)
	}

	rootCmd.AddCommand(newAPICmd())
	rootCmd.AddCommand(newWorkerCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	v := viper.New()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DOCUMINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
		// Config file not found; use defaults and environment
	}

	cfg = config.New(v)
}

func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", "8080")
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "0s")

	// Worker defaults
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.poll_interval", "2s")

	// Pipeline stage budgets must fit under the hard limit minus the
	// safety reserve; config validation enforces it at startup.
	v.SetDefault("pipeline.download_timeout", "1m")
	v.SetDefault("pipeline.parse_timeout", "5m")
	v.SetDefault("pipeline.chunk_timeout", "1m")
	v.SetDefault("pipeline.embed_timeout", "3m")
	v.SetDefault("pipeline.analyze_timeout", "2m")
	v.SetDefault("pipeline.hard_limit", "15m")
	v.SetDefault("pipeline.safety_reserve", 0.1)

	// Retry defaults
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "2s")
	v.SetDefault("retry.max_delay", "5m")

	// Watchdog defaults
	v.SetDefault("watchdog.stale_threshold", "10m")
	v.SetDefault("watchdog.sweep_interval", "1m")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "documine")
	v.SetDefault("database.name", "documine")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_connections", 25)

	// NATS defaults
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 5)
	v.SetDefault("nats.reconnect_wait", "2s")

	// Storage defaults
	v.SetDefault("storage.base_url", "http://localhost:9000/documents")
	v.SetDefault("storage.timeout", "30s")

	// Parser defaults
	v.SetDefault("parser.base_url", "http://localhost:8200")
	v.SetDefault("parser.timeout", "5m")

	// OpenAI defaults
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.embedding_dimension", 1536)
	v.SetDefault("openai.analysis_model", "gpt-4o-mini")
	v.SetDefault("openai.max_batch_size", 64)

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return cfg
}
