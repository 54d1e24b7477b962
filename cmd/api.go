package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"documine/internal/adapter/inbound/api"
	"documine/internal/adapter/outbound/messaging"
	"documine/internal/adapter/outbound/repository"
	"documine/internal/application/common/slogger"
	"documine/internal/application/service"
	"documine/internal/config"
	"documine/internal/port/outbound"
	"documine/internal/telemetry"
	"documine/internal/version"

	"github.com/spf13/cobra"
)

// newAPICmd creates and returns the api command.
func newAPICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server for document registration, status reads,
operator retries, queue summaries, and live progress streaming over SSE.`,
		Run: func(_ *cobra.Command, _ []string) {
			runAPIServer()
		},
	}
}

func runAPIServer() {
	cfg := GetConfig()
	setupLogging(cfg)
	defer setupMetrics("documine-api")()

	pool, err := repository.NewDatabaseConnection(databaseConfig(cfg))
	if err != nil {
		slogger.ErrorNoCtx("Failed to connect to database", slogger.Fields{"error": err.Error()})
		os.Exit(1)
	}
	defer pool.Close()

	documents := repository.NewPostgreSQLDocumentRepository(pool)
	jobs := repository.NewPostgreSQLJobRepository(pool)

	// The live channel is a UI nicety; without it the API still serves
	// snapshots, so a NATS outage only degrades streaming.
	var notifier outbound.ProgressNotifier
	pingers := map[string]service.Pinger{
		"database": repository.NewPoolPinger(pool),
	}
	natsNotifier, err := messaging.NewNATSProgressNotifier(cfg.NATS)
	if err != nil {
		slogger.WarnNoCtx("NATS unavailable, progress streaming degrades to snapshots", slogger.Fields{
			"error": err.Error(),
		})
	} else {
		defer natsNotifier.Close()
		notifier = natsNotifier
		pingers["nats"] = natsNotifier
	}

	classifier := loadClassifier()
	documentService := service.NewDocumentService(documents, jobs, notifier, classifier)
	healthService := service.NewHealthService(version.Short(), pingers)

	server := api.NewServer(cfg, api.ServerDeps{
		Health:   healthService,
		Document: documentService,
		Progress: documentService,
	})

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-shutdown
		slogger.InfoNoCtx("Shutting down API server", nil)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slogger.ErrorNoCtx("API server shutdown failed", slogger.Fields{"error": err.Error()})
		}
	}()

	if err := server.Start(); err != nil {
		slogger.ErrorNoCtx("API server failed", slogger.Fields{"error": err.Error()})
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) {
	level := strings.ToUpper(cfg.Log.Level)
	slogger.SetGlobalLogger(slogger.New(os.Stdout, level))
}

// setupMetrics installs the global meter provider and returns its shutdown
// hook.
func setupMetrics(serviceName string) func() {
	provider, err := telemetry.SetupMetrics(serviceName, version.Short())
	if err != nil {
		slogger.WarnNoCtx("Failed to set up metrics, instruments are no-ops", slogger.Fields{
			"error": err.Error(),
		})
		return func() {}
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			slogger.WarnNoCtx("Meter provider shutdown failed", slogger.Fields{"error": err.Error()})
		}
	}
}

func databaseConfig(cfg *config.Config) repository.DatabaseConfig {
	return repository.DatabaseConfig{
		Host:           cfg.Database.Host,
		Port:           cfg.Database.Port,
		Database:       cfg.Database.Name,
		Username:       cfg.Database.User,
		Password:       cfg.Database.Password,
		SSLMode:        cfg.Database.SSLMode,
		MaxConnections: cfg.Database.MaxConnections,
	}
}
