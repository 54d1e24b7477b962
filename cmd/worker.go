package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"documine/internal/adapter/outbound/chunking"
	"documine/internal/adapter/outbound/docparse"
	"documine/internal/adapter/outbound/messaging"
	openaiadapter "documine/internal/adapter/outbound/openai"
	"documine/internal/adapter/outbound/repository"
	"documine/internal/adapter/outbound/storage"
	"documine/internal/application/common/slogger"
	"documine/internal/application/worker"
	"documine/internal/config"
	"documine/internal/domain/classify"
	"documine/internal/port/outbound"

	"github.com/spf13/cobra"
)

// newWorkerCmd creates and returns the worker command.
func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Start the background worker service",
		Long: `Start the background worker service that claims processing jobs from
PostgreSQL and runs them through the document pipeline.

The worker service:
- Polls for pending jobs and claims them atomically
- Downloads, parses, chunks, embeds, and analyzes each document
- Publishes progress to the database and the live NATS channel
- Retries transient failures with exponential backoff
- Reaps jobs orphaned by crashed workers`,
		Run: func(_ *cobra.Command, _ []string) {
			runWorkerService()
		},
	}
}

func runWorkerService() {
	cfg := GetConfig()
	setupLogging(cfg)
	defer setupMetrics("documine-worker")()

	slogger.InfoNoCtx("Starting worker service", slogger.Fields{
		"concurrency":   cfg.Worker.Concurrency,
		"poll_interval": cfg.Worker.PollInterval.String(),
	})

	pool, err := repository.NewDatabaseConnection(databaseConfig(cfg))
	if err != nil {
		slogger.ErrorNoCtx("Failed to connect to database", slogger.Fields{"error": err.Error()})
		os.Exit(1)
	}
	defer pool.Close()

	documents := repository.NewPostgreSQLDocumentRepository(pool)
	jobs := repository.NewPostgreSQLJobRepository(pool)
	chunks := repository.NewPostgreSQLChunkRepository(pool)

	var notifier outbound.ProgressNotifier
	natsNotifier, err := messaging.NewNATSProgressNotifier(cfg.NATS)
	if err != nil {
		slogger.WarnNoCtx("NATS unavailable, progress persists without live push", slogger.Fields{
			"error": err.Error(),
		})
	} else {
		defer natsNotifier.Close()
		notifier = natsNotifier
	}

	classifier := loadClassifier()
	publisher := worker.NewProgressPublisher(jobs, notifier, classifier)

	chunker, err := chunking.NewMarkdownChunker()
	if err != nil {
		slogger.ErrorNoCtx("Failed to initialize chunker", slogger.Fields{"error": err.Error()})
		os.Exit(1)
	}

	analyzer, err := openaiadapter.NewAnalyzer(cfg.OpenAI.APIKey, cfg.OpenAI.AnalysisModel)
	if err != nil {
		slogger.ErrorNoCtx("Failed to initialize analyzer", slogger.Fields{"error": err.Error()})
		os.Exit(1)
	}

	pipeline := worker.NewPipeline(worker.PipelineDeps{
		Storage: storage.NewClient(cfg.Storage.BaseURL, cfg.Storage.Timeout, storage.WithToken(cfg.Storage.Token)),
		Parser:  docparse.NewClient(cfg.Parser.BaseURL, cfg.Parser.Timeout),
		Chunker: chunker,
		Embedder: openaiadapter.NewEmbedder(cfg.OpenAI.APIKey,
			openaiadapter.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openaiadapter.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension)),
		Analyzer:  analyzer,
		Chunks:    chunks,
		Publisher: publisher,
		Timeouts: worker.StageTimeouts{
			Download: cfg.Pipeline.DownloadTimeout,
			Parse:    cfg.Pipeline.ParseTimeout,
			Chunk:    cfg.Pipeline.ChunkTimeout,
			Embed:    cfg.Pipeline.EmbedTimeout,
			Analyze:  cfg.Pipeline.AnalyzeTimeout,
		},
		EmbedBatchSize: cfg.OpenAI.MaxBatchSize,
	})

	scheduler := worker.NewScheduler(worker.SchedulerDeps{
		Jobs:         jobs,
		Documents:    documents,
		Pipeline:     pipeline,
		Publisher:    publisher,
		Classifier:   classifier,
		RetryPolicy:  worker.NewRetryPolicy(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay, cfg.Retry.MaxDelay),
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
	})

	watchdog := worker.NewWatchdog(jobs, documents, publisher,
		cfg.Watchdog.StaleThreshold, cfg.Watchdog.SweepInterval)

	ctx := context.Background()
	scheduler.Start(ctx)
	watchdog.Start(ctx)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	slogger.InfoNoCtx("Shutting down worker service", nil)
	watchdog.Stop()
	scheduler.Stop()
}

// loadClassifier builds the error classifier, applying operator rule
// overrides from the optional YAML file.
func loadClassifier() *classify.Classifier {
	data, err := os.ReadFile(config.ClassifierRulesFile)
	if err != nil {
		if !os.IsNotExist(err) {
			slogger.WarnNoCtx("Failed to read classifier rules, using defaults", slogger.Fields{
				"file":  config.ClassifierRulesFile,
				"error": err.Error(),
			})
		}
		return classify.NewDefaultClassifier()
	}

	classifier, err := classify.NewClassifierWithOverrides(data)
	if err != nil {
		slogger.WarnNoCtx("Invalid classifier rules, using defaults", slogger.Fields{
			"file":  config.ClassifierRulesFile,
			"error": err.Error(),
		})
		return classify.NewDefaultClassifier()
	}

	slogger.InfoNoCtx("Loaded classifier rule overrides", slogger.Fields{
		"file": config.ClassifierRulesFile,
	})
	return classifier
}
