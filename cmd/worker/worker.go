package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam-tutor-platform/internal/ai"
	"exam-tutor-platform/internal/config"
	"exam-tutor-platform/internal/logger"
	"exam-tutor-platform/internal/queue"
	"exam-tutor-platform/internal/telemetry"
	"exam-tutor-platform/internal/watcher"
	"exam-tutor-platform/services"

	"github.com/go-co-op/gocron"
	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Model provider client (embeddings for ingestion)
	aiClient, err := ai.NewClient(context.Background(), cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize model client:", err)
	}
	defer aiClient.Close()

	// Vector index shared with the API through the persisted artifacts
	index := services.NewVectorIndex(aiClient, cfg.VectorIndexPath, cfg.EmbedBatchSize, metrics)
	loader := services.NewKnowledgeBaseLoader(index)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	// Register task handlers
	processor := queue.NewTaskProcessor(loader)
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestFile, processor.IngestFile)
	mux.HandleFunc(queue.TaskReloadKB, processor.ReloadKnowledgeBase)

	// Watch the knowledge base directory and queue ingests on change
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	kbWatcher, err := watcher.New(asynqClient, cfg.KnowledgeBaseDir)
	if err != nil {
		log.Fatal("Failed to initialize knowledge base watcher:", err)
	}
	go func() {
		if err := kbWatcher.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("knowledge base watcher stopped", "error", err)
		}
	}()
	defer kbWatcher.Stop()

	// Periodic index stats for operators
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.Every(15 * time.Minute).Do(func() {
		stats := index.Stats()
		logger.Info("index stats",
			"documents", stats.TotalDocuments,
			"dimension", stats.Dimension,
			"subjects", stats.Subjects)
	})
	scheduler.StartAsync()
	defer scheduler.Stop()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down worker...")
		cancel()
		server.Shutdown()
	}()

	log.Println("Starting ingest worker...")
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
