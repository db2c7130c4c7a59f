package main

import (
	"context"
	"flag"
	"log"

	"exam-tutor-platform/internal/ai"
	"exam-tutor-platform/internal/config"
	"exam-tutor-platform/internal/logger"
	"exam-tutor-platform/internal/telemetry"
	"exam-tutor-platform/models"
	"exam-tutor-platform/services"
)

// Loads the knowledge base directory into the vector index and persists
// the artifacts. With --seed it first writes the bundled sample corpus.
func main() {
	seed := flag.Bool("seed", false, "create the sample knowledge base before loading")
	dir := flag.String("dir", "", "knowledge base directory (defaults to KNOWLEDGE_BASE_DIR)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	root := *dir
	if root == "" {
		root = cfg.KnowledgeBaseDir
	}

	if *seed {
		if err := services.CreateSampleKnowledgeBase(root); err != nil {
			log.Fatal("Failed to create sample knowledge base:", err)
		}
		logger.Info("sample knowledge base written", "dir", root)
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	ctx := context.Background()

	aiClient, err := ai.NewClient(ctx, cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize model client:", err)
	}
	defer aiClient.Close()

	index := services.NewVectorIndex(aiClient, cfg.VectorIndexPath, cfg.EmbedBatchSize, metrics)
	loader := services.NewKnowledgeBaseLoader(index)

	loaded, err := loader.LoadDirectory(ctx, root)
	if err != nil {
		log.Fatal("Failed to load knowledge base:", err)
	}

	stats := index.Stats()
	logger.Info("knowledge base loaded",
		"documents", loaded,
		"total", stats.TotalDocuments,
		"dimension", stats.Dimension,
		"sources", stats.Sources,
		"subjects", stats.Subjects)

	// Smoke queries against the freshly built index.
	probes := []struct {
		query   string
		subject string
	}{
		{"What is Newton's second law of motion?", "physics"},
		{"Calculate the pH of a 0.01 M HCl solution", "chemistry"},
	}
	for _, p := range probes {
		results, err := index.Search(ctx, p.query, 3, models.SearchFilter{Subject: p.subject})
		if err != nil {
			logger.Error("probe search failed", "query", p.query, "error", err)
			continue
		}
		for _, r := range results {
			logger.Info("probe result",
				"query", p.query,
				"score", r.Score,
				"source", r.Source,
				"subject", r.Subject)
		}
	}
}
