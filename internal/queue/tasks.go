package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"exam-tutor-platform/internal/logger"
	"exam-tutor-platform/services"
)

const (
	TaskIngestFile = "kb:ingest_file"
	TaskReloadKB   = "kb:reload"
)

type IngestFilePayload struct {
	Path string `json:"path"`
}

type ReloadKBPayload struct {
	Root string `json:"root"`
}

// Task creators

// NewIngestFileTask ingests one knowledge base file. Queued by the
// directory watcher when a file appears or changes.
func NewIngestFileTask(path string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestFilePayload{Path: path})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestFile,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("default"),
	), nil
}

// NewReloadKBTask re-ingests the whole knowledge base directory.
func NewReloadKBTask(root string) (*asynq.Task, error) {
	payload, err := json.Marshal(ReloadKBPayload{Root: root})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskReloadKB,
		payload,
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("low"),
	), nil
}

// Task handlers
type TaskProcessor struct {
	loader *services.KnowledgeBaseLoader
}

func NewTaskProcessor(loader *services.KnowledgeBaseLoader) *TaskProcessor {
	return &TaskProcessor{loader: loader}
}

func (p *TaskProcessor) IngestFile(ctx context.Context, t *asynq.Task) error {
	var payload IngestFilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	n, err := p.loader.LoadFile(ctx, payload.Path)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", payload.Path, err)
	}

	logger.Info("knowledge base file ingested", "path", payload.Path, "documents", n)
	return nil
}

func (p *TaskProcessor) ReloadKnowledgeBase(ctx context.Context, t *asynq.Task) error {
	var payload ReloadKBPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	n, err := p.loader.ReloadDirectory(ctx, payload.Root)
	if err != nil {
		return fmt.Errorf("reloading knowledge base: %w", err)
	}

	logger.Info("knowledge base reloaded", "root", payload.Root, "documents", n)
	return nil
}
