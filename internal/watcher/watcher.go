// Package watcher monitors the knowledge base directory and enqueues
// ingestion tasks when source files appear or change.
package watcher

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/hibiken/asynq"

	"exam-tutor-platform/internal/logger"
	"exam-tutor-platform/internal/queue"
)

var watchedExtensions = []string{".json", ".pdf"}

// KBWatcher watches every category directory under the knowledge base
// root. fsnotify does not recurse, so subdirectories are registered
// individually, including ones created while watching.
type KBWatcher struct {
	watcher *fsnotify.Watcher
	client  *asynq.Client
	root    string
}

func New(client *asynq.Client, root string) (*KBWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &KBWatcher{watcher: w, client: client, root: root}, nil
}

// Run watches until ctx is canceled.
func (w *KBWatcher) Run(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	logger.Info("watching knowledge base", "root", w.root)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("knowledge base watch error", "error", err)
		}
	}
}

func (w *KBWatcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			if err := w.watcher.Add(event.Name); err != nil {
				logger.Error("failed to watch new directory", "dir", event.Name, "error", err)
			}
		}
		return
	}

	if !isWatchedExtension(event.Name) {
		return
	}

	task, err := queue.NewIngestFileTask(event.Name)
	if err != nil {
		logger.Error("failed to build ingest task", "path", event.Name, "error", err)
		return
	}
	if _, err := w.client.Enqueue(task); err != nil {
		logger.Error("failed to enqueue ingest task", "path", event.Name, "error", err)
		return
	}
	logger.Info("queued knowledge base ingest", "path", event.Name)
}

func (w *KBWatcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

// Stop closes the underlying watcher.
func (w *KBWatcher) Stop() error {
	return w.watcher.Close()
}

func isWatchedExtension(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range watchedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
