package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"exam-tutor-platform/internal/logger"
	"exam-tutor-platform/internal/telemetry"
	"exam-tutor-platform/models"
)

// Embedder turns a batch of texts into one embedding vector per text.
// All vectors in a response share the same dimension, but the provider
// may change that dimension between calls when the underlying model
// changes.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

const defaultEmbedBatchSize = 32

// record is one indexed passage. Vector always has the index's current
// dimension.
type record struct {
	Vector []float32
	Text   string
	Meta   models.DocumentMeta
}

// VectorIndex is an in-memory brute force vector store with metadata
// filtering. The embedding dimension is fixed by the first vector the
// embedder returns; if the embedder later switches dimensions, the
// whole index is re-embedded so that stored vectors and query vectors
// stay comparable.
type VectorIndex struct {
	mu        sync.RWMutex
	records   []record
	dimension int
	embedder  Embedder
	batchSize int
	storePath string
	metrics   *telemetry.Metrics
}

// NewVectorIndex creates an empty index. storePath may be empty to
// disable persistence. If storePath points at a previously saved index,
// it is loaded; a missing or partially written save starts fresh.
func NewVectorIndex(embedder Embedder, storePath string, batchSize int, metrics *telemetry.Metrics) *VectorIndex {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	idx := &VectorIndex{
		embedder:  embedder,
		batchSize: batchSize,
		storePath: storePath,
		metrics:   metrics,
	}
	if storePath != "" {
		if err := idx.load(); err != nil {
			logger.Warn("vector index load failed, starting empty", "path", storePath, "error", err)
		}
	}
	return idx
}

// Size returns the number of indexed documents.
func (v *VectorIndex) Size() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.records)
}

// Dimension returns the current embedding dimension, 0 when empty.
func (v *VectorIndex) Dimension() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.dimension
}

// Add embeds the documents in batches and appends them to the index.
// Nothing is appended when embedding fails partway or returns vectors
// of the wrong dimension.
func (v *VectorIndex) Add(ctx context.Context, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	var vectors [][]float32
	for start := 0; start < len(texts); start += v.batchSize {
		end := start + v.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := v.embedder.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			return fmt.Errorf("embedding batch starting at %d: %w", start, err)
		}
		vectors = append(vectors, batch...)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if len(vectors) > 0 {
		if err := v.adoptDimensionLocked(ctx, len(vectors[0])); err != nil {
			return err
		}
	}
	// Validate every vector before appending anything, so a ragged
	// embedding response cannot leave a partial batch behind.
	for i, vec := range vectors {
		if len(vec) != v.dimension {
			return fmt.Errorf("embedding %d has dimension %d, index has %d", i, len(vec), v.dimension)
		}
	}
	for i, vec := range vectors {
		v.records = append(v.records, record{Vector: vec, Text: docs[i].Text, Meta: docs[i].Meta})
	}

	if v.metrics != nil && len(docs) > 0 {
		v.metrics.RecordDocumentsAdded(int64(len(vectors)), docs[0].Meta.Source)
	}
	v.saveLocked()
	return nil
}

// Search embeds the query and returns up to topK filtered results,
// ordered by descending similarity. Similarity is 1/(1+d) over squared
// euclidean distance, so scores are in (0, 1].
func (v *VectorIndex) Search(ctx context.Context, query string, topK int, filter models.SearchFilter) ([]models.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	if v.Size() == 0 {
		return nil, nil
	}

	vecs, err := v.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 query embedding, got %d", len(vecs))
	}
	queryVec := vecs[0]

	v.mu.Lock()
	if err := v.adoptDimensionLocked(ctx, len(queryVec)); err != nil {
		v.mu.Unlock()
		return nil, err
	}
	v.mu.Unlock()

	v.mu.RLock()
	defer v.mu.RUnlock()
	records := v.records

	// Over-fetch so that post-filtering still fills topK.
	fetch := 2 * topK
	if fetch > len(records) {
		fetch = len(records)
	}

	type scored struct {
		idx  int
		dist float64
	}
	candidates := make([]scored, 0, len(records))
	for i := range records {
		candidates = append(candidates, scored{i, squaredDistance(queryVec, records[i].Vector)})
	}
	sort.Slice(candidates, func(a, b int) bool { return candidates[a].dist < candidates[b].dist })
	if len(candidates) > fetch {
		candidates = candidates[:fetch]
	}

	results := make([]models.SearchResult, 0, topK)
	for _, c := range candidates {
		rec := records[c.idx]
		if !matchesFilter(rec.Meta, filter) {
			continue
		}
		results = append(results, models.SearchResult{
			Text:    rec.Text,
			Score:   1.0 / (1.0 + c.dist),
			Source:  rec.Meta.Source,
			Subject: rec.Meta.Subject,
			Topics:  rec.Meta.Topics,
			Chapter: rec.Meta.Chapter,
			Page:    rec.Meta.Page,
		})
		if len(results) == topK {
			break
		}
	}

	if v.metrics != nil {
		v.metrics.RecordIndexSearch(filter.Subject, len(results))
	}
	return results, nil
}

// Clear drops every indexed document and persists the empty state.
// Documents leave the index only through a full rebuild: a knowledge
// base reload clears first, then re-ingests the directory.
func (v *VectorIndex) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.records = nil
	v.dimension = 0
	v.saveLocked()
}

// RemoveFile drops every document previously ingested from the given
// knowledge base file and returns how many were removed. The loader
// calls this before re-adding a file so changed files replace their
// earlier documents instead of stacking on top of them.
func (v *VectorIndex) RemoveFile(file string) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	kept := v.records[:0]
	for i := range v.records {
		if v.records[i].Meta.File != file {
			kept = append(kept, v.records[i])
		}
	}
	removed := len(v.records) - len(kept)
	if removed == 0 {
		return 0
	}
	v.records = kept
	v.saveLocked()
	return removed
}

// Reload replaces the in-memory contents with the persisted artifacts.
// The API serves from its own process, so after the worker rebuilds the
// index this picks up the fresh state without a restart.
func (v *VectorIndex) Reload() error {
	return v.load()
}

// IndexStats summarizes index contents for the admin surface.
type IndexStats struct {
	TotalDocuments int            `json:"total_documents"`
	Dimension      int            `json:"dimension"`
	Sources        map[string]int `json:"sources"`
	Subjects       map[string]int `json:"subjects"`
}

// Stats counts indexed documents by source and subject.
func (v *VectorIndex) Stats() IndexStats {
	v.mu.RLock()
	defer v.mu.RUnlock()

	stats := IndexStats{
		TotalDocuments: len(v.records),
		Dimension:      v.dimension,
		Sources:        make(map[string]int),
		Subjects:       make(map[string]int),
	}
	for i := range v.records {
		meta := v.records[i].Meta
		stats.Sources[meta.Source]++
		if meta.Subject != "" {
			stats.Subjects[meta.Subject]++
		}
	}
	return stats
}

// adoptDimensionLocked fixes the index dimension on first use and
// re-embeds every stored document when the embedder has moved to a new
// dimension. Callers hold the write lock.
func (v *VectorIndex) adoptDimensionLocked(ctx context.Context, dim int) error {
	if dim == 0 {
		return fmt.Errorf("embedder returned an empty vector")
	}
	if v.dimension == 0 {
		v.dimension = dim
		return nil
	}
	if v.dimension == dim {
		return nil
	}

	logger.Warn("embedding dimension changed, re-embedding index",
		"old_dimension", v.dimension, "new_dimension", dim, "documents", len(v.records))

	texts := make([]string, len(v.records))
	for i := range v.records {
		texts[i] = v.records[i].Text
	}

	fresh := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += v.batchSize {
		end := start + v.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := v.embedder.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			return fmt.Errorf("re-embedding after dimension change: %w", err)
		}
		fresh = append(fresh, batch...)
	}
	if len(fresh) != len(v.records) {
		return fmt.Errorf("re-embedding returned %d vectors for %d documents", len(fresh), len(v.records))
	}
	for i := range fresh {
		if len(fresh[i]) != dim {
			return fmt.Errorf("re-embedding produced mixed dimensions (%d and %d)", dim, len(fresh[i]))
		}
		v.records[i].Vector = fresh[i]
	}
	v.dimension = dim
	v.saveLocked()
	return nil
}

func matchesFilter(meta models.DocumentMeta, filter models.SearchFilter) bool {
	if filter.Subject != "" && meta.Subject != filter.Subject {
		return false
	}
	if len(filter.Topics) > 0 {
		found := false
		for _, want := range filter.Topics {
			for _, have := range meta.Topics {
				if want == have {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func squaredDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
