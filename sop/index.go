package sop

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	gocache "github.com/patrickmn/go-cache"
)

// DefaultTopK is the number of passages returned per search.
const DefaultTopK = 3

// Hit is one ranked search result with its citation metadata.
type Hit struct {
	Text          string  `json:"text"`
	SourceID      string  `json:"source_id"`
	SectionOrCode string  `json:"section_or_code"`
	Score         float64 `json:"score"`
}

// indexedChunk pairs a chunk with its embedding.
type indexedChunk struct {
	chunk  Chunk
	vector []float32
}

// Index is an in-memory similarity index over the SOP corpus.
//
// The index is built lazily on first search and guarded so a racing first
// use still constructs it exactly once. After construction it is read-only;
// Rebuild swaps the chunk set atomically, so concurrent searches see either
// the old corpus or the new one, never a partial mix.
type Index struct {
	embedder Embedder
	chunker  *Chunker
	logger   *slog.Logger

	mu     sync.RWMutex
	docs   []Document
	chunks []indexedChunk
	built  bool

	queryCache *gocache.Cache
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithIndexLogger sets the logger.
func WithIndexLogger(logger *slog.Logger) IndexOption {
	return func(i *Index) {
		i.logger = logger
	}
}

// WithChunker sets a custom chunker.
func WithChunker(c *Chunker) IndexOption {
	return func(i *Index) {
		i.chunker = c
	}
}

// WithQueryCacheTTL sets the TTL for cached query embeddings.
func WithQueryCacheTTL(ttl time.Duration) IndexOption {
	return func(i *Index) {
		i.queryCache = gocache.New(ttl, 2*ttl)
	}
}

// NewIndex creates an index over the given corpus. The index is not built
// until the first Search or an explicit Build.
func NewIndex(docs []Document, embedder Embedder, opts ...IndexOption) *Index {
	idx := &Index{
		embedder:   embedder,
		chunker:    NewDefaultChunker(),
		logger:     slog.Default(),
		docs:       docs,
		queryCache: gocache.New(10*time.Minute, 20*time.Minute),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Build chunks and embeds the corpus. Idempotent: a built index is not
// rebuilt (use Rebuild to force).
func (i *Index) Build(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.built {
		return nil
	}
	return i.buildLocked(ctx, i.docs)
}

// Rebuild replaces the corpus and rebuilds the index.
func (i *Index) Rebuild(ctx context.Context, docs []Document) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.docs = docs
	i.built = false
	i.queryCache.Flush()
	return i.buildLocked(ctx, docs)
}

// buildLocked does the chunk+embed work. Caller holds i.mu.
func (i *Index) buildLocked(ctx context.Context, docs []Document) error {
	start := time.Now()

	chunks := i.chunker.ChunkAll(docs)
	if len(chunks) == 0 {
		i.chunks = nil
		i.built = true
		return nil
	}

	texts := make([]string, len(chunks))
	for n, c := range chunks {
		texts[n] = c.Text
	}

	vectors, err := i.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed corpus: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	indexed := make([]indexedChunk, len(chunks))
	for n := range chunks {
		indexed[n] = indexedChunk{chunk: chunks[n], vector: vectors[n]}
	}

	i.chunks = indexed
	i.built = true

	i.logger.Info("SOP index built",
		"documents", len(docs),
		"chunks", len(chunks),
		"duration", time.Since(start))
	return nil
}

// Search returns the top-k most similar passages for the query.
// k <= 0 uses DefaultTopK. A query with no indexed corpus returns no hits.
func (i *Index) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if err := i.Build(ctx); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = DefaultTopK
	}

	qvec, err := i.embedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	hits := make([]Hit, 0, len(i.chunks))
	for _, ic := range i.chunks {
		hits = append(hits, Hit{
			Text:          ic.chunk.Text,
			SourceID:      ic.chunk.Source,
			SectionOrCode: ic.chunk.SectionOrCode,
			Score:         dot(qvec, ic.vector),
		})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// embedQuery embeds a query string, consulting the TTL cache first.
// The diagnosis loop frequently re-asks the same error code within a run.
func (i *Index) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if cached, ok := i.queryCache.Get(query); ok {
		return cached.([]float32), nil
	}

	vecs, err := i.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vecs))
	}

	i.queryCache.Set(query, vecs[0], gocache.DefaultExpiration)
	return vecs[0], nil
}

// Watch rebuilds the index whenever corpus files under dir change.
// Blocks until ctx is cancelled; run it in its own goroutine.
func (i *Index) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create corpus watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch corpus dir %s: %w", dir, err)
	}

	i.logger.Info("Watching SOP corpus directory", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}

			docs, err := LoadDir(dir)
			if err != nil {
				i.logger.Warn("Corpus reload failed, keeping previous index",
					"dir", dir, "error", err)
				continue
			}
			if err := i.Rebuild(ctx, docs); err != nil {
				i.logger.Warn("Corpus rebuild failed, keeping previous index",
					"dir", dir, "error", err)
				continue
			}
			i.logger.Info("SOP corpus reloaded", "trigger", event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			i.logger.Warn("Corpus watcher error", "error", err)
		}
	}
}

// dot computes the dot product of two unit vectors (their cosine similarity).
// Mismatched lengths score zero; that only happens if the embedder changed
// dimensionality between corpus build and query, which Rebuild prevents.
func dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for n := range a {
		sum += float64(a[n]) * float64(b[n])
	}
	return sum
}
