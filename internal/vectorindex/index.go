// Package vectorindex is the single process-wide similarity index over every
// chunk of every ingested document.
package vectorindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"docqa/internal/logging"
	"docqa/internal/metrics"
	"docqa/internal/model"
	"docqa/internal/pkg/fsutil"
)

const (
	collectionName = "documents"
	blobFile       = "index.gob"
	manifestFile   = "index.json"
	manifestVer    = 1

	metaFileID = "file_id"
	metaPage   = "page"
)

// Embedder computes vectors for chunk texts and queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// entry mirrors one chunk held by the collection. The manifest keeps them in
// insertion order, which chromem does not expose.
type entry struct {
	ID     string `json:"id"`
	FileID string `json:"file_id"`
	Page   int    `json:"page"`
	Text   string `json:"text"`
}

type manifest struct {
	Version int     `json:"version"`
	Entries []entry `json:"entries"`
}

// Index owns the chromem collection and its on-disk form: one exported
// blob plus a JSON manifest, both rewritten after every mutation.
type Index struct {
	mu       sync.RWMutex
	dir      string
	db       *chromem.DB
	coll     *chromem.Collection
	entries  []entry
	embedder Embedder
	logger   *zap.Logger
}

// Open loads a previously persisted index from dir, or starts empty.
func Open(dir string, embedder Embedder, logger *zap.Logger) (*Index, error) {
	if embedder == nil {
		return nil, errors.New("vector index requires an embedder")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir failed: %w", err)
	}
	idx := &Index{
		dir:      dir,
		db:       chromem.NewDB(),
		embedder: embedder,
		logger:   logging.OrNop(logger),
	}

	if _, err := os.Stat(idx.blobPath()); err == nil {
		if err := idx.db.ImportFromFile(idx.blobPath(), ""); err != nil {
			return nil, fmt.Errorf("import index blob failed: %w", err)
		}
		m, err := readManifest(idx.manifestPath())
		if err != nil {
			return nil, err
		}
		idx.entries = m.Entries
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat index blob failed: %w", err)
	}

	coll, err := idx.db.GetOrCreateCollection(collectionName, nil, idx.embedFunc())
	if err != nil {
		return nil, fmt.Errorf("open collection failed: %w", err)
	}
	idx.coll = coll

	if coll.Count() != len(idx.entries) {
		idx.logger.Warn("vector index manifest out of sync with blob, rebuilding",
			zap.Int("blob_chunks", coll.Count()),
			zap.Int("manifest_chunks", len(idx.entries)),
		)
		if err := idx.rebuildManifestLocked(context.Background()); err != nil {
			idx.logger.Error("rebuild index manifest failed", zap.Error(err))
		}
	}
	metrics.IndexChunks.Set(float64(len(idx.entries)))
	idx.logger.Info("vector index loaded", zap.String("dir", dir), zap.Int("chunks", coll.Count()))
	return idx, nil
}

func (idx *Index) embedFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return idx.embedder.EmbedQuery(ctx, text)
	}
}

// Add embeds chunks and inserts them, then persists the index.
func (idx *Index) Add(ctx context.Context, chunks []model.Chunk) (err error) {
	defer func() { metrics.IndexOperations.WithLabelValues("add", metrics.Result(err)).Inc() }()
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := idx.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks failed: %w", err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(chunks))
	}

	docs := make([]chromem.Document, len(chunks))
	added := make([]entry, len(chunks))
	for i, c := range chunks {
		id := uuid.NewString()
		docs[i] = chromem.Document{
			ID:        id,
			Content:   c.Text,
			Embedding: vecs[i],
			Metadata: map[string]string{
				metaFileID: c.FileID,
				metaPage:   strconv.Itoa(c.Page),
			},
		}
		added[i] = entry{ID: id, FileID: c.FileID, Page: c.Page, Text: c.Text}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add chunks failed: %w", err)
	}
	idx.entries = append(idx.entries, added...)
	metrics.IndexChunks.Set(float64(len(idx.entries)))
	return idx.persistLocked()
}

// Query returns up to k chunks most similar to text, best first. A non-empty
// fileID restricts the search to that document.
func (idx *Index) Query(ctx context.Context, text string, k int, fileID string) (hits []model.ScoredChunk, err error) {
	defer func() { metrics.IndexOperations.WithLabelValues("query", metrics.Result(err)).Inc() }()
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	// chromem caps n at the filtered set itself
	n := min(k, idx.coll.Count())
	if n == 0 {
		return nil, nil
	}
	var where map[string]string
	if fileID != "" {
		where = map[string]string{metaFileID: fileID}
	}

	vec, err := idx.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}
	results, err := idx.coll.QueryEmbedding(ctx, vec, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query index failed: %w", err)
	}

	hits = make([]model.ScoredChunk, 0, len(results))
	for _, r := range results {
		page, _ := strconv.Atoi(r.Metadata[metaPage])
		hits = append(hits, model.ScoredChunk{
			Chunk: model.Chunk{
				Text:      r.Content,
				ChunkMeta: model.ChunkMeta{FileID: r.Metadata[metaFileID], Page: page},
			},
			Score: r.Similarity,
		})
	}
	return hits, nil
}

// Remove drops every chunk of fileID and persists the result. It reports
// false, without touching disk, when no chunk matched.
func (idx *Index) Remove(ctx context.Context, fileID string) (removed bool, err error) {
	defer func() { metrics.IndexOperations.WithLabelValues("remove", metrics.Result(err)).Inc() }()
	if fileID == "" {
		return false, nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	before := idx.coll.Count()
	if err := idx.coll.Delete(ctx, map[string]string{metaFileID: fileID}, nil); err != nil {
		return false, fmt.Errorf("delete chunks failed: %w", err)
	}
	if idx.coll.Count() == before {
		return false, nil
	}

	kept := idx.entries[:0:0]
	for _, e := range idx.entries {
		if e.FileID != fileID {
			kept = append(kept, e)
		}
	}
	idx.entries = kept
	metrics.IndexChunks.Set(float64(len(idx.entries)))
	if err := idx.persistLocked(); err != nil {
		return true, err
	}
	return true, nil
}

// Preview returns the first limit chunks in insertion order.
func (idx *Index) Preview(limit int) []model.Chunk {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if limit <= 0 || limit > len(idx.entries) {
		limit = len(idx.entries)
	}
	out := make([]model.Chunk, limit)
	for i, e := range idx.entries[:limit] {
		out[i] = model.Chunk{Text: e.Text, ChunkMeta: model.ChunkMeta{FileID: e.FileID, Page: e.Page}}
	}
	return out
}

// Count is the number of chunks held.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.coll.Count()
}

// Exists reports whether anything has been indexed yet.
func (idx *Index) Exists() bool {
	return idx.Count() > 0
}

// CountFor is the number of chunks held for fileID.
func (idx *Index) CountFor(fileID string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.countLocked(fileID)
}

func (idx *Index) countLocked(fileID string) int {
	n := 0
	for _, e := range idx.entries {
		if e.FileID == fileID {
			n++
		}
	}
	return n
}

// rebuildManifestLocked makes the manifest match the collection. Entries the
// collection still holds keep their order; chunks only the blob knows about
// are appended by file_id and page.
func (idx *Index) rebuildManifestLocked(ctx context.Context) error {
	total := idx.coll.Count()
	held := make(map[string]chromem.Result, total)
	if total > 0 {
		vec, err := idx.embedder.EmbedQuery(ctx, collectionName)
		if err != nil {
			return fmt.Errorf("embed scan query failed: %w", err)
		}
		all, err := idx.coll.QueryEmbedding(ctx, vec, total, nil, nil)
		if err != nil {
			return fmt.Errorf("scan collection failed: %w", err)
		}
		for _, r := range all {
			held[r.ID] = r
		}
	}

	rebuilt := make([]entry, 0, total)
	for _, e := range idx.entries {
		if _, ok := held[e.ID]; ok {
			rebuilt = append(rebuilt, e)
			delete(held, e.ID)
		}
	}
	orphans := make([]entry, 0, len(held))
	for id, r := range held {
		page, _ := strconv.Atoi(r.Metadata[metaPage])
		orphans = append(orphans, entry{ID: id, FileID: r.Metadata[metaFileID], Page: page, Text: r.Content})
	}
	sort.Slice(orphans, func(i, j int) bool {
		a, b := orphans[i], orphans[j]
		if a.FileID != b.FileID {
			return a.FileID < b.FileID
		}
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		return a.ID < b.ID
	})
	idx.entries = append(rebuilt, orphans...)
	metrics.IndexChunks.Set(float64(len(idx.entries)))
	return idx.writeManifestLocked()
}

func (idx *Index) persistLocked() error {
	tmp := idx.blobPath() + ".tmp"
	if err := idx.db.ExportToFile(tmp, false, ""); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("export index blob failed: %w", err)
	}
	if err := os.Rename(tmp, idx.blobPath()); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace index blob failed: %w", err)
	}

	return idx.writeManifestLocked()
}

func (idx *Index) writeManifestLocked() error {
	payload, err := json.Marshal(manifest{Version: manifestVer, Entries: idx.entries})
	if err != nil {
		return fmt.Errorf("marshal index manifest failed: %w", err)
	}
	if err := fsutil.WriteAtomic(idx.manifestPath(), payload); err != nil {
		return fmt.Errorf("write index manifest failed: %w", err)
	}
	return nil
}

func (idx *Index) blobPath() string     { return filepath.Join(idx.dir, blobFile) }
func (idx *Index) manifestPath() string { return filepath.Join(idx.dir, manifestFile) }

func readManifest(path string) (manifest, error) {
	var m manifest
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return m, fmt.Errorf("read index manifest failed: %w", err)
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("parse index manifest failed: %w", err)
	}
	return m, nil
}
