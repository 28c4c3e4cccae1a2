package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"docqa/internal/extract"
	"docqa/internal/logging"
	"docqa/internal/metrics"
	"docqa/internal/model"
	"docqa/internal/rawtext"
)

// TextExtractor converts a source file into ordered page texts.
type TextExtractor interface {
	Extract(ctx context.Context, path string) ([]string, error)
}

// PageChunker splits a document's pages into chunks carrying file_id/page.
type PageChunker interface {
	Build(fileID string, pages []string) []model.Chunk
}

// VectorIndex is the process-wide chunk index.
type VectorIndex interface {
	Retriever
	Add(ctx context.Context, chunks []model.Chunk) error
	Remove(ctx context.Context, fileID string) (bool, error)
	Preview(limit int) []model.Chunk
	Count() int
}

type IngestResult struct {
	FileID     string `json:"file_id"`
	PageCount  int    `json:"page_count"`
	ChunkCount int    `json:"chunk_count"`
}

// RAGService ties extraction, the raw text store, chunking and the vector
// index together under one file_id.
type RAGService struct {
	extractor TextExtractor
	store     rawtext.Store
	chunker   PageChunker
	index     VectorIndex
	composer  *Composer
	logger    *zap.Logger
}

func NewRAGService(
	extractor TextExtractor,
	store rawtext.Store,
	chunker PageChunker,
	index VectorIndex,
	composer *Composer,
	logger *zap.Logger,
) *RAGService {
	return &RAGService{
		extractor: extractor,
		store:     store,
		chunker:   chunker,
		index:     index,
		composer:  composer,
		logger:    logging.OrNop(logger),
	}
}

// Ingest extracts path and stores it under fileID: raw text first, then the
// index. Nothing is written when extraction fails. Re-ingesting an id
// without deleting it first adds a second copy of its chunks; use Reingest
// to replace them.
func (s *RAGService) Ingest(ctx context.Context, fileID, path string) (*IngestResult, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" || strings.TrimSpace(path) == "" {
		return nil, ErrInvalidInput
	}
	start := time.Now()
	s.logger.Info("ingest started", zap.String("file_id", fileID), zap.String("path", path))

	result, err := s.ingest(ctx, fileID, path)
	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	switch {
	case errors.Is(err, extract.ErrNoText), errors.Is(err, extract.ErrUnsupportedFile):
		metrics.IngestTotal.WithLabelValues("extract_error").Inc()
	default:
		metrics.IngestTotal.WithLabelValues(metrics.Result(err)).Inc()
	}
	if err != nil {
		s.logger.Error("ingest failed", zap.String("file_id", fileID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("ingest completed",
		zap.String("file_id", fileID),
		zap.Int("pages", result.PageCount),
		zap.Int("chunks", result.ChunkCount),
		zap.Duration("took", time.Since(start)),
	)
	return result, nil
}

func (s *RAGService) ingest(ctx context.Context, fileID, path string) (*IngestResult, error) {
	pages, err := s.extractor.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", fileID, err)
	}

	if err := s.store.Save(ctx, fileID, pages); err != nil {
		return nil, fmt.Errorf("save raw text %s: %w", fileID, err)
	}

	chunks := s.chunker.Build(fileID, pages)
	if err := s.index.Add(ctx, chunks); err != nil {
		return nil, fmt.Errorf("index %s: %w", fileID, err)
	}
	return &IngestResult{FileID: fileID, PageCount: len(pages), ChunkCount: len(chunks)}, nil
}

// Reingest replaces everything stored for fileID with the content of path.
func (s *RAGService) Reingest(ctx context.Context, fileID, path string) (*IngestResult, error) {
	s.Delete(ctx, fileID)
	return s.Ingest(ctx, fileID, path)
}

// Delete removes the raw text and all chunks of fileID. It reports whether
// anything existed and never fails; storage errors are logged.
func (s *RAGService) Delete(ctx context.Context, fileID string) bool {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return false
	}

	rawDeleted, err := s.store.Delete(ctx, fileID)
	if err != nil {
		s.logger.Error("delete raw text failed", zap.String("file_id", fileID), zap.Error(err))
	}
	chunksDeleted, err := s.index.Remove(ctx, fileID)
	if err != nil {
		s.logger.Error("delete chunks failed", zap.String("file_id", fileID), zap.Error(err))
	}

	deleted := rawDeleted || chunksDeleted
	metrics.DeletionsTotal.WithLabelValues(fmt.Sprint(deleted)).Inc()
	s.logger.Info("document deleted",
		zap.String("file_id", fileID),
		zap.Bool("raw_text", rawDeleted),
		zap.Bool("chunks", chunksDeleted),
	)
	return deleted
}

// GetRawText returns the stored pages of fileID, empty when unknown.
func (s *RAGService) GetRawText(ctx context.Context, fileID string) ([]model.Page, error) {
	pages, err := s.store.Load(ctx, strings.TrimSpace(fileID))
	if err != nil {
		return nil, err
	}
	if pages == nil {
		pages = []model.Page{}
	}
	return pages, nil
}

func (s *RAGService) Answer(ctx context.Context, question, fileID string) (Answer, error) {
	return s.composer.Answer(ctx, question, fileID)
}

// PreviewChunks returns the first limit indexed chunks.
func (s *RAGService) PreviewChunks(limit int) []model.Chunk {
	return s.index.Preview(limit)
}

func (s *RAGService) ChunkCount() int {
	return s.index.Count()
}
