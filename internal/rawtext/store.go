// Package rawtext persists the page-wise extracted text of each document.
package rawtext

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"docqa/internal/logging"
	"docqa/internal/model"
	"docqa/internal/pkg/fsutil"
)

var ErrInvalidFileID = errors.New("invalid file id")

// Store is the authoritative page text per file_id.
type Store interface {
	// Save overwrites any prior record for fileID.
	Save(ctx context.Context, fileID string, pages []string) error
	// Load returns nil, nil when fileID has no record.
	Load(ctx context.Context, fileID string) ([]model.Page, error)
	// Delete reports whether a record existed.
	Delete(ctx context.Context, fileID string) (bool, error)
}

// FileStore keeps one JSON file per document: <dir>/<file_id>.json holding
// [{"page":1,"text":"..."}, ...].
type FileStore struct {
	dir    string
	mu     sync.Mutex
	logger *zap.Logger
}

func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("raw text dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create raw text dir failed: %w", err)
	}
	return &FileStore{dir: dir, logger: logging.OrNop(logger)}, nil
}

func (s *FileStore) Save(_ context.Context, fileID string, pages []string) error {
	path, err := s.path(fileID)
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(model.PagesFromTexts(pages), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal raw text failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fsutil.WriteAtomic(path, payload); err != nil {
		return fmt.Errorf("write raw text failed: %w", err)
	}
	s.logger.Info("raw text saved", zap.String("file_id", fileID), zap.Int("pages", len(pages)))
	return nil
}

func (s *FileStore) Load(_ context.Context, fileID string) ([]model.Page, error) {
	path, err := s.path(fileID)
	if err != nil {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read raw text failed: %w", err)
	}

	var pages []model.Page
	if err := json.Unmarshal(raw, &pages); err != nil {
		return nil, fmt.Errorf("parse raw text failed: %w", err)
	}
	return pages, nil
}

func (s *FileStore) Delete(_ context.Context, fileID string) (bool, error) {
	path, err := s.path(fileID)
	if err != nil {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remove raw text failed: %w", err)
	}
	s.logger.Info("raw text deleted", zap.String("file_id", fileID))
	return true, nil
}

func (s *FileStore) path(fileID string) (string, error) {
	id := strings.TrimSpace(fileID)
	if id == "" || id != filepath.Base(id) || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", ErrInvalidFileID
	}
	return filepath.Join(s.dir, id+".json"), nil
}
