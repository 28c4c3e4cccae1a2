package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docqa/internal/logging"
	"docqa/internal/model"
)

type FileRepository interface {
	Create(rec *model.FileRecord) error
	List() ([]model.FileRecord, error)
	GetByID(id string) (*model.FileRecord, error)
	UpdateStatus(id, status, errText string) error
	DeleteByID(id string) error
}

type IngestPublisher interface {
	PublishIngest(ctx context.Context, job model.IngestJob) error
}

// DocumentEngine is the subset of RAGService the file layer drives.
type DocumentEngine interface {
	Ingest(ctx context.Context, fileID, path string) (*IngestResult, error)
	Delete(ctx context.Context, fileID string) bool
	GetRawText(ctx context.Context, fileID string) ([]model.Page, error)
}

type UploadInput struct {
	Name     string
	MimeType string
	Content  io.Reader
}

// FileService owns uploads. It is the only place a file_id is minted.
type FileService struct {
	repo      FileRepository
	engine    DocumentEngine
	publisher IngestPublisher
	uploadDir string
	logger    *zap.Logger
}

// NewFileService ingests synchronously when publisher is nil.
func NewFileService(repo FileRepository, engine DocumentEngine, publisher IngestPublisher, uploadDir string, logger *zap.Logger) (*FileService, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir failed: %w", err)
	}
	return &FileService{
		repo:      repo,
		engine:    engine,
		publisher: publisher,
		uploadDir: uploadDir,
		logger:    logging.OrNop(logger),
	}, nil
}

// Upload stores the content under a fresh file_id and ingests it. An
// ingestion failure is recorded on the returned record, not returned.
func (s *FileService) Upload(ctx context.Context, input UploadInput) (*model.FileRecord, error) {
	if input.Content == nil {
		return nil, ErrInvalidInput
	}
	name := SanitizeFilename(input.Name)
	if name == "" {
		return nil, ErrInvalidInput
	}

	fileID := uuid.NewString()
	path := filepath.Join(s.uploadDir, fileID+"_"+name)
	if err := saveUpload(path, input.Content); err != nil {
		return nil, err
	}

	mimeType := input.MimeType
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(name))
	}
	rec := &model.FileRecord{
		ID:       fileID,
		Name:     name,
		MimeType: mimeType,
		Path:     path,
		Status:   model.FileStatusUploaded,
	}
	if err := s.repo.Create(rec); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	s.logger.Info("file uploaded", zap.String("file_id", fileID), zap.String("name", name))

	if s.publisher != nil {
		if err := s.publisher.PublishIngest(ctx, model.IngestJob{FileID: fileID, FilePath: path}); err != nil {
			s.markFailed(rec, err)
		}
		return rec, nil
	}

	if err := s.ProcessIngest(ctx, fileID, path); err != nil {
		if ctx.Err() != nil {
			return rec, nil
		}
		rec.Status = model.FileStatusFailed
		rec.Error = err.Error()
		return rec, nil
	}
	rec.Status = model.FileStatusIndexed
	return rec, nil
}

// ProcessIngest runs the engine for an uploaded file and records the outcome
// on its metadata row. A run interrupted by ctx is not a failure: partial
// artifacts are dropped and the row stays uploaded so the job can be retried.
func (s *FileService) ProcessIngest(ctx context.Context, fileID, path string) error {
	_, ingestErr := s.engine.Ingest(ctx, fileID, path)
	if ingestErr != nil && ctx.Err() != nil {
		s.engine.Delete(context.WithoutCancel(ctx), fileID)
		s.logger.Warn("ingest interrupted", zap.String("file_id", fileID), zap.Error(ingestErr))
		return ingestErr
	}
	status, errText := model.FileStatusIndexed, ""
	if ingestErr != nil {
		status, errText = model.FileStatusFailed, ingestErr.Error()
	}
	if err := s.repo.UpdateStatus(fileID, status, errText); err != nil {
		s.logger.Error("update file status failed", zap.String("file_id", fileID), zap.Error(err))
	}
	return ingestErr
}

func (s *FileService) List() ([]model.FileRecord, error) {
	return s.repo.List()
}

func (s *FileService) Get(id string) (*model.FileRecord, error) {
	rec, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrFileNotFound
	}
	return rec, nil
}

// Text returns the extracted pages of a file; empty when nothing was
// extracted.
func (s *FileService) Text(ctx context.Context, id string) ([]model.Page, error) {
	return s.engine.GetRawText(ctx, id)
}

// Delete removes the metadata row, the uploaded file, and every derived
// artifact. Cleanup of the derived artifacts is best effort.
func (s *FileService) Delete(ctx context.Context, id string) error {
	rec, err := s.Get(id)
	if err != nil {
		return err
	}

	removed := s.engine.Delete(ctx, id)
	if err := os.Remove(rec.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("remove uploaded file failed", zap.String("file_id", id), zap.String("path", rec.Path), zap.Error(err))
	}
	if err := s.repo.DeleteByID(id); err != nil {
		return err
	}
	s.logger.Info("file deleted", zap.String("file_id", id), zap.Bool("artifacts_removed", removed))
	return nil
}

func (s *FileService) markFailed(rec *model.FileRecord, cause error) {
	s.logger.Error("enqueue ingest failed", zap.String("file_id", rec.ID), zap.Error(cause))
	rec.Status = model.FileStatusFailed
	rec.Error = cause.Error()
	if err := s.repo.UpdateStatus(rec.ID, rec.Status, rec.Error); err != nil {
		s.logger.Error("update file status failed", zap.String("file_id", rec.ID), zap.Error(err))
	}
}

func saveUpload(path string, content io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create upload file failed: %w", err)
	}
	if _, err := io.Copy(f, content); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write upload file failed: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("close upload file failed: %w", err)
	}
	return nil
}

// SanitizeFilename keeps the base name, turns spaces into underscores and
// drops anything else outside [A-Za-z0-9._-].
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, name)
	return strings.TrimLeft(name, ".")
}
