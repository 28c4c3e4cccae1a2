package rawtext

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"docqa/internal/logging"
	"docqa/internal/model"
)

// PageCache is a best-effort cache in front of a Store.
type PageCache interface {
	GetPages(ctx context.Context, fileID string) ([]model.Page, bool, error)
	SetPages(ctx context.Context, fileID string, pages []model.Page) error
	DeletePages(ctx context.Context, fileID string) error
}

// CachedStore reads through cache and invalidates it on every write. Cache
// failures are logged and never surface; the backing store stays
// authoritative.
type CachedStore struct {
	store  Store
	cache  PageCache
	logger *zap.Logger

	// writes counts Save and Delete calls; a Load that overlaps one drops
	// the entry it just filled, which may hold pages read before the write.
	writes atomic.Uint64
}

func NewCachedStore(store Store, cache PageCache, logger *zap.Logger) *CachedStore {
	return &CachedStore{store: store, cache: cache, logger: logging.OrNop(logger)}
}

func (s *CachedStore) Save(ctx context.Context, fileID string, pages []string) error {
	if err := s.store.Save(ctx, fileID, pages); err != nil {
		return err
	}
	s.writes.Add(1)
	s.invalidate(ctx, fileID)
	return nil
}

func (s *CachedStore) Load(ctx context.Context, fileID string) ([]model.Page, error) {
	pages, ok, err := s.cache.GetPages(ctx, fileID)
	if err != nil {
		s.logger.Warn("raw text cache read failed", zap.String("file_id", fileID), zap.Error(err))
	} else if ok {
		return pages, nil
	}

	seen := s.writes.Load()
	pages, err = s.store.Load(ctx, fileID)
	if err != nil || len(pages) == 0 {
		return pages, err
	}
	if err := s.cache.SetPages(ctx, fileID, pages); err != nil {
		s.logger.Warn("raw text cache write failed", zap.String("file_id", fileID), zap.Error(err))
	} else if s.writes.Load() != seen {
		s.invalidate(ctx, fileID)
	}
	return pages, nil
}

func (s *CachedStore) Delete(ctx context.Context, fileID string) (bool, error) {
	deleted, err := s.store.Delete(ctx, fileID)
	s.writes.Add(1)
	s.invalidate(ctx, fileID)
	return deleted, err
}

func (s *CachedStore) invalidate(ctx context.Context, fileID string) {
	if err := s.cache.DeletePages(ctx, fileID); err != nil {
		s.logger.Warn("raw text cache invalidation failed", zap.String("file_id", fileID), zap.Error(err))
	}
}
