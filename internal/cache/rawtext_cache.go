package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"docqa/internal/model"
)

// RawTextCache keeps decoded raw text records in redis for the full-document
// and text-preview paths.
type RawTextCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewRawTextCache(client *redisv9.Client, ttl time.Duration) *RawTextCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RawTextCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *RawTextCache) GetPages(ctx context.Context, fileID string) ([]model.Page, bool, error) {
	raw, err := c.client.Get(ctx, c.key(fileID)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get raw text failed: %w", err)
	}

	var pages []model.Page
	if err := json.Unmarshal([]byte(raw), &pages); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached raw text failed: %w", err)
	}
	return pages, true, nil
}

func (c *RawTextCache) SetPages(ctx context.Context, fileID string, pages []model.Page) error {
	payload, err := json.Marshal(pages)
	if err != nil {
		return fmt.Errorf("marshal raw text cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(fileID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set raw text failed: %w", err)
	}
	return nil
}

func (c *RawTextCache) DeletePages(ctx context.Context, fileID string) error {
	if err := c.client.Del(ctx, c.key(fileID)).Err(); err != nil {
		return fmt.Errorf("redis delete raw text failed: %w", err)
	}
	return nil
}

func (c *RawTextCache) key(fileID string) string {
	return fmt.Sprintf("rag:raw_text:%s", fileID)
}
