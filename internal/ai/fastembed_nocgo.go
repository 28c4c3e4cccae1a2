//go:build !cgo

package ai

import (
	"context"
	"errors"
)

// ErrFastEmbedNotAvailable is returned by binaries built with CGO_ENABLED=0.
var ErrFastEmbedNotAvailable = errors.New("fastembed: not available without cgo, use the openai embedding provider")

type FastEmbedConfig struct {
	Model       string
	CacheDir    string
	MaxLength   int
	BatchSize   int
	ONNXLibPath string
}

type FastEmbedder struct{}

func NewFastEmbedder(_ FastEmbedConfig) (*FastEmbedder, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (e *FastEmbedder) EmbedDocuments(_ context.Context, _ []string) ([][]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (e *FastEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (e *FastEmbedder) Close() error { return nil }
