//go:build cgo

package ai

import (
	"context"
	"fmt"
	"os"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedConfig selects a local ONNX embedding model.
type FastEmbedConfig struct {
	Model       string
	CacheDir    string
	MaxLength   int
	BatchSize   int
	ONNXLibPath string
}

// FastEmbedder runs embeddings in process. The default model,
// all-MiniLM-L6-v2, produces 384-dimensional vectors.
type FastEmbedder struct {
	model     *fastembed.FlagEmbedding
	batchSize int
	mu        sync.RWMutex
}

var fastEmbedModels = map[string]fastembed.EmbeddingModel{
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"all-MiniLM-L6-v2":                       fastembed.AllMiniLML6V2,
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
}

func NewFastEmbedder(cfg FastEmbedConfig) (*FastEmbedder, error) {
	model, ok := fastEmbedModels[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("unsupported fastembed model %q", cfg.Model)
	}
	if cfg.ONNXLibPath != "" {
		// onnxruntime_go reads the shared library location from ONNX_PATH.
		if err := os.Setenv("ONNX_PATH", cfg.ONNXLibPath); err != nil {
			return nil, fmt.Errorf("set ONNX_PATH failed: %w", err)
		}
	}
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = "local_cache"
	}
	maxLength := cfg.MaxLength
	if maxLength <= 0 {
		maxLength = 512
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 256
	}

	showProgress := false
	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("init fastembed failed: %w", err)
	}
	return &FastEmbedder{model: flagEmbed, batchSize: batchSize}, nil
}

func (e *FastEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	vecs, err := e.model.PassageEmbed(texts, e.batchSize)
	if err != nil {
		return nil, fmt.Errorf("fastembed passage embed failed: %w", err)
	}
	return vecs, nil
}

func (e *FastEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("embedding input is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	vec, err := e.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("fastembed query embed failed: %w", err)
	}
	return vec, nil
}

func (e *FastEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil
	}
	err := e.model.Destroy()
	e.model = nil
	return err
}
