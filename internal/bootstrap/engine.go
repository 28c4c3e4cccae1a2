package bootstrap

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"docqa/internal/ai"
	"docqa/internal/app"
	"docqa/internal/cache"
	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/extract"
	"docqa/internal/rawtext"
	"docqa/internal/vectorindex"
)

// Engine is the document pipeline without the HTTP, MySQL and queue layers.
// The CLI runs on it directly.
type Engine struct {
	RAG   *app.RAGService
	Chat  *app.ChatService
	Index *vectorindex.Index
	LLM   *ai.OpenAICompatibleClient

	embedder vectorindex.Embedder
}

// NewEngine builds the pipeline. redisCli may be nil, in which case raw text
// is read straight from disk.
func NewEngine(cfg *config.Config, redisCli *redis.Client, logger *zap.Logger) (*Engine, error) {
	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return nil, err
	}

	index, err := vectorindex.Open(filepath.Join(cfg.RAG.DataDir, "index"), embedder, logger)
	if err != nil {
		closeEmbedder(embedder)
		return nil, fmt.Errorf("open vector index failed: %w", err)
	}

	fileStore, err := rawtext.NewFileStore(filepath.Join(cfg.RAG.DataDir, "raw_text"), logger)
	if err != nil {
		closeEmbedder(embedder)
		return nil, fmt.Errorf("open raw text store failed: %w", err)
	}
	var store rawtext.Store = fileStore
	if redisCli != nil {
		ttl := time.Duration(cfg.Redis.RawTextTTLSeconds) * time.Second
		store = rawtext.NewCachedStore(fileStore, cache.NewRawTextCache(redisCli, ttl), logger)
	}

	extractor := extract.New(
		extract.NewPdftoppm(cfg.RAG.PdftoppmPath),
		extract.NewTesseract(cfg.RAG.TesseractPath, cfg.RAG.OCRLang),
		extract.Options{MinChars: cfg.RAG.OCRMinChars, Scale: cfg.RAG.RasterScale},
		logger,
	)

	llm := ai.NewOpenAICompatibleClient(ai.ChatConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})

	classifier := app.NewIntentClassifier(app.DefaultIntentRules(
		cfg.Intent.FullDocumentPhrases,
		cfg.Intent.QuestionExtractionPhrases,
	))
	composer := app.NewComposer(index, store, llm, classifier, app.ComposerOptions{
		TopK:            cfg.RAG.TopK,
		MaxContextChars: cfg.RAG.MaxContextChars,
	}, logger)

	ragService := app.NewRAGService(
		extractor,
		store,
		chunker.New(chunker.WithChunkSize(cfg.RAG.ChunkSize), chunker.WithOverlap(cfg.RAG.ChunkOverlap)),
		index,
		composer,
		logger,
	)

	return &Engine{
		RAG:      ragService,
		Chat:     app.NewChatService(ragService, llm, logger),
		Index:    index,
		LLM:      llm,
		embedder: embedder,
	}, nil
}

func (e *Engine) Close() error {
	return closeEmbedder(e.embedder)
}

func newEmbedder(cfg config.EmbeddingConfig) (vectorindex.Embedder, error) {
	switch cfg.Provider {
	case "fastembed":
		e, err := ai.NewFastEmbedder(ai.FastEmbedConfig{
			Model:       cfg.Model,
			CacheDir:    cfg.CacheDir,
			BatchSize:   cfg.BatchSize,
			ONNXLibPath: cfg.ONNXLibPath,
		})
		if err != nil {
			return nil, fmt.Errorf("init fastembed failed: %w", err)
		}
		return e, nil
	case "openai":
		return ai.NewOpenAIEmbedder(ai.EmbeddingConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BatchSize: cfg.BatchSize,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func closeEmbedder(e vectorindex.Embedder) error {
	if c, ok := e.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
