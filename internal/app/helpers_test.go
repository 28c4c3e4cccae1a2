package app

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"image"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"docqa/internal/chunker"
	"docqa/internal/model"
	"docqa/internal/rawtext"
	"docqa/internal/vectorindex"
)

type wordEmbedder struct{}

func (wordEmbedder) vector(text string) []float32 {
	v := make([]float32, 128)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		sum := sha256.Sum256([]byte(strings.Trim(w, ".,?!")))
		v[binary.BigEndian.Uint32(sum[:4])%128]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / math.Sqrt(norm))
	}
	return v
}

func (e wordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e wordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

// staticExtractor returns canned pages per path.
type staticExtractor map[string][]string

func (s staticExtractor) Extract(_ context.Context, path string) ([]string, error) {
	pages, ok := s[path]
	if !ok {
		return nil, errors.New("no such fixture: " + path)
	}
	return pages, nil
}

type llmCall struct{ system, user string }

type fakeLLM struct {
	mu     sync.Mutex
	calls  []llmCall
	answer string
	err    error
}

func (f *fakeLLM) Ask(_ context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, llmCall{system: system, user: user})
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeLLM) Calls() []llmCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llmCall(nil), f.calls...)
}

type scriptedRasterizer struct{}

func (scriptedRasterizer) Rasterize(_ context.Context, _ string, _, _ int) (image.Image, error) {
	return image.NewGray(image.Rect(0, 0, 4, 4)), nil
}

type scriptedRecognizer struct{ text string }

func (r scriptedRecognizer) Recognize(context.Context, image.Image) (string, error) {
	return r.text, nil
}

type fixture struct {
	svc   *RAGService
	store *rawtext.FileStore
	index *vectorindex.Index
	llm   *fakeLLM
}

func newFixture(t *testing.T, extractor TextExtractor) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := rawtext.NewFileStore(filepath.Join(dir, "raw_text"), nil)
	require.NoError(t, err)
	index, err := vectorindex.Open(filepath.Join(dir, "index"), wordEmbedder{}, nil)
	require.NoError(t, err)
	llm := &fakeLLM{answer: "llm says hi"}

	composer := NewComposer(index, store, llm, nil, ComposerOptions{}, nil)
	svc := NewRAGService(extractor, store, chunker.New(), index, composer, nil)
	return &fixture{svc: svc, store: store, index: index, llm: llm}
}

// chunksFor collects every indexed chunk of fileID via the preview listing.
func (f *fixture) chunksFor(fileID string) []model.Chunk {
	var out []model.Chunk
	for _, c := range f.index.Preview(0) {
		if c.FileID == fileID {
			out = append(out, c)
		}
	}
	return out
}
