// Package chunker splits page text into overlapping fixed-size chunks.
package chunker

import (
	"strings"

	"docqa/internal/model"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

type Chunker struct {
	size    int
	overlap int
}

type Option func(*Chunker)

// WithChunkSize sets the chunk size in runes.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in runes.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

func New(opts ...Option) *Chunker {
	c := &Chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		c.overlap = c.size / 2
	}
	return c
}

// Split cuts text into windows of size runes advancing by size-overlap.
// Whitespace-only windows are dropped.
func (c *Chunker) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	step := c.size - c.overlap
	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := i + c.size
		if end > len(runes) {
			end = len(runes)
		}
		if chunk := strings.TrimSpace(string(runes[i:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Build chunks every page of a document; page numbers start at 1 and empty
// pages contribute nothing.
func (c *Chunker) Build(fileID string, pages []string) []model.Chunk {
	var out []model.Chunk
	for i, text := range pages {
		for _, piece := range c.Split(text) {
			out = append(out, model.Chunk{
				Text:      piece,
				ChunkMeta: model.ChunkMeta{FileID: fileID, Page: i + 1},
			})
		}
	}
	return out
}
