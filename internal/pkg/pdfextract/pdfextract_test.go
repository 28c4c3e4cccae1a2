package pdfextract

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPagesFromEmpty(t *testing.T) {
	pages, err := ExtractPagesFrom(bytes.NewReader(nil), 0)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestExtractPagesNotPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(path, []byte("plain text, not a pdf"), 0o644))

	_, err := ExtractPages(path)
	assert.Error(t, err)
}

func TestExtractPagesMissingFile(t *testing.T) {
	_, err := ExtractPages(filepath.Join(t.TempDir(), "nope.pdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExtractPagesInOrder(t *testing.T) {
	pages, err := ExtractPages(filepath.Join("testdata", "two_pages.pdf"))
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Contains(t, pages[0], "Refund policy applies within thirty days")
	assert.NotContains(t, pages[0], "Shipping")
	assert.Contains(t, pages[1], "Shipping takes five business days")
	assert.NotContains(t, pages[1], "Refund")
}

func TestExtractPagesFromReader(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "two_pages.pdf"))
	require.NoError(t, err)

	pages, err := ExtractPagesFrom(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Contains(t, pages[1], "five business days")
}
