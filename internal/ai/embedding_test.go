package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// embeddingServer answers each input with [len(input), position], listing
// the data entries in reverse to exercise index ordering.
func embeddingServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		parts := make([]string, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			parts = append(parts, fmt.Sprintf(`{"index":%d,"embedding":[%d,%d]}`, i, len(req.Input[i]), i))
		}
		fmt.Fprintf(w, `{"data":[%s]}`, strings.Join(parts, ","))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedDocumentsBatchesAndKeepsOrder(t *testing.T) {
	var calls int32
	srv := embeddingServer(t, &calls)
	e := NewOpenAIEmbedder(EmbeddingConfig{BaseURL: srv.URL, Model: "m", BatchSize: 2})

	vecs, err := e.EmbedDocuments(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	for i, v := range vecs {
		assert.Equal(t, float32(i+1), v[0], "vector %d out of order", i)
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestEmbedQuery(t *testing.T) {
	var calls int32
	srv := embeddingServer(t, &calls)
	e := NewOpenAIEmbedder(EmbeddingConfig{BaseURL: srv.URL, Model: "m"})

	v, err := e.EmbedQuery(context.Background(), "  hello ")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 0}, v)

	_, err = e.EmbedQuery(context.Background(), "   ")
	assert.Error(t, err)
}

func TestEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[1]}]}`)
	}))
	defer srv.Close()
	e := NewOpenAIEmbedder(EmbeddingConfig{BaseURL: srv.URL})

	_, err := e.EmbedDocuments(context.Background(), []string{"a", "b"})
	var upstream *UpstreamError
	assert.ErrorAs(t, err, &upstream)
}
