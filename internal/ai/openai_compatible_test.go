package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatServer(t *testing.T, handler http.HandlerFunc) *OpenAICompatibleClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAICompatibleClient(ChatConfig{
		BaseURL:     srv.URL + "/",
		APIKey:      "secret",
		Model:       "test-model",
		Temperature: 0.3,
		Timeout:     5 * time.Second,
	})
}

func TestAskSendsSystemAndUserPrompt(t *testing.T) {
	var got struct {
		Model       string        `json:"model"`
		Messages    []ChatMessage `json:"messages"`
		Temperature float64       `json:"temperature"`
		Stream      bool          `json:"stream"`
	}
	client := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"choices":[{"message":{"content":"  forty-two \n"}}]}`)
	})

	answer, err := client.Ask(context.Background(), "be brief", "meaning of life?")
	require.NoError(t, err)
	assert.Equal(t, "forty-two", answer)

	assert.Equal(t, "test-model", got.Model)
	assert.InDelta(t, 0.3, got.Temperature, 1e-9)
	assert.False(t, got.Stream)
	assert.Equal(t, []ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "meaning of life?"},
	}, got.Messages)
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantErr    error
	}{
		{name: "non-2xx", status: http.StatusTooManyRequests, body: "slow down", wantStatus: http.StatusTooManyRequests},
		{name: "malformed body", status: http.StatusOK, body: "not json"},
		{name: "empty choices", status: http.StatusOK, body: `{"choices":[]}`, wantErr: ErrEmptyChoices},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newChatServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := client.Ask(context.Background(), "s", "u")
			var upstream *UpstreamError
			require.True(t, errors.As(err, &upstream), "want UpstreamError, got %v", err)
			assert.Equal(t, tt.wantStatus, upstream.StatusCode)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCompleteTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()
	client := NewOpenAICompatibleClient(ChatConfig{BaseURL: srv.URL})

	_, err := client.Ask(context.Background(), "s", "u")
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Zero(t, upstream.StatusCode)
}

func TestStreamComplete(t *testing.T) {
	client := newChatServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, piece := range []string{"Hel", "lo", ""} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", piece)
		}
		fmt.Fprint(w, ": keep-alive\n\ndata: [DONE]\n\n")
	})

	var pieces []string
	full, err := client.StreamComplete(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, func(chunk string) error {
		pieces = append(pieces, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", full)
	assert.Equal(t, []string{"Hel", "lo"}, pieces)
}

func TestStreamCompleteStopsOnCallbackError(t *testing.T) {
	client := newChatServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, strings.Repeat("data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n", 3))
	})
	stop := errors.New("client gone")

	_, err := client.StreamComplete(context.Background(), nil, func(string) error { return stop })
	assert.ErrorIs(t, err, stop)
}
