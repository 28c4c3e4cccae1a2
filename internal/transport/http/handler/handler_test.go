package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/ai"
	"docqa/internal/app"
	"docqa/internal/model"
	"docqa/internal/transport/http/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

type fakeFiles struct {
	uploaded []string
	content  string
	pages    map[string][]model.Page
	records  []model.FileRecord
}

func (f *fakeFiles) Upload(_ context.Context, in app.UploadInput) (*model.FileRecord, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, app.ErrInvalidInput
	}
	body, _ := io.ReadAll(in.Content)
	f.content = string(body)
	f.uploaded = append(f.uploaded, in.Name)
	return &model.FileRecord{ID: "id-1", Name: in.Name, Status: model.FileStatusIndexed}, nil
}

func (f *fakeFiles) List() ([]model.FileRecord, error) { return f.records, nil }

func (f *fakeFiles) Text(_ context.Context, id string) ([]model.Page, error) {
	if p, ok := f.pages[id]; ok {
		return p, nil
	}
	return []model.Page{}, nil
}

func (f *fakeFiles) Delete(_ context.Context, id string) error {
	if _, ok := f.pages[id]; !ok {
		return app.ErrFileNotFound
	}
	delete(f.pages, id)
	return nil
}

func fileRouter(files FileService, maxMB int) *gin.Engine {
	h := NewFileHandler(files, maxMB)
	r := gin.New()
	r.GET("/api/files", h.List)
	r.POST("/api/files/upload", h.Upload)
	r.GET("/api/files/:id/text", h.Text)
	r.DELETE("/api/files/:id", h.Delete)
	return r
}

func multipartBody(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadFile(t *testing.T) {
	files := &fakeFiles{}
	body, ct := multipartBody(t, "file", "report.pdf", []byte("%PDF"))

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	fileRouter(files, 1).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, response.CodeOK, env.Code)
	var rec model.FileRecord
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, "id-1", rec.ID)
	assert.Equal(t, []string{"report.pdf"}, files.uploaded)
	assert.Equal(t, "%PDF", files.content)
}

func TestUploadFileErrors(t *testing.T) {
	t.Run("missing part", func(t *testing.T) {
		body, ct := multipartBody(t, "other", "a.pdf", []byte("x"))
		req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		fileRouter(&fakeFiles{}, 1).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, response.CodeBadRequest, decode(t, w).Code)
	})

	t.Run("too large", func(t *testing.T) {
		body, ct := multipartBody(t, "file", "big.pdf", bytes.Repeat([]byte("x"), 2<<20))
		req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		fileRouter(&fakeFiles{}, 1).ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, response.CodeFileTooLarge, decode(t, w).Code)
	})
}

func TestFileText(t *testing.T) {
	files := &fakeFiles{pages: map[string][]model.Page{
		"a": {{Page: 1, Text: "Hello"}, {Page: 2, Text: "World"}},
	}}
	r := fileRouter(files, 1)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files/a/text", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got FileTextResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Equal(t, FileTextResponse{FileID: "a", PageCount: 2, Pages: files.pages["a"]}, got)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files/missing/text", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, app.MsgNoText, decode(t, w).Message)
}

func TestDeleteFile(t *testing.T) {
	files := &fakeFiles{pages: map[string][]model.Page{"a": {{Page: 1, Text: "x"}}}}
	r := fileRouter(files, 1)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/files/a", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/files/a", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.CodeFileNotFound, decode(t, w).Code)
}

func TestListFiles(t *testing.T) {
	files := &fakeFiles{records: []model.FileRecord{{ID: "a", Name: "a.pdf"}}}
	w := httptest.NewRecorder()
	fileRouter(files, 1).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got []model.FileRecord
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Len(t, got, 1)
}

type fakeEngine struct {
	answer   app.Answer
	err      error
	chunks   []model.Chunk
	question string
	fileID   string
	limit    int
}

func (e *fakeEngine) Answer(_ context.Context, question, fileID string) (app.Answer, error) {
	e.question, e.fileID = question, fileID
	return e.answer, e.err
}

func (e *fakeEngine) PreviewChunks(limit int) []model.Chunk {
	e.limit = limit
	return e.chunks
}

func ragRouter(engine RAGEngine) *gin.Engine {
	h := NewRAGHandler(engine)
	r := gin.New()
	r.POST("/api/rag/ask", h.Ask)
	r.GET("/api/rag/chunks", h.Chunks)
	return r
}

func TestAsk(t *testing.T) {
	engine := &fakeEngine{answer: app.Answer{Text: "42", Intent: app.IntentQA}}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/rag/ask", strings.NewReader(`{"question":"why?","file_id":"a"}`))
	req.Header.Set("Content-Type", "application/json")
	ragRouter(engine).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"42","intent":"qa"}`, string(decode(t, w).Data))
	assert.Equal(t, "why?", engine.question)
	assert.Equal(t, "a", engine.fileID)
}

func TestAskErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   int
	}{
		{name: "bad json", body: `{`, status: http.StatusBadRequest, code: response.CodeBadRequest},
		{name: "upstream", body: `{"question":"q"}`, err: &ai.UpstreamError{StatusCode: 500}, status: http.StatusBadGateway, code: response.CodeUpstream},
		{name: "storage", body: `{"question":"q"}`, err: errors.New("disk"), status: http.StatusInternalServerError, code: response.CodeInternalServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/rag/ask", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			ragRouter(&fakeEngine{err: tt.err}).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w).Code)
		})
	}
}

func TestChunks(t *testing.T) {
	engine := &fakeEngine{}
	r := ragRouter(engine)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rag/chunks", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultPreviewLimit, engine.limit)
	assert.JSONEq(t, `[]`, string(decode(t, w).Data))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rag/chunks?limit=3", nil))
	assert.Equal(t, 3, engine.limit)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rag/chunks?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type fakeChat struct {
	chunks []string
}

func (c *fakeChat) Reply(_ context.Context, message, _ string) string { return "re: " + message }

func (c *fakeChat) StreamReply(_ context.Context, _, _ string, onChunk func(string) error) error {
	for _, s := range c.chunks {
		if err := onChunk(s); err != nil {
			return err
		}
	}
	return nil
}

func TestChatSendMessage(t *testing.T) {
	h := NewChatHandler(&fakeChat{})
	r := gin.New()
	r.POST("/api/chat/messages", h.SendMessage)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/messages", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"reply":"re: hi"}`, string(decode(t, w).Data))
}

func TestChatStreamMessage(t *testing.T) {
	h := NewChatHandler(&fakeChat{chunks: []string{"line one\n", "two"}})
	r := gin.New()
	r.POST("/api/chat/messages/stream", h.StreamMessage)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/messages/stream", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "data: line one\\n\n\ndata: two\n\nevent: done\ndata: line one\\ntwo\n\n", w.Body.String())
}

func TestHealth(t *testing.T) {
	ok := DependencyCheck{Name: "mysql", Check: func(context.Context) error { return nil }}
	down := DependencyCheck{Name: "redis", Check: func(context.Context) error { return errors.New("refused") }}

	t.Run("healthy", func(t *testing.T) {
		h := NewHealthHandler("docqa", "test", time.Now(), func() int { return 7 }, ok)
		r := gin.New()
		r.GET("/healthz", h.Check)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.EqualValues(t, 7, body["index_chunks"])
	})

	t.Run("degraded", func(t *testing.T) {
		h := NewHealthHandler("docqa", "test", time.Now(), nil, ok, down)
		r := gin.New()
		r.GET("/healthz", h.Check)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "refused")
	})
}
