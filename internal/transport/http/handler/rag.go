package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docqa/internal/ai"
	"docqa/internal/app"
	"docqa/internal/model"
	"docqa/internal/transport/http/response"
)

const defaultPreviewLimit = 10

type RAGEngine interface {
	Answer(ctx context.Context, question, fileID string) (app.Answer, error)
	PreviewChunks(limit int) []model.Chunk
}

type RAGHandler struct {
	engine RAGEngine
}

type AskRequest struct {
	Question string `json:"question"`
	FileID   string `json:"file_id"`
}

func NewRAGHandler(engine RAGEngine) *RAGHandler {
	return &RAGHandler{engine: engine}
}

// Ask answers strictly from the indexed documents. A blank question is not a
// request error; the composer answers it with a fixed message.
func (h *RAGHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	ans, err := h.engine.Answer(c.Request.Context(), req.Question, req.FileID)
	if err != nil {
		var upstream *ai.UpstreamError
		if errors.As(err, &upstream) {
			response.Error(c, http.StatusBadGateway, response.CodeUpstream, "language model unavailable")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ask failed")
		return
	}
	response.OK(c, ans)
}

func (h *RAGHandler) Chunks(c *gin.Context) {
	limit := defaultPreviewLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	chunks := h.engine.PreviewChunks(limit)
	if chunks == nil {
		chunks = []model.Chunk{}
	}
	response.OK(c, chunks)
}
