package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docqa/internal/app"
	"docqa/internal/model"
	"docqa/internal/transport/http/response"
)

type FileService interface {
	Upload(ctx context.Context, input app.UploadInput) (*model.FileRecord, error)
	List() ([]model.FileRecord, error)
	Text(ctx context.Context, id string) ([]model.Page, error)
	Delete(ctx context.Context, id string) error
}

type FileHandler struct {
	files          FileService
	maxUploadBytes int64
}

type FileTextResponse struct {
	FileID    string       `json:"file_id"`
	PageCount int          `json:"page_count"`
	Pages     []model.Page `json:"pages"`
}

func NewFileHandler(files FileService, maxUploadMB int) *FileHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 25
	}
	return &FileHandler{files: files, maxUploadBytes: int64(maxUploadMB) << 20}
}

func (h *FileHandler) List(c *gin.Context) {
	records, err := h.files.List()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list files failed")
		return
	}
	response.OK(c, records)
}

// Upload accepts a multipart form with "file" and ingests it under a new
// file_id. A failed ingestion still returns the record, with status failed.
func (h *FileHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge, "file too large")
			return
		}
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	f, err := header.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read upload failed")
		return
	}
	defer f.Close()

	rec, err := h.files.Upload(c.Request.Context(), app.UploadInput{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Content:  f,
	})
	if err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid file name")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload failed")
		return
	}
	response.OK(c, rec)
}

func (h *FileHandler) Text(c *gin.Context) {
	id := c.Param("id")
	pages, err := h.files.Text(c.Request.Context(), id)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "read text failed")
		return
	}
	if len(pages) == 0 {
		response.Error(c, http.StatusNotFound, response.CodeNoText, app.MsgNoText)
		return
	}
	response.OK(c, FileTextResponse{FileID: id, PageCount: len(pages), Pages: pages})
}

func (h *FileHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.files.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, app.ErrFileNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeFileNotFound, "file not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete file failed")
		return
	}
	response.OK(c, gin.H{"deleted_file_id": id})
}
