package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"docqa/internal/ai"
	"docqa/internal/logging"
)

const (
	MsgEmptyMessage  = "Please enter a valid message."
	MsgInternalError = "An internal error occurred."

	generalSystemPrompt = "You are a helpful assistant. Answer clearly and concisely."
)

var documentKeywords = []string{
	"document", "pdf", "file", "page", "pages",
	"according to", "from the document",
	"summarize", "summary",
	"table", "figure", "paragraph",
	"section", "chapter",
	"this file", "this pdf",
}

// ChatModel is the general-knowledge side of the chat, streamed or not.
type ChatModel interface {
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
	StreamComplete(ctx context.Context, messages []ai.ChatMessage, onChunk func(chunk string) error) (string, error)
}

// DocumentAnswerer answers a question scoped to one document.
type DocumentAnswerer interface {
	Answer(ctx context.Context, question, fileID string) (Answer, error)
}

// ChatService routes a chat message: document questions with an attached
// file go to the grounded composer, everything else to the general model.
// Failures degrade to MsgInternalError.
type ChatService struct {
	docs   DocumentAnswerer
	model  ChatModel
	logger *zap.Logger
}

func NewChatService(docs DocumentAnswerer, model ChatModel, logger *zap.Logger) *ChatService {
	return &ChatService{docs: docs, model: model, logger: logging.OrNop(logger)}
}

func (s *ChatService) Reply(ctx context.Context, message, fileID string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return MsgEmptyMessage
	}

	if s.routesToDocument(message, fileID) {
		ans, err := s.docs.Answer(ctx, message, fileID)
		if err != nil {
			s.logger.Error("chat document answer failed", zap.String("file_id", fileID), zap.Error(err))
			return MsgInternalError
		}
		return ans.Text
	}

	reply, err := s.model.Complete(ctx, generalMessages(message))
	if err != nil {
		s.logger.Error("chat completion failed", zap.Error(err))
		return MsgInternalError
	}
	return reply
}

// StreamReply emits the reply through onChunk. Document answers arrive as a
// single chunk. The only error returned is one from onChunk itself.
func (s *ChatService) StreamReply(ctx context.Context, message, fileID string, onChunk func(string) error) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return onChunk(MsgEmptyMessage)
	}

	if s.routesToDocument(message, fileID) {
		return onChunk(s.Reply(ctx, message, fileID))
	}

	var (
		sent    bool
		sinkErr error
	)
	_, err := s.model.StreamComplete(ctx, generalMessages(message), func(chunk string) error {
		sent = true
		if err := onChunk(chunk); err != nil {
			sinkErr = err
			return err
		}
		return nil
	})
	if sinkErr != nil {
		return sinkErr
	}
	if err != nil {
		s.logger.Error("chat stream failed", zap.Bool("partial", sent), zap.Error(err))
		return onChunk(MsgInternalError)
	}
	return nil
}

func (s *ChatService) routesToDocument(message, fileID string) bool {
	return strings.TrimSpace(fileID) != "" && IsDocumentQuestion(message)
}

// IsDocumentQuestion reports whether message refers to an attached document.
func IsDocumentQuestion(message string) bool {
	msg := strings.ToLower(message)
	for _, k := range documentKeywords {
		if strings.Contains(msg, k) {
			return true
		}
	}
	return false
}

func generalMessages(message string) []ai.ChatMessage {
	return []ai.ChatMessage{
		{Role: "system", Content: generalSystemPrompt},
		{Role: "user", Content: message},
	}
}
