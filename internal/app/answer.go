package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"docqa/internal/logging"
	"docqa/internal/metrics"
	"docqa/internal/model"
)

const (
	MsgEmptyQuestion = "Please ask a valid question."
	MsgNoDocument    = "No document attached to this chat."
	MsgNoText        = "No extracted text found for this document."
	MsgNotPresent    = "The answer is not present in the uploaded document."

	defaultTopK            = 6
	defaultMaxContextChars = 18000
)

const (
	groundedPrompt = "You are a document-grounded assistant.\n" +
		"Answer strictly from the document context.\n" +
		"If the answer is not present, say so.\n\n"
	questionListPrompt = "You are a document-grounded assistant.\n" +
		"List every question and multiple-choice question that appears in the document context, " +
		"verbatim and numbered, in the order they appear. Include answer options when present.\n" +
		"If the context contains no questions, say so.\n\n"
)

// Retriever is the read side of the vector index.
type Retriever interface {
	Exists() bool
	Query(ctx context.Context, text string, k int, fileID string) ([]model.ScoredChunk, error)
}

// PageLoader reads raw page text; a missing document yields no pages.
type PageLoader interface {
	Load(ctx context.Context, fileID string) ([]model.Page, error)
}

// LLM is the single system+user prompt call.
type LLM interface {
	Ask(ctx context.Context, system, user string) (string, error)
}

type ComposerOptions struct {
	TopK            int
	MaxContextChars int
}

type Answer struct {
	Text   string `json:"answer"`
	Intent Intent `json:"intent"`
}

// Composer picks a strategy per intent. It never answers from general
// knowledge; when no document context exists it returns MsgNotPresent.
type Composer struct {
	index      Retriever
	pages      PageLoader
	llm        LLM
	classifier *IntentClassifier
	topK       int
	maxChars   int
	logger     *zap.Logger
}

func NewComposer(index Retriever, pages PageLoader, llm LLM, classifier *IntentClassifier, opts ComposerOptions, logger *zap.Logger) *Composer {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = defaultMaxContextChars
	}
	if classifier == nil {
		classifier = NewIntentClassifier(DefaultIntentRules(nil, nil))
	}
	return &Composer{
		index:      index,
		pages:      pages,
		llm:        llm,
		classifier: classifier,
		topK:       opts.TopK,
		maxChars:   opts.MaxContextChars,
		logger:     logging.OrNop(logger),
	}
}

// Answer returns fixed messages for the degenerate cases and only returns an
// error for storage or upstream failures.
func (c *Composer) Answer(ctx context.Context, question, fileID string) (Answer, error) {
	question = strings.TrimSpace(question)
	fileID = strings.TrimSpace(fileID)
	if question == "" {
		return Answer{Text: MsgEmptyQuestion}, nil
	}

	intent := c.classifier.Classify(question)
	var (
		text    string
		fromLLM bool
		err     error
	)
	switch intent {
	case IntentFullDocument:
		text, err = c.fullDocument(ctx, fileID)
	case IntentQuestionExtraction:
		text, fromLLM, err = c.extractQuestions(ctx, question, fileID)
	default:
		text, fromLLM, err = c.grounded(ctx, question, fileID)
	}

	outcome := "fixed"
	switch {
	case err != nil:
		outcome = "error"
	case fromLLM:
		outcome = "llm"
	}
	metrics.AnswersTotal.WithLabelValues(string(intent), outcome).Inc()
	if err != nil {
		c.logger.Error("answer failed", zap.String("intent", string(intent)), zap.String("file_id", fileID), zap.Error(err))
		return Answer{Intent: intent}, err
	}
	return Answer{Text: text, Intent: intent}, nil
}

func (c *Composer) fullDocument(ctx context.Context, fileID string) (string, error) {
	if fileID == "" {
		return MsgNoDocument, nil
	}
	pages, err := c.pages.Load(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("load raw text: %w", err)
	}
	if len(pages) == 0 {
		return MsgNoText, nil
	}
	return FormatPages(pages), nil
}

func (c *Composer) grounded(ctx context.Context, question, fileID string) (string, bool, error) {
	docContext, err := c.retrievedContext(ctx, question, fileID)
	if err != nil {
		return "", false, err
	}
	if docContext == "" {
		return MsgNotPresent, false, nil
	}
	answer, err := c.llm.Ask(ctx, groundedPrompt+docContext, question)
	if err != nil {
		return "", false, err
	}
	return answer, true, nil
}

// extractQuestions prefers the raw pages of a scoped document, since listing
// every question needs coverage rather than the top-k most similar chunks.
func (c *Composer) extractQuestions(ctx context.Context, question, fileID string) (string, bool, error) {
	var docContext string
	if fileID != "" {
		pages, err := c.pages.Load(ctx, fileID)
		if err != nil {
			return "", false, fmt.Errorf("load raw text: %w", err)
		}
		docContext = c.truncate(FormatPages(pages))
	}
	if docContext == "" {
		var err error
		if docContext, err = c.retrievedContext(ctx, question, fileID); err != nil {
			return "", false, err
		}
	}
	if docContext == "" {
		return MsgNotPresent, false, nil
	}
	answer, err := c.llm.Ask(ctx, questionListPrompt+docContext, question)
	if err != nil {
		return "", false, err
	}
	return answer, true, nil
}

// retrievedContext joins the top-k chunk texts in rank order, cut to the
// character budget. It is empty when the index is empty or nothing matched.
func (c *Composer) retrievedContext(ctx context.Context, question, fileID string) (string, error) {
	if c.index == nil || !c.index.Exists() {
		return "", nil
	}
	hits, err := c.index.Query(ctx, question, c.topK, fileID)
	if err != nil {
		return "", fmt.Errorf("query index: %w", err)
	}
	if len(hits) == 0 {
		return "", nil
	}
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	return c.truncate(strings.Join(texts, "\n\n")), nil
}

func (c *Composer) truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= c.maxChars {
		return s
	}
	return string(runes[:c.maxChars])
}

// FormatPages renders pages as "Page N:\n<text>" blocks separated by a blank
// line.
func FormatPages(pages []model.Page) string {
	blocks := make([]string, len(pages))
	for i, p := range pages {
		blocks[i] = fmt.Sprintf("Page %d:\n%s", p.Page, p.Text)
	}
	return strings.Join(blocks, "\n\n")
}
