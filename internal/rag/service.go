package rag

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragline/internal/ai"
	"github.com/xxxsen/ragline/internal/enhance"
	"github.com/xxxsen/ragline/internal/model"
	"github.com/xxxsen/ragline/internal/pkg/errs"
	"github.com/xxxsen/ragline/internal/retrieval"
	"go.uber.org/zap"
)

const historyWindow = 5

type Service struct {
	retriever    *retrieval.Retriever
	generator    ai.IGenerator
	enhancer     enhance.Enhancer
	systemPrompt string
	sourceTopK   int
	contextTopK  int
	summarize    bool
	rerank       bool
}

type Options struct {
	SystemPrompt string
	SourceTopK   int
	ContextTopK  int
	Summarize    bool
	Rerank       bool
}

func New(retriever *retrieval.Retriever, generator ai.IGenerator, enhancer enhance.Enhancer, opts Options) *Service {
	if enhancer == nil {
		enhancer = enhance.Noop{}
	}
	if opts.SourceTopK <= 0 {
		opts.SourceTopK = 5
	}
	if opts.ContextTopK <= 0 {
		opts.ContextTopK = 3
	}
	return &Service{
		retriever:    retriever,
		generator:    generator,
		enhancer:     enhancer,
		systemPrompt: opts.SystemPrompt,
		sourceTopK:   opts.SourceTopK,
		contextTopK:  opts.ContextTopK,
		summarize:    opts.Summarize,
		rerank:       opts.Rerank,
	}
}

// ProcessQuery answers one query with retrieval-augmented generation.
// Retrieval and generation failures are fatal; source attribution and
// enhancement degrade on failure.
func (s *Service) ProcessQuery(ctx context.Context, query string, extraContext string, history []model.ConversationTurn) (*model.AnswerBundle, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", errs.ErrQueryProcessing)
	}
	logger := logutil.GetLogger(ctx)
	logger.Info("processing query", zap.String("query", clip(query, 50)))

	retrieved, err := s.retriever.RelevantContext(ctx, query, s.contextTopK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrQueryProcessing, err)
	}
	finalContext := joinNonEmpty(extraContext, retrieved)

	response, err := s.generate(ctx, query, finalContext, formatHistory(history))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrQueryProcessing, err)
	}

	sources := s.collectSources(ctx, query)

	if s.summarize {
		if summarized, err := s.enhancer.Summarize(ctx, response); err != nil {
			logger.Warn("answer enhancement failed, keeping original", zap.Error(err))
		} else {
			response = summarized
		}
	}

	return &model.AnswerBundle{
		Response:       response,
		Sources:        sources,
		Context:        finalContext,
		ConversationID: newID(),
		Timestamp:      time.Now().Format(time.RFC3339),
	}, nil
}

// Chat answers one conversational message, keeping the caller's conversation
// id when one is supplied.
func (s *Service) Chat(ctx context.Context, message string, conversationID string, history []model.ConversationTurn) (*model.AnswerBundle, error) {
	bundle, err := s.ProcessQuery(ctx, message, "", history)
	if err != nil {
		return nil, err
	}
	if conversationID != "" {
		bundle.ConversationID = conversationID
	}
	return bundle, nil
}

func (s *Service) generate(ctx context.Context, query, context_, history string) (string, error) {
	messages := make([]ai.Message, 0, 4)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: s.systemPrompt})
	if history != "" {
		messages = append(messages, ai.Message{
			Role:    ai.RoleUser,
			Content: "Previous conversation:\n" + history,
		})
	}
	if context_ != "" {
		messages = append(messages, ai.Message{
			Role:    ai.RoleSystem,
			Content: "Context for answering the question:\n" + context_,
		})
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: query})
	return s.generator.Chat(ctx, messages)
}

// collectSources reruns retrieval for attribution. A failure here never fails
// the query; the answer just ships without sources.
func (s *Service) collectSources(ctx context.Context, query string) []model.Source {
	results, err := s.retriever.Search(ctx, query, s.sourceTopK, nil)
	if err != nil {
		logutil.GetLogger(ctx).Warn("source attribution failed", zap.Error(err))
		return []model.Source{}
	}
	results = s.rerankResults(ctx, query, results)
	sources := make([]model.Source, 0, len(results))
	for _, res := range results {
		sources = append(sources, model.Source{
			ID:         res.ID,
			Content:    preview(res.Content, 200),
			Score:      res.Score,
			Metadata:   res.Metadata,
			DocumentID: res.DocumentID,
		})
	}
	return sources
}

// rerankResults reorders retrieval hits by enhancer relevance. Like
// summarization this is best effort: a rerank failure keeps retrieval order.
func (s *Service) rerankResults(ctx context.Context, query string, results []model.RetrievalResult) []model.RetrievalResult {
	if !s.rerank || len(results) < 2 {
		return results
	}
	docs := make([]string, len(results))
	for i, res := range results {
		docs[i] = res.Content
	}
	ranked, err := s.enhancer.Rerank(ctx, query, docs, len(results))
	if err != nil {
		logutil.GetLogger(ctx).Warn("rerank failed, keeping retrieval order", zap.Error(err))
		return results
	}
	reordered := make([]model.RetrievalResult, 0, len(ranked))
	for _, r := range ranked {
		if r.Index < 0 || r.Index >= len(results) {
			continue
		}
		res := results[r.Index]
		res.Score = float32(r.Score)
		reordered = append(reordered, res)
	}
	if len(reordered) == 0 {
		return results
	}
	return reordered
}

func formatHistory(history []model.ConversationTurn) string {
	if len(history) == 0 {
		return ""
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	var sb strings.Builder
	for _, turn := range history {
		sb.WriteString("\n")
		sb.WriteString(string(turn.Role))
		sb.WriteString(": ")
		sb.WriteString(turn.Content)
	}
	return sb.String()
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

func preview(content string, limit int) string {
	if len(content) <= limit {
		return content
	}
	return content[:limit] + "..."
}

func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func newID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
