package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"dadyar-backend/models"
)

// ChatModel generates a completion for a prompt under a system instruction.
type ChatModel interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// InteractionLog records answered queries for later review.
type InteractionLog interface {
	Create(ctx context.Context, interaction *models.ChatInteraction) error
}

const (
	// contextCharLimit truncates each retrieved chunk before it enters the
	// prompt context block.
	contextCharLimit = 1500

	// maxSources caps the citations returned with an answer.
	maxSources = 3
)

const groundedSystemPrompt = `تو «دادیار» هستی، دستیار حقوقی متخصص قانون کار و تامین اجتماعی ایران.
فقط بر اساس متون قانونی ارائه‌شده پاسخ بده و در پاسخ به شماره ماده‌های مرتبط استناد کن.
اگر متون ارائه‌شده برای پاسخ کافی نیست، صریحاً اعلام کن که پاسخ این پرسش در منابع موجود یافت نشد.
هرگز شماره ماده‌ای که در متون ارائه‌شده نیامده است ذکر نکن.`

const generalKnowledgeSystemPrompt = `تو «دادیار» هستی، دستیار حقوقی متخصص قانون کار و تامین اجتماعی ایران.
برای این پرسش هیچ متن قانونی مرتبطی در منابع یافت نشد.
بر اساس دانش عمومی حقوقی خود پاسخ بده و در ابتدای پاسخ به کاربر اعلام کن که این پاسخ بدون دسترسی به منابع قانونی تهیه شده و ممکن است دقیق یا به‌روز نباشد.
به هیچ شماره ماده‌ای استناد نکن.`

// ChatService is the retrieval-augmented chat orchestrator: embed the query,
// retrieve the closest chunks, and answer from that context with citations.
type ChatService struct {
	embedder       Embedder
	searcher       ChunkSearcher
	model          ChatModel
	interactions   InteractionLog
	matchThreshold float64
	matchCount     int
}

// ChatServiceOption is a functional option for ChatService
type ChatServiceOption func(*ChatService)

// ChatWithEmbedder sets the embedding client
func ChatWithEmbedder(embedder Embedder) ChatServiceOption {
	return func(s *ChatService) {
		s.embedder = embedder
	}
}

// ChatWithSearcher sets the similarity searcher
func ChatWithSearcher(searcher ChunkSearcher) ChatServiceOption {
	return func(s *ChatService) {
		s.searcher = searcher
	}
}

// ChatWithModel sets the chat completion model
func ChatWithModel(model ChatModel) ChatServiceOption {
	return func(s *ChatService) {
		s.model = model
	}
}

// ChatWithInteractionLog enables recording of answered queries
func ChatWithInteractionLog(log InteractionLog) ChatServiceOption {
	return func(s *ChatService) {
		s.interactions = log
	}
}

// ChatWithRetrievalPolicy sets the similarity threshold and match count
func ChatWithRetrievalPolicy(threshold float64, count int) ChatServiceOption {
	return func(s *ChatService) {
		s.matchThreshold = threshold
		s.matchCount = count
	}
}

// NewChatService creates a new chat service
func NewChatService(opts ...ChatServiceOption) *ChatService {
	s := &ChatService{
		matchThreshold: 0.3,
		matchCount:     5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask answers a user query with citations into the stored legal corpus.
// Retrieval failures (embedding or search) degrade to general-knowledge mode
// instead of failing the request; only chat generation errors propagate.
func (s *ChatService) Ask(ctx context.Context, query string) (*models.ChatAnswer, error) {
	matches := s.retrieve(ctx, query)

	var answer string
	var err error
	if len(matches) == 0 {
		answer, err = s.model.Generate(ctx, generalKnowledgeSystemPrompt,
			fmt.Sprintf("پرسش کاربر: %s", query))
	} else {
		prompt := fmt.Sprintf("متون قانونی مرتبط:\n\n%s\n\nپرسش کاربر: %s",
			buildContext(matches), query)
		answer, err = s.model.Generate(ctx, groundedSystemPrompt, prompt)
	}
	if err != nil {
		return nil, err
	}

	sources := make([]models.ChatSource, 0, maxSources)
	for i, match := range matches {
		if i >= maxSources {
			break
		}
		sources = append(sources, models.ChatSource{
			ArticleNumber: match.ArticleNumber,
			Category:      match.Category,
			Similarity:    match.Similarity,
		})
	}

	s.logInteraction(query, answer, len(sources))

	return &models.ChatAnswer{
		Answer:  answer,
		Sources: sources,
	}, nil
}

// logInteraction records the exchange in the background, detached from the
// request context. A logging failure can never affect the answer.
func (s *ChatService) logInteraction(query, answer string, sourceCount int) {
	if s.interactions == nil {
		return
	}
	go func() {
		err := s.interactions.Create(context.Background(), &models.ChatInteraction{
			Query:       query,
			Answer:      answer,
			SourceCount: sourceCount,
		})
		if err != nil {
			log.Printf("Warning: failed to record chat interaction: %v", err)
		}
	}()
}

// retrieve returns the top matches for the query, or nil when embedding or
// search failed. The chat must still answer in that case, so failures here
// are logged, not returned.
func (s *ChatService) retrieve(ctx context.Context, query string) []models.SimilarityMatch {
	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		log.Printf("Warning: failed to embed chat query, answering without context: %v", err)
		return nil
	}

	matches, err := s.searcher.Search(ctx, embedding, s.matchThreshold, s.matchCount, "")
	if err != nil {
		log.Printf("Warning: similarity search failed, answering without context: %v", err)
		return nil
	}

	return matches
}

func buildContext(matches []models.SimilarityMatch) string {
	parts := make([]string, 0, len(matches))
	for _, match := range matches {
		content := truncateRunes(match.Content, contextCharLimit)

		header := "بدون شماره ماده"
		if match.ArticleNumber != nil {
			header = fmt.Sprintf("ماده %s", *match.ArticleNumber)
		}
		parts = append(parts, fmt.Sprintf("[%s - %s]\n%s", header, match.Category, content))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// truncateRunes cuts s to at most limit bytes without splitting a UTF-8
// sequence, which matters for Persian text.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
