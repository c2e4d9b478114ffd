package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mrfila/helpdesk/internal/category"
	"github.com/mrfila/helpdesk/internal/knowledge"
	"github.com/mrfila/helpdesk/internal/metrics"
	"github.com/mrfila/helpdesk/internal/notify"
	"github.com/mrfila/helpdesk/internal/retrieval"
	"github.com/mrfila/helpdesk/internal/scoring"
	"github.com/mrfila/helpdesk/internal/storage/models"
	"github.com/mrfila/helpdesk/internal/storage/sqlite"
	"github.com/mrfila/helpdesk/pkg/logger"
	"github.com/mrfila/helpdesk/pkg/utils"
)

// Responder abstracts the retrieval+generation service so the engine can be
// tested without a vector store or LLM.
type Responder interface {
	Answer(ctx context.Context, question string, history []retrieval.Turn) *retrieval.Response
	Reindex(ctx context.Context) error
}

// AnswerCache is the subset of the redis client the engine uses. Nil-able:
// a disabled cache is a permanent miss.
type AnswerCache interface {
	GetAnswer(ctx context.Context, questionHash string, response interface{}) (bool, error)
	SetAnswer(ctx context.Context, questionHash string, response interface{}, ttl time.Duration) error
	InvalidateAnswers(ctx context.Context) error
}

// Result is one completed chat turn.
type Result struct {
	ChatID          int64               `json:"chatRecordId"`
	SessionID       string              `json:"sessionId"`
	Answer          string              `json:"answer"`
	Confidence      int                 `json:"confidence"`
	ConfidenceLevel string              `json:"confidenceLevel"`
	Sources         []models.ChatSource `json:"sources"`
	Category        string              `json:"category"`
	Escalated       bool                `json:"escalated"`
}

// Engine orchestrates one chat turn: cache, retrieval, scoring, persistence,
// escalation. Conversation history is bounded per session and owned here,
// never shared between sessions.
type Engine struct {
	responder Responder
	scorer    *scoring.Engine
	router    *category.Router
	notifier  *notify.Notifier
	db        *sqlite.Client
	store     *knowledge.Store
	cache     AnswerCache
	cacheTTL  time.Duration

	historyTurns int
	mu           sync.Mutex
	sessions     map[string][]retrieval.Turn
}

func NewEngine(
	responder Responder,
	scorer *scoring.Engine,
	router *category.Router,
	notifier *notify.Notifier,
	db *sqlite.Client,
	store *knowledge.Store,
	cache AnswerCache,
	cacheTTL time.Duration,
	historyTurns int,
) *Engine {
	if historyTurns <= 0 {
		historyTurns = 5
	}
	return &Engine{
		responder:    responder,
		scorer:       scorer,
		router:       router,
		notifier:     notifier,
		db:           db,
		store:        store,
		cache:        cache,
		cacheTTL:     cacheTTL,
		historyTurns: historyTurns,
		sessions:     make(map[string][]retrieval.Turn),
	}
}

// Ask processes one question end to end. Escalation runs in the background
// and never delays the returned result.
func (e *Engine) Ask(ctx context.Context, sessionID, question string) (*Result, error) {
	start := time.Now()

	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	questionHash := utils.HashString(question)
	if e.cache != nil {
		var cached Result
		hit, err := e.cache.GetAnswer(ctx, questionHash, &cached)
		if err != nil {
			logger.Warn("Answer cache lookup failed", zap.Error(err))
		} else if hit {
			metrics.CacheHits.WithLabelValues("answer").Inc()
			cached.SessionID = sessionID
			return &cached, nil
		}
		metrics.CacheMisses.WithLabelValues("answer").Inc()
	}

	history := e.sessionHistory(sessionID)
	resp := e.responder.Answer(ctx, question, history)
	metrics.PassagesRetrieved.Observe(float64(len(resp.Passages)))

	confidence := e.scorer.Calculate(question, resp)
	level := scoring.Level(confidence)

	record := &models.ChatRecord{
		SessionID:       sessionID,
		Question:        question,
		Answer:          resp.Answer,
		Confidence:      confidence,
		ConfidenceLevel: level,
		SourcesCount:    len(resp.Passages),
		LearnedStatus:   models.LearnedStatusPending,
	}
	for _, p := range resp.Passages {
		record.Sources = append(record.Sources, models.ChatSource{
			Name:      p.Source,
			Content:   p.Content,
			Relevance: "관련 문서",
		})
	}

	chatID, err := e.db.SaveChatRecord(record)
	if err != nil {
		return nil, fmt.Errorf("save chat record: %w", err)
	}

	metrics.ChatTotal.WithLabelValues(level).Inc()
	metrics.ConfidenceScore.Observe(float64(confidence))
	metrics.ChatDuration.WithLabelValues("http").Observe(time.Since(start).Seconds())

	assignment := e.router.Classify(question)

	sourceNames := make([]string, 0, len(resp.Passages))
	for _, p := range resp.Passages {
		sourceNames = append(sourceNames, p.Source)
	}

	escalated := false
	if e.notifier != nil {
		escalated = e.notifier.EscalateIfNeeded(notify.Alert{
			ChatID:          chatID,
			Question:        question,
			Answer:          resp.Answer,
			Confidence:      confidence,
			ConfidenceLevel: level,
			Sources:         sourceNames,
			Assignment:      assignment,
		})
	}

	result := &Result{
		ChatID:          chatID,
		SessionID:       sessionID,
		Answer:          resp.Answer,
		Confidence:      confidence,
		ConfidenceLevel: level,
		Sources:         record.Sources,
		Category:        assignment.Category,
		Escalated:       escalated,
	}

	if e.cache != nil && resp.Answer != retrieval.DegradedAnswer {
		if err := e.cache.SetAnswer(ctx, questionHash, result, e.cacheTTL); err != nil {
			logger.Warn("Answer cache store failed", zap.Error(err))
		}
	}

	e.recordTurn(sessionID, question, resp.Answer)

	logger.Info("Chat turn completed",
		zap.Int64("chat_id", chatID),
		zap.Int("confidence", confidence),
		zap.String("level", level),
		zap.String("category", assignment.Category),
		zap.Bool("escalated", escalated),
	)

	return result, nil
}

// LearnAnswer feeds a human-corrected answer back into the knowledge base.
// The QnA append and status flip are synchronous; reindexing runs in the
// background and its failure is not fatal to the correction.
func (e *Engine) LearnAnswer(ctx context.Context, chatID int64, correctAnswer string) (int64, error) {
	question, err := e.db.GetChatQuestion(chatID)
	if err != nil {
		return 0, fmt.Errorf("lookup chat question: %w", err)
	}

	learnedID, err := e.db.SaveLearnedAnswer(chatID, correctAnswer)
	if err != nil {
		return 0, fmt.Errorf("save learned answer: %w", err)
	}

	if err := e.store.AppendQnA(question, correctAnswer); err != nil {
		return 0, fmt.Errorf("append to qna log: %w", err)
	}

	metrics.LearnedAnswersTotal.Inc()
	e.afterKnowledgeChange(ctx)

	logger.Info("Answer learned",
		zap.Int64("chat_id", chatID),
		zap.Int64("learned_id", learnedID),
	)

	return learnedID, nil
}

// EditLearnedAnswer updates a previously learned answer in both storage and
// the QnA log. A QnA block that drifted away from the original question is
// logged and skipped; the storage update still stands.
func (e *Engine) EditLearnedAnswer(ctx context.Context, learnedAnswerID int64, newAnswer string) error {
	learned, err := e.db.GetLearnedAnswer(learnedAnswerID)
	if err != nil {
		return fmt.Errorf("lookup learned answer: %w", err)
	}

	if err := e.db.UpdateLearnedAnswer(learnedAnswerID, newAnswer); err != nil {
		return fmt.Errorf("update learned answer: %w", err)
	}

	found, err := e.store.RewriteAnswer(learned.Question, newAnswer)
	if err != nil {
		return fmt.Errorf("rewrite qna log: %w", err)
	}
	if !found {
		logger.Warn("QnA block not found for learned answer, log not updated",
			zap.Int64("learned_id", learnedAnswerID),
			zap.String("question", learned.Question),
		)
	}

	e.afterKnowledgeChange(ctx)

	logger.Info("Learned answer updated", zap.Int64("learned_id", learnedAnswerID))
	return nil
}

func (e *Engine) afterKnowledgeChange(ctx context.Context) {
	if e.cache != nil {
		if err := e.cache.InvalidateAnswers(ctx); err != nil {
			logger.Warn("Answer cache invalidation failed", zap.Error(err))
		}
	}

	go func() {
		start := time.Now()
		if err := e.responder.Reindex(context.Background()); err != nil {
			logger.Error("Background reindex failed", zap.Error(err))
			return
		}
		metrics.ReindexDuration.Observe(time.Since(start).Seconds())
	}()
}

func (e *Engine) sessionHistory(sessionID string) []retrieval.Turn {
	e.mu.Lock()
	defer e.mu.Unlock()

	turns := e.sessions[sessionID]
	out := make([]retrieval.Turn, len(turns))
	copy(out, turns)
	return out
}

func (e *Engine) recordTurn(sessionID, question, answer string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	turns := append(e.sessions[sessionID], retrieval.Turn{
		Question: question,
		Answer:   answer,
	})
	if len(turns) > e.historyTurns {
		turns = turns[len(turns)-e.historyTurns:]
	}
	e.sessions[sessionID] = turns
}
