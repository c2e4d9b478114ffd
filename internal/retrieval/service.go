package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mrfila/helpdesk/internal/knowledge"
	"github.com/mrfila/helpdesk/internal/vector/milvus"
	"github.com/mrfila/helpdesk/pkg/logger"
	"github.com/mrfila/helpdesk/pkg/utils"
)

// DegradedAnswer is returned when retrieval or generation fails outright.
// It intentionally reads as an uncertain answer so downstream scoring keeps
// the turn in escalation territory.
const DegradedAnswer = "죄송하지만 지금은 답변을 생성할 수 없습니다. 잠시 후 다시 질문해 주시거나, 급한 경우 헬프데스크 담당자에게 문의해 주세요."

// Embedder produces embeddings and grounded answers. Satisfied by the llm
// client.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	GenerateAnswer(ctx context.Context, question string, passages []Passage, history []Turn) (string, error)
}

// Service answers questions over the indexed ERP manuals.
type Service struct {
	llm          Embedder
	vectorDB     *milvus.Client
	store        *knowledge.Store
	topK         int
	chunkSize    int
	chunkOverlap int
}

func NewService(llm Embedder, vectorDB *milvus.Client, store *knowledge.Store, topK, chunkSize, chunkOverlap int) *Service {
	if topK <= 0 {
		topK = 5
	}
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap <= 0 {
		chunkOverlap = 100
	}
	return &Service{
		llm:          llm,
		vectorDB:     vectorDB,
		store:        store,
		topK:         topK,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Answer retrieves the best-matching manual passages and generates a
// grounded answer. History is the caller-owned bounded window of prior
// turns in this session. Failures degrade to a fixed apology answer rather
// than surfacing an error to the chat path.
func (s *Service) Answer(ctx context.Context, question string, history []Turn) *Response {
	passages, err := s.searchPassages(ctx, question)
	if err != nil {
		logger.Warn("Passage retrieval failed, answering without context",
			zap.Error(err),
		)
		passages = nil
	}

	answer, err := s.llm.GenerateAnswer(ctx, question, passages, history)
	if err != nil {
		logger.Error("Answer generation failed",
			zap.Error(err),
		)
		return &Response{Answer: DegradedAnswer}
	}

	return &Response{
		Answer:   answer,
		Passages: passages,
	}
}

func (s *Service) searchPassages(ctx context.Context, question string) ([]Passage, error) {
	if s.vectorDB == nil {
		return nil, nil
	}

	embedding, err := s.llm.GenerateEmbedding(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	results, err := s.vectorDB.Search(ctx, embedding, s.topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	passages := make([]Passage, 0, len(results))
	for _, r := range results {
		passages = append(passages, Passage{
			Content: r.Text,
			Source:  r.SourceName,
		})
	}
	return passages, nil
}

// Reindex rebuilds the vector collection from the current manual set,
// including QnA blocks appended by the learning loop.
func (s *Service) Reindex(ctx context.Context) error {
	if s.vectorDB == nil {
		logger.Warn("Vector DB not configured, skipping reindex")
		return nil
	}

	start := time.Now()

	docs, err := s.store.AllDocuments()
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}

	var chunks []milvus.ManualChunk
	var texts []string
	for _, doc := range docs {
		for i, text := range s.chunkText(doc.Content) {
			chunks = append(chunks, milvus.ManualChunk{
				ID:         fmt.Sprintf("%s_%d", utils.HashString(doc.Name), i),
				Text:       text,
				SourceName: doc.Name,
			})
			texts = append(texts, text)
		}
	}

	if len(chunks) == 0 {
		logger.Warn("No documents to index")
		return nil
	}

	embeddings, err := s.llm.GenerateBatchEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	if err := s.vectorDB.DropCollection(ctx); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	if err := s.vectorDB.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	if err := s.vectorDB.Insert(ctx, chunks); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}

	logger.Info("Reindex completed",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return nil
}

func (s *Service) chunkText(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var currentChunk strings.Builder
	currentSize := 0

	for _, word := range words {
		wordLen := len(word) + 1

		if currentSize+wordLen > s.chunkSize && currentChunk.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(currentChunk.String()))

			overlapWords := strings.Fields(currentChunk.String())
			overlapStart := len(overlapWords) - s.chunkOverlap/10
			if overlapStart < 0 {
				overlapStart = 0
			}
			currentChunk.Reset()
			currentChunk.WriteString(strings.Join(overlapWords[overlapStart:], " ") + " ")
			currentSize = currentChunk.Len()
		}

		currentChunk.WriteString(word + " ")
		currentSize += wordLen
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
	}

	return chunks
}
