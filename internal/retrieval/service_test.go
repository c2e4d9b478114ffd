package retrieval

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrfila/helpdesk/internal/knowledge"
)

type fakeEmbedder struct {
	answer    string
	answerErr error
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (f *fakeEmbedder) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (f *fakeEmbedder) GenerateAnswer(ctx context.Context, question string, passages []Passage, history []Turn) (string, error) {
	return f.answer, f.answerErr
}

func newTestService(t *testing.T, llm Embedder) *Service {
	t.Helper()
	dir := t.TempDir()
	store := knowledge.NewStore(filepath.Join(dir, "qna.txt"), dir)
	return NewService(llm, nil, store, 5, 100, 20)
}

func TestAnswerWithoutVectorStore(t *testing.T) {
	svc := newTestService(t, &fakeEmbedder{answer: "재고관리 메뉴에서 확인하세요"})

	resp := svc.Answer(context.Background(), "재고 확인 방법", nil)

	assert.Equal(t, "재고관리 메뉴에서 확인하세요", resp.Answer)
	assert.Empty(t, resp.Passages)
}

func TestAnswerDegradesOnGenerationFailure(t *testing.T) {
	svc := newTestService(t, &fakeEmbedder{answerErr: errors.New("upstream down")})

	resp := svc.Answer(context.Background(), "재고 확인 방법", nil)

	assert.Equal(t, DegradedAnswer, resp.Answer)
	assert.Empty(t, resp.Passages)
}

func TestChunkText(t *testing.T) {
	svc := newTestService(t, &fakeEmbedder{})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, svc.chunkText(""))
		assert.Nil(t, svc.chunkText("   "))
	})

	t.Run("short text is one chunk", func(t *testing.T) {
		chunks := svc.chunkText("재고조사 절차 안내")
		require.Len(t, chunks, 1)
		assert.Equal(t, "재고조사 절차 안내", chunks[0])
	})

	t.Run("long text is split with overlap", func(t *testing.T) {
		text := strings.TrimSpace(strings.Repeat("단어 ", 200))
		chunks := svc.chunkText(text)

		require.Greater(t, len(chunks), 1)
		for _, chunk := range chunks {
			assert.NotEmpty(t, chunk)
		}

		// Overlap carries trailing words of each chunk into the next.
		first := strings.Fields(chunks[0])
		second := strings.Fields(chunks[1])
		assert.Equal(t, first[len(first)-1], second[0])
	})
}
