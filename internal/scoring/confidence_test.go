package scoring

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrfila/helpdesk/internal/keyword"
	"github.com/mrfila/helpdesk/internal/knowledge"
	"github.com/mrfila/helpdesk/internal/retrieval"
)

func newTestEngine(t *testing.T) (*Engine, *knowledge.Store) {
	t.Helper()
	dir := t.TempDir()
	store := knowledge.NewStore(filepath.Join(dir, "qna.txt"), dir)
	kw := keyword.NewExtractor()
	engine := NewEngine(NewMatcher(store, kw), kw, DefaultPhrases())
	return engine, store
}

func TestCalculateKnownAnswer(t *testing.T) {
	engine, store := newTestEngine(t)

	require.NoError(t, store.AppendQnA("재고조사 방법은?", "재고관리 메뉴에서 실사 등록을 선택합니다"))

	resp := &retrieval.Response{
		Answer: "재고관리 메뉴에서 실사 등록을 선택합니다",
	}

	// A turn that duplicates a learned entry maps to the top band.
	conf := engine.Calculate("재고조사 방법은?", resp)
	assert.Equal(t, 95, conf)
}

func TestCalculateGroundedAnswer(t *testing.T) {
	engine, _ := newTestEngine(t)

	resp := &retrieval.Response{
		Answer: "재고조사 방법은 다음과 같습니다. 재고관리 메뉴에서 실사 등록을 선택합니다.",
		Passages: []retrieval.Passage{
			{Content: "재고조사 방법 절차 안내", Source: "inventory.txt"},
		},
	}

	conf := engine.Calculate("재고조사 방법", resp)
	assert.GreaterOrEqual(t, conf, 80)
	assert.LessOrEqual(t, conf, 100)
}

func TestCalculateUncertainAnswer(t *testing.T) {
	engine, _ := newTestEngine(t)

	t.Run("with passages capped at 15", func(t *testing.T) {
		resp := &retrieval.Response{
			Answer: "죄송하지만 해당 내용은 잘 모르겠습니다.",
			Passages: []retrieval.Passage{
				{Content: "재고조사 절차", Source: "inventory.txt"},
			},
		}

		conf := engine.Calculate("재고조사 방법", resp)
		assert.LessOrEqual(t, conf, 15)
	})

	t.Run("without passages capped at 5", func(t *testing.T) {
		resp := &retrieval.Response{
			Answer: "죄송하지만 해당 내용은 잘 모르겠습니다.",
		}

		conf := engine.Calculate("재고조사 방법", resp)
		assert.LessOrEqual(t, conf, 5)
	})
}

func TestCalculateNoPassagesCapped(t *testing.T) {
	engine, _ := newTestEngine(t)

	resp := &retrieval.Response{
		Answer: "재고조사 방법은 다음과 같습니다. 재고관리 메뉴에서 실사 등록 후 확정합니다.",
	}

	// Confident prose without any corroborating document never exceeds 30.
	conf := engine.Calculate("재고조사 방법", resp)
	assert.LessOrEqual(t, conf, 30)
	assert.Greater(t, conf, 0)
}

func TestCalculateBounds(t *testing.T) {
	engine, _ := newTestEngine(t)

	resp := &retrieval.Response{
		Answer: strings.Repeat("재고조사 절차 상세 안내 ", 20),
		Passages: []retrieval.Passage{
			{Content: "재고조사 절차", Source: "a.txt"},
			{Content: "재고조사 안내", Source: "b.txt"},
			{Content: "재고조사 확정", Source: "c.txt"},
			{Content: "재고조사 등록", Source: "d.txt"},
			{Content: "재고조사 실사", Source: "e.txt"},
		},
	}

	conf := engine.Calculate("재고조사", resp)
	assert.GreaterOrEqual(t, conf, 0)
	assert.LessOrEqual(t, conf, 100)
}

func TestKnownBand(t *testing.T) {
	assert.Equal(t, 95, knownBand(92))
	assert.Equal(t, 85, knownBand(85))
	assert.Equal(t, 75, knownBand(70))
	assert.Equal(t, 70, knownBand(64))
	assert.Equal(t, 65, knownBand(10))
}

func TestLevel(t *testing.T) {
	assert.Equal(t, "매우 높음", Level(95))
	assert.Equal(t, "매우 높음", Level(80))
	assert.Equal(t, "높음", Level(79))
	assert.Equal(t, "높음", Level(60))
	assert.Equal(t, "보통", Level(59))
	assert.Equal(t, "보통", Level(40))
	assert.Equal(t, "낮음", Level(39))
	assert.Equal(t, "낮음", Level(20))
	assert.Equal(t, "매우 낮음", Level(19))
	assert.Equal(t, "매우 낮음", Level(0))
}
