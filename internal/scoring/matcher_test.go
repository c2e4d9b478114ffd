package scoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrfila/helpdesk/internal/keyword"
	"github.com/mrfila/helpdesk/internal/knowledge"
	"github.com/mrfila/helpdesk/internal/retrieval"
)

func newTestMatcher(t *testing.T) (*Matcher, *knowledge.Store, string) {
	t.Helper()
	dir := t.TempDir()
	store := knowledge.NewStore(filepath.Join(dir, "qna.txt"), dir)
	return NewMatcher(store, keyword.NewExtractor()), store, dir
}

func TestCheckKnownQnALog(t *testing.T) {
	m, store, _ := newTestMatcher(t)

	require.NoError(t, store.AppendQnA("출하 등록 방법", "영업 메뉴에서 출하 등록을 선택합니다"))

	resp := &retrieval.Response{Answer: "영업 메뉴에서 출하 등록을 선택합니다"}
	result := m.CheckKnown("출하 등록 방법", resp)

	assert.True(t, result.Known)
	assert.Equal(t, SourceQnALog, result.SourceLabel)
	assert.Equal(t, 100.0, result.Score)
	require.NotNil(t, result.Entry)
	assert.Equal(t, "출하 등록 방법", result.Entry.Question)
}

func TestCheckKnownManual(t *testing.T) {
	m, _, dir := newTestMatcher(t)

	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "sales.txt"),
		[]byte("출하 등록 방법 안내: 영업 메뉴에서 출하 등록을 선택합니다"),
		0644,
	))

	resp := &retrieval.Response{Answer: "영업 메뉴에서 출하 등록을 선택합니다"}
	result := m.CheckKnown("출하 등록 방법 안내", resp)

	assert.True(t, result.Known)
	assert.Equal(t, SourceManual, result.SourceLabel)
	assert.Equal(t, "sales.txt", result.SourceName)
}

func TestCheckKnownPassage(t *testing.T) {
	m, _, _ := newTestMatcher(t)

	resp := &retrieval.Response{
		Answer: "재고 입고 처리",
		Passages: []retrieval.Passage{
			{Content: "재고 입고", Source: "inventory.txt"},
		},
	}
	result := m.CheckKnown("재고 입고", resp)

	assert.True(t, result.Known)
	assert.Equal(t, SourcePassage, result.SourceLabel)
	assert.Equal(t, "inventory.txt", result.SourceName)
}

func TestCheckKnownNoMatch(t *testing.T) {
	m, store, _ := newTestMatcher(t)

	require.NoError(t, store.AppendQnA("급여 명세서 조회", "인사 메뉴에서 조회합니다"))

	resp := &retrieval.Response{Answer: "창고 출하 절차에 따라 진행합니다"}
	result := m.CheckKnown("창고 출하 절차", resp)

	assert.False(t, result.Known)
}

func TestCheckKnownSourceFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	// Manuals dir does not exist; the QnA log does.
	store := knowledge.NewStore(filepath.Join(dir, "qna.txt"), filepath.Join(dir, "missing"))
	require.NoError(t, store.AppendQnA("출하 등록 방법", "영업 메뉴에서 출하 등록을 선택합니다"))

	m := NewMatcher(store, keyword.NewExtractor())

	resp := &retrieval.Response{Answer: "영업 메뉴에서 출하 등록을 선택합니다"}
	result := m.CheckKnown("출하 등록 방법", resp)

	assert.True(t, result.Known)
	assert.Equal(t, SourceQnALog, result.SourceLabel)
}
