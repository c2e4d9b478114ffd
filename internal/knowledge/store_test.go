package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return NewStore(filepath.Join(dir, "qna.txt"), dir), dir
}

func TestParseQnA(t *testing.T) {
	t.Run("plain blocks", func(t *testing.T) {
		content := "## Q: 재고조사 방법은?\nA: 재고관리 메뉴에서 실사 등록을 선택합니다.\n\n## Q: 전표 삭제는?\nA: 회계 전표 조회에서 삭제 버튼을 누릅니다.\n"

		entries := ParseQnA(content)
		require.Len(t, entries, 2)
		assert.Equal(t, "재고조사 방법은?", entries[0].Question)
		assert.Equal(t, "재고관리 메뉴에서 실사 등록을 선택합니다.", entries[0].Answer)
		assert.Equal(t, "전표 삭제는?", entries[1].Question)
	})

	t.Run("numbered headers", func(t *testing.T) {
		content := "## Q1: 로그인이 안 됩니다\nA: 비밀번호 초기화를 요청하세요.\n"

		entries := ParseQnA(content)
		require.Len(t, entries, 1)
		assert.Equal(t, "로그인이 안 됩니다", entries[0].Question)
	})

	t.Run("blocks without answer skipped", func(t *testing.T) {
		content := "## Q: 질문만 있음\n설명 없는 줄\n\n## Q: 정상 블록\nA: 정상 답변\n"

		entries := ParseQnA(content)
		require.Len(t, entries, 1)
		assert.Equal(t, "정상 블록", entries[0].Question)
	})

	t.Run("empty content", func(t *testing.T) {
		assert.Empty(t, ParseQnA(""))
	})
}

func TestQnAEntriesMissingFile(t *testing.T) {
	store, _ := newTestStore(t)

	entries, err := store.QnAEntries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAppendQnARoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.AppendQnA("출하 등록 방법", "영업 메뉴에서 출하 등록을 선택합니다"))
	require.NoError(t, store.AppendQnA("연차 신청", "인사 메뉴의 휴가 신청에서 진행합니다"))

	entries, err := store.QnAEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "출하 등록 방법", entries[0].Question)
	assert.Equal(t, "영업 메뉴에서 출하 등록을 선택합니다", entries[0].Answer)
	assert.Equal(t, "연차 신청", entries[1].Question)
}

func TestRewriteAnswer(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.AppendQnA("출하 등록 방법", "이전 답변"))
	require.NoError(t, store.AppendQnA("연차 신청", "휴가 신청 메뉴"))

	t.Run("rewrites anchored block", func(t *testing.T) {
		found, err := store.RewriteAnswer("출하 등록 방법", "수정된 답변")
		require.NoError(t, err)
		assert.True(t, found)

		entries, err := store.QnAEntries()
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "수정된 답변", entries[0].Answer)
		assert.Equal(t, "휴가 신청 메뉴", entries[1].Answer)
	})

	t.Run("missing anchor reports not found", func(t *testing.T) {
		found, err := store.RewriteAnswer("존재하지 않는 질문", "무엇이든")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestManualDocs(t *testing.T) {
	store, dir := newTestStore(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "inventory.txt"), []byte("재고조사 절차 안내"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "accounting.html"),
		[]byte("<html><head><style>p{}</style></head><body><nav>메뉴</nav><p>전표 입력 절차</p></body></html>"), 0644))
	require.NoError(t, store.AppendQnA("질문", "답변"))

	docs, err := store.ManualDocs()
	require.NoError(t, err)
	require.Len(t, docs, 2)

	byName := map[string]string{}
	for _, d := range docs {
		byName[d.Name] = d.Content
	}

	assert.Equal(t, "재고조사 절차 안내", byName["inventory.txt"])
	assert.Equal(t, "전표 입력 절차", byName["accounting.html"])
	assert.NotContains(t, byName, "qna.txt")
}

func TestAllDocumentsIncludesQnABlocks(t *testing.T) {
	store, dir := newTestStore(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "manual.txt"), []byte("매뉴얼 본문"), 0644))
	require.NoError(t, store.AppendQnA("질문 하나", "답변 하나"))

	docs, err := store.AllDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "manual.txt", docs[0].Name)
	assert.Equal(t, "qna.txt#1", docs[1].Name)
	assert.Contains(t, docs[1].Content, "질문 하나")
	assert.Contains(t, docs[1].Content, "답변 하나")
}
