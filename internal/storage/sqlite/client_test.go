package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrfila/helpdesk/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.InitSchema())
	return client
}

func saveRecord(t *testing.T, c *Client, confidence int, sources ...models.ChatSource) int64 {
	t.Helper()

	id, err := c.SaveChatRecord(&models.ChatRecord{
		SessionID:       "session-1",
		Question:        "재고조사 방법은?",
		Answer:          "재고관리 메뉴에서 실사 등록을 선택합니다",
		Confidence:      confidence,
		ConfidenceLevel: "높음",
		SourcesCount:    len(sources),
		Sources:         sources,
	})
	require.NoError(t, err)
	return id
}

func TestSaveChatRecordAndListRecent(t *testing.T) {
	client := newTestClient(t)

	id := saveRecord(t, client, 75,
		models.ChatSource{Name: "inventory.txt", Content: "재고조사 절차", Relevance: "관련 문서"},
		models.ChatSource{Name: "qna.txt#2", Content: "Q: ...", Relevance: "관련 문서"},
	)
	assert.Greater(t, id, int64(0))

	records, err := client.ListRecent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, id, r.ID)
	assert.Equal(t, "session-1", r.SessionID)
	assert.Equal(t, "재고조사 방법은?", r.Question)
	assert.Equal(t, 75, r.Confidence)
	assert.Equal(t, models.LearnedStatusPending, r.LearnedStatus)
	assert.Len(t, r.Sources, 2)
	assert.False(t, r.CreatedAt.IsZero())
}

func TestGetChatQuestion(t *testing.T) {
	client := newTestClient(t)
	id := saveRecord(t, client, 50)

	question, err := client.GetChatQuestion(id)
	require.NoError(t, err)
	assert.Equal(t, "재고조사 방법은?", question)

	_, err = client.GetChatQuestion(9999)
	assert.Error(t, err)
}

func TestSaveLearnedAnswerFlipsStatus(t *testing.T) {
	client := newTestClient(t)
	id := saveRecord(t, client, 40)

	learnedID, err := client.SaveLearnedAnswer(id, "정정된 답변입니다")
	require.NoError(t, err)
	assert.Greater(t, learnedID, int64(0))

	records, err := client.ListRecent(1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.LearnedStatusLearned, records[0].LearnedStatus)

	// A second correction only adds a row; the status stays learned.
	_, err = client.SaveLearnedAnswer(id, "두 번째 정정")
	require.NoError(t, err)

	answers, err := client.GetLearnedAnswers(id)
	require.NoError(t, err)
	require.Len(t, answers, 2)

	texts := []string{answers[0].CorrectAnswer, answers[1].CorrectAnswer}
	assert.ElementsMatch(t, []string{"정정된 답변입니다", "두 번째 정정"}, texts)
	assert.Equal(t, "재고조사 방법은?", answers[0].Question)

	records, err = client.ListRecent(1)
	require.NoError(t, err)
	assert.Equal(t, models.LearnedStatusLearned, records[0].LearnedStatus)
}

func TestGetAndUpdateLearnedAnswer(t *testing.T) {
	client := newTestClient(t)
	id := saveRecord(t, client, 40)

	learnedID, err := client.SaveLearnedAnswer(id, "최초 답변")
	require.NoError(t, err)

	learned, err := client.GetLearnedAnswer(learnedID)
	require.NoError(t, err)
	assert.Equal(t, "최초 답변", learned.CorrectAnswer)
	assert.Equal(t, "재고조사 방법은?", learned.Question)
	assert.Equal(t, id, learned.ChatID)

	require.NoError(t, client.UpdateLearnedAnswer(learnedID, "수정된 답변"))

	learned, err = client.GetLearnedAnswer(learnedID)
	require.NoError(t, err)
	assert.Equal(t, "수정된 답변", learned.CorrectAnswer)

	assert.Error(t, client.UpdateLearnedAnswer(9999, "없는 행"))
}

func TestSaveEscalation(t *testing.T) {
	client := newTestClient(t)
	id := saveRecord(t, client, 20)

	escID, err := client.SaveEscalation(id, true)
	require.NoError(t, err)
	assert.Greater(t, escID, int64(0))

	_, err = client.SaveEscalation(id, false)
	require.NoError(t, err)
}

func TestGetLowConfidenceStats(t *testing.T) {
	client := newTestClient(t)

	lowID := saveRecord(t, client, 30)
	saveRecord(t, client, 60)
	saveRecord(t, client, 90)

	_, err := client.SaveEscalation(lowID, true)
	require.NoError(t, err)

	stats, err := client.GetLowConfidenceStats()
	require.NoError(t, err)

	// 90 is above the escalation threshold and excluded.
	assert.Equal(t, 2, stats.TotalLowConfidence)
	assert.Equal(t, 45, stats.AverageConfidence)
	assert.Equal(t, 1, stats.NotificationsSent)
}
