package chat

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrfila/helpdesk/internal/category"
	"github.com/mrfila/helpdesk/internal/keyword"
	"github.com/mrfila/helpdesk/internal/knowledge"
	"github.com/mrfila/helpdesk/internal/notify"
	"github.com/mrfila/helpdesk/internal/retrieval"
	"github.com/mrfila/helpdesk/internal/scoring"
	"github.com/mrfila/helpdesk/internal/storage/models"
	"github.com/mrfila/helpdesk/internal/storage/sqlite"
)

type fakeResponder struct {
	mu        sync.Mutex
	resp      *retrieval.Response
	histories [][]retrieval.Turn
	reindexed chan struct{}
}

func (f *fakeResponder) Answer(ctx context.Context, question string, history []retrieval.Turn) *retrieval.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	captured := make([]retrieval.Turn, len(history))
	copy(captured, history)
	f.histories = append(f.histories, captured)
	return f.resp
}

func (f *fakeResponder) Reindex(ctx context.Context) error {
	if f.reindexed != nil {
		select {
		case f.reindexed <- struct{}{}:
		default:
		}
	}
	return nil
}

func (f *fakeResponder) lastHistory() []retrieval.Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.histories) == 0 {
		return nil
	}
	return f.histories[len(f.histories)-1]
}

func newTestEngine(t *testing.T, responder *fakeResponder) (*Engine, *sqlite.Client, *knowledge.Store) {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	dir := t.TempDir()
	store := knowledge.NewStore(filepath.Join(dir, "qna.txt"), dir)

	kw := keyword.NewExtractor()
	scorer := scoring.NewEngine(scoring.NewMatcher(store, kw), kw, scoring.DefaultPhrases())
	notifier := notify.NewNotifier("", time.Second, db)

	engine := NewEngine(responder, scorer, category.NewRouter(), notifier, db, store, nil, 0, 2)
	return engine, db, store
}

func groundedResponse() *retrieval.Response {
	return &retrieval.Response{
		Answer: "재고조사 방법은 다음과 같습니다. 재고관리 메뉴에서 실사 등록을 선택합니다.",
		Passages: []retrieval.Passage{
			{Content: "재고조사 방법 안내", Source: "inventory.txt"},
		},
	}
}

func TestAskGroundedTurn(t *testing.T) {
	responder := &fakeResponder{resp: groundedResponse()}
	engine, db, _ := newTestEngine(t, responder)

	result, err := engine.Ask(context.Background(), "", "재고조사 방법")
	require.NoError(t, err)

	assert.NotEmpty(t, result.SessionID)
	assert.Greater(t, result.ChatID, int64(0))
	assert.GreaterOrEqual(t, result.Confidence, 80)
	assert.Equal(t, "매우 높음", result.ConfidenceLevel)
	assert.Equal(t, "재고관리", result.Category)
	assert.False(t, result.Escalated)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "inventory.txt", result.Sources[0].Name)

	records, err := db.ListRecent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, result.ChatID, records[0].ID)
	assert.Equal(t, result.Confidence, records[0].Confidence)
	assert.Equal(t, models.LearnedStatusPending, records[0].LearnedStatus)
}

func TestAskLowConfidenceEscalates(t *testing.T) {
	responder := &fakeResponder{resp: &retrieval.Response{
		Answer: "죄송하지만 해당 내용은 잘 모르겠습니다.",
	}}
	engine, _, _ := newTestEngine(t, responder)

	result, err := engine.Ask(context.Background(), "", "수불 마감 기준")
	require.NoError(t, err)

	assert.LessOrEqual(t, result.Confidence, notify.EscalationThreshold)
	assert.True(t, result.Escalated)
}

func TestAskHistoryBounded(t *testing.T) {
	responder := &fakeResponder{resp: groundedResponse()}
	engine, _, _ := newTestEngine(t, responder)

	ctx := context.Background()
	session := "session-a"

	for i := 0; i < 4; i++ {
		_, err := engine.Ask(ctx, session, "재고조사 방법")
		require.NoError(t, err)
	}

	// historyTurns is 2: the fourth call sees only the last two turns.
	last := responder.lastHistory()
	assert.Len(t, last, 2)

	// A different session starts clean.
	_, err := engine.Ask(ctx, "session-b", "재고조사 방법")
	require.NoError(t, err)
	assert.Empty(t, responder.lastHistory())
}

func TestLearnAnswer(t *testing.T) {
	responder := &fakeResponder{
		resp:      groundedResponse(),
		reindexed: make(chan struct{}, 1),
	}
	engine, db, store := newTestEngine(t, responder)

	result, err := engine.Ask(context.Background(), "", "재고조사 방법")
	require.NoError(t, err)

	learnedID, err := engine.LearnAnswer(context.Background(), result.ChatID, "정정: 실사는 분기마다 진행합니다")
	require.NoError(t, err)
	assert.Greater(t, learnedID, int64(0))

	entries, err := store.QnAEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "재고조사 방법", entries[0].Question)
	assert.Equal(t, "정정: 실사는 분기마다 진행합니다", entries[0].Answer)

	records, err := db.ListRecent(1)
	require.NoError(t, err)
	assert.Equal(t, models.LearnedStatusLearned, records[0].LearnedStatus)

	select {
	case <-responder.reindexed:
	case <-time.After(2 * time.Second):
		t.Fatal("reindex was not triggered")
	}
}

func TestEditLearnedAnswer(t *testing.T) {
	responder := &fakeResponder{resp: groundedResponse()}
	engine, db, store := newTestEngine(t, responder)

	result, err := engine.Ask(context.Background(), "", "재고조사 방법")
	require.NoError(t, err)

	learnedID, err := engine.LearnAnswer(context.Background(), result.ChatID, "최초 정정")
	require.NoError(t, err)

	require.NoError(t, engine.EditLearnedAnswer(context.Background(), learnedID, "다시 정정"))

	learned, err := db.GetLearnedAnswer(learnedID)
	require.NoError(t, err)
	assert.Equal(t, "다시 정정", learned.CorrectAnswer)

	entries, err := store.QnAEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "다시 정정", entries[0].Answer)
}

func TestLearnAnswerUnknownChat(t *testing.T) {
	responder := &fakeResponder{resp: groundedResponse()}
	engine, _, _ := newTestEngine(t, responder)

	_, err := engine.LearnAnswer(context.Background(), 9999, "무엇이든")
	assert.Error(t, err)
}
