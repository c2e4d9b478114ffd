package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrfila/helpdesk/internal/category"
)

type fakeRecorder struct {
	outcomes chan bool
}

func (f *fakeRecorder) SaveEscalation(chatID int64, sent bool) (int64, error) {
	f.outcomes <- sent
	return 1, nil
}

func TestEscalateIfNeededThreshold(t *testing.T) {
	n := NewNotifier("", time.Second, nil)

	assert.False(t, n.EscalateIfNeeded(Alert{Confidence: 61}))
	assert.False(t, n.EscalateIfNeeded(Alert{Confidence: 100}))
	assert.True(t, n.EscalateIfNeeded(Alert{Confidence: 60}))
	assert.True(t, n.EscalateIfNeeded(Alert{Confidence: 0}))
}

func TestEscalationDelivery(t *testing.T) {
	received := make(chan MessageCard, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var card MessageCard
		json.Unmarshal(body, &card)
		received <- card
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	recorder := &fakeRecorder{outcomes: make(chan bool, 1)}
	n := NewNotifier(srv.URL, 2*time.Second, recorder)

	triggered := n.EscalateIfNeeded(Alert{
		ChatID:     7,
		Question:   "재고조사 방법",
		Answer:     "잘 모르겠습니다",
		Confidence: 25,
		Assignment: category.Assignment{
			Category: "재고관리",
			Assignee: category.Assignee{Name: "재고관리 담당자", Handle: "inventory@mrfila.co.kr"},
		},
	})
	require.True(t, triggered)

	select {
	case card := <-received:
		assert.Equal(t, "MessageCard", card.Type)
		assert.Equal(t, "FF6B6B", card.ThemeColor)
		require.Len(t, card.Sections, 1)
	case <-time.After(3 * time.Second):
		t.Fatal("webhook was not called")
	}

	select {
	case sent := <-recorder.outcomes:
		assert.True(t, sent)
	case <-time.After(3 * time.Second):
		t.Fatal("escalation outcome was not recorded")
	}
}

func TestEscalationRecordedWithoutWebhook(t *testing.T) {
	recorder := &fakeRecorder{outcomes: make(chan bool, 1)}
	n := NewNotifier("", time.Second, recorder)

	require.True(t, n.EscalateIfNeeded(Alert{ChatID: 3, Confidence: 10}))

	select {
	case sent := <-recorder.outcomes:
		assert.False(t, sent)
	case <-time.After(2 * time.Second):
		t.Fatal("escalation outcome was not recorded")
	}
}

func TestBuildMessageCard(t *testing.T) {
	card := BuildMessageCard(Alert{
		ChatID:     1,
		Question:   "전표 삭제 방법",
		Answer:     "회계 메뉴에서 삭제합니다",
		Confidence: 55,
		Assignment: category.Assignment{
			Category: "회계",
			Assignee: category.Assignee{Name: "회계 담당자", Handle: "finance@mrfila.co.kr"},
		},
	})

	assert.Equal(t, "MessageCard", card.Type)
	assert.Equal(t, "http://schema.org/extensions", card.Context)
	assert.Equal(t, "FFA500", card.ThemeColor)
	require.Len(t, card.Sections, 1)

	facts := map[string]string{}
	for _, f := range card.Sections[0].Facts {
		facts[f.Name] = f.Value
	}
	assert.Equal(t, "회계 담당자/finance@mrfila.co.kr", facts["담당자"])
	assert.Equal(t, "전표 삭제 방법", facts["질문"])
	assert.Equal(t, "55%", facts["신뢰도"])
}

func TestMessageCardTimestampKST(t *testing.T) {
	card := BuildMessageCard(Alert{Confidence: 10})

	facts := map[string]string{}
	for _, f := range card.Sections[0].Facts {
		facts[f.Name] = f.Value
	}

	// The rendered time must be Korean time regardless of server timezone.
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", facts["시간"], kst)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().In(kst), ts, time.Minute)
}

func TestThemeColor(t *testing.T) {
	assert.Equal(t, "FFA500", themeColor(60))
	assert.Equal(t, "FFA500", themeColor(40))
	assert.Equal(t, "FF6B6B", themeColor(39))
	assert.Equal(t, "FF6B6B", themeColor(20))
	assert.Equal(t, "DC143C", themeColor(19))
	assert.Equal(t, "DC143C", themeColor(0))
}

func TestMessageCardTruncation(t *testing.T) {
	long := strings.Repeat("가", 600)
	card := BuildMessageCard(Alert{Question: long, Answer: long})

	facts := map[string]string{}
	for _, f := range card.Sections[0].Facts {
		facts[f.Name] = f.Value
	}

	assert.Len(t, []rune(facts["질문"]), 503)
	assert.True(t, strings.HasSuffix(facts["질문"], "..."))
	assert.Len(t, []rune(facts["제공된 답변"]), 503)
}
