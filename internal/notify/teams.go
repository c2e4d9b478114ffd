package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mrfila/helpdesk/internal/category"
	"github.com/mrfila/helpdesk/internal/metrics"
	"github.com/mrfila/helpdesk/pkg/logger"
	"github.com/mrfila/helpdesk/pkg/retry"
)

// EscalationThreshold is the confidence at or below which a chat turn is
// escalated to a human.
const EscalationThreshold = 60

const maxFieldLen = 500

// Card timestamps are always reported in Korean time, wherever the server
// runs. A fixed offset covers hosts without a zone database.
var kst = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}()

// EscalationRecorder persists the outcome of an escalation attempt.
type EscalationRecorder interface {
	SaveEscalation(chatID int64, sent bool) (int64, error)
}

// Alert carries everything the Teams card needs for one escalation.
type Alert struct {
	ChatID          int64
	Question        string
	Answer          string
	Confidence      int
	ConfidenceLevel string
	Sources         []string
	Assignment      category.Assignment
}

// Notifier posts low-confidence alerts to a Teams incoming webhook. An empty
// webhook URL disables delivery but escalation outcomes are still recorded.
type Notifier struct {
	webhookURL string
	client     *http.Client
	recorder   EscalationRecorder
}

func NewNotifier(webhookURL string, timeout time.Duration, recorder EscalationRecorder) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		recorder:   recorder,
	}
}

// EscalateIfNeeded fires the alert in the background when the confidence is
// at or below the threshold. It never blocks the caller and never returns
// delivery errors to the chat path.
func (n *Notifier) EscalateIfNeeded(alert Alert) bool {
	if alert.Confidence > EscalationThreshold {
		return false
	}

	go n.deliver(alert)
	return true
}

func (n *Notifier) deliver(alert Alert) {
	sent := false
	outcome := "skipped"

	if n.webhookURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), n.client.Timeout)
		defer cancel()

		cfg := retry.DefaultConfig()
		cfg.Logger = logger.GetLogger()

		err := retry.Do(ctx, cfg, func() error {
			return n.post(ctx, alert)
		})
		if err != nil {
			outcome = "failed"
			logger.Error("Teams webhook delivery failed",
				zap.Int64("chat_id", alert.ChatID),
				zap.Error(err),
			)
		} else {
			sent = true
			outcome = "sent"
		}
	} else {
		logger.Warn("Teams webhook not configured, skipping delivery",
			zap.Int64("chat_id", alert.ChatID),
		)
	}

	metrics.EscalationsTotal.WithLabelValues(outcome).Inc()

	if n.recorder != nil {
		if _, err := n.recorder.SaveEscalation(alert.ChatID, sent); err != nil {
			logger.Error("Failed to record escalation outcome",
				zap.Int64("chat_id", alert.ChatID),
				zap.Error(err),
			)
		}
	}
}

func (n *Notifier) post(ctx context.Context, alert Alert) error {
	payload := BuildMessageCard(alert)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}

// MessageCard is the legacy Teams connector card format.
type MessageCard struct {
	Type       string        `json:"@type"`
	Context    string        `json:"@context"`
	ThemeColor string        `json:"themeColor"`
	Summary    string        `json:"summary"`
	Sections   []CardSection `json:"sections"`
}

type CardSection struct {
	ActivityTitle    string     `json:"activityTitle"`
	ActivitySubtitle string     `json:"activitySubtitle"`
	Facts            []CardFact `json:"facts"`
	Markdown         bool       `json:"markdown"`
}

type CardFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// BuildMessageCard renders the escalation as a Teams MessageCard. Question
// and answer are truncated so oversized turns cannot break delivery.
func BuildMessageCard(alert Alert) MessageCard {
	confidence := fmt.Sprintf("%d%%", alert.Confidence)
	if alert.ConfidenceLevel != "" {
		confidence = fmt.Sprintf("%d%% (%s)", alert.Confidence, alert.ConfidenceLevel)
	}

	categoryLine := alert.Assignment.Category
	if alert.Assignment.MatchConfidence > 0 {
		categoryLine = fmt.Sprintf("%s (%d%%)", alert.Assignment.Category, alert.Assignment.MatchConfidence)
	}

	facts := []CardFact{
		{Name: "시간", Value: time.Now().In(kst).Format("2006-01-02 15:04:05")},
		{Name: "담당자", Value: alert.Assignment.Assignee.String()},
		{Name: "분류", Value: categoryLine},
		{Name: "신뢰도", Value: confidence},
		{Name: "질문", Value: truncate(alert.Question, maxFieldLen)},
		{Name: "제공된 답변", Value: truncate(alert.Answer, maxFieldLen)},
	}
	if len(alert.Assignment.MatchedKeywords) > 0 {
		facts = append(facts, CardFact{
			Name:  "매칭 키워드",
			Value: strings.Join(alert.Assignment.MatchedKeywords, ", "),
		})
	}
	facts = append(facts, CardFact{
		Name:  "참조 문서",
		Value: sourcesLine(alert.Sources),
	})

	return MessageCard{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		ThemeColor: themeColor(alert.Confidence),
		Summary:    "Mr.FILA 낮은 신뢰도 답변 알림",
		Sections: []CardSection{
			{
				ActivityTitle:    "🤖 Mr.FILA 답변 검토 요청",
				ActivitySubtitle: fmt.Sprintf("신뢰도 %d%% · %s", alert.Confidence, alert.Assignment.Category),
				Facts:            facts,
				Markdown:         true,
			},
		},
	}
}

func sourcesLine(sources []string) string {
	if len(sources) == 0 {
		return "0건"
	}
	return fmt.Sprintf("%d건: %s", len(sources), strings.Join(sources, ", "))
}

func themeColor(confidence int) string {
	switch {
	case confidence >= 40:
		return "FFA500"
	case confidence >= 20:
		return "FF6B6B"
	default:
		return "DC143C"
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
