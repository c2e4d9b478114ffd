package models

import "time"

const (
	LearnedStatusPending = "pending"
	LearnedStatusLearned = "learned"
)

type ChatRecord struct {
	ID              int64
	SessionID       string
	Question        string
	Answer          string
	Confidence      int
	ConfidenceLevel string
	SourcesCount    int
	LearnedStatus   string
	CreatedAt       time.Time
	Sources         []ChatSource
}

type ChatSource struct {
	ID        int64
	ChatID    int64
	Name      string
	Content   string
	Relevance string
}

// EscalationAlert is created at most once per chat record; the delivery
// outcome is write-once.
type EscalationAlert struct {
	ID        int64
	ChatID    int64
	Sent      bool
	SentAt    *time.Time
	CreatedAt time.Time
}

type LearnedAnswer struct {
	ID            int64
	ChatID        int64
	Question      string
	CorrectAnswer string
	CreatedAt     time.Time
}

type LowConfidenceStats struct {
	TotalLowConfidence int
	AverageConfidence  int
	NotificationsSent  int
}
