package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mrfila/helpdesk/internal/storage/models"
	"github.com/mrfila/helpdesk/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		user_question TEXT NOT NULL,
		ai_answer TEXT NOT NULL,
		confidence INTEGER NOT NULL,
		confidence_level TEXT NOT NULL,
		sources_count INTEGER DEFAULT 0,
		learned_status TEXT DEFAULT 'pending',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_session ON chat_history(session_id);
	CREATE INDEX IF NOT EXISTS idx_chat_created ON chat_history(created_at);
	CREATE INDEX IF NOT EXISTS idx_chat_confidence ON chat_history(confidence);

	CREATE TABLE IF NOT EXISTS chat_sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER NOT NULL,
		source_name TEXT NOT NULL,
		source_content TEXT,
		relevance TEXT DEFAULT '관련 문서',
		FOREIGN KEY (chat_id) REFERENCES chat_history(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_sources_chat ON chat_sources(chat_id);

	CREATE TABLE IF NOT EXISTS low_confidence_alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER NOT NULL,
		notification_sent INTEGER DEFAULT 0,
		notification_sent_at INTEGER,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (chat_id) REFERENCES chat_history(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_chat ON low_confidence_alerts(chat_id);

	CREATE TABLE IF NOT EXISTS learned_answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER NOT NULL,
		correct_answer TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (chat_id) REFERENCES chat_history(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_learned_chat ON learned_answers(chat_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) SaveChatRecord(record *models.ChatRecord) (int64, error) {
	query := `
		INSERT INTO chat_history (session_id, user_question, ai_answer, confidence,
			confidence_level, sources_count, learned_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := c.db.Exec(
		query,
		record.SessionID,
		record.Question,
		record.Answer,
		record.Confidence,
		record.ConfidenceLevel,
		record.SourcesCount,
		models.LearnedStatusPending,
		createdAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert chat record: %w", err)
	}

	chatID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get chat record id: %w", err)
	}

	for _, source := range record.Sources {
		_, err := c.db.Exec(
			`INSERT INTO chat_sources (chat_id, source_name, source_content, relevance) VALUES (?, ?, ?, ?)`,
			chatID, source.Name, source.Content, source.Relevance,
		)
		if err != nil {
			logger.Warn("Failed to insert chat source",
				zap.Int64("chat_id", chatID),
				zap.String("source", source.Name),
				zap.Error(err),
			)
		}
	}

	logger.Info("Chat record saved",
		zap.Int64("chat_id", chatID),
		zap.Int("confidence", record.Confidence),
		zap.Int("sources", len(record.Sources)),
	)

	return chatID, nil
}

func (c *Client) SaveEscalation(chatID int64, sent bool) (int64, error) {
	var sentAt interface{}
	sentFlag := 0
	if sent {
		sentFlag = 1
		sentAt = time.Now().Unix()
	}

	res, err := c.db.Exec(
		`INSERT INTO low_confidence_alerts (chat_id, notification_sent, notification_sent_at, created_at) VALUES (?, ?, ?, ?)`,
		chatID, sentFlag, sentAt, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert escalation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get escalation id: %w", err)
	}

	logger.Info("Escalation recorded", zap.Int64("chat_id", chatID), zap.Bool("sent", sent))
	return id, nil
}

// SaveLearnedAnswer appends a correction row and flips the owning record to
// learned. The status flip is idempotent; repeat corrections only add rows.
func (c *Client) SaveLearnedAnswer(chatID int64, correctAnswer string) (int64, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO learned_answers (chat_id, correct_answer, created_at) VALUES (?, ?, ?)`,
		chatID, correctAnswer, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert learned answer: %w", err)
	}

	_, err = tx.Exec(
		`UPDATE chat_history SET learned_status = ? WHERE id = ?`,
		models.LearnedStatusLearned, chatID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update learned status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit learned answer: %w", err)
	}

	id, _ := res.LastInsertId()

	logger.Info("Learned answer saved", zap.Int64("chat_id", chatID), zap.Int64("learned_id", id))
	return id, nil
}

func (c *Client) GetChatQuestion(chatID int64) (string, error) {
	var question string
	err := c.db.QueryRow(`SELECT user_question FROM chat_history WHERE id = ?`, chatID).Scan(&question)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("chat record %d not found", chatID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get chat question: %w", err)
	}
	return question, nil
}

func (c *Client) ListRecent(limit int) ([]models.ChatRecord, error) {
	query := `
		SELECT
			ch.id, ch.session_id, ch.user_question, ch.ai_answer, ch.confidence,
			ch.confidence_level, ch.sources_count, ch.learned_status, ch.created_at,
			GROUP_CONCAT(cs.source_name, '|')
		FROM chat_history ch
		LEFT JOIN chat_sources cs ON ch.id = cs.chat_id
		GROUP BY ch.id
		ORDER BY ch.created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat history: %w", err)
	}
	defer rows.Close()

	var records []models.ChatRecord
	for rows.Next() {
		var r models.ChatRecord
		var createdAt int64
		var sourceNames sql.NullString

		err := rows.Scan(
			&r.ID, &r.SessionID, &r.Question, &r.Answer, &r.Confidence,
			&r.ConfidenceLevel, &r.SourcesCount, &r.LearnedStatus, &createdAt,
			&sourceNames,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0)
		if sourceNames.Valid && sourceNames.String != "" {
			for _, name := range strings.Split(sourceNames.String, "|") {
				r.Sources = append(r.Sources, models.ChatSource{ChatID: r.ID, Name: name})
			}
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

func (c *Client) GetLowConfidenceStats() (*models.LowConfidenceStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(AVG(ch.confidence), 0),
			COUNT(CASE WHEN lca.notification_sent = 1 THEN 1 END)
		FROM chat_history ch
		LEFT JOIN low_confidence_alerts lca ON ch.id = lca.chat_id
		WHERE ch.confidence <= 60
	`

	var stats models.LowConfidenceStats
	var avg float64
	err := c.db.QueryRow(query).Scan(&stats.TotalLowConfidence, &avg, &stats.NotificationsSent)
	if err != nil {
		return nil, fmt.Errorf("failed to get low confidence stats: %w", err)
	}
	stats.AverageConfidence = int(avg + 0.5)

	return &stats, nil
}

func (c *Client) GetLearnedAnswers(chatID int64) ([]models.LearnedAnswer, error) {
	query := `
		SELECT la.id, la.chat_id, la.correct_answer, la.created_at, ch.user_question
		FROM learned_answers la
		JOIN chat_history ch ON la.chat_id = ch.id
		WHERE la.chat_id = ?
		ORDER BY la.created_at ASC
	`

	rows, err := c.db.Query(query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to get learned answers: %w", err)
	}
	defer rows.Close()

	var answers []models.LearnedAnswer
	for rows.Next() {
		var a models.LearnedAnswer
		var createdAt int64
		err := rows.Scan(&a.ID, &a.ChatID, &a.CorrectAnswer, &createdAt, &a.Question)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		a.CreatedAt = time.Unix(createdAt, 0)
		answers = append(answers, a)
	}

	return answers, rows.Err()
}

// GetLearnedAnswer resolves a single correction with its original question,
// needed by the learning loop to anchor QnA-log edits.
func (c *Client) GetLearnedAnswer(learnedAnswerID int64) (*models.LearnedAnswer, error) {
	query := `
		SELECT la.id, la.chat_id, la.correct_answer, la.created_at, ch.user_question
		FROM learned_answers la
		JOIN chat_history ch ON la.chat_id = ch.id
		WHERE la.id = ?
	`

	var a models.LearnedAnswer
	var createdAt int64
	err := c.db.QueryRow(query, learnedAnswerID).Scan(&a.ID, &a.ChatID, &a.CorrectAnswer, &createdAt, &a.Question)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("learned answer %d not found", learnedAnswerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get learned answer: %w", err)
	}
	a.CreatedAt = time.Unix(createdAt, 0)

	return &a, nil
}

func (c *Client) UpdateLearnedAnswer(learnedAnswerID int64, newAnswer string) error {
	res, err := c.db.Exec(
		`UPDATE learned_answers SET correct_answer = ? WHERE id = ?`,
		newAnswer, learnedAnswerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update learned answer: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("learned answer %d not found", learnedAnswerID)
	}

	logger.Info("Learned answer updated", zap.Int64("learned_id", learnedAnswerID))
	return nil
}
