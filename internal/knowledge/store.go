package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/mrfila/helpdesk/pkg/logger"
)

// Store reads and mutates the flat-file knowledge base: a block-structured
// curated QnA log plus a directory of manual documents. Appends and edits to
// the log are serialized per store; concurrent corrections to the same
// question are last-writer-wins.
type Store struct {
	qnaPath    string
	manualsDir string

	mu sync.Mutex
}

type QnAEntry struct {
	Question string
	Answer   string
}

type Document struct {
	Name    string
	Content string
}

func NewStore(qnaPath, manualsDir string) *Store {
	return &Store{
		qnaPath:    qnaPath,
		manualsDir: manualsDir,
	}
}

// Matches the question-line remainder after the block split consumed the
// leading "## Q": an optional number and the colon.
var qnaQuestionPrefix = regexp.MustCompile(`^Q?\d*:\s*`)

// ParseQnA splits block-structured QnA text into entries. Blocks are keyed by
// `## Q:` headers with an `A:` answer line; malformed blocks are skipped.
func ParseQnA(content string) []QnAEntry {
	blocks := strings.Split(content, "## Q")

	var entries []QnAEntry
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		lines := make([]string, 0)
		for _, line := range strings.Split(block, "\n") {
			if strings.TrimSpace(line) != "" {
				lines = append(lines, strings.TrimSpace(line))
			}
		}
		if len(lines) < 2 {
			continue
		}

		question := qnaQuestionPrefix.ReplaceAllString(lines[0], "")
		question = strings.TrimSpace(question)

		var answer string
		for _, line := range lines[1:] {
			if strings.HasPrefix(line, "A:") {
				answer = strings.TrimSpace(strings.TrimPrefix(line, "A:"))
				break
			}
		}
		if question == "" || answer == "" {
			continue
		}

		entries = append(entries, QnAEntry{Question: question, Answer: answer})
	}

	return entries
}

// QnAEntries loads the curated QnA log. A missing file is an empty log, not
// an error.
func (s *Store) QnAEntries() ([]QnAEntry, error) {
	data, err := os.ReadFile(s.qnaPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read qna log: %w", err)
	}

	return ParseQnA(string(data)), nil
}

// ManualDocs reads every manual document except the QnA log itself. Plain
// text files are used as-is; html manuals are stripped to text.
func (s *Store) ManualDocs() ([]Document, error) {
	entries, err := os.ReadDir(s.manualsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read manuals dir: %w", err)
	}

	qnaName := filepath.Base(s.qnaPath)

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == qnaName {
			continue
		}

		content, err := s.readManual(filepath.Join(s.manualsDir, entry.Name()))
		if err != nil {
			logger.Warn("Failed to read manual file",
				zap.String("file", entry.Name()),
				zap.Error(err),
			)
			continue
		}
		if strings.TrimSpace(content) == "" {
			continue
		}

		docs = append(docs, Document{Name: entry.Name(), Content: content})
	}

	return docs, nil
}

// AllDocuments returns the manuals plus one document per QnA block, the
// input set for index rebuilds.
func (s *Store) AllDocuments() ([]Document, error) {
	docs, err := s.ManualDocs()
	if err != nil {
		return nil, err
	}

	qna, err := s.QnAEntries()
	if err != nil {
		logger.Warn("Failed to load qna log for indexing", zap.Error(err))
		return docs, nil
	}

	qnaName := filepath.Base(s.qnaPath)
	for i, entry := range qna {
		docs = append(docs, Document{
			Name:    fmt.Sprintf("%s#%d", qnaName, i+1),
			Content: fmt.Sprintf("Q: %s\nA: %s", entry.Question, entry.Answer),
		})
	}

	return docs, nil
}

func (s *Store) readManual(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".html" || ext == ".htm" {
		return stripHTML(string(data)), nil
	}

	return string(data), nil
}

func stripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, sel *goquery.Selection) {
		sel.Remove()
	})

	text := doc.Find("body").Text()
	text = regexp.MustCompile(`\s+`).ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// AppendQnA adds a learned question/answer block to the end of the log.
func (s *Store) AppendQnA(question, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.qnaPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open qna log: %w", err)
	}
	defer f.Close()

	block := fmt.Sprintf("\n## Q: %s\nA: %s\n", question, answer)
	if _, err := f.WriteString(block); err != nil {
		return fmt.Errorf("failed to append qna block: %w", err)
	}

	logger.Info("QnA log appended", zap.String("question", question))
	return nil
}

// RewriteAnswer replaces the answer line of the block anchored by question.
// Returns false when no block matches; the caller treats that as log drift,
// not an error.
func (s *Store) RewriteAnswer(question, newAnswer string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.qnaPath)
	if err != nil {
		return false, fmt.Errorf("failed to read qna log: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	updated := make([]string, 0, len(lines))
	inTarget := false
	found := false

	for _, line := range lines {
		if strings.Contains(line, "## Q: "+question) {
			inTarget = true
			updated = append(updated, line)
			continue
		}

		if inTarget && strings.HasPrefix(line, "A: ") {
			updated = append(updated, "A: "+newAnswer)
			found = true
			inTarget = false
			continue
		}

		if inTarget && strings.HasPrefix(line, "## Q:") {
			inTarget = false
		}

		updated = append(updated, line)
	}

	if err := os.WriteFile(s.qnaPath, []byte(strings.Join(updated, "\n")), 0644); err != nil {
		return false, fmt.Errorf("failed to rewrite qna log: %w", err)
	}

	return found, nil
}
