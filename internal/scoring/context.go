package scoring

import (
	"strings"
	"unicode/utf8"

	"github.com/mrfila/helpdesk/internal/retrieval"
)

// ContextMatch scores 0..100 how well an answer fits its retrieved passages
// and the question, from four independently capped signals.
func (e *Engine) ContextMatch(question string, resp *retrieval.Response) float64 {
	score := 0.0

	questionKeywords := e.kw.Extract(question)

	// Passage alignment, 0-40: per-passage fraction of question keywords
	// present, averaged across passages.
	if len(resp.Passages) > 0 {
		total := 0.0
		for _, passage := range resp.Passages {
			matched := 0
			for _, kw := range questionKeywords {
				if e.kw.Contains(passage.Content, kw) {
					matched++
				}
			}
			denom := len(questionKeywords)
			if denom < 1 {
				denom = 1
			}
			total += float64(matched) / float64(denom) * 40
		}
		score += total / float64(len(resp.Passages))
	}

	// Answer mentions question keywords, 0-30.
	answerLower := strings.ToLower(resp.Answer)
	mentioned := 0
	for _, kw := range questionKeywords {
		if strings.Contains(answerLower, kw) {
			mentioned++
		}
	}
	denom := len(questionKeywords)
	if denom < 1 {
		denom = 1
	}
	score += float64(mentioned) / float64(denom) * 30

	// Answer specificity, 0-20: marker phrases beat raw length. Length is
	// counted in runes so Korean text lands in the same tier as English.
	answerLen := utf8.RuneCountInString(resp.Answer)
	switch {
	case containsAny(answerLower, e.phrases.Specificity):
		score += 20
	case answerLen > 100:
		score += 15
	case answerLen > 50:
		score += 10
	default:
		score += 5
	}

	// Provenance hint, 0-10: answer signals it came from learned material.
	if containsAny(answerLower, e.phrases.Provenance) {
		score += 10
	}

	if score > 100 {
		score = 100
	}

	return score
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}
