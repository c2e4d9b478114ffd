package scoring

import (
	"strings"

	"go.uber.org/zap"

	"github.com/mrfila/helpdesk/internal/keyword"
	"github.com/mrfila/helpdesk/internal/retrieval"
	"github.com/mrfila/helpdesk/pkg/logger"
)

// Engine computes the final 0..100 confidence for a generated answer. The
// policy is rule-ordered, not a weighted formula: known answers are
// privileged above all, uncertain answers are suppressed below all, and
// everything in between is scored by context fit and corroborating
// document count.
type Engine struct {
	matcher *Matcher
	kw      *keyword.Extractor
	phrases Phrases
}

func NewEngine(matcher *Matcher, kw *keyword.Extractor, phrases Phrases) *Engine {
	return &Engine{
		matcher: matcher,
		kw:      kw,
		phrases: phrases,
	}
}

// Calculate scores one chat turn. Rules apply in order; the first applicable
// rule wins.
func (e *Engine) Calculate(question string, resp *retrieval.Response) int {
	// Rule 1: answers matching curated knowledge map to a discrete band and
	// never fall below 65.
	if match := e.matcher.CheckKnown(question, resp); match.Known {
		band := knownBand(match.Score)
		logger.Debug("Confidence from known match",
			zap.Float64("match_score", match.Score),
			zap.Int("confidence", band),
		)
		return band
	}

	uncertain := e.hasUncertainty(resp.Answer)
	contextScore := e.ContextMatch(question, resp)

	// Rule 3: a non-uncertain answer grounded in retrieved passages is
	// guaranteed at least 80.
	if len(resp.Passages) > 0 && !uncertain && contextScore >= 60 {
		result := contextScore
		if result < 80 {
			result = 80
		}
		return int(result)
	}

	// Rule 4: floor derived from context match.
	confidence := 0
	switch {
	case contextScore >= 80:
		confidence = 70
	case contextScore >= 60:
		confidence = 50
	case contextScore >= 40:
		confidence = 30
	}

	// Rule 5: uncertainty suppresses everything, even a perfect context
	// match.
	if uncertain {
		if len(resp.Passages) > 0 {
			return int(minFloat(15, contextScore*0.2))
		}
		return int(minFloat(5, contextScore*0.1))
	}

	// Rule 6: tiered context bonus plus document-count bonus.
	switch {
	case contextScore >= 80:
		confidence += 30
	case contextScore >= 60:
		confidence += 20
	case contextScore >= 40:
		confidence += 10
	}

	if len(resp.Passages) > 0 {
		docBonus := len(resp.Passages) * 5
		if docBonus > 20 {
			docBonus = 20
		}
		confidence += docBonus
	} else if confidence > 30 {
		// No corroborating documents caps the score outright.
		confidence = 30
	}

	if confidence > 100 {
		confidence = 100
	}

	return confidence
}

// HasUncertainty reports whether the answer hedges with a known uncertainty
// phrase.
func (e *Engine) hasUncertainty(answer string) bool {
	lower := strings.ToLower(answer)
	return containsAny(lower, e.phrases.Uncertainty)
}

func knownBand(score float64) int {
	switch {
	case score >= 90:
		return 95
	case score >= 80:
		return 85
	case score >= 70:
		return 75
	case score >= 60:
		return 70
	default:
		return 65
	}
}

// Level buckets a confidence score into its display label.
func Level(confidence int) string {
	switch {
	case confidence >= 80:
		return "매우 높음"
	case confidence >= 60:
		return "높음"
	case confidence >= 40:
		return "보통"
	case confidence >= 20:
		return "낮음"
	default:
		return "매우 낮음"
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
