package scoring

import (
	"go.uber.org/zap"

	"github.com/mrfila/helpdesk/internal/keyword"
	"github.com/mrfila/helpdesk/internal/knowledge"
	"github.com/mrfila/helpdesk/internal/retrieval"
	"github.com/mrfila/helpdesk/pkg/logger"
)

// Acceptance thresholds per knowledge source. Retrieved passages get the
// lowest bar: they are already retrieval-relevant by construction.
const (
	qnaThreshold     = 60
	manualThreshold  = 50
	passageThreshold = 40
)

const (
	SourceQnALog  = "qna-log"
	SourceManual  = "manual"
	SourcePassage = "retrieved-passage"
)

// MatchResult reports whether a question/answer pair duplicates previously
// curated knowledge. Known=true implies Score is at or above the threshold
// of its source.
type MatchResult struct {
	Known       bool
	Score       float64
	SourceLabel string
	SourceName  string
	Entry       *knowledge.QnAEntry
}

// Matcher checks a chat turn against the three knowledge sources. Read
// failures never abort the check; a failed source simply contributes no
// match.
type Matcher struct {
	store *knowledge.Store
	kw    *keyword.Extractor
}

func NewMatcher(store *knowledge.Store, kw *keyword.Extractor) *Matcher {
	return &Matcher{store: store, kw: kw}
}

// CheckKnown returns the best match across the curated QnA log, the manual
// files, and the passages retrieved for this turn.
func (m *Matcher) CheckKnown(question string, resp *retrieval.Response) MatchResult {
	best := MatchResult{}

	if r := m.checkQnALog(question, resp.Answer); r.Score > best.Score {
		best = r
	}
	if r := m.checkManuals(question, resp.Answer); r.Score > best.Score {
		best = r
	}
	if r := m.checkPassages(question, resp); r.Score > best.Score {
		best = r
	}

	if best.Known {
		logger.Debug("Known answer matched",
			zap.String("source", best.SourceLabel),
			zap.Float64("score", best.Score),
		)
	}

	return best
}

// QnA blocks weight the question heavily: a learned answer is keyed by what
// was asked, not how the model phrased its reply.
func (m *Matcher) checkQnALog(question, answer string) MatchResult {
	entries, err := m.store.QnAEntries()
	if err != nil {
		logger.Warn("QnA log unavailable for matching", zap.Error(err))
		return MatchResult{}
	}

	best := MatchResult{}
	for i := range entries {
		entry := entries[i]
		score := 0.7*m.kw.Similarity(question, entry.Question) +
			0.3*m.kw.Similarity(answer, entry.Answer)

		if score > best.Score {
			best = MatchResult{
				Known:       score >= qnaThreshold,
				Score:       score,
				SourceLabel: SourceQnALog,
				SourceName:  "qna.txt",
				Entry:       &entry,
			}
		}
	}

	return best
}

func (m *Matcher) checkManuals(question, answer string) MatchResult {
	docs, err := m.store.ManualDocs()
	if err != nil {
		logger.Warn("Manual files unavailable for matching", zap.Error(err))
		return MatchResult{}
	}

	best := MatchResult{}
	for _, doc := range docs {
		score := 0.6*m.kw.Similarity(question, doc.Content) +
			0.4*m.kw.Similarity(answer, doc.Content)

		if score > best.Score {
			best = MatchResult{
				Known:       score >= manualThreshold,
				Score:       score,
				SourceLabel: SourceManual,
				SourceName:  doc.Name,
			}
		}
	}

	return best
}

func (m *Matcher) checkPassages(question string, resp *retrieval.Response) MatchResult {
	best := MatchResult{}
	for _, passage := range resp.Passages {
		if passage.Content == "" {
			continue
		}

		score := 0.5*m.kw.Similarity(question, passage.Content) +
			0.5*m.kw.Similarity(resp.Answer, passage.Content)

		if score > best.Score {
			best = MatchResult{
				Known:       score >= passageThreshold,
				Score:       score,
				SourceLabel: SourcePassage,
				SourceName:  passage.Source,
			}
		}
	}

	return best
}
