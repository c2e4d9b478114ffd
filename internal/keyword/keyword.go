package keyword

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	hangulPattern = regexp.MustCompile(`[가-힣]{2,}`)
	latinPattern  = regexp.MustCompile(`[a-zA-Z]{3,}`)
)

// Extractor tokenizes Korean/English text into a normalized keyword set.
// Stop words are data, not code: the defaults can be replaced from a yaml
// table without touching the scoring algorithms.
type Extractor struct {
	stopwords map[string]struct{}
}

type stopwordFile struct {
	Korean  []string `yaml:"korean"`
	English []string `yaml:"english"`
}

func NewExtractor() *Extractor {
	return newExtractor(defaultKoreanStopwords, defaultEnglishStopwords)
}

// NewExtractorFromFile builds an extractor from a yaml stop-word table with
// `korean:` and `english:` lists. An empty path yields the defaults.
func NewExtractorFromFile(path string) (*Extractor, error) {
	if path == "" {
		return NewExtractor(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stopword file: %w", err)
	}

	var f stopwordFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse stopword file: %w", err)
	}

	return newExtractor(f.Korean, f.English), nil
}

func newExtractor(korean, english []string) *Extractor {
	stop := make(map[string]struct{}, len(korean)+len(english))
	for _, w := range korean {
		stop[w] = struct{}{}
	}
	for _, w := range english {
		stop[strings.ToLower(w)] = struct{}{}
	}
	return &Extractor{stopwords: stop}
}

// Extract returns the deduplicated keyword set of text: Hangul runs of two or
// more syllables and Latin words of three or more letters, lower-cased, with
// stop words removed. Empty input yields an empty set.
func (e *Extractor) Extract(text string) []string {
	if text == "" {
		return nil
	}

	tokens := hangulPattern.FindAllString(text, -1)
	tokens = append(tokens, latinPattern.FindAllString(text, -1)...)

	seen := make(map[string]struct{}, len(tokens))
	keywords := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.ToLower(tok)
		if _, stop := e.stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
	}

	return keywords
}

// Similarity scores two texts 0..100 by keyword overlap. A keyword of `a`
// counts as matched when any keyword of `b` contains it or is contained by
// it. The substring containment is deliberate: short fragments from noisy
// OCR or Q&A text must still match their fuller forms, and the acceptance
// thresholds elsewhere were tuned against this metric.
func (e *Extractor) Similarity(a, b string) float64 {
	keywordsA := e.Extract(a)
	keywordsB := e.Extract(b)

	if len(keywordsA) == 0 || len(keywordsB) == 0 {
		return 0
	}

	matched := 0
	for _, ka := range keywordsA {
		for _, kb := range keywordsB {
			if strings.Contains(ka, kb) || strings.Contains(kb, ka) {
				matched++
				break
			}
		}
	}

	denom := len(keywordsA)
	if len(keywordsB) > denom {
		denom = len(keywordsB)
	}

	similarity := float64(matched) / float64(denom) * 100
	if similarity > 100 {
		similarity = 100
	}

	return similarity
}

// Contains reports whether the keyword set of text includes kw, either as a
// set member or as a raw substring of the lower-cased text.
func (e *Extractor) Contains(text, kw string) bool {
	lower := strings.ToLower(text)
	if strings.Contains(lower, kw) {
		return true
	}
	for _, tok := range e.Extract(text) {
		if tok == kw {
			return true
		}
	}
	return false
}
