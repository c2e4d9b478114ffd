package scoring

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Phrases holds the tunable phrase tables the scorers match against. They
// are data, not code: operators adjust them in a yaml table without touching
// the scoring rules.
type Phrases struct {
	Uncertainty []string `yaml:"uncertainty"`
	Specificity []string `yaml:"specificity"`
	Provenance  []string `yaml:"provenance"`
}

func DefaultPhrases() Phrases {
	return Phrases{
		Uncertainty: []string{
			"모르겠", "확실하지", "알 수 없", "정보가 없", "찾을 수 없",
			"죄송하지만", "제공되지 않았습니다", "별도의 매뉴얼",
			"추가적인 도움이 필요", "구체적인 정보는", "참조하시기 바랍니다",
			"다른 질문을 해주세요",
		},
		Specificity: []string{
			"예:", "예를 들어", "구체적으로", "정확히", "명확히", "상세히",
			"다음과 같습니다", "방법은", "절차는", "과정은",
		},
		Provenance: []string{
			"학습된", "이전에", "앞서", "위에서", "앞의",
		},
	}
}

// LoadPhrases reads a phrase table from a yaml file. An empty path yields
// the defaults; lists omitted from the file keep their defaults too.
func LoadPhrases(path string) (Phrases, error) {
	phrases := DefaultPhrases()
	if path == "" {
		return phrases, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return phrases, fmt.Errorf("failed to read phrase file: %w", err)
	}

	var loaded Phrases
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return phrases, fmt.Errorf("failed to parse phrase file: %w", err)
	}

	if len(loaded.Uncertainty) > 0 {
		phrases.Uncertainty = loaded.Uncertainty
	}
	if len(loaded.Specificity) > 0 {
		phrases.Specificity = loaded.Specificity
	}
	if len(loaded.Provenance) > 0 {
		phrases.Provenance = loaded.Provenance
	}

	return phrases, nil
}
