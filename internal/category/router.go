package category

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Assignee identifies who an escalated question is handed to. Handle is the
// contact address shown on the escalation card.
type Assignee struct {
	Name   string `yaml:"name"`
	Handle string `yaml:"handle"`
}

// String renders the assignee the way the escalation card and logs show it.
func (a Assignee) String() string {
	if a.Handle == "" {
		return a.Name
	}
	return a.Name + "/" + a.Handle
}

// Category pairs a routing label with the keyword list that selects it and
// the person the escalation is addressed to.
type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Assignee Assignee `yaml:"assignee"`
}

// Assignment is the routing decision for one question.
type Assignment struct {
	Category        string
	Assignee        Assignee
	MatchedKeywords []string
	MatchConfidence int
}

// Router classifies questions into ERP business areas. Categories are
// evaluated in declaration order and ties go to the earlier entry.
type Router struct {
	categories []Category
	fallback   Category
}

func defaultCategories() []Category {
	return []Category{
		{
			Name:     "재고관리",
			Keywords: []string{"재고", "입고", "출고", "창고", "수불", "재고조사", "안전재고", "로트"},
			Assignee: Assignee{Name: "재고관리 담당자", Handle: "inventory@mrfila.co.kr"},
		},
		{
			Name:     "회계",
			Keywords: []string{"회계", "전표", "결산", "세금계산서", "부가세", "원가", "감가상각", "채권", "채무"},
			Assignee: Assignee{Name: "회계 담당자", Handle: "finance@mrfila.co.kr"},
		},
		{
			Name:     "영업",
			Keywords: []string{"영업", "수주", "견적", "판매", "거래처", "매출", "납품", "출하"},
			Assignee: Assignee{Name: "영업 담당자", Handle: "sales@mrfila.co.kr"},
		},
		{
			Name:     "인사",
			Keywords: []string{"인사", "급여", "근태", "휴가", "연차", "사원", "발령", "퇴직"},
			Assignee: Assignee{Name: "인사 담당자", Handle: "hr@mrfila.co.kr"},
		},
		{
			Name:     "구매",
			Keywords: []string{"구매", "발주", "매입", "단가", "공급업체", "검수", "발주서"},
			Assignee: Assignee{Name: "구매 담당자", Handle: "purchasing@mrfila.co.kr"},
		},
		{
			Name:     "시스템",
			Keywords: []string{"로그인", "비밀번호", "권한", "오류", "에러", "설치", "접속", "화면", "시스템"},
			Assignee: Assignee{Name: "시스템 관리자", Handle: "sysadmin@mrfila.co.kr"},
		},
	}
}

func defaultFallback() Category {
	return Category{
		Name:     "기타",
		Assignee: Assignee{Name: "헬프데스크 담당자", Handle: "helpdesk@mrfila.co.kr"},
	}
}

// NewRouter builds a router over the compiled-in category table.
func NewRouter() *Router {
	return &Router{
		categories: defaultCategories(),
		fallback:   defaultFallback(),
	}
}

// NewRouterFromFile loads the category table from a yaml file. The file
// replaces the whole table; declaration order in the file is routing
// priority order.
func NewRouterFromFile(path string) (*Router, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories file: %w", err)
	}

	var doc struct {
		Categories []Category `yaml:"categories"`
		Fallback   Category   `yaml:"fallback"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse categories file: %w", err)
	}

	r := NewRouter()
	if len(doc.Categories) > 0 {
		r.categories = doc.Categories
	}
	if doc.Fallback.Name != "" {
		r.fallback = doc.Fallback
	}
	return r, nil
}

// Classify routes a question to the category with the most keyword hits.
// Matching is literal, case-insensitive substring counting; a question that
// hits no category at all goes to the fallback with zero confidence.
func (r *Router) Classify(question string) Assignment {
	lower := strings.ToLower(question)

	best := Assignment{
		Category: r.fallback.Name,
		Assignee: r.fallback.Assignee,
	}
	bestCount := 0

	for _, cat := range r.categories {
		var matched []string
		for _, kw := range cat.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				matched = append(matched, kw)
			}
		}
		if len(matched) > bestCount {
			bestCount = len(matched)
			best = Assignment{
				Category:        cat.Name,
				Assignee:        cat.Assignee,
				MatchedKeywords: matched,
				MatchConfidence: matchConfidence(len(matched), len(cat.Keywords)),
			}
		}
	}

	return best
}

func matchConfidence(matched, total int) int {
	if total == 0 {
		return 0
	}
	conf := 100 * float64(matched) / float64(total)
	if conf > 100 {
		conf = 100
	}
	return int(math.Round(conf))
}
