// internal/matcher/scorer.go
package matcher

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/config"
)

// Strategy scores a field against one keyword group. Higher is better; a
// field below Threshold never wins.
type Strategy interface {
	Name() string
	Score(d schemas.FieldDescriptor, keywords []string) int
	Threshold() int
}

// Weights of the weighted strategy, per keyword hit.
const (
	weightAutocomplete = 30
	weightType         = 25
	weightAria         = 20
	weightLabel        = 15
	weightIDName       = 12
	weightPlaceholder  = 10
	weightClass        = 8
	weightParent       = 1
	weightInForm       = 3

	penaltyFilled           = -50
	penaltyFilledOccurrence = -100

	DefaultWeightedThreshold   = 15
	DefaultOccurrenceThreshold = 1
)

// autocompleteKeywords maps autocomplete tokens to the keywords they stand for.
var autocompleteKeywords = []struct {
	token    string
	keywords []string
}{
	{"name", []string{"이름", "name", "성명", "한글명"}},
	{"email", []string{"이메일", "email", "메일"}},
	{"tel", []string{"전화번호", "phone", "연락처", "휴대폰", "핸드폰"}},
	{"current-password", []string{"비밀번호", "password", "pw", "passwd"}},
	{"new-password", []string{"비밀번호", "password", "pw", "passwd"}},
	{"password", []string{"비밀번호", "password", "pw", "passwd"}},
	{"bday-year", []string{"생년", "년", "year", "yyyy"}},
	{"bday-month", []string{"월", "month", "mm"}},
	{"bday-day", []string{"일", "day", "dd"}},
	{"bday", []string{"생년월일", "birth", "생일", "출생"}},
	{"address-line1", []string{"주소", "address", "거주지"}},
	{"country", []string{"국적", "nationality", "국가", "country"}},
}

// typeKeywords maps input types to the keywords they imply.
var typeKeywords = map[string][]string{
	"email":    {"이메일", "email", "메일"},
	"tel":      {"전화번호", "phone", "연락처", "휴대폰"},
	"password": {"비밀번호", "password", "pw", "passwd"},
	"date":     {"날짜", "date", "일자"},
	"url":      {"웹사이트", "url", "링크"},
	"number":   {"점수", "score", "학점", "gpa"},
}

// mutual reports whether either string contains the other. Empty strings
// never match.
func mutual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func lowerKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Weighted scores each descriptor signal separately, trusting machine-readable
// hints (autocomplete, type, aria) over free text.
type Weighted struct {
	threshold int
}

// NewWeighted returns the weighted strategy. A non-positive threshold falls
// back to the default.
func NewWeighted(threshold int) *Weighted {
	if threshold <= 0 {
		threshold = DefaultWeightedThreshold
	}
	return &Weighted{threshold: threshold}
}

func (w *Weighted) Name() string   { return config.StrategyWeighted }
func (w *Weighted) Threshold() int { return w.threshold }

func (w *Weighted) Score(d schemas.FieldDescriptor, keywords []string) int {
	var (
		auto   = strings.ToLower(strings.TrimSpace(d.Autocomplete))
		typ    = strings.ToLower(d.Type)
		aria   = strings.ToLower(d.AriaLabel + " " + d.AriaLabelledByText)
		label  = strings.ToLower(strings.TrimSpace(d.LabelText))
		idName = strings.ToLower(d.ID + " " + d.Name)
		place  = strings.ToLower(d.Placeholder)
		class  = strings.ToLower(d.ClassName)
		parent = strings.ToLower(d.ParentText)
	)
	if auto == "off" {
		auto = ""
	}

	score := 0
	for _, kw := range lowerKeywords(keywords) {
		if auto != "" && autocompleteHit(auto, kw) {
			score += weightAutocomplete
		}
		if typeHit(typ, kw) {
			score += weightType
		}
		if strings.TrimSpace(aria) != "" && strings.Contains(aria, kw) {
			score += weightAria
		}
		if label != "" && strings.Contains(label, kw) {
			score += weightLabel
		}
		if strings.Contains(idName, kw) {
			score += weightIDName
		}
		if strings.Contains(place, kw) {
			score += weightPlaceholder
		}
		if strings.Contains(class, kw) {
			score += weightClass
		}
		if strings.Contains(parent, kw) {
			score += weightParent
		}
	}

	if strings.TrimSpace(d.CurrentValue) != "" {
		score += penaltyFilled
	}
	if d.InForm {
		score += weightInForm
	}
	return score
}

// autocompleteHit counts once per keyword: a table hit, else a direct
// mutual-substring hit against the token.
func autocompleteHit(auto, kw string) bool {
	for _, row := range autocompleteKeywords {
		if !strings.Contains(auto, row.token) {
			continue
		}
		for _, mk := range row.keywords {
			if mutual(mk, kw) {
				return true
			}
		}
	}
	return mutual(auto, kw)
}

func typeHit(typ, kw string) bool {
	for _, mk := range typeKeywords[typ] {
		if mutual(mk, kw) {
			return true
		}
	}
	return false
}

// Occurrence counts how often the keywords appear across all descriptor text.
type Occurrence struct {
	threshold int
}

// NewOccurrence returns the occurrence-count strategy.
func NewOccurrence(threshold int) *Occurrence {
	if threshold <= 0 {
		threshold = DefaultOccurrenceThreshold
	}
	return &Occurrence{threshold: threshold}
}

func (o *Occurrence) Name() string   { return config.StrategyOccurrence }
func (o *Occurrence) Threshold() int { return o.threshold }

func (o *Occurrence) Score(d schemas.FieldDescriptor, keywords []string) int {
	text := strings.ToLower(strings.Join([]string{
		d.ID, d.Name, d.Placeholder, d.ClassName, d.Type, d.Autocomplete,
		d.AriaLabel, d.AriaLabelledByText, d.LabelText, d.ParentText,
	}, " "))

	score := 0
	for _, kw := range lowerKeywords(keywords) {
		// Non-overlapping, literal.
		score += strings.Count(text, kw)
	}
	if strings.TrimSpace(d.CurrentValue) != "" {
		score += penaltyFilledOccurrence
	}
	return score
}

// FromConfig builds the strategy named by cfg.
func FromConfig(cfg config.MatcherConfig) (Strategy, error) {
	switch cfg.Strategy {
	case "", config.StrategyWeighted:
		return NewWeighted(cfg.WeightedThreshold), nil
	case config.StrategyOccurrence:
		return NewOccurrence(cfg.OccurrenceThreshold), nil
	default:
		return nil, fmt.Errorf("unknown matcher strategy %q", cfg.Strategy)
	}
}
