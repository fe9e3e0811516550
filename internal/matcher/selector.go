// internal/matcher/selector.go
package matcher

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/browser/dom"
)

// UsedSet records the fields claimed during one run. It is owned by a single
// run and is not safe for concurrent use.
type UsedSet struct {
	claimed map[string]struct{}
	order   []string
}

// NewUsedSet returns an empty set.
func NewUsedSet() *UsedSet {
	return &UsedSet{claimed: make(map[string]struct{})}
}

func (u *UsedSet) Has(key string) bool {
	_, ok := u.claimed[key]
	return ok
}

// Claim adds key and reports whether it was newly added.
func (u *UsedSet) Claim(key string) bool {
	if key == "" || u.Has(key) {
		return false
	}
	u.claimed[key] = struct{}{}
	u.order = append(u.order, key)
	return true
}

func (u *UsedSet) Len() int { return len(u.order) }

// Keys returns the claimed keys in claim order.
func (u *UsedSet) Keys() []string {
	return append([]string(nil), u.order...)
}

// Reset empties the set for a new run.
func (u *UsedSet) Reset() {
	u.claimed = make(map[string]struct{})
	u.order = nil
}

// Eligible reports whether a field may be considered at all. Read-only fields
// stay eligible; the injector lifts the flag while writing.
func Eligible(d schemas.FieldDescriptor) bool {
	return !d.Hidden && !d.Disabled
}

// Rank scores every eligible field and returns those reaching the strategy
// threshold, best first. Ties keep document order. Fields claimed in this
// run are scored as they were before the run wrote into them.
func Rank(s Strategy, fields []schemas.FieldDescriptor, keywords []string, used *UsedSet) []schemas.MatchCandidate {
	var out []schemas.MatchCandidate
	for i, d := range fields {
		if !Eligible(d) {
			continue
		}
		if used != nil && used.Has(d.Key) {
			d.CurrentValue = ""
		}
		score := s.Score(d, keywords)
		if score < s.Threshold() {
			continue
		}
		out = append(out, schemas.MatchCandidate{Key: d.Key, Order: i, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// pick returns the candidate at position index of the ranking, moving past
// claimed ones. The index counts every occurrence on the page, so the
// second career's company box is found even after the first career claimed
// the first box.
func pick(ranked []schemas.MatchCandidate, index int, used *UsedSet) (schemas.MatchCandidate, bool) {
	if index < 0 {
		return schemas.MatchCandidate{}, false
	}
	for i := index; i < len(ranked); i++ {
		if used == nil || !used.Has(ranked[i].Key) {
			return ranked[i], true
		}
	}
	return schemas.MatchCandidate{}, false
}

// Selector finds and claims the best field for a keyword group.
type Selector struct {
	adapter  dom.Adapter
	strategy Strategy
	logger   *zap.Logger
}

// NewSelector binds a strategy to a page.
func NewSelector(adapter dom.Adapter, strategy Strategy, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strategy == nil {
		strategy = NewWeighted(DefaultWeightedThreshold)
	}
	return &Selector{adapter: adapter, strategy: strategy, logger: logger.Named("matcher")}
}

// Strategy returns the scoring strategy in use.
func (s *Selector) Strategy() Strategy { return s.strategy }

// Find returns the field at position index of the ranking and claims it.
// Claimed fields are never returned. ok is false when no unclaimed candidate
// reaches the threshold at or after that position.
func (s *Selector) Find(ctx context.Context, keywords []string, index int, used *UsedSet) (field schemas.FieldDescriptor, ok bool, err error) {
	fields, err := s.adapter.Fields(ctx)
	if err != nil {
		return schemas.FieldDescriptor{}, false, fmt.Errorf("failed to enumerate fields: %w", err)
	}
	ranked := Rank(s.strategy, fields, keywords, used)
	winner, found := pick(ranked, index, used)
	if !found {
		s.logger.Debug("No field matched.",
			zap.Strings("keywords", keywords),
			zap.Int("index", index),
			zap.Int("candidates", len(ranked)))
		return schemas.FieldDescriptor{}, false, nil
	}
	if used != nil {
		used.Claim(winner.Key)
	}
	s.logger.Debug("Field matched.",
		zap.Strings("keywords", keywords),
		zap.String("key", winner.Key),
		zap.Int("score", winner.Score))
	return fields[winner.Order], true, nil
}
