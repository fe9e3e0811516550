// internal/autofill/runcontext.go
package autofill

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/matcher"
)

var (
	// ErrNoProfile ends a run before any write when no profile is loaded.
	ErrNoProfile = errors.New("no profile loaded")
	// ErrRunInFlight rejects a trigger while another run is still going.
	ErrRunInFlight = errors.New("a fill run is already in progress")
	// ErrCancelled is returned when the context ends mid-run. Writes already
	// issued stay in the page.
	ErrCancelled = errors.New("fill run cancelled")
	// ErrDeclined is returned when the pre-run confirmation says no.
	ErrDeclined = errors.New("fill run declined")
)

// RunContext is the mutable state of one run. A run owns it exclusively;
// nothing in it is safe for concurrent use.
type RunContext struct {
	ID          string
	StartedAt   time.Time
	Used        *matcher.UsedSet
	Records     []schemas.FilledFieldRecord
	Suggestions *SuggestionCache
}

// NewRunContext starts a fresh run.
func NewRunContext() *RunContext {
	return &RunContext{
		ID:          uuid.New().String(),
		StartedAt:   time.Now(),
		Used:        matcher.NewUsedSet(),
		Suggestions: NewSuggestionCache(),
	}
}

// Record appends an injector outcome.
func (rc *RunContext) Record(recs ...schemas.FilledFieldRecord) {
	rc.Records = append(rc.Records, recs...)
}

// SuggestionCache holds re-analysis suggestions keyed by field index, in the
// order the model reported them.
type SuggestionCache struct {
	entries map[string]CachedSuggestion
	order   []string
}

// CachedSuggestion binds a suggestion to the element it resolved to.
type CachedSuggestion struct {
	schemas.Suggestion
	Key string
}

func NewSuggestionCache() *SuggestionCache {
	return &SuggestionCache{entries: make(map[string]CachedSuggestion)}
}

func (c *SuggestionCache) Put(index string, s CachedSuggestion) {
	if _, exists := c.entries[index]; !exists {
		c.order = append(c.order, index)
	}
	c.entries[index] = s
}

func (c *SuggestionCache) Get(index string) (CachedSuggestion, bool) {
	s, ok := c.entries[index]
	return s, ok
}

// Delete drops a resolved entry.
func (c *SuggestionCache) Delete(index string) {
	if _, ok := c.entries[index]; !ok {
		return
	}
	delete(c.entries, index)
	for i, k := range c.order {
		if k == index {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *SuggestionCache) Len() int { return len(c.order) }

// Indexes returns the cached indexes in insertion order.
func (c *SuggestionCache) Indexes() []string {
	return append([]string(nil), c.order...)
}

// Clear empties the cache.
func (c *SuggestionCache) Clear() {
	c.entries = make(map[string]CachedSuggestion)
	c.order = nil
}
