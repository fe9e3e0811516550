// internal/composite/composite.go
package composite

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/browser/dom"
	"github.com/xkilldash9x/jobfill/internal/injector"
	"github.com/xkilldash9x/jobfill/internal/matcher"
)

// Result is what one splitter call wrote.
type Result struct {
	Filled  int
	Records []schemas.FilledFieldRecord
}

func (r *Result) add(rec schemas.FilledFieldRecord, ok bool) {
	if !ok {
		return
	}
	r.Filled++
	r.Records = append(r.Records, rec)
}

// Splitter writes values that span several physical inputs, such as a phone
// number split into three boxes.
type Splitter struct {
	adapter  dom.Adapter
	injector *injector.Injector
	logger   *zap.Logger
}

// New returns a splitter writing through inj.
func New(adapter dom.Adapter, inj *injector.Injector, logger *zap.Logger) *Splitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Splitter{adapter: adapter, injector: inj, logger: logger.Named("composite")}
}

// candidate is a field that mentions one of the keywords.
type candidate struct {
	field schemas.FieldDescriptor
	text  string
	order int
}

var trailingDigits = regexp.MustCompile(`\d+$`)

// ordinal reads the position hint from a name like "phone2", falling back
// to the id.
func ordinal(d schemas.FieldDescriptor) int {
	m := trailingDigits.FindString(d.Name)
	if m == "" {
		m = trailingDigits.FindString(d.ID)
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

func candidateText(d schemas.FieldDescriptor) string {
	return strings.ToLower(strings.Join([]string{d.ID, d.Name, d.Placeholder, d.LabelText, d.ClassName}, " "))
}

// candidates lists inputs and selects whose text mentions a keyword, in
// document order. Used fields are skipped unless used is nil.
func (s *Splitter) candidates(ctx context.Context, keywords []string, used *matcher.UsedSet) ([]candidate, error) {
	fields, err := s.adapter.Fields(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate fields: %w", err)
	}
	var out []candidate
	for _, d := range fields {
		if d.Tag != "input" && d.Tag != "select" {
			continue
		}
		if !matcher.Eligible(d) || (used != nil && used.Has(d.Key)) {
			continue
		}
		text := candidateText(d)
		for _, kw := range keywords {
			if kw = strings.ToLower(kw); kw != "" && strings.Contains(text, kw) {
				out = append(out, candidate{field: d, text: text, order: ordinal(d)})
				break
			}
		}
	}
	return out, nil
}

func sortByOrdinal(cs []candidate) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].order < cs[j].order })
}

// write fills one field and claims it.
func (s *Splitter) write(ctx context.Context, res *Result, used *matcher.UsedSet, d schemas.FieldDescriptor, value string) {
	rec, ok := s.injector.Fill(ctx, d, value)
	if ok && used != nil {
		used.Claim(d.Key)
	}
	res.add(rec, ok)
}
