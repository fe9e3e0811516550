// internal/composite/date.go
package composite

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/matcher"
)

// BirthdateKeywords identify birthdate inputs.
var BirthdateKeywords = []string{"생년월일", "birth", "생일", "출생"}

var (
	yearLike  = regexp.MustCompile(`year|년|yyyy`)
	monthLike = regexp.MustCompile(`month|월|mm`)
	dayLike   = regexp.MustCompile(`day|일|dd`)
	nonDigit  = regexp.MustCompile(`\D+`)
)

// FormatDate renders d as one string. Legacy strings pass through untouched.
// Month and day are zero-padded; missing components shorten the result to
// year-month or year alone.
func FormatDate(d schemas.DateValue, style schemas.DateStyle) string {
	switch d.Kind {
	case schemas.DateLegacy:
		return d.Legacy
	case schemas.DateStructured:
	default:
		return ""
	}
	if d.Year == 0 {
		return ""
	}
	sep := style.Separator()
	year := strconv.Itoa(d.Year)
	// A day without a month has no meaningful rendering; keep the year.
	switch {
	case d.Month == 0:
		return year
	case d.Day != 0:
		return year + sep + pad2(d.Month) + sep + pad2(d.Day)
	}
	return year + sep + pad2(d.Month)
}

func pad2(n int) string {
	return fmt.Sprintf("%02d", n)
}

// Date writes a date into separate year/month/day fields when the page has
// any, or into a single date field as a formatted string. Component fields
// are not checked against the used set, since a birthdate box often already
// matched the primary mapping.
func (s *Splitter) Date(ctx context.Context, date schemas.DateValue, keywords []string, style schemas.DateStyle, used *matcher.UsedSet) (Result, error) {
	var res Result
	parts, ok := date.Structured()
	if !ok {
		return res, nil
	}
	if len(keywords) == 0 {
		keywords = BirthdateKeywords
	}

	fields, err := s.candidates(ctx, keywords, nil)
	if err != nil {
		return res, err
	}
	var year, month, day *candidate
	for i := range fields {
		c := &fields[i]
		// "생년월일" itself reads as year, month and day at once.
		text := stripKeywords(c.text, keywords)
		switch {
		case yearLike.MatchString(text):
			if year == nil {
				year = c
			}
		case monthLike.MatchString(text):
			if month == nil {
				month = c
			}
		case dayLike.MatchString(text):
			if day == nil {
				day = c
			}
		}
	}

	switch {
	case year != nil || month != nil || day != nil:
		for _, comp := range []struct {
			c     *candidate
			value int
		}{{year, parts.Year}, {month, parts.Month}, {day, parts.Day}} {
			if comp.c == nil || comp.value == 0 {
				continue
			}
			v, err := s.componentValue(ctx, comp.c.field, comp.value)
			if err != nil {
				return res, err
			}
			s.write(ctx, &res, used, comp.c.field, v)
		}
	case len(fields) == 1:
		s.write(ctx, &res, used, fields[0].field, FormatDate(date, style))
	default:
		s.logger.Debug("No date layout matched.", zap.Int("fields", len(fields)))
	}
	return res, nil
}

func stripKeywords(text string, keywords []string) string {
	for _, kw := range keywords {
		if kw = strings.ToLower(kw); kw != "" {
			text = strings.ReplaceAll(text, kw, " ")
		}
	}
	return text
}

// componentValue renders one date component. Text boxes get the year as is
// and month/day zero-padded; selects get the value of the option whose
// digits denote n, so "3", "03" and "3월" all work.
func (s *Splitter) componentValue(ctx context.Context, d schemas.FieldDescriptor, n int) (string, error) {
	fallback := strconv.Itoa(n)
	if n < 100 {
		fallback = pad2(n)
	}
	if !d.IsSelect() {
		return fallback, nil
	}
	opts, err := s.adapter.Options(ctx, d.Key)
	if err != nil {
		return "", fmt.Errorf("failed to read options of %s: %w", d.Key, err)
	}
	for _, o := range opts {
		for _, label := range []string{o.Value, strings.TrimSpace(o.Text)} {
			digits := nonDigit.ReplaceAllString(label, "")
			if v, err := strconv.Atoi(digits); err == nil && digits != "" && v == n {
				return o.Value, nil
			}
		}
	}
	return fallback, nil
}
