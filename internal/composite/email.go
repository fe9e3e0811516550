// internal/composite/email.go
package composite

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/matcher"
)

// EmailKeywords identify email inputs.
var EmailKeywords = []string{"email", "이메일", "메일"}

var (
	emailIDLike     = regexp.MustCompile(`id|user|account|prefix|1`)
	emailDomainLike = regexp.MustCompile(`domain|suffix|etc|custom|2`)
	emailDirect     = regexp.MustCompile(`etc|custom|direct`)
	emailConfirm    = regexp.MustCompile(`confirm|확인|check|(^|[\s_-])re([\s_-]|email|$)`)
)

type emailRole int

const (
	roleUnknown emailRole = iota
	roleID
	roleDomain
)

func classifyEmail(text string) emailRole {
	switch {
	case emailIDLike.MatchString(text):
		return roleID
	case emailDomainLike.MatchString(text):
		return roleDomain
	}
	return roleUnknown
}

// Email writes an address into either an id/domain pair, two positional
// boxes, or a single field. With confirm set, "confirm your email" fields
// are kept out of that layout and get the full address afterwards.
func (s *Splitter) Email(ctx context.Context, email schemas.EmailValue, keywords []string, used *matcher.UsedSet, confirm bool) (Result, error) {
	var res Result
	if email.IsZero() {
		return res, nil
	}
	if len(keywords) == 0 {
		keywords = EmailKeywords
	}
	id, domain := email.Parts()
	full := email.Address()

	all, err := s.candidates(ctx, keywords, used)
	if err != nil {
		return res, err
	}
	var fields, confirms []candidate
	for _, c := range all {
		if confirm && emailConfirm.MatchString(c.text) {
			confirms = append(confirms, c)
			continue
		}
		fields = append(fields, c)
	}
	sortByOrdinal(fields)

	idField, domainField := pickEmailPair(fields)
	switch {
	case idField != nil && domainField != nil:
		s.logger.Debug("Email split into id and domain fields.", zap.String("id_key", idField.field.Key), zap.String("domain_key", domainField.field.Key))
		if id != "" {
			s.write(ctx, &res, used, idField.field, id)
		}
		if domain != "" {
			s.write(ctx, &res, used, domainField.field, domain)
		}
	case len(fields) >= 2:
		if id != "" {
			s.write(ctx, &res, used, fields[0].field, id)
		}
		if domain != "" {
			s.write(ctx, &res, used, fields[1].field, domain)
		}
	case len(fields) == 1:
		s.write(ctx, &res, used, fields[0].field, full)
	default:
		s.logger.Debug("No email field matched.", zap.Strings("keywords", keywords))
	}

	for _, c := range confirms {
		if used != nil && used.Has(c.field.Key) {
			continue
		}
		s.write(ctx, &res, used, c.field, full)
	}
	return res, nil
}

// pickEmailPair finds the id box (never a select) and the domain box,
// preferring a direct-input domain, then any non-select, then a select.
func pickEmailPair(fields []candidate) (idField, domainField *candidate) {
	var domains []*candidate
	for i := range fields {
		c := &fields[i]
		switch classifyEmail(c.text) {
		case roleID:
			if idField == nil && !c.field.IsSelect() {
				idField = c
			}
		case roleDomain:
			domains = append(domains, c)
		}
	}
	for _, pick := range []func(*candidate) bool{
		func(c *candidate) bool { return emailDirect.MatchString(c.text) },
		func(c *candidate) bool { return !c.field.IsSelect() },
		func(*candidate) bool { return true },
	} {
		for _, c := range domains {
			if pick(c) {
				return idField, c
			}
		}
	}
	return idField, nil
}
