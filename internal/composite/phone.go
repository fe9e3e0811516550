// internal/composite/phone.go
package composite

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/internal/matcher"
)

// PhoneKeywords identify phone inputs.
var PhoneKeywords = []string{"phone", "휴대폰", "핸드폰", "연락처"}

// SplitPhone breaks a phone number into its dial groups. A dashed number is
// split on the dashes; otherwise 10 digits are read as 2/4/4 and 11 digits
// as 3/4/4. Anything else is a single group of its digits.
func SplitPhone(phone string) []string {
	if strings.Contains(phone, "-") {
		return strings.Split(phone, "-")
	}
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch len(digits) {
	case 10:
		return []string{digits[:2], digits[2:6], digits[6:]}
	case 11:
		return []string{digits[:3], digits[3:7], digits[7:]}
	}
	return []string{digits}
}

// Phone writes phone across the matching fields. Several ordered boxes get
// one group each; a lone field gets the number exactly as stored.
func (s *Splitter) Phone(ctx context.Context, phone string, keywords []string, used *matcher.UsedSet) (Result, error) {
	var res Result
	if phone == "" {
		return res, nil
	}
	if len(keywords) == 0 {
		keywords = PhoneKeywords
	}
	parts := SplitPhone(phone)

	fields, err := s.candidates(ctx, keywords, used)
	if err != nil {
		return res, err
	}
	sortByOrdinal(fields)

	switch {
	case len(fields) >= 2 && len(parts) >= 2:
		for i, c := range fields {
			if i >= len(parts) {
				break
			}
			if parts[i] == "" {
				continue
			}
			s.write(ctx, &res, used, c.field, parts[i])
		}
	case len(fields) == 1:
		s.write(ctx, &res, used, fields[0].field, phone)
	default:
		s.logger.Debug("No phone layout matched.", zap.Int("fields", len(fields)), zap.Int("parts", len(parts)))
	}
	return res, nil
}
