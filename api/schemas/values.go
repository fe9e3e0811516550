// File: api/schemas/values.go
package schemas

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DateKind identifies which variant a DateValue holds.
type DateKind int

const (
	// DateEmpty means no date was stored.
	DateEmpty DateKind = iota
	// DateStructured holds year/month/day components.
	DateStructured
	// DateLegacy holds a free-form string written by older profile editors.
	DateLegacy
)

// DateValue is a calendar date in one of two stored shapes. Older profiles
// kept dates as strings; newer ones keep {year, month, day}. Month and Day
// are zero when absent.
type DateValue struct {
	Kind   DateKind
	Year   int
	Month  int
	Day    int
	Legacy string
}

// NewDate builds a structured date. A zero year yields an empty value.
func NewDate(year, month, day int) DateValue {
	if year == 0 {
		return DateValue{}
	}
	return DateValue{Kind: DateStructured, Year: year, Month: month, Day: day}
}

// LegacyDate wraps a string-encoded date.
func LegacyDate(s string) DateValue {
	s = strings.TrimSpace(s)
	if s == "" {
		return DateValue{}
	}
	return DateValue{Kind: DateLegacy, Legacy: s}
}

// IsZero reports whether the value carries no date.
func (d DateValue) IsZero() bool {
	switch d.Kind {
	case DateStructured:
		return d.Year == 0
	case DateLegacy:
		return d.Legacy == ""
	}
	return true
}

var legacyDatePattern = regexp.MustCompile(`^\s*(\d{4})(?:[-./년\s]*(\d{1,2}))?(?:[-./월\s]*(\d{1,2}))?\s*일?\s*$`)

// Structured returns the date as components. Legacy strings such as
// "1995-03-05", "1995.03", "19950305" or "1995년 3월 5일" are parsed; ok is
// false when no year can be recovered.
func (d DateValue) Structured() (DateValue, bool) {
	switch d.Kind {
	case DateStructured:
		return d, d.Year != 0
	case DateLegacy:
		s := d.Legacy
		if len(s) == 8 && isDigits(s) {
			s = s[:4] + "-" + s[4:6] + "-" + s[6:]
		} else if len(s) == 6 && isDigits(s) {
			s = s[:4] + "-" + s[4:]
		}
		m := legacyDatePattern.FindStringSubmatch(s)
		if m == nil {
			return DateValue{}, false
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if month > 12 || day > 31 {
			return DateValue{}, false
		}
		return NewDate(year, month, day), true
	}
	return DateValue{}, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

type dateParts struct {
	Year  any `json:"year" yaml:"year"`
	Month any `json:"month" yaml:"month"`
	Day   any `json:"day" yaml:"day"`
}

func (p dateParts) toDate() (DateValue, error) {
	year, err := looseInt(p.Year)
	if err != nil {
		return DateValue{}, fmt.Errorf("year: %w", err)
	}
	month, err := looseInt(p.Month)
	if err != nil {
		return DateValue{}, fmt.Errorf("month: %w", err)
	}
	day, err := looseInt(p.Day)
	if err != nil {
		return DateValue{}, fmt.Errorf("day: %w", err)
	}
	return NewDate(year, month, day), nil
}

// looseInt accepts the number or numeric-string forms profile editors emit.
func looseInt(v any) (int, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		t = strings.TrimSpace(t)
		if t == "" {
			return 0, nil
		}
		return strconv.Atoi(t)
	}
	return 0, fmt.Errorf("unsupported value %v (%T)", v, v)
}

// UnmarshalJSON accepts an object, a string or a bare year number.
func (d *DateValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null" || trimmed == "":
		*d = DateValue{}
		return nil
	case strings.HasPrefix(trimmed, "\""):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = LegacyDate(s)
		return nil
	case strings.HasPrefix(trimmed, "{"):
		var parts dateParts
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		v, err := parts.toDate()
		if err != nil {
			return fmt.Errorf("invalid date object: %w", err)
		}
		*d = v
		return nil
	}
	year, err := strconv.Atoi(trimmed)
	if err != nil {
		return fmt.Errorf("invalid date value %s", trimmed)
	}
	*d = NewDate(year, 0, 0)
	return nil
}

// MarshalJSON writes the variant back in its stored shape.
func (d DateValue) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case DateStructured:
		out := map[string]int{"year": d.Year}
		if d.Month != 0 {
			out["month"] = d.Month
		}
		if d.Day != 0 {
			out["day"] = d.Day
		}
		return json.Marshal(out)
	case DateLegacy:
		return json.Marshal(d.Legacy)
	}
	return []byte("null"), nil
}

// MarshalYAML writes the variant back in its stored shape.
func (d DateValue) MarshalYAML() (interface{}, error) {
	switch d.Kind {
	case DateStructured:
		out := map[string]int{"year": d.Year}
		if d.Month != 0 {
			out["month"] = d.Month
		}
		if d.Day != 0 {
			out["day"] = d.Day
		}
		return out, nil
	case DateLegacy:
		return d.Legacy, nil
	}
	return nil, nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML profiles.
func (d *DateValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		var parts dateParts
		if err := node.Decode(&parts); err != nil {
			return err
		}
		v, err := parts.toDate()
		if err != nil {
			return fmt.Errorf("invalid date mapping: %w", err)
		}
		*d = v
		return nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*d = DateValue{}
			return nil
		}
		if node.Tag == "!!int" {
			year, err := strconv.Atoi(node.Value)
			if err != nil {
				return err
			}
			*d = NewDate(year, 0, 0)
			return nil
		}
		*d = LegacyDate(node.Value)
		return nil
	}
	return fmt.Errorf("line %d: date must be a mapping or a scalar", node.Line)
}

// EmailKind identifies which variant an EmailValue holds.
type EmailKind int

const (
	EmailEmpty EmailKind = iota
	EmailStructured
	EmailLegacy
)

// EmailValue is an email address stored either split into id and domain or
// as a single combined string.
type EmailValue struct {
	Kind   EmailKind
	ID     string
	Domain string
	Legacy string
}

// NewEmail builds a structured email value.
func NewEmail(id, domain string) EmailValue {
	id, domain = strings.TrimSpace(id), strings.TrimSpace(domain)
	if id == "" && domain == "" {
		return EmailValue{}
	}
	return EmailValue{Kind: EmailStructured, ID: id, Domain: domain}
}

// LegacyEmail wraps a combined address string.
func LegacyEmail(s string) EmailValue {
	s = strings.TrimSpace(s)
	if s == "" {
		return EmailValue{}
	}
	return EmailValue{Kind: EmailLegacy, Legacy: s}
}

// IsZero reports whether no address is stored.
func (e EmailValue) IsZero() bool {
	return e.Kind == EmailEmpty || (e.ID == "" && e.Domain == "" && e.Legacy == "")
}

// Parts returns the id and domain. A legacy string is split on its single
// '@'; anything else is returned whole as the id.
func (e EmailValue) Parts() (id, domain string) {
	switch e.Kind {
	case EmailStructured:
		return e.ID, e.Domain
	case EmailLegacy:
		parts := strings.Split(e.Legacy, "@")
		if len(parts) == 2 {
			return parts[0], parts[1]
		}
		return e.Legacy, ""
	}
	return "", ""
}

// Address returns the combined address, or the original string when it
// cannot be split.
func (e EmailValue) Address() string {
	id, domain := e.Parts()
	if id != "" && domain != "" {
		return id + "@" + domain
	}
	if e.Kind == EmailLegacy {
		return e.Legacy
	}
	return id
}

type emailParts struct {
	ID     string `json:"id" yaml:"id"`
	Domain string `json:"domain" yaml:"domain"`
}

func (e *EmailValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null" || trimmed == "":
		*e = EmailValue{}
		return nil
	case strings.HasPrefix(trimmed, "{"):
		var p emailParts
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*e = NewEmail(p.ID, p.Domain)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid email value: %w", err)
	}
	*e = LegacyEmail(s)
	return nil
}

func (e EmailValue) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case EmailStructured:
		return json.Marshal(emailParts{ID: e.ID, Domain: e.Domain})
	case EmailLegacy:
		return json.Marshal(e.Legacy)
	}
	return []byte("null"), nil
}

func (e EmailValue) MarshalYAML() (interface{}, error) {
	switch e.Kind {
	case EmailStructured:
		return emailParts{ID: e.ID, Domain: e.Domain}, nil
	case EmailLegacy:
		return e.Legacy, nil
	}
	return nil, nil
}

func (e *EmailValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		var p emailParts
		if err := node.Decode(&p); err != nil {
			return err
		}
		*e = NewEmail(p.ID, p.Domain)
		return nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*e = EmailValue{}
			return nil
		}
		*e = LegacyEmail(node.Value)
		return nil
	}
	return fmt.Errorf("line %d: email must be a mapping or a scalar", node.Line)
}

// DateStyle selects the separator used when a date is written as one string.
type DateStyle string

const (
	DateStyleHyphen DateStyle = "hyphen"
	DateStyleDot    DateStyle = "dot"
	DateStyleNone   DateStyle = "none"
)

// Separator returns the literal placed between components.
func (s DateStyle) Separator() string {
	switch s {
	case "", DateStyleHyphen:
		return "-"
	case DateStyleDot:
		return "."
	}
	return ""
}
