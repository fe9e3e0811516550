// internal/aifill/validator.go
package aifill

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"
)

// DefaultMaxCodeSize is the ceiling on generated code, in characters.
const DefaultMaxCodeSize = 10000

// ErrCodeRejected is the root of every validation failure.
var ErrCodeRejected = errors.New("generated code rejected")

// CapabilityOversize names the size ceiling in a ValidationError.
const CapabilityOversize = "code size"

// ValidationError names the capability that blocked execution.
type ValidationError struct {
	Capability string
	Size       int
	Limit      int
}

func (e *ValidationError) Error() string {
	if e.Capability == CapabilityOversize {
		return fmt.Sprintf("generated code rejected: %d characters exceeds the %d character limit", e.Size, e.Limit)
	}
	return fmt.Sprintf("generated code rejected: forbidden capability %q", e.Capability)
}

func (e *ValidationError) Unwrap() error { return ErrCodeRejected }

type denyRule struct {
	pattern    *regexp.Regexp
	capability string
}

// denylist is matched as text. It is a tripwire for obvious misuse, not an
// isolation boundary: obfuscated code walks straight past it.
var denylist = []denyRule{
	{regexp.MustCompile(`(?i)\bfetch\s*\(`), "fetch API"},
	{regexp.MustCompile(`(?i)\bXMLHttpRequest\b`), "XMLHttpRequest"},
	{regexp.MustCompile(`(?i)\bchrome\.`), "chrome API"},
	{regexp.MustCompile(`(?i)\blocalStorage\b`), "localStorage"},
	{regexp.MustCompile(`(?i)\bsessionStorage\b`), "sessionStorage"},
	{regexp.MustCompile(`(?i)\bwindow\.open\s*\(`), "window.open"},
	{regexp.MustCompile(`(?i)\blocation\s*=`), "location assignment"},
	{regexp.MustCompile(`(?i)\blocation\.href\s*=`), "location.href assignment"},
	{regexp.MustCompile(`(?i)\beval\s*\(`), "eval"},
	{regexp.MustCompile(`(?i)\bnew\s+Function\s*\(`), "Function constructor"},
	{regexp.MustCompile(`(?i)\b__proto__\b`), "prototype pollution"},
	{regexp.MustCompile(`(?i)\bimport\s+`), "import statement"},
	{regexp.MustCompile(`(?i)\brequire\s*\(`), "require"},
}

// Capabilities lists the denylisted capability names in check order.
func Capabilities() []string {
	out := make([]string, len(denylist))
	for i, r := range denylist {
		out[i] = r.capability
	}
	return out
}

// Validator screens generated code before it is sent to the page.
type Validator struct {
	maxSize int
}

// NewValidator returns a validator with the given size ceiling; zero or
// less selects DefaultMaxCodeSize.
func NewValidator(maxSize int) *Validator {
	if maxSize <= 0 {
		maxSize = DefaultMaxCodeSize
	}
	return &Validator{maxSize: maxSize}
}

// Validate returns a *ValidationError for the first denylisted capability
// found, then for the size ceiling.
func (v *Validator) Validate(code string) error {
	for _, r := range denylist {
		if r.pattern.MatchString(code) {
			return &ValidationError{Capability: r.capability}
		}
	}
	if n := utf8.RuneCountInString(code); n > v.maxSize {
		return &ValidationError{Capability: CapabilityOversize, Size: n, Limit: v.maxSize}
	}
	return nil
}
