// internal/aifill/prompt.go
package aifill

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/jobfill/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultMaxMarkupChars caps the page markup placed in a prompt.
	DefaultMaxMarkupChars = 100000

	// TruncationMarker ends markup that was cut at the cap.
	TruncationMarker = "\n...(truncated)"

	// SystemInstruction is sent with every analysis call.
	SystemInstruction = "당신은 웹 페이지 자동화 전문가입니다. DOM을 분석하고 적절한 동작을 판단하여 JSON으로만 응답하세요."

	// stripped never helps the model find a field.
	stripped = "script, style, svg, img, noscript, template"
)

// ExtractMarkup reduces a serialized document to what the model needs. It
// strips non-form noise from the body; if that is still over maxChars it
// keeps only the <form> subtrees; if that is still over, it cuts and appends
// TruncationMarker.
func ExtractMarkup(document string, maxChars int) (string, error) {
	if maxChars <= 0 {
		maxChars = DefaultMaxMarkupChars
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return "", fmt.Errorf("failed to parse page markup: %w", err)
	}
	body := doc.Find("body")
	body.Find(stripped).Remove()

	markup, err := body.Html()
	if err != nil {
		return "", fmt.Errorf("failed to serialize page body: %w", err)
	}
	if utf8.RuneCountInString(markup) <= maxChars {
		return markup, nil
	}

	if forms := body.Find("form"); forms.Length() > 0 {
		parts := make([]string, 0, forms.Length())
		forms.Each(func(_ int, f *goquery.Selection) {
			if outer, err := goquery.OuterHtml(f); err == nil {
				parts = append(parts, outer)
			}
		})
		markup = strings.Join(parts, "\n")
	}
	if utf8.RuneCountInString(markup) > maxChars {
		markup = string([]rune(markup)[:maxChars]) + TruncationMarker
	}
	return markup, nil
}

const fillRules = `CRITICAL RULES:
1. Check that every element exists before touching it; skip anything missing.
2. Use only standard CSS selectors (id, name, class, type, value, placeholder, data-*, aria-*).
3. Never use :contains; it is jQuery-only and throws in querySelector.
4. To find a button by its text, use Array.from(document.querySelectorAll('button')).find(b => b.textContent.includes('...')).
5. Prefer the page helpers, which fire input/change events for you:
   __getById(idOrName), __getByName(name), __setInputValue(el, v), __setTextareaValue(el, v),
   __setSelectValue(el, v), __setChecked(el, true), __clickElement(el).
6. No addEventListener, fetch, XMLHttpRequest, localStorage, sessionStorage, eval, import or navigation.
7. Run immediately; do not wrap the code in a function that is never called.
8. Match fields by meaning: a birthdate field only ever gets 생년월일, never a military, career or education date.
9. Try several strategies per field: id, name, placeholder, the text of its label, aria-label.

Example:
const el = __getById('name') || document.querySelector('input[placeholder*="이름"]');
if (el) __setInputValue(el, '홍길동');
`

// BuildAnalysisRequest assembles the full-page fill request.
func BuildAnalysisRequest(markup string, p *schemas.Profile) (schemas.GenerationRequest, error) {
	info, err := json.MarshalToString(flattenProfile(p))
	if err != nil {
		return schemas.GenerationRequest{}, fmt.Errorf("failed to encode profile for prompt: %w", err)
	}

	var b strings.Builder
	b.WriteString("Fill the form on this page. Generate JavaScript code ONLY.\n\n")
	b.WriteString("User data:\n")
	b.WriteString(info)
	b.WriteString("\n\nHTML:\n")
	b.WriteString(markup)
	b.WriteString("\n\n")
	b.WriteString(fillRules)
	b.WriteString("\nReturn JSON only:\n{\"code\":\"...\"}")

	return schemas.GenerationRequest{
		SystemPrompt: SystemInstruction,
		UserPrompt:   b.String(),
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{Temperature: 0.1, ForceJSONFormat: true},
	}, nil
}

// BuildSuggestionRequest asks which fields are still empty or wrong after
// the generated code ran, and what each should hold.
func BuildSuggestionRequest(markup string, p *schemas.Profile) (schemas.GenerationRequest, error) {
	info, err := json.MarshalToString(flattenProfile(p))
	if err != nil {
		return schemas.GenerationRequest{}, fmt.Errorf("failed to encode profile for prompt: %w", err)
	}

	var b strings.Builder
	b.WriteString("The form below was filled automatically. Find the form fields that are still empty ")
	b.WriteString("or hold a value that does not fit the field, and propose values from the user data.\n\n")
	b.WriteString("User data:\n")
	b.WriteString(info)
	b.WriteString("\n\nCurrent HTML:\n")
	b.WriteString(markup)
	b.WriteString(`

RULES:
1. Report only input, textarea and select elements that should hold user data.
2. "selector" must be a standard CSS selector matching exactly that element (prefer #id or [name="..."]).
3. "label" is the field's visible label text.
4. "suggestions" lists 1 to 5 candidate values, best first, taken or formatted from the user data.
5. Match fields by meaning: a birthdate field only ever gets 생년월일, never a military, career or education date.
6. Return an empty list when every field is correct.

Return JSON only:
{"fields":[{"selector":"...","label":"...","suggestions":["..."]}]}`)

	return schemas.GenerationRequest{
		SystemPrompt: SystemInstruction,
		UserPrompt:   b.String(),
		Tier:         schemas.TierFast,
		Options:      schemas.GenerationOptions{Temperature: 0.1, ForceJSONFormat: true},
	}, nil
}
