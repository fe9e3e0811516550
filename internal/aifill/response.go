// internal/aifill/response.go
package aifill

import (
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/xeipuuv/gojsonschema"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/llmclient"
	"github.com/xkilldash9x/jobfill/internal/llmutil"
)

// ErrEmptyCode means the model answered without a code string.
var ErrEmptyCode = errors.New("model response has no code")

const codeEnvelopeSchema = `{
  "type": "object",
  "properties": {
    "code": {"type": ["string", "null"]}
  }
}`

const suggestionSchema = `{
  "type": "object",
  "required": ["fields"],
  "properties": {
    "fields": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["selector", "suggestions"],
        "properties": {
          "selector": {"type": "string", "minLength": 1},
          "label": {"type": "string"},
          "suggestions": {"type": "array", "items": {"type": ["string", "number"]}}
        }
      }
    }
  }
}`

var (
	codeSchemaLoader       = gojsonschema.NewStringLoader(codeEnvelopeSchema)
	suggestionSchemaLoader = gojsonschema.NewStringLoader(suggestionSchema)
)

type codeEnvelope struct {
	Code *string `json:"code"`
}

type suggestionEnvelope struct {
	Fields []struct {
		Selector    string `json:"selector"`
		Label       string `json:"label"`
		Suggestions []suggestionText `json:"suggestions"`
	} `json:"fields"`
}

// suggestionText keeps a suggestion as the model wrote it. Numbers keep
// their literal digits so 20240305 never turns into 2.0240305e+07.
type suggestionText string

func (t *suggestionText) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := jsoniter.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = suggestionText(s)
		return nil
	}
	*t = suggestionText(raw)
	return nil
}

func malformed(msg string) error {
	return &llmclient.APIError{Kind: llmclient.ErrMalformedResponse, Provider: "aifill", Message: msg}
}

// checkSchema validates doc and folds every violation into one error.
func checkSchema(schema gojsonschema.JSONLoader, doc string) error {
	res, err := gojsonschema.Validate(schema, gojsonschema.NewStringLoader(doc))
	if err != nil {
		return malformed(fmt.Sprintf("response is not JSON: %v", err))
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return malformed("schema validation failed: " + strings.Join(msgs, "; "))
}

// ParseCode extracts the code string from an analysis response.
func ParseCode(response string) (string, error) {
	doc := llmutil.ExtractJSON(response)
	if err := checkSchema(codeSchemaLoader, doc); err != nil {
		return "", err
	}
	env, err := llmutil.ParseJSONResponse[codeEnvelope](doc)
	if err != nil {
		return "", malformed(err.Error())
	}
	if env.Code == nil {
		return "", ErrEmptyCode
	}
	code := llmutil.CleanCodeOutput(*env.Code)
	if code == "" {
		return "", ErrEmptyCode
	}
	return code, nil
}

// ParseSuggestions extracts the field list from a re-analysis response.
// Numeric suggestions are kept as their text.
func ParseSuggestions(response string) ([]schemas.Suggestion, error) {
	doc := llmutil.ExtractJSON(response)
	if err := checkSchema(suggestionSchemaLoader, doc); err != nil {
		return nil, err
	}
	env, err := llmutil.ParseJSONResponse[suggestionEnvelope](doc)
	if err != nil {
		return nil, malformed(err.Error())
	}
	out := make([]schemas.Suggestion, 0, len(env.Fields))
	for _, f := range env.Fields {
		s := schemas.Suggestion{Selector: strings.TrimSpace(f.Selector), Label: f.Label}
		for _, v := range f.Suggestions {
			s.Suggestions = append(s.Suggestions, string(v))
		}
		out = append(out, s)
	}
	return out, nil
}
