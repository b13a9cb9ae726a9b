package enrich

import (
	"encoding/json"
	"strings"
)

// responseSchema is the shape requested from the provider. Every field is decoded
// lazily so a wrong type on one field only nulls that field. Size and
// PainPointsSnake are spellings models fall back to when the schema is not enforced.
type responseSchema struct {
	Description     json.RawMessage `json:"description"`
	Sector          json.RawMessage `json:"sector"`
	EstimatedSize   json.RawMessage `json:"estimatedSize"`
	Size            json.RawMessage `json:"size"`
	PainPoints      json.RawMessage `json:"painPoints"`
	PainPointsSnake json.RawMessage `json:"pain_points"`
}

// Parse extracts enrichment fields from raw provider output.
//
// The text may be wrapped in markdown code fences or surrounded by prose (grounded
// answers often add citations). Parse first tries the whole unfenced text as JSON,
// then each balanced {...} block in order, preferring the first one that carries a
// known field. It returns ErrResponseParse when no object can be found and
// ErrJSONParse when no candidate object decodes.
func Parse(raw string) (*Data, error) {
	text := stripFences(raw)
	if text == "" {
		return nil, ErrResponseParse
	}

	if strings.HasPrefix(text, "{") {
		if schema, ok := decodeObject(text); ok {
			return schema.data(), nil
		}
	}

	blocks := objects(text)
	if len(blocks) == 0 {
		if strings.Contains(text, "{") {
			return nil, ErrJSONParse
		}
		return nil, ErrResponseParse
	}

	var fallback *responseSchema
	for _, block := range blocks {
		schema, ok := decodeObject(block)
		if !ok {
			continue
		}
		if schema.known() {
			return schema.data(), nil
		}
		if fallback == nil {
			fallback = &schema
		}
	}
	if fallback == nil {
		return nil, ErrJSONParse
	}
	return fallback.data(), nil
}

// Classify maps parsed data to its terminal status. ok is false for an empty result,
// which must be discarded rather than stored.
func Classify(d Data) (status Status, ok bool) {
	switch {
	case d.Description != nil && d.Sector != nil:
		return StatusEnriched, true
	case !d.Empty():
		return StatusPartial, true
	default:
		return StatusNotEnriched, false
	}
}

func decodeObject(s string) (responseSchema, bool) {
	var out responseSchema
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return responseSchema{}, false
	}
	return out, true
}

func (r responseSchema) known() bool {
	for _, f := range []json.RawMessage{r.Description, r.Sector, r.EstimatedSize, r.Size, r.PainPoints, r.PainPointsSnake} {
		if len(f) > 0 {
			return true
		}
	}
	return false
}

func (r responseSchema) data() *Data {
	return &Data{
		Description:   stringField(r.Description),
		Sector:        stringField(r.Sector),
		EstimatedSize: stringField(present(r.EstimatedSize, r.Size)),
		PainPoints:    stringList(present(r.PainPoints, r.PainPointsSnake)),
	}
}

// present returns primary unless it is missing or null.
func present(primary, alias json.RawMessage) json.RawMessage {
	if len(primary) == 0 || string(primary) == "null" {
		return alias
	}
	return primary
}

func stringField(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func stringList(raw json.RawMessage) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// objects returns every top-level balanced {...} block in s, in order, honoring JSON
// string quoting so braces inside values do not count.
func objects(s string) []string {
	var out []string
	for start := strings.IndexByte(s, '{'); start >= 0 && start < len(s); {
		next := start + 1
		if end := matchBrace(s, start); end > 0 {
			out = append(out, s[start:end+1])
			next = end + 1
		}
		i := strings.IndexByte(s[next:], '{')
		if i < 0 {
			break
		}
		start = next + i
	}
	return out
}

func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
