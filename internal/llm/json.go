package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNoJSON = errors.New("no JSON object in response")

// ExtractJSON returns the first balanced top-level JSON object in text,
// skipping any prose or code fences around it. Braces inside string literals
// are ignored.
func ExtractJSON(text string) ([]byte, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if start < 0 {
			if ch == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return []byte(text[start : i+1]), nil
			}
		}
	}

	if start >= 0 {
		return nil, fmt.Errorf("%w: unterminated object", ErrNoJSON)
	}
	return nil, ErrNoJSON
}

// DecodeObject extracts the first JSON object from text and decodes it into
// v. Unknown fields are rejected so that schema drift surfaces as a parse
// failure.
func DecodeObject(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
