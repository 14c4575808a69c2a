// Package analyze runs the LLM-backed response analyzers: per-response
// researchability scoring plus the batch sentiment and differentiation
// analyzers that score all of a scan's responses in one call so the numbers
// stay comparatively consistent.
package analyze

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// defaultRating is the neutral midpoint substituted for any 1-10 rating the
// model failed to produce.
const defaultRating = 5

// ExtractJSON pulls the first JSON object or array out of free-form model
// output, tolerating markdown code fences and surrounding prose.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)

	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			text = strings.TrimSpace(rest[:j])
		}
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", eris.New("analyze: no JSON value in output")
	}

	open := text[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", eris.New("analyze: unbalanced JSON in output")
}

// UnmarshalModelJSON extracts and decodes a JSON value from model output.
func UnmarshalModelJSON(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return eris.Wrap(err, "analyze: decode model JSON")
	}
	return nil
}

// ParseRatingLines reads `KEY: n` lines out of free-form output, one rating
// per requested key. Keys are matched case-insensitively and absent or
// unparsable keys fall back to the neutral default. This is the fallback
// path for providers whose structured output failed.
func ParseRatingLines(text string, keys ...string) map[string]int {
	ratings := make(map[string]int, len(keys))
	for _, k := range keys {
		ratings[strings.ToUpper(k)] = defaultRating
	}

	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		if _, wanted := ratings[key]; !wanted {
			continue
		}
		n, err := strconv.Atoi(firstNumber(value))
		if err != nil {
			continue
		}
		ratings[key] = ClampRating(n)
	}
	return ratings
}

// ParseListLine reads a `KEY: a, b, c` line into a trimmed slice. Returns
// nil when the key is absent or empty.
func ParseListLine(text, key string) []string {
	key = strings.ToUpper(key)
	for _, line := range strings.Split(text, "\n") {
		k, value, ok := strings.Cut(line, ":")
		if !ok || strings.ToUpper(strings.TrimSpace(k)) != key {
			continue
		}
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" && !strings.EqualFold(item, "none") {
				items = append(items, item)
			}
		}
		return items
	}
	return nil
}

// ClampRating bounds a model-produced rating to the 1-10 scale.
func ClampRating(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

// firstNumber returns the first run of digits in s, or "" when there is none.
func firstNumber(s string) string {
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return s[start:i]
		}
	}
	if start >= 0 {
		return s[start:]
	}
	return ""
}
