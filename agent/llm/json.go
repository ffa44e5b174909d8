package llm

import (
	"errors"
	"regexp"
	"strings"
)

var ErrNoJSONObject = errors.New("no JSON object found in completion")

var codeFenceRe = regexp.MustCompile("(?si)^```(?:json)?\\s*(.*?)\\s*```$")

// StripCodeFences removes a markdown fence wrapping the whole completion.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// ExtractJSONObject returns the first top-level {...} block of a completion,
// ignoring code fences and surrounding prose. The block is returned as is;
// it is not repaired, so malformed JSON still fails to decode downstream.
func ExtractJSONObject(s string) (string, error) {
	s = StripCodeFences(s)

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoJSONObject
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
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
				return s[start : i+1], nil
			}
		}
	}
	// Unterminated object: hand back the tail so the decoder reports it.
	return s[start:], nil
}
