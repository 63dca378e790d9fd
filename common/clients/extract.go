package clients

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoStructuredResult means no JSON object could be recovered from model output
var ErrNoStructuredResult = errors.New("no structured result in model output")

// ExtractJSON recovers the first JSON object from free-form model text.
// It tries, in order: the whole text, the contents of a ``` fence, and a
// brace-balanced scan that respects string literals.
func ExtractJSON(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if isObject(text) {
		return []byte(text), nil
	}

	if fenced, ok := stripFence(text); ok && isObject(fenced) {
		return []byte(fenced), nil
	}

	for start := strings.IndexByte(text, '{'); start >= 0; {
		// an unclosed brace may still hide a complete object further on
		if end := matchBrace(text, start); end >= 0 {
			if candidate := text[start : end+1]; isObject(candidate) {
				return []byte(candidate), nil
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}

	return nil, ErrNoStructuredResult
}

func isObject(s string) bool {
	return strings.HasPrefix(s, "{") && gjson.Valid(s)
}

func stripFence(text string) (string, bool) {
	open := strings.Index(text, "```")
	if open < 0 {
		return "", false
	}
	body := text[open+3:]
	// drop the info string (```json)
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	}
	closing := strings.Index(body, "```")
	if closing < 0 {
		return strings.TrimSpace(body), true
	}
	return strings.TrimSpace(body[:closing]), true
}

// matchBrace returns the index of the brace closing text[start], or -1
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
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
				return i
			}
		}
	}
	return -1
}
