package ai

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Result is either a parsed value or the reason parsing fell back.
type Result[T any] struct {
	Value  T
	Reason string
	ok     bool
}

// Ok wraps a successfully parsed value.
func Ok[T any](v T) Result[T] { return Result[T]{Value: v, ok: true} }

// Fallback records why no value is available.
func Fallback[T any](reason string) Result[T] { return Result[T]{Reason: reason} }

// IsOk reports whether Value is usable.
func (r Result[T]) IsOk() bool { return r.ok }

// FirstJSONObject returns the first balanced {...} block in text. Braces
// inside JSON strings are ignored. When the text ends before the block
// closes, the unterminated tail is returned with complete=false.
func FirstJSONObject(text string) (block string, complete bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
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
				return text[start : i+1], true
			}
		}
	}
	return text[start:], false
}

// ExtractJSON decodes the first JSON object found in text into T. Blocks
// that do not decode as-is, including truncated ones, get one repair pass.
func ExtractJSON[T any](text string) Result[T] {
	block, complete := FirstJSONObject(text)
	if block == "" {
		return Fallback[T]("no JSON object in response")
	}

	var v T
	if complete {
		if err := json.Unmarshal([]byte(block), &v); err == nil {
			return Ok(v)
		}
	}
	repaired, err := jsonrepair.JSONRepair(block)
	if err != nil {
		return Fallback[T]("malformed JSON: " + err.Error())
	}
	v = *new(T)
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		return Fallback[T]("malformed JSON after repair: " + err.Error())
	}
	return Ok(v)
}
