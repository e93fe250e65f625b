package securedata

import (
	"strings"
	"unicode"
)

// MaxStringLen caps the length of any single string parameter after
// sanitization.
const MaxStringLen = 10000

// SanitizeParams returns a deep copy of params with every string sanitized.
// Nested maps and slices are walked recursively; non-string scalars pass
// through untouched.
func SanitizeParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return SanitizeString(val)
	case map[string]any:
		return SanitizeParams(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = SanitizeString(item)
		}
		return out
	default:
		return v
	}
}

// SanitizeString strips control characters and angle brackets and caps the
// result at MaxStringLen. Benign Unicode text, newlines, and tabs survive.
func SanitizeString(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		switch {
		case r == '<' || r == '>':
			continue
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
		}
	}

	out := b.String()
	if len(out) > MaxStringLen {
		// Cut on a rune boundary
		cut := MaxStringLen
		for cut > 0 && !isRuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
	}
	return out
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
