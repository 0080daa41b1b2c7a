package utils

import (
	"strings"
	"unicode/utf8"
)

// TruncateText caps text at maxSize bytes without splitting a UTF-8 sequence.
// A maxSize of zero or less disables truncation.
func TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	return truncated + "\n[... Content truncated due to size limits ...]"
}

// SanitizeUTF8 strips invalid UTF-8 sequences from text. Decoded message
// bodies are not guaranteed to be well-formed.
func SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	for i, r := range text {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(text[i:]); size == 1 {
				continue
			}
		}
		b.WriteRune(r)
	}

	return b.String()
}
