package redact

import (
	"regexp"
	"strings"
)

var (
	// Matches "Bearer <token>" (JWTs and opaque tokens).
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)

	// Common key=value formats that sometimes leak in error strings.
	apiKeyKVRe = regexp.MustCompile(`(?i)\b(x-goog-api-key|x-api-key|api[_-]?key|gemini[_-]?api[_-]?key|anthropic[_-]?api[_-]?key)\b\s*[:=]\s*[^\s"'&]+`)

	// Query-string keys as used by the Gemini REST API.
	queryKeyRe = regexp.MustCompile(`([?&])key=[^\s"'&]+`)

	// Raw provider key shapes: Google "AIza..." and Anthropic "sk-ant-...".
	rawKeyRe = regexp.MustCompile(`\b(AIza[0-9A-Za-z_\-]{20,}|sk-ant-[0-9A-Za-z_\-]{10,})`)
)

// Secrets removes obvious secret-bearing substrings from error/log strings.
//
// Safe to call on any message, including user keywords and upstream error strings.
func Secrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	out = apiKeyKVRe.ReplaceAllString(out, "<redacted_kv>")
	out = queryKeyRe.ReplaceAllString(out, "${1}key=<redacted>")
	out = rawKeyRe.ReplaceAllString(out, "<redacted_key>")
	return strings.TrimSpace(out)
}

// Error is Secrets applied to err.Error(); nil yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return Secrets(err.Error())
}
