package core

import (
	"errors"
	"fmt"
	"html"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// DefaultMaxInputSize is 4KB (conservative default)
	DefaultMaxInputSize = 4096
	// EnvMaxInputSize overrides the default when set to a positive integer.
	EnvMaxInputSize = "TURNSTILE_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Sanitizer cleans user text before it reaches NLU and dialogue logic.
type Sanitizer struct {
	maxSize int
	policy  *bluemonday.Policy
}

// NewSanitizer creates a sanitizer. A maxSize <= 0 falls back to the environment, then the default.
func NewSanitizer(maxSize int) *Sanitizer {
	if maxSize <= 0 {
		maxSize = maxInputSizeFromEnv()
	}
	return &Sanitizer{maxSize: maxSize, policy: bluemonday.StrictPolicy()}
}

// Sanitize rejects oversized or malformed input, strips control characters
// (keeping \n, \t and \r) and removes any markup.
func (s *Sanitizer) Sanitize(input string) (string, error) {
	// Reject rather than truncate so the turn is deterministic
	if len(input) > s.maxSize {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), s.maxSize)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	out := stripControls(input)
	if strings.ContainsAny(out, "<>&") {
		// StrictPolicy escapes entities; the result is plain text, not HTML
		out = html.UnescapeString(s.policy.Sanitize(out))
	}
	return strings.TrimSpace(out), nil
}

func stripControls(input string) string {
	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func maxInputSizeFromEnv() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
