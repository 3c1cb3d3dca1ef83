package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizer_SizeLimit(t *testing.T) {
	s := NewSanitizer(10)

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"Under Limit", 9, false},
		{"Exact Limit", 10, false},
		{"Over Limit", 11, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Sanitize(strings.Repeat("a", tt.size))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInputTooLarge)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizer_Cleans(t *testing.T) {
	s := NewSanitizer(0)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal Text", "Hello World", "Hello World"},
		{"Safe Controls", "Line1\nLine2\tTabbed", "Line1\nLine2\tTabbed"},
		{"ANSI Code", "\x1b[31mRed\x1b[0m", "[31mRed[0m"},
		{"Null Byte", "Null\x00Byte", "NullByte"},
		{"Markup", "<b>hi</b> <script>alert(1)</script>there", "hi there"},
		{"Entities Stay Text", "Tom & Jerry", "Tom & Jerry"},
		{"Trimmed", "  padded  ", "padded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Sanitize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSanitizer_InvalidUTF8(t *testing.T) {
	_, err := NewSanitizer(0).Sanitize("bad\xff")
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestSanitizer_EnvOverride(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "10")

	s := NewSanitizer(0)
	_, err := s.Sanitize("12345678901")
	assert.ErrorIs(t, err, ErrInputTooLarge)

	_, err = s.Sanitize("12345")
	assert.NoError(t, err)
}
