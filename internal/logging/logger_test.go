package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestErrorKeyRenamed(t *testing.T) {
	var buf bytes.Buffer
	slog.New(newTextHandler(&buf, slog.LevelInfo)).Info("x", "error", "boom")
	assert.Contains(t, buf.String(), "err=boom")
}

func TestFanout(t *testing.T) {
	var info, errs bytes.Buffer
	logger := slog.New(fanout{
		newTextHandler(&info, slog.LevelInfo),
		newTextHandler(&errs, slog.LevelError),
	}).With("turn_id", "t-1")

	logger.Info("started")
	logger.Error("failed")

	assert.Contains(t, info.String(), "started")
	assert.Contains(t, info.String(), "failed")
	assert.NotContains(t, errs.String(), "started")
	assert.Contains(t, errs.String(), "turn_id=t-1")
	assert.False(t, fanout{newTextHandler(&errs, slog.LevelError)}.Enabled(context.Background(), slog.LevelInfo))
}

func TestNewWithSentry_NoDSN(t *testing.T) {
	assert.NotNil(t, NewWithSentry(slog.LevelInfo, SentryConfig{}))
}
