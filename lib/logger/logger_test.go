package logger_test

import (
	"bytes"
	"log/slog"
	"testing"

	"poll-node/lib/logger"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logger.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, logger.ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, logger.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, logger.ParseLevel("nonsense"))
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.NewWithWriter(buf, "warn").With("service", "test")

	log.Info("hidden")
	log.Warn("shown", "poll_id", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "service=test")
	assert.Contains(t, out, "poll_id=3")
}
