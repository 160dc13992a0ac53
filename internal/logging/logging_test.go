package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestSetupWriterFiltersByLevel(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	SetupWriter(&buf, "warn")

	slog.Info("mask applied", "layer", "boundary")
	slog.Warn("filter matched no features", "attribute", "NAME")

	out := buf.String()
	assert.NotContains(t, out, "mask applied")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, `msg="filter matched no features" attribute=NAME`)
}
