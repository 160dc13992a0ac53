package ui

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest-guardian/burn-severity-cli/internal/delivery"
	"github.com/forest-guardian/burn-severity-cli/internal/properties"
	"github.com/forest-guardian/burn-severity-cli/internal/raster"
)

func withIO(t *testing.T, input string) *bytes.Buffer {
	t.Helper()
	out := &bytes.Buffer{}
	oldOut, oldIn := stdout, stdin
	stdout, stdin = out, bufio.NewReader(strings.NewReader(input))
	t.Cleanup(func() { stdout, stdin = oldOut, oldIn })
	return out
}

func TestReadInt(t *testing.T) {
	withIO(t, "3\nabc\n9\n")

	v, err := ReadInt("> ", 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = ReadInt("> ", 1, 5)
	assert.EqualError(t, err, "invalid number: abc")

	_, err = ReadInt("> ", 1, 5)
	assert.EqualError(t, err, "value must be between 1 and 5")
}

func TestConfirm(t *testing.T) {
	withIO(t, "Y\nno\n\n")
	assert.True(t, Confirm("ok?"))
	assert.False(t, Confirm("ok?"))
	assert.False(t, Confirm("ok?"))
}

func TestShowConfig(t *testing.T) {
	out := withIO(t, "")
	ShowConfig(&properties.Config{
		PreFireItem:    "pre",
		PostFireItem:   "post",
		Bounds:         raster.Bounds{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4},
		NIRBand:        "B08",
		SWIRBand:       "B12",
		BoundaryValues: []string{"Shelburne"},
	})
	text := out.String()
	assert.Contains(t, text, "pre")
	assert.Contains(t, text, "B08, B12")
	assert.Contains(t, text, "scene CRS")
	assert.Contains(t, text, "built-in")
	assert.Contains(t, text, "Shelburne")
}

func TestShowMenuExitsAndSkipsInvalidChoices(t *testing.T) {
	out := withIO(t, "0\nfoo\n6\n")
	ShowMenu(context.Background(), &delivery.Pipeline{Config: &properties.Config{}})

	text := out.String()
	assert.Contains(t, text, "value must be between 1 and 6")
	assert.Contains(t, text, "invalid number: foo")
	assert.Contains(t, text, "Exiting...")
}

func TestShowMenuStopsOnCancelledContext(t *testing.T) {
	out := withIO(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ShowMenu(ctx, &delivery.Pipeline{})
	assert.Empty(t, out.String())
}
