package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"error":   LevelError,
		"info":    LevelInfo,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "input=%q", in)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(Options{Level: LevelWarn, Output: &buf}))
	t.Cleanup(func() { SetLevel(LevelInfo) })

	Info("hidden", "k", "v")
	Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "k=v")
}

func TestErrorIncludesErrAndDropsOddKey(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(Options{Level: LevelDebug, Output: &buf}))
	t.Cleanup(func() { SetLevel(LevelInfo) })

	Error("reschedule failed", errors.New("boom"), "item_id", "it-1", "dangling")

	out := buf.String()
	assert.Contains(t, out, "err=boom")
	assert.Contains(t, out, "item_id=it-1")
	assert.NotContains(t, out, "dangling")
}
