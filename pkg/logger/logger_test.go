package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "warn", Writer: &buf})
	t.Cleanup(func() { Init(Options{Writer: &bytes.Buffer{}}) })

	Info("hidden")
	Warn("library skipped", "library", "msp", "err", "boom")
	Error("file annotation failed", "file", "a.tsv")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "library skipped")
	require.Contains(t, out, "library=msp")
	require.Contains(t, out, "file annotation failed")
}

func TestDebugFlagOverridesLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "error", Debug: true, Writer: &buf})
	t.Cleanup(func() { Init(Options{Writer: &bytes.Buffer{}}) })

	Debug("pass summary", "spots", 3)
	require.Contains(t, buf.String(), "pass summary")
}
