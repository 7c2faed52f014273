package logger

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(orig) })
	return &buf
}

func TestEnvLoggerDebugGatedOnEnv(t *testing.T) {
	buf := captureLog(t)
	l := NewEnvLogger("[test]")

	t.Setenv("BACKPLANE_DEBUG", "")
	l.Debug("hidden %d", 1)
	assert.Empty(t, buf.String())

	t.Setenv("BACKPLANE_DEBUG", "1")
	l.Debug("visible %d", 2)
	assert.Contains(t, buf.String(), "[test] visible 2")
}

func TestEnvLoggerLevels(t *testing.T) {
	buf := captureLog(t)
	l := NewEnvLogger("[x]")

	l.Info("hello")
	l.Warn("careful")
	l.Error("broken")

	out := buf.String()
	assert.Contains(t, out, "[x] hello")
	assert.Contains(t, out, "[x] WARN: careful")
	assert.Contains(t, out, "[x] ERROR: broken")
}

func TestNoopDiscardsEverything(t *testing.T) {
	buf := captureLog(t)
	l := Noop()

	l.Debug("a")
	l.Info("b")
	l.Warn("c")
	l.Error("d")
	assert.Empty(t, buf.String())
}

func TestBufferLoggerCaptures(t *testing.T) {
	l := NewBufferLogger()

	l.Debug("dbg %s", "one")
	l.Error("err %s", "two")

	require.Len(t, l.Messages, 2)
	assert.Equal(t, "dbg one", l.Messages[0].Message)
	assert.True(t, l.HasLevel("debug"))
	assert.True(t, l.HasLevel("error"))
	assert.False(t, l.HasLevel("warn"))

	l.Clear()
	assert.Empty(t, l.Messages)
}

func TestSetDefault(t *testing.T) {
	orig := Default()
	t.Cleanup(func() { SetDefault(orig) })

	buf := NewBufferLogger()
	SetDefault(buf)
	Default().Info("through default")

	assert.True(t, buf.HasLevel("info"))
}
