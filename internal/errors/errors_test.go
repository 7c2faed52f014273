package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormatsMessageAndSuggestion(t *testing.T) {
	err := New(ErrDaemon, "Container daemon unreachable", "Check the daemon is running")

	out := err.Error()
	assert.Contains(t, out, "✗ Container daemon unreachable")
	assert.Contains(t, out, "Check the daemon is running")
}

func TestWrapDefaultsToDaemonCode(t *testing.T) {
	cause := stderrors.New("dial unix: no such file")
	err := Wrap(cause, "Failed to connect")

	assert.Equal(t, ErrDaemon, err.Code)
	assert.Contains(t, err.Error(), cause.Error())
	assert.ErrorIs(t, err, cause)
}

func TestWrapWithCodePreservesCause(t *testing.T) {
	cause := stderrors.New("exit code 127")
	err := WrapWithCode(cause, ErrExec, "Shell failed", "Try another shell")

	require.Equal(t, ErrExec, err.Code)
	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, IsCode(err, ErrExec))
	assert.False(t, IsCode(err, ErrConfig))
}

func TestIsCodeThroughWrapping(t *testing.T) {
	inner := New(ErrSession, "session gone", "")
	outer := stderrors.Join(stderrors.New("outer"), inner)

	assert.True(t, IsCode(outer, ErrSession))
	assert.False(t, IsCode(nil, ErrSession))
	assert.False(t, IsCode(stderrors.New("plain"), ErrSession))
}
