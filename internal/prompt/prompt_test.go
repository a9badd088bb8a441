package prompt

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordSingleEntry(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("hunter2\n"), &out)

	pw, err := p.Password(false)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)
	assert.Contains(t, out.String(), "What's the keystore password?")
	assert.NotContains(t, out.String(), ConfirmPrompt)
}

func TestPasswordConfirmation(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("hunter2\nhunter3\nhunter2\nhunter2\n"), &out)

	pw, err := p.Password(true)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)
	assert.Equal(t, 1, strings.Count(out.String(), MismatchError))
	assert.Equal(t, 2, strings.Count(out.String(), ConfirmPrompt))
}

func TestPasswordInputClosed(t *testing.T) {
	p := NewPrompter(strings.NewReader(""), io.Discard)

	_, err := p.Password(false)
	assert.True(t, errors.Is(err, io.EOF))
}

func TestReadLine(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("  balance  \r\nexit"), &out)

	line, err := p.ReadLine("Account `alice` command (h for help)")
	require.NoError(t, err)
	assert.Equal(t, "balance", line)
	assert.Equal(t, "Account `alice` command (h for help): ", out.String())

	line, err = p.ReadLine("next")
	require.NoError(t, err)
	assert.Equal(t, "exit", line)

	_, err = p.ReadLine("next")
	assert.ErrorIs(t, err, io.EOF)
}
