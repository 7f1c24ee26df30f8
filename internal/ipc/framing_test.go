package ipc

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFrame_SplitsOnNewline(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("hello\nworld\n"))
	f1, err := readFrame(r, 1024, 4096)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(f1))

	f2, err := readFrame(r, 1024, 4096)
	require.NoError(t, err)
	assert.Equal(t, "world", string(f2))
}

func TestReadFrame_ConcatenatedFramesParseCorrectly(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(`{"a":1}` + "\n" + `{"b":2}` + "\n"))
	f1, err := readFrame(r, 1024, 4096)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(f1))

	f2, err := readFrame(r, 1024, 4096)
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":2}`, string(f2))
}

func TestReadFrame_CleanEOFReturnsNil(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(""))
	frame, err := readFrame(r, 1024, 4096)
	assert.NoError(t, err)
	assert.Nil(t, frame)
}

func TestReadFrame_AtMaxFrameBytesSucceeds(t *testing.T) {
	payload := strings.Repeat("a", 100)
	r := bufio.NewReader(strings.NewReader(payload + "\n"))
	frame, err := readFrame(r, 100, 4096)
	require.NoError(t, err)
	assert.Len(t, frame, 100)
}

func TestReadFrame_AboveMaxFrameBytesErrors(t *testing.T) {
	payload := strings.Repeat("a", 101)
	r := bufio.NewReader(strings.NewReader(payload + "\n"))
	_, err := readFrame(r, 100, 4096)
	assert.Equal(t, errFrameTooLarge, err)
}

func TestReadFrame_AtKillThresholdClosesImmediately(t *testing.T) {
	payload := strings.Repeat("a", 4096)
	r := bufio.NewReader(strings.NewReader(payload + "\n"))
	_, err := readFrame(r, 100, 4096)
	assert.Equal(t, errFrameKilled, err)
}
