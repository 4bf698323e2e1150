package capture_test

import (
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/networkteam/rocketworld/capture"
)

func TestLimitedBuffer_WriteWithinLimit(t *testing.T) {
	buffer := capture.NewLimitedBuffer(100)

	n, err := buffer.Write([]byte("<html></html>"))
	require.NoError(t, err)
	assert.Equal(t, 13, n)
	assert.Equal(t, "<html></html>", buffer.String())
	assert.False(t, buffer.Truncated())
}

func TestLimitedBuffer_WriteExactLimit(t *testing.T) {
	buffer := capture.NewLimitedBuffer(10)

	_, err := buffer.Write([]byte("1234567890"))
	require.NoError(t, err)
	assert.Equal(t, 10, buffer.Len())
	assert.False(t, buffer.Truncated())
}

func TestLimitedBuffer_MultipleWrites(t *testing.T) {
	buffer := capture.NewLimitedBuffer(10)

	_, _ = buffer.Write([]byte("hello"))
	_, _ = buffer.Write([]byte(" wo"))
	assert.False(t, buffer.Truncated())

	n, err := buffer.Write([]byte("rld!!"))
	require.NoError(t, err)
	assert.Equal(t, 5, n, "reports the full length")
	assert.True(t, buffer.Truncated())
	assert.Equal(t, "hello worl", buffer.String())

	n, err = buffer.Write([]byte(" more"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello worl", buffer.String())
}

func TestLimitedBuffer_WriteStringHonorsLimit(t *testing.T) {
	buffer := capture.NewLimitedBuffer(100)

	n, err := io.WriteString(buffer, strings.Repeat("x", 200))
	require.NoError(t, err)
	assert.Equal(t, 200, n)
	assert.Equal(t, 100, buffer.Len())
	assert.True(t, buffer.Truncated())
}

func TestLimitedBuffer_ZeroLimit(t *testing.T) {
	buffer := capture.NewLimitedBuffer(0)

	_, err := buffer.Write([]byte("test"))
	require.NoError(t, err)
	assert.True(t, buffer.Truncated())
	assert.Equal(t, "", buffer.String())

	_, err = buffer.Write(nil)
	require.NoError(t, err)
}

func TestLimitedBuffer_Reset(t *testing.T) {
	buffer := capture.NewLimitedBuffer(5)
	_, _ = buffer.Write([]byte("hello world"))
	require.True(t, buffer.Truncated())

	buffer.Reset()
	assert.False(t, buffer.Truncated())
	assert.Equal(t, 0, buffer.Len())

	_, _ = buffer.Write([]byte("new"))
	assert.Equal(t, "new", buffer.String())
}

func TestLimitedBuffer_CutKeepsRunesWhole(t *testing.T) {
	buffer := capture.NewLimitedBuffer(5)

	// The limit falls between the two bytes of ß
	_, err := buffer.WriteString("Größe")
	require.NoError(t, err)
	assert.True(t, buffer.Truncated())
	assert.Equal(t, "Grö", buffer.String())
	assert.True(t, utf8.ValidString(buffer.String()))

	// Later writes that would fit the gap are dropped too
	_, _ = buffer.Write([]byte("x"))
	assert.Equal(t, "Grö", buffer.String())

	buffer.Reset()
	_, _ = buffer.Write([]byte("€1"))
	assert.Equal(t, "€1", buffer.String())
	assert.False(t, buffer.Truncated())
}
