package transcribe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLimited_UnderCap(t *testing.T) {
	buf, err := ReadLimited(strings.NewReader("hello"), 5, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), buf)
}

func TestReadLimited_DeclaredTooLarge(t *testing.T) {
	// Rejected on the declaration alone; the reader would panic if touched.
	_, err := ReadLimited(panicReader{}, 101, 100)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestReadLimited_ActualTooLarge(t *testing.T) {
	// Understated declaration: the post-read check still catches it.
	body := strings.NewReader(strings.Repeat("x", 150))
	_, err := ReadLimited(body, 10, 100)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestReadLimited_UnknownLength(t *testing.T) {
	buf, err := ReadLimited(strings.NewReader("chunked body"), -1, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte("chunked body"), buf)
}

func TestReadLimited_ExactlyAtCap(t *testing.T) {
	body := strings.NewReader(strings.Repeat("x", 100))
	buf, err := ReadLimited(body, 100, 100)
	require.NoError(t, err)
	assert.Len(t, buf, 100)
}

type panicReader struct{}

func (panicReader) Read([]byte) (int, error) {
	panic("body must not be read when the declared length exceeds the cap")
}
