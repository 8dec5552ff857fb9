package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCappedBuffer(t *testing.T) {
	b := newCappedBuffer(5)

	n, err := b.Write([]byte("abc"))
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.False(t, b.Truncated())

	n, err = b.Write([]byte("defgh"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.True(t, b.Truncated())
	assert.Equal(t, "abcde", string(b.Bytes()))

	n, err = b.Write([]byte("ij"))
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "abcde", string(b.Bytes()))
}

func TestCappedBufferExactFit(t *testing.T) {
	b := newCappedBuffer(3)
	_, _ = b.Write([]byte("abc"))
	assert.False(t, b.Truncated())
	_, _ = b.Write(nil)
	assert.False(t, b.Truncated())
}
