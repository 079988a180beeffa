package outbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterRec struct {
	Kind  uint32
	Count uint32
}

func TestReserveZeroesAndAppends(t *testing.T) {
	b := New(0)

	h1, err := b.Reserve(4)
	require.NoError(t, err)
	h2, err := b.Reserve(8)
	require.NoError(t, err)

	assert.Equal(t, Handle{Off: 0, Len: 4}, h1)
	assert.Equal(t, Handle{Off: 4, Len: 8}, h2)
	assert.Equal(t, 12, b.Len())
	assert.Equal(t, make([]byte, 8), b.Bytes(h2))
}

func TestHandlesSurviveGrowth(t *testing.T) {
	b := New(0)

	first, err := Alloc(b, &counterRec{Kind: 3})
	require.NoError(t, err)

	// force several reallocations of the backing slice
	for i := 0; i < 1000; i++ {
		_, err := b.Reserve(64)
		require.NoError(t, err)
	}

	for i := 0; i < 5; i++ {
		require.NoError(t, Update(b, first, func(r *counterRec) { r.Count++ }))
	}

	var got counterRec
	require.NoError(t, Load(b, first, &got))
	assert.Equal(t, counterRec{Kind: 3, Count: 5}, got)
}

func TestReserveLimit(t *testing.T) {
	b := New(16)

	_, err := b.Reserve(10)
	require.NoError(t, err)

	_, err = b.Reserve(7)
	assert.ErrorIs(t, err, ErrBufferFull)
	assert.Equal(t, 10, b.Len())
}

func TestCopyToAndRelease(t *testing.T) {
	b := New(0)
	_, err := b.Append([]byte{0xde, 0xad, 0xbe, 0xef})
	require.NoError(t, err)

	dst := make([]byte, 2)
	_, err = b.CopyTo(dst)
	assert.Error(t, err)

	dst = make([]byte, 6)
	n, err := b.CopyTo(dst)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef, 0, 0}, dst)

	b.Release()
	b.Release()
	assert.Equal(t, 0, b.Len())

	_, err = b.Reserve(1)
	assert.ErrorIs(t, err, ErrReleased)
	_, err = b.CopyTo(dst)
	assert.ErrorIs(t, err, ErrReleased)
}
