package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/sealed-content/pkg/sealedcontent"
)

func TestMemoryBackend_BasicOps(t *testing.T) {
	ctx := context.Background()
	b := New()

	require.NoError(t, b.Write(ctx, "a/b", []byte("hello")))
	assert.Equal(t, 1, b.Len())

	got, err := b.Read(ctx, "a/b")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	// returned slice is a copy
	got[0] = 'x'
	again, err := b.Read(ctx, "a/b")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), again)

	require.NoError(t, b.Delete(ctx, "a/b"))
	_, err = b.Read(ctx, "a/b")
	assert.ErrorIs(t, err, sealedcontent.ErrBlobNotFound)

	// idempotent
	assert.NoError(t, b.Delete(ctx, "a/b"))
}

func TestMemoryBackend_WriteCopiesInput(t *testing.T) {
	ctx := context.Background()
	b := New()

	data := []byte("original")
	require.NoError(t, b.Write(ctx, "k", data))
	data[0] = 'X'

	got, err := b.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))
}

func TestMemoryBackend_Corrupt(t *testing.T) {
	ctx := context.Background()
	b := New()
	require.NoError(t, b.Write(ctx, "k", []byte{0x00}))

	assert.True(t, b.Corrupt("k", 0))
	assert.False(t, b.Corrupt("k", 5))
	assert.False(t, b.Corrupt("missing", 0))

	got, err := b.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, got)
}
