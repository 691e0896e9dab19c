package clients

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	url, err := store.Upload(ctx, "products/a.webp", []byte("img"), "image/webp")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/products/a.webp", url)

	data, err := store.Download(ctx, "products/a.webp")
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)

	ok, err := store.Exists(ctx, "products/a.webp")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = store.Upload(ctx, "exchange/import.xml", []byte("<x/>"), "application/xml")
	require.NoError(t, err)

	keys, err := store.List(ctx, ImagePrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{"products/a.webp"}, keys)

	require.NoError(t, store.Delete(ctx, "products/a.webp"))
	ok, err = store.Exists(ctx, "products/a.webp")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStore_DownloadMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Download(context.Background(), "products/missing.webp")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), "../escape.txt", []byte("x"), "text/plain")
	assert.Error(t, err)
}
