package blobsvc

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/knowledge"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	key := "documents/ab/abcdef.txt"
	require.NoError(t, store.Put(ctx, key, strings.NewReader("hello blobs"), "text/plain"))

	rc, err := store.Get(ctx, key)
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello blobs", string(content))

	// overwrite
	require.NoError(t, store.Put(ctx, key, strings.NewReader("v2"), "text/plain"))
	rc, err = store.Get(ctx, key)
	require.NoError(t, err)
	content, _ = io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "v2", string(content))

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key), "deleting a missing blob")

	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, knowledge.ErrBlobNotFound)
	assert.True(t, core.IsNotFound(err))
}

func TestLocalStore_invalidKeys(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../escape", "/etc/passwd", "a/../../b"} {
		t.Run(key, func(t *testing.T) {
			assert.ErrorIs(t, store.Put(ctx, key, strings.NewReader("x"), ""), errInvalidKey)
			_, err := store.Get(ctx, key)
			assert.ErrorIs(t, err, errInvalidKey)
		})
	}
}

func TestLocalStore_canceledPut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.Error(t, store.Put(ctx, "k.txt", strings.NewReader("data"), "text/plain"))
	_, err = store.Get(context.Background(), "k.txt")
	assert.ErrorIs(t, err, knowledge.ErrBlobNotFound)
}

func TestNewStore_unknownBackend(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Knowledge.BlobBackend = "s3"
	_, err := NewStore(context.Background(), conf)
	assert.Error(t, err)
}
