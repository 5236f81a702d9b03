package artifacts_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idverify/internal/artifacts"
	"idverify/internal/sentinel"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := artifacts.NewMemoryStore()

	ref, err := store.Put(ctx, []byte("front-image"), "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "mem://"))

	got, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("front-image"), got)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Delete(ctx, ref))
	assert.Equal(t, 0, store.Len())

	_, err = store.Get(ctx, ref)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, ref), sentinel.ErrNotFound)
}

func TestMemoryStoreCopiesContent(t *testing.T) {
	ctx := context.Background()
	store := artifacts.NewMemoryStore()

	content := []byte("original")
	ref, err := store.Put(ctx, content, "image/png")
	require.NoError(t, err)

	content[0] = 'X'

	got, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)

	got[0] = 'Y'
	again, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}

func TestDiskStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := artifacts.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	ref, err := store.Put(ctx, []byte("selfie-bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "file://"))
	assert.True(t, strings.HasSuffix(ref, ".jpg"))

	got, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("selfie-bytes"), got)

	require.NoError(t, store.Delete(ctx, ref))
	_, err = store.Get(ctx, ref)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, ref), sentinel.ErrNotFound)
}

func TestDiskStoreExtensionByMime(t *testing.T) {
	ctx := context.Background()
	store, err := artifacts.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	cases := []struct {
		mime string
		ext  string
	}{
		{"image/jpeg", ".jpg"},
		{"image/png", ".png"},
		{"image/webp", ".webp"},
		{"application/pdf", ".pdf"},
		{"application/octet-stream", ".bin"},
	}

	for _, tc := range cases {
		t.Run(tc.mime, func(t *testing.T) {
			ref, err := store.Put(ctx, []byte("x"), tc.mime)
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(ref, tc.ext), "ref %q should end with %q", ref, tc.ext)
		})
	}
}

func TestDiskStoreRejectsMalformedRefs(t *testing.T) {
	ctx := context.Background()
	store, err := artifacts.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	for _, ref := range []string{
		"",
		"file://",
		"mem://abc",
		"file://../etc/passwd",
		"file://sub/dir.jpg",
	} {
		_, err := store.Get(ctx, ref)
		assert.ErrorIs(t, err, sentinel.ErrInvalidInput, "ref %q", ref)
	}
}
