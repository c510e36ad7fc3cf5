package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/claimsync/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalStore_PutDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	key := "receipts/651147/0a1b2c3d.pdf"

	require.NoError(t, store.Put(ctx, key, strings.NewReader("%PDF-1.4"), 8, "application/pdf"))

	data, err := os.ReadFile(filepath.Join(store.root, "receipts", "651147", "0a1b2c3d.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	ok, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, key))
	ok, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, store.Delete(ctx, key), "deleting twice is fine")
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../outside.pdf", "/etc/passwd", "a/../../b"} {
		err := store.Put(context.Background(), key, strings.NewReader("x"), 1, "text/plain")
		assert.Error(t, err, key)
	}
}

func TestNewS3Store_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3Store(ctx, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewS3Store(ctx, &config.StorageConfig{AccessKey: "k", SecretKey: "s"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("missing credentials return error", func(t *testing.T) {
		_, err := NewS3Store(ctx, &config.StorageConfig{Bucket: "b", SecretKey: "s"}, nil)
		assert.ErrorContains(t, err, "access key is required")
		_, err = NewS3Store(ctx, &config.StorageConfig{Bucket: "b", AccessKey: "k"}, nil)
		assert.ErrorContains(t, err, "secret key is required")
	})

	t.Run("valid config creates store", func(t *testing.T) {
		store, err := NewS3Store(ctx, &config.StorageConfig{
			Bucket:       "receipts",
			AccessKey:    "k",
			SecretKey:    "s",
			Endpoint:     "localhost:9000",
			UsePathStyle: true,
		}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, "receipts", store.Bucket())
	})
}

func TestNormalizeEndpoint(t *testing.T) {
	got, err := normalizeEndpoint("minio:9000", false)
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000", got)

	got, err = normalizeEndpoint("s3.example.com", true)
	require.NoError(t, err)
	assert.Equal(t, "https://s3.example.com", got)

	got, err = normalizeEndpoint("", true)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewDocumentStore(t *testing.T) {
	store, err := NewDocumentStore(context.Background(), config.StorageConfig{Backend: "local", LocalDir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	_, err = NewDocumentStore(context.Background(), config.StorageConfig{Backend: "gcs"}, zap.NewNop())
	assert.Error(t, err)
}
