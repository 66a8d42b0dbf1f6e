package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	info, err := s.Put(ctx, "reports/RPT-1/RPT-1.json", "application/json", strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.Size)
	assert.Len(t, info.Hash, 64)

	rc, got, err := s.Get(ctx, "reports/RPT-1/RPT-1.json")
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, `{"a":1}`, string(body))
	assert.Equal(t, "application/json", got.ContentType)

	require.NoError(t, s.Delete(ctx, "reports/RPT-1/RPT-1.json"))
	_, _, err = s.Get(ctx, "reports/RPT-1/RPT-1.json")
	assert.True(t, errors.Is(err, ErrBlobNotFound))
	assert.ErrorIs(t, s.Delete(ctx, "reports/RPT-1/RPT-1.json"), ErrBlobNotFound)
}

func TestMemoryStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Put(ctx, "a/b", "text/plain", strings.NewReader("one"))
	require.NoError(t, err)
	_, err = s.Put(ctx, "a/b", "text/plain", strings.NewReader("three"))
	require.NoError(t, err)

	_, info, err := s.Get(ctx, "a/b")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, []string{"a/b"}, s.Keys("a/"))
}

func TestValidateKey(t *testing.T) {
	for _, bad := range []string{"", "/abs", "a/../b", "a//b", "./a"} {
		assert.ErrorIs(t, ValidateKey(bad), ErrInvalidKey, bad)
	}
	assert.NoError(t, ValidateKey("reports/RPT-20250101-1234/RPT-20250101-1234.json"))
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), "", S3Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open(context.Background(), "gcs", S3Config{})
	assert.Error(t, err)

	_, err = Open(context.Background(), DriverS3, S3Config{})
	assert.ErrorContains(t, err, "bucket required")
}
