package storage

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func TestLocalStorage_PutGetDelete(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	err := s.Put(ctx, "appraisals/a/photos/x.jpg", strings.NewReader("image bytes"), PutOptions{})
	require.NoError(t, err)

	exists, err := s.Exists(ctx, "appraisals/a/photos/x.jpg")
	require.NoError(t, err)
	assert.True(t, exists)

	rc, info, err := s.Get(ctx, "appraisals/a/photos/x.jpg")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "image bytes", string(data))
	assert.Equal(t, int64(len("image bytes")), info.Size)

	require.NoError(t, s.Delete(ctx, "appraisals/a/photos/x.jpg"))

	exists, err = s.Exists(ctx, "appraisals/a/photos/x.jpg")
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting a missing key is idempotent.
	assert.NoError(t, s.Delete(ctx, "appraisals/a/photos/x.jpg"))
}

func TestLocalStorage_Put_RejectsDuplicateWithoutOverwrite(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k.txt", strings.NewReader("one"), PutOptions{}))

	err := s.Put(ctx, "k.txt", strings.NewReader("two"), PutOptions{})
	assert.True(t, IsKeyExists(err))

	require.NoError(t, s.Put(ctx, "k.txt", strings.NewReader("two"), PutOptions{Overwrite: true}))

	rc, _, err := s.Get(ctx, "k.txt")
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "two", string(data))
}

func TestLocalStorage_Put_EnforcesMaxSize(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	err := s.Put(ctx, "big.bin", strings.NewReader("0123456789"), PutOptions{MaxSize: 5})
	assert.True(t, IsTooLarge(err))

	// The partial file must not linger.
	exists, err := s.Exists(ctx, "big.bin")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for _, key := range []string{"", "../escape.txt", "a/../../escape.txt"} {
		err := s.Put(ctx, key, strings.NewReader("x"), PutOptions{})
		assert.Error(t, err, "key %q", key)
	}
}

func TestLocalStorage_URL(t *testing.T) {
	s := newTestStorage(t)

	url, err := s.URL(context.Background(), "appraisals/a/photos/x.jpg", 0)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/appraisals/a/photos/x.jpg", url)
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name     string
		provided string
		filename string
		data     string
		want     string
	}{
		{
			name:     "provided type wins",
			provided: "image/webp",
			filename: "photo.jpg",
			want:     "image/webp",
		},
		{
			name:     "extension fallback",
			filename: "photo.png",
			want:     "image/png",
		},
		{
			name:     "sniffing fallback",
			filename: "photo",
			data:     "\xff\xd8\xff\xe0 jpeg magic",
			want:     "image/jpeg",
		},
		{
			name:     "unknown defaults to octet-stream",
			filename: "",
			want:     "application/octet-stream",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var data io.Reader
			if tt.data != "" {
				data = strings.NewReader(tt.data)
			}
			assert.Equal(t, tt.want, DetectContentType(tt.provided, tt.filename, data))
		})
	}
}

func TestIsAllowedPhotoType(t *testing.T) {
	assert.True(t, IsAllowedPhotoType("image/jpeg"))
	assert.True(t, IsAllowedPhotoType("IMAGE/PNG"))
	assert.True(t, IsAllowedPhotoType("image/heic; profile=apple"))
	assert.False(t, IsAllowedPhotoType("image/gif"))
	assert.False(t, IsAllowedPhotoType("application/pdf"))
}
