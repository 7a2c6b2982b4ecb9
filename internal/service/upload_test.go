package service

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadService_Upload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewUploadService(f.storage, []string{"image/jpeg", "image/png", "image/gif"}, 1)
	body := "\x89PNG fake image"

	t.Run("Stored", func(t *testing.T) {
		link, err := svc.Upload(ctx, "spaces", "salon.PNG", "image/png", int64(len(body)), strings.NewReader(body))
		require.NoError(t, err)

		u, err := url.Parse(link)
		require.NoError(t, err)
		key := u.Query().Get("key")
		assert.True(t, strings.HasPrefix(key, "spaces/"))
		assert.Equal(t, ".png", path.Ext(key))

		exists, size, err := f.storage.FileExists(ctx, key)
		require.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, int64(len(body)), size)
	})

	t.Run("ExtensionFollowsType", func(t *testing.T) {
		link, err := svc.Upload(ctx, "posts", "foto.exe", "image/jpeg", 4, strings.NewReader("jpeg"))
		require.NoError(t, err)
		u, err := url.Parse(link)
		require.NoError(t, err)
		assert.Equal(t, ".jpg", path.Ext(u.Query().Get("key")))
	})

	tests := []struct {
		name        string
		folder      string
		contentType string
		size        int64
	}{
		{"UnknownFolder", "../etc", "image/png", 10},
		{"NotAnImage", "posts", "application/pdf", 10},
		{"TooLarge", "posts", "image/png", 2 << 20},
		{"Empty", "posts", "image/png", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tt.folder, "x.png", tt.contentType, tt.size, strings.NewReader(body))
			assert.Equal(t, http.StatusBadRequest, StatusOf(err))
		})
	}
}
