package storage

import (
	"context"
	"errors"
	"io"
)

var ErrInvalidKey = errors.New("invalid storage key")

// StorageInterface defines the blob store used for images and generated certificates.
// Keys are slash separated paths such as "spaces/01J...png".
type StorageInterface interface {
	// SaveFile stores the content under key and returns a URL the SPA can fetch it from
	SaveFile(ctx context.Context, key, contentType string, reader io.Reader) (string, error)

	// GetDownloadURL returns the retrievable URL of an existing object
	GetDownloadURL(ctx context.Context, key string) (string, error)

	// FileExists checks if a file exists and returns its size
	FileExists(ctx context.Context, key string) (exists bool, size int64, err error)

	// DeleteFile removes a file from storage. Missing files are not an error.
	DeleteFile(ctx context.Context, key string) error
}
