package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"mibarrio-backend/internal/logger"
)

// MockStorageService implements the blob store on the local filesystem.
// Files are served back by the download handler registered next to the API.
type MockStorageService struct {
	baseURL  string // Server URL (e.g., "http://localhost:8080")
	filesDir string
}

// NewMockStorageService creates a new mock storage service
func NewMockStorageService(baseURL, uploadsDir string) (*MockStorageService, error) {
	filesDir := filepath.Join(uploadsDir, "files")
	if err := os.MkdirAll(filesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create files directory: %w", err)
	}

	return &MockStorageService{
		baseURL:  strings.TrimRight(baseURL, "/"),
		filesDir: filesDir,
	}, nil
}

// resolve maps a key to a path inside filesDir
func (m *MockStorageService) resolve(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	return filepath.Join(m.filesDir, filepath.FromSlash(key)), nil
}

func (m *MockStorageService) downloadURL(key string) string {
	return fmt.Sprintf("%s/api/v1/download/%s?key=%s", m.baseURL, encodeKey(key), url.QueryEscape(key))
}

// SaveFile saves the file to the local filesystem
func (m *MockStorageService) SaveFile(ctx context.Context, key, contentType string, reader io.Reader) (string, error) {
	fullPath, err := m.resolve(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	logger.Debug("Stored file", "key", key, "contentType", contentType)
	return m.downloadURL(key), nil
}

func (m *MockStorageService) GetDownloadURL(ctx context.Context, key string) (string, error) {
	if _, err := m.resolve(key); err != nil {
		return "", err
	}
	return m.downloadURL(key), nil
}

// FileExists checks if file exists in local filesystem
func (m *MockStorageService) FileExists(ctx context.Context, key string) (bool, int64, error) {
	fullPath, err := m.resolve(key)
	if err != nil {
		return false, 0, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return true, info.Size(), nil
}

// DeleteFile deletes file from local filesystem
func (m *MockStorageService) DeleteFile(ctx context.Context, key string) error {
	fullPath, err := m.resolve(key)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// ReadFile opens a file for reading (used by the download handler)
func (m *MockStorageService) ReadFile(key string) (io.ReadCloser, error) {
	fullPath, err := m.resolve(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// encodeKey creates a URL-safe hash of the key
func encodeKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:16]) // Use first 16 bytes
}
