package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"

	"mibarrio-backend/internal/logger"
)

const (
	firebaseStorageService = "firebase-storage"
	downloadTokenMetadata  = "firebaseStorageDownloadTokens"
)

// FirebaseStorageService stores objects in the project's Cloud Storage bucket and returns
// Firebase token download URLs, the same URLs the web SDK's getDownloadURL produces.
type FirebaseStorageService struct {
	bucket     *gcs.BucketHandle
	bucketName string
}

func NewFirebaseStorageService(bucket *gcs.BucketHandle, bucketName string) *FirebaseStorageService {
	return &FirebaseStorageService{bucket: bucket, bucketName: bucketName}
}

func (f *FirebaseStorageService) tokenURL(key, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		f.bucketName, url.PathEscape(key), token)
}

func (f *FirebaseStorageService) SaveFile(ctx context.Context, key, contentType string, reader io.Reader) (string, error) {
	logger.ExternalServiceCall(firebaseStorageService, "SaveFile", "key", key)
	token := uuid.New().String()

	w := f.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{downloadTokenMetadata: token}

	if _, err := io.Copy(w, reader); err != nil {
		_ = w.Close()
		logger.ExternalServiceResult(firebaseStorageService, "SaveFile", err, "key", key)
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	if err := w.Close(); err != nil {
		logger.ExternalServiceResult(firebaseStorageService, "SaveFile", err, "key", key)
		return "", fmt.Errorf("failed to finalize object: %w", err)
	}
	logger.ExternalServiceResult(firebaseStorageService, "SaveFile", nil, "key", key)
	return f.tokenURL(key, token), nil
}

func (f *FirebaseStorageService) GetDownloadURL(ctx context.Context, key string) (string, error) {
	attrs, err := f.bucket.Object(key).Attrs(ctx)
	if err != nil {
		return "", err
	}
	return f.tokenURL(key, attrs.Metadata[downloadTokenMetadata]), nil
}

func (f *FirebaseStorageService) FileExists(ctx context.Context, key string) (bool, int64, error) {
	attrs, err := f.bucket.Object(key).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	return true, attrs.Size, nil
}

func (f *FirebaseStorageService) DeleteFile(ctx context.Context, key string) error {
	logger.ExternalServiceCall(firebaseStorageService, "DeleteFile", "key", key)
	err := f.bucket.Object(key).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		err = nil
	}
	logger.ExternalServiceResult(firebaseStorageService, "DeleteFile", err, "key", key)
	return err
}
