package service

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"mibarrio-backend/internal/ids"
	"mibarrio-backend/internal/logger"
	"mibarrio-backend/internal/storage"
)

var uploadFolders = map[string]bool{
	"spaces":   true,
	"posts":    true,
	"projects": true,
	"avatars":  true,
}

var extensionsByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

type uploadService struct {
	storage      storage.StorageInterface
	allowedTypes map[string]bool
	maxBytes     int64
}

// NewUploadService accepts images of allowedTypes up to maxMB megabytes
func NewUploadService(store storage.StorageInterface, allowedTypes []string, maxMB int64) UploadService {
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(t)] = true
	}
	return &uploadService{
		storage:      store,
		allowedTypes: allowed,
		maxBytes:     maxMB << 20,
	}
}

func (s *uploadService) Upload(ctx context.Context, folder, filename, contentType string, size int64, reader io.Reader) (string, error) {
	const method = "UploadService.Upload"
	logger.EnterMethod(method, "folder", folder, "filename", filename, "size", size)

	if !uploadFolders[folder] {
		return "", ErrBadRequest("Carpeta de destino inválida.")
	}
	contentType = strings.ToLower(contentType)
	if !s.allowedTypes[contentType] {
		return "", ErrBadRequest("Solo se aceptan imágenes JPG, PNG o GIF.")
	}
	if size <= 0 || size > s.maxBytes {
		return "", ErrBadRequest("La imagen supera el tamaño permitido.")
	}

	// Unique key, keep the original extension when it matches the type
	ext := strings.ToLower(filepath.Ext(filename))
	if want, ok := extensionsByType[contentType]; ok && ext != want && !(want == ".jpg" && ext == ".jpeg") {
		ext = want
	}
	key := folder + "/" + ids.New() + ext

	url, err := s.storage.SaveFile(ctx, key, contentType, io.LimitReader(reader, s.maxBytes))
	if err != nil {
		return "", failure(method, err, "No se pudo subir la imagen.", "key", key)
	}

	logger.ExitMethod(method, "key", key)
	return url, nil
}
