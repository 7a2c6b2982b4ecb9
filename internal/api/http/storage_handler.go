package http

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"

	"mibarrio-backend/internal/logger"
	"mibarrio-backend/internal/storage"
)

// StorageHandler serves files kept by the local blob store
type StorageHandler struct {
	mockStorage *storage.MockStorageService
}

func NewStorageHandler(mockStorage *storage.MockStorageService) *StorageHandler {
	return &StorageHandler{mockStorage: mockStorage}
}

// HandleDownload streams the file named by the key query parameter
func (h *StorageHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		WriteError(w, http.StatusBadRequest, "Falta el parámetro key.")
		return
	}

	file, err := h.mockStorage.ReadFile(key)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Archivo no encontrado.")
		return
	}
	defer file.Close()

	contentType := "application/octet-stream"
	switch filepath.Ext(key) {
	case ".jpg", ".jpeg":
		contentType = "image/jpeg"
	case ".png":
		contentType = "image/png"
	case ".gif":
		contentType = "image/gif"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := io.Copy(w, file); err != nil {
		logger.Warn("Failed to stream file", "key", key, "error", err)
	}
}

// RegisterMockStorageRoutes registers the download route on the /api/v1 router
func RegisterMockStorageRoutes(router *mux.Router, mockStorage *storage.MockStorageService) {
	handler := NewStorageHandler(mockStorage)
	router.HandleFunc("/download/{token}", handler.HandleDownload).Methods(http.MethodGet)
}
