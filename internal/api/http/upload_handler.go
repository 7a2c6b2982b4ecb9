package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// upload accepts a multipart form with the image in the "file" field
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.deps.MaxUploadMB << 20
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	// leave room for the multipart envelope; the service enforces the exact limit
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "El archivo está vacío o es demasiado grande.")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "El archivo está vacío.")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	url, err := s.deps.Uploads.Upload(r.Context(), mux.Vars(r)["folder"], header.Filename, contentType, header.Size, file)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]string{"url": url})
}
