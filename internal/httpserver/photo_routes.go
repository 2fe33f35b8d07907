package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fridayce/rork-mapcask/internal/service"
)

type presignRequest struct {
	Kind        service.PhotoKind `json:"kind"`
	ContentType string            `json:"content_type"`
}

// PhotoRoutes returns a sub-router mounted at /api/photos. Clients PUT the
// bytes straight to object storage and store the returned photo_url.
func PhotoRoutes(photos *service.PhotoService) chi.Router {
	r := chi.NewRouter()

	r.Post("/presign", func(w http.ResponseWriter, r *http.Request) {
		var req presignRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		up, err := photos.PresignUpload(r.Context(), req.Kind, req.ContentType)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, up)
	})

	return r
}
