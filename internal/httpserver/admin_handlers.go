package httpserver

import (
	"net/http"

	"github.com/fridayce/rork-mapcask/internal/service"
)

type adminLoginRequest struct {
	Password string `json:"password"`
}

func handleAdminLogin(admin *service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adminLoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		token, err := admin.Authenticate(req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
	}
}

func handleAdminExport(admin *service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="mapcask-export.json"`)
		writeJSON(w, http.StatusOK, admin.Export())
	}
}

func handleAdminSearch(admin *service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, admin.Search(r.URL.Query().Get("q")))
	}
}

func handleAdminClear(admin *service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := admin.ClearAll(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
