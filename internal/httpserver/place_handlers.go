package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fridayce/rork-mapcask/internal/catalog"
	"github.com/fridayce/rork-mapcask/internal/domain"
	"github.com/fridayce/rork-mapcask/internal/geo"
	"github.com/fridayce/rork-mapcask/internal/service"
)

const defaultNearbyRadiusKm = 25

func handleListStores(app service.Identity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, app.Stores())
	}
}

func handleListFinds(app service.Identity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, app.Finds())
	}
}

func handleListSpeakeasies(app service.Identity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, app.Speakeasies())
	}
}

func handleGetFind(app service.Identity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := app.Find(chi.URLParam(r, "findID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}

func handleGetSpeakeasy(app service.Identity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sp, err := app.Speakeasy(chi.URLParam(r, "speakeasyID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sp)
	}
}

func handleUserFinds(app service.Identity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, app.UserFinds())
	}
}

// handleNearbyFinds reads lat, lng and radius_km. Missing coordinates fall
// back to the default location.
func handleNearbyFinds(app service.Identity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var at domain.Location
		if q.Get("lat") != "" || q.Get("lng") != "" {
			lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
			lng, err2 := strconv.ParseFloat(q.Get("lng"), 64)
			if err1 != nil || err2 != nil {
				writeErrorMsg(w, http.StatusBadRequest, "invalid lat or lng")
				return
			}
			at = domain.Location{Latitude: lat, Longitude: lng}
		}
		radius := float64(defaultNearbyRadiusKm)
		if v := q.Get("radius_km"); v != "" {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil || parsed <= 0 {
				writeErrorMsg(w, http.StatusBadRequest, "invalid radius_km")
				return
			}
			radius = parsed
		}
		writeJSON(w, http.StatusOK, app.NearbyFinds(geo.OrFallback(at), radius))
	}
}

func handleAddFind(app service.Identity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.BourbonFind
		if !decodeJSON(w, r, &req) {
			return
		}
		finds, err := app.AddFind(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, finds)
	}
}

func handleAddStore(app service.Identity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.LiquorStore
		if !decodeJSON(w, r, &req) {
			return
		}
		stores, err := app.AddStore(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, stores)
	}
}

func handleAddSpeakeasy(app service.Identity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.Speakeasy
		if !decodeJSON(w, r, &req) {
			return
		}
		list, err := app.AddSpeakeasy(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, list)
	}
}

func handleShareFind(app service.Identity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := app.ShareFind(r.Context(), chi.URLParam(r, "findID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// handleListProducts filters by brand (exact) or q (substring).
func handleListProducts(c *catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if brand := strings.TrimSpace(r.URL.Query().Get("brand")); brand != "" {
			writeJSON(w, http.StatusOK, c.ProductsByBrand(brand))
			return
		}
		writeJSON(w, http.StatusOK, c.Search(r.URL.Query().Get("q")))
	}
}

func handleListDistilleries(c *catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, c.Distilleries())
	}
}
