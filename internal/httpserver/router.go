package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/fridayce/rork-mapcask/internal/catalog"
	"github.com/fridayce/rork-mapcask/internal/config"
	"github.com/fridayce/rork-mapcask/internal/contacts"
	"github.com/fridayce/rork-mapcask/internal/domain"
	"github.com/fridayce/rork-mapcask/internal/service"
	"github.com/fridayce/rork-mapcask/internal/ws"
)

// Deps are the collaborators the router wires into handlers. Photos and
// AddressBook may be nil, which disables their routes.
type Deps struct {
	Config      *config.Config
	Hub         *ws.Hub
	App         *service.AppService
	Social      *service.SocialService
	Sessions    *service.SessionService
	Admin       *service.AdminService
	Photos      *service.PhotoService
	Catalog     *catalog.Catalog
	AddressBook *contacts.AddressBook
}

// NewRouter constructs the main HTTP router and wires routes and middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.CORS,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "app": d.Config.AppName})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/session", handleSignIn(d.Sessions))

		// Browsing works signed out.
		r.Get("/stores", handleListStores(d.App))
		r.Get("/finds", handleListFinds(d.App))
		r.Get("/finds/nearby", handleNearbyFinds(d.App))
		r.Get("/finds/{findID}", handleGetFind(d.App))
		r.Get("/speakeasies", handleListSpeakeasies(d.App))
		r.Get("/speakeasies/{speakeasyID}", handleGetSpeakeasy(d.App))
		r.Get("/catalog/products", handleListProducts(d.Catalog))
		r.Get("/catalog/distilleries", handleListDistilleries(d.Catalog))

		// Contributions are allowed anonymously while nobody is signed in.
		r.Group(func(r chi.Router) {
			r.Use(OptionalAuth(d.Sessions, d.App))
			r.Post("/stores", handleAddStore(d.App))
			r.Post("/finds", handleAddFind(d.App))
			r.Post("/speakeasies", handleAddSpeakeasy(d.App))
		})

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Sessions))

			r.Get("/session", handleMe())
			r.Delete("/session", handleSignOut(d.Sessions))
			r.Patch("/profile", handleUpdateProfile(d.App))
			r.Get("/progress", handleProgress(d.App))
			r.Post("/activities", handleRecordActivity(d.App))

			r.Get("/finds/mine", handleUserFinds(d.App))
			r.Post("/finds/{findID}/share", handleShareFind(d.App))

			if d.Photos != nil {
				r.Mount("/photos", PhotoRoutes(d.Photos))
			}

			r.Route("/contacts", func(r chi.Router) {
				r.Post("/permission", handleContactsPermission(d.Social))
				r.Get("/sync", handleSyncContacts(d.Social))
				if d.AddressBook != nil {
					r.Put("/", handleUploadContacts(d.AddressBook))
					r.Delete("/", handleRevokeContacts(d.AddressBook))
				}
			})

			r.Get("/friends", handleListFriends(d.Social))
			r.Route("/friend-requests", func(r chi.Router) {
				r.Get("/", handleIncomingRequests(d.Social))
				r.Get("/outgoing", handleOutgoingRequests(d.Social))
				r.Post("/", handleSendFriendRequest(d.Social))
				r.Post("/{requestID}/accept", handleAcceptFriendRequest(d.Social))
				r.Post("/{requestID}/decline", handleDeclineFriendRequest(d.Social))
			})

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", handleListConversations(d.Social))
				r.Post("/", handleSendMessage(d.Social))
				r.Get("/{conversationID}/messages", handleListMessages(d.Social))
				r.Post("/{conversationID}/read", handleMarkConversationRead(d.Social))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", handleAdminLogin(d.Admin))
			r.Group(func(r chi.Router) {
				r.Use(AdminMiddleware(d.Admin))
				r.Get("/export", handleAdminExport(d.Admin))
				r.Get("/search", handleAdminSearch(d.Admin))
				r.Post("/clear", handleAdminClear(d.Admin))
			})
		})
	})

	r.Get("/ws", ws.MakeHandler(d.Hub, ws.SessionAuth(d.Sessions), d.Social, d.Config.CORS))

	return r
}

// requestLogger logs one line per request through zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		}()
		next.ServeHTTP(ww, r)
	})
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps domain errors to statuses. Unknown errors are logged and
// reported as 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("request failed")
		writeErrorMsg(w, status, "internal server error")
		return
	}
	writeErrorMsg(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotSignedIn), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrFindNotFound),
		errors.Is(err, domain.ErrFriendNotFound),
		errors.Is(err, domain.ErrRequestNotFound),
		errors.Is(err, domain.ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON rejects unknown fields so typos surface as 400s.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
