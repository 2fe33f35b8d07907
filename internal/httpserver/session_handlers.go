package httpserver

import (
	"net/http"

	"github.com/fridayce/rork-mapcask/internal/leveling"
	"github.com/fridayce/rork-mapcask/internal/service"
)

type signInRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func handleSignIn(sessions *service.SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signInRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		sess, err := sessions.SignIn(r.Context(), req.Name, req.Email)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, sess)
	}
}

func handleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, CurrentUser(r))
	}
}

func handleSignOut(sessions *service.SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := sessions.SignOut(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleUpdateProfile(app service.Identity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.ProfileUpdate
		if !decodeJSON(w, r, &req) {
			return
		}
		user, err := app.UpdateProfile(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func handleProgress(app service.Identity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := app.Progress()
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

type activityRequest struct {
	Activity leveling.Activity `json:"activity"`
}

func handleRecordActivity(app service.Identity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req activityRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		user, reward, err := app.RecordActivity(r.Context(), req.Activity)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": user, "reward": reward})
	}
}
