package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fridayce/rork-mapcask/internal/contacts"
	"github.com/fridayce/rork-mapcask/internal/domain"
	"github.com/fridayce/rork-mapcask/internal/service"
)

func handleContactsPermission(social service.Social) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		granted, err := social.RequestContactsPermission(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"granted": granted})
	}
}

func handleSyncContacts(social service.Social) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		candidates, err := social.SyncContacts(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, candidates)
	}
}

type uploadContactsRequest struct {
	Contacts []domain.Contact `json:"contacts"`
}

// handleUploadContacts replaces the address book the client shared.
func handleUploadContacts(book *contacts.AddressBook) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req uploadContactsRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		book.Upload(req.Contacts)
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleRevokeContacts(book *contacts.AddressBook) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		book.Revoke()
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListFriends(social service.Social) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, social.Friends(r.Context()))
	}
}

func handleIncomingRequests(social service.Social) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, social.FriendRequests(r.Context()))
	}
}

func handleOutgoingRequests(social service.Social) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, social.OutgoingRequests(r.Context()))
	}
}

func handleSendFriendRequest(social service.Social) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.Friend
		if !decodeJSON(w, r, &req) {
			return
		}
		fr, err := social.SendFriendRequest(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, fr)
	}
}

func handleAcceptFriendRequest(social service.Social) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := social.AcceptFriendRequest(r.Context(), chi.URLParam(r, "requestID")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleDeclineFriendRequest(social service.Social) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := social.DeclineFriendRequest(r.Context(), chi.URLParam(r, "requestID")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
