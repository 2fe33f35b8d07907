package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fridayce/rork-mapcask/internal/domain"
	"github.com/fridayce/rork-mapcask/internal/service"
)

type conversationList struct {
	Conversations []domain.Conversation `json:"conversations"`
	TotalUnread   int                   `json:"total_unread"`
}

func handleListConversations(social service.Social) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		convs := social.Conversations(r.Context())
		writeJSON(w, http.StatusOK, conversationList{
			Conversations: convs,
			TotalUnread:   service.TotalUnread(convs),
		})
	}
}

type sendMessageRequest struct {
	FriendID string `json:"friend_id"`
	Text     string `json:"text"`
}

// handleSendMessage starts or continues the conversation with a friend.
func handleSendMessage(social service.Social) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		msg, err := social.SendMessage(r.Context(), req.FriendID, req.Text)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

func handleListMessages(social service.Social) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msgs, err := social.ConversationMessages(r.Context(), chi.URLParam(r, "conversationID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func handleMarkConversationRead(social service.Social) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := social.MarkConversationAsRead(r.Context(), chi.URLParam(r, "conversationID")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
