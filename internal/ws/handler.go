package ws

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/fridayce/rork-mapcask/internal/domain"
	"github.com/fridayce/rork-mapcask/internal/service"
)

// Authenticator resolves a bearer token to the signed-in user.
type Authenticator interface {
	Authenticate(r *http.Request, token string) (*domain.User, error)
}

// AuthFunc adapts a function to Authenticator.
type AuthFunc func(r *http.Request, token string) (*domain.User, error)

func (f AuthFunc) Authenticate(r *http.Request, token string) (*domain.User, error) {
	return f(r, token)
}

// SessionAuth authenticates against the session service.
func SessionAuth(sessions *service.SessionService) Authenticator {
	return AuthFunc(func(r *http.Request, token string) (*domain.User, error) {
		return sessions.Authenticate(r.Context(), token)
	})
}

type inbound struct {
	Type           string `json:"type"`
	FriendID       string `json:"friend_id"`
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id"`
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

// makeCheckOrigin admits native clients, which send no Origin, and browsers
// from the allowed list. "*" admits every origin.
func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	_, wildcard := allowed["*"]

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" || wildcard {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		_, ok := allowed[fmt.Sprintf("%s://%s", u.Scheme, u.Host)]
		return ok
	}
}

var errMissingToken = errors.New("missing bearer token")

// extractToken reads "Authorization: Bearer <t>", or the subprotocol pair
// "bearer, <t>" browsers use since they cannot set headers on upgrade.
func extractToken(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		if token := strings.TrimSpace(authHeader[len("Bearer "):]); token != "" {
			return token, nil
		}
	}

	if protocolHeader := r.Header.Get("Sec-WebSocket-Protocol"); protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
			return parts[1], nil
		}
	}
	return "", errMissingToken
}

// MakeHandler returns the /ws endpoint. After authenticating it dispatches:
//   - message   -> send to a friend; delivery happens through the event hub
//   - mark_read -> mark a conversation read
//   - typing    -> forward a typing indicator to the other participant
func MakeHandler(hub *Hub, auth Authenticator, social service.Social, allowedOrigins []string) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin:  checkOrigin,
		Subprotocols: []string{"bearer"},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}
		token, err := extractToken(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		user, err := auth.Authenticate(r, token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		hub.Register(user.ID, conn)
		defer hub.Unregister(user.ID, conn)
		log.Info().Str("user_id", user.ID).Msg("ws: connected")

		ctx := r.Context()
		reply := func(payload any) { hub.SendToUsers([]string{user.ID}, payload) }

		for {
			var in inbound
			if err := conn.ReadJSON(&in); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("user_id", user.ID).Msg("ws: read")
				}
				break
			}

			// The session may have ended since the upgrade; frames act as
			// whoever is signed in now.
			if current, err := auth.Authenticate(r, token); err != nil || current.ID != user.ID {
				log.Info().Str("user_id", user.ID).Msg("ws: session no longer valid")
				hub.Disconnect(user.ID)
				break
			}

			switch in.Type {
			case "message":
				if in.FriendID == "" {
					reply(errorFrame("message requires friend_id and text"))
					continue
				}
				if _, err := social.SendMessage(ctx, in.FriendID, in.Text); err != nil {
					log.Warn().Err(err).Str("user_id", user.ID).Msg("ws: send message")
					reply(errorFrame(describe(err, "failed to send message")))
				}

			case "mark_read":
				if in.ConversationID == "" {
					continue
				}
				if err := social.MarkConversationAsRead(ctx, in.ConversationID); err != nil {
					log.Warn().Err(err).Str("conversation_id", in.ConversationID).Msg("ws: mark_read")
					reply(errorFrame(describe(err, "failed to mark messages as read")))
				}

			case "typing":
				conv, ok := findConversation(social.Conversations(ctx), in.ConversationID)
				if !ok {
					reply(errorFrame("not allowed for this conversation"))
					continue
				}
				hub.SendToUsers([]string{conv.Other(user.ID).ID}, map[string]any{
					"type":            "typing",
					"conversation_id": conv.ID,
					"user_id":         user.ID,
					"user_name":       user.Name,
				})

			default:
				log.Debug().Str("type", in.Type).Str("user_id", user.ID).Msg("ws: unknown event type")
			}
		}
		log.Info().Str("user_id", user.ID).Msg("ws: disconnected")
	}
}

func findConversation(convs []domain.Conversation, id string) (domain.Conversation, bool) {
	for _, c := range convs {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Conversation{}, false
}

// describe exposes client-caused errors and hides the rest.
func describe(err error, fallback string) string {
	for _, known := range []error{
		domain.ErrInvalidInput,
		domain.ErrFriendNotFound,
		domain.ErrConversationNotFound,
		domain.ErrNotSignedIn,
	} {
		if errors.Is(err, known) {
			return err.Error()
		}
	}
	return fallback
}

func errorFrame(msg string) map[string]any {
	return map[string]any{"type": "error", "message": msg}
}
