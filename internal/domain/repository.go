package domain

import (
	"context"
	"time"
)

// Persisted keys. Each holds a JSON document.
const (
	KeyUser           = "user"
	KeyStores         = "stores"
	KeyFinds          = "finds"
	KeySpeakeasies    = "speakeasies"
	KeyFriends        = "friends"
	KeyFriendRequests = "friend_requests"
	KeyMessages       = "messages"
	KeyConversations  = "conversations"
)

// KeyValueStore is the persistence collaborator behind both stores.
// Get returns ErrNotFound for a missing key.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// ContactsProvider reads the device address book.
type ContactsProvider interface {
	RequestPermission(ctx context.Context) (bool, error)
	List(ctx context.Context) ([]Contact, error)
}

// PhotoStorage hands out upload URLs for photo objects.
type PhotoStorage interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	PublicURL(key string) string
}

// Event types published after successful mutations.
const (
	EventUserUpdated           = "user_updated"
	EventFindAdded             = "find_added"
	EventStoreAdded            = "store_added"
	EventSpeakeasyAdded        = "speakeasy_added"
	EventFriendRequestSent     = "friend_request_sent"
	EventFriendRequestAccepted = "friend_request_accepted"
	EventFriendRequestDeclined = "friend_request_declined"
	EventMessageSent           = "message"
	EventConversationRead      = "messages_read"
)

// Event is a notification about a committed change. UserIDs lists the
// recipients; an empty list means everyone.
type Event struct {
	Type    string    `json:"type"`
	UserIDs []string  `json:"-"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// EventPublisher delivers events to interested parties.
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}
