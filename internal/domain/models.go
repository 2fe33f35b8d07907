package domain

import (
	"strings"
	"time"
)

// FriendStatus is the lifecycle state shared by friends and friend requests.
type FriendStatus string

const (
	StatusPending  FriendStatus = "pending"
	StatusAccepted FriendStatus = "accepted"
	StatusDeclined FriendStatus = "declined"
)

// Location is a WGS84 coordinate.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (l Location) IsZero() bool {
	return l.Latitude == 0 && l.Longitude == 0
}

// User is the signed-in account. Points only ever grow.
type User struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Avatar   string    `json:"avatar,omitempty"`
	City     string    `json:"city,omitempty"`
	State    string    `json:"state,omitempty"`
	Points   int       `json:"points"`
	JoinedAt time.Time `json:"joined_at"`
}

// LiquorStore is a shop where finds are spotted.
type LiquorStore struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" validate:"required"`
	Address   string    `json:"address" validate:"required"`
	Location  Location  `json:"location"`
	AddedBy   string    `json:"added_by"`
	AddedByID string    `json:"added_by_id,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}

// BourbonFind is a bottle spotted for sale at a store.
type BourbonFind struct {
	ID           string    `json:"id"`
	StoreName    string    `json:"store_name" validate:"required"`
	StoreAddress string    `json:"store_address" validate:"required"`
	Location     Location  `json:"location"`
	BourbonName  string    `json:"bourbon_name" validate:"required"`
	BourbonBrand string    `json:"bourbon_brand" validate:"required"`
	Price        *float64  `json:"price,omitempty" validate:"omitempty,gte=0"`
	Photos       []string  `json:"photos" validate:"required,min=1,dive,required"`
	Description  string    `json:"description"`
	HunterID     string    `json:"hunter_id,omitempty"`
	HunterName   string    `json:"hunter_name"`
	HunterAvatar string    `json:"hunter_avatar,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Speakeasy is a recommended bar or lounge.
type Speakeasy struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name" validate:"required"`
	Address             string    `json:"address" validate:"required"`
	Location            Location  `json:"location"`
	Description         string    `json:"description"`
	CoverPhoto          string    `json:"cover_photo"`
	Ambiance            string    `json:"ambiance"`
	Signature           string    `json:"signature"`
	PriceRange          string    `json:"price_range"`
	Rating              float64   `json:"rating" validate:"gte=0,lte=5"`
	RecommendedBy       string    `json:"recommended_by"`
	RecommendedByID     string    `json:"recommended_by_id,omitempty"`
	RecommendedByAvatar string    `json:"recommended_by_avatar,omitempty"`
	AddedAt             time.Time `json:"added_at"`
}

// Friend is an entry in OwnerID's friend list. ID is the befriended user's id.
type Friend struct {
	ID      string       `json:"id"`
	OwnerID string       `json:"owner_id,omitempty"`
	Name    string       `json:"name"`
	Email   string       `json:"email"`
	Avatar  string       `json:"avatar,omitempty"`
	Status  FriendStatus `json:"status"`
	AddedAt time.Time    `json:"added_at"`
}

// FriendRequest moves only from pending to accepted or declined.
type FriendRequest struct {
	ID             string       `json:"id"`
	FromUserID     string       `json:"from_user_id"`
	FromUserName   string       `json:"from_user_name"`
	FromUserEmail  string       `json:"from_user_email"`
	FromUserAvatar string       `json:"from_user_avatar,omitempty"`
	ToUserID       string       `json:"to_user_id"`
	ToUserName     string       `json:"to_user_name,omitempty"`
	ToUserEmail    string       `json:"to_user_email,omitempty"`
	ToUserAvatar   string       `json:"to_user_avatar,omitempty"`
	Status         FriendStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Message belongs to exactly one conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	SenderAvatar   string    `json:"sender_avatar,omitempty"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
	Read           bool      `json:"read"`
}

// Participant is one side of a direct conversation.
type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Conversation is the thread between exactly two users.
type Conversation struct {
	ID           string         `json:"id"`
	Participants [2]Participant `json:"participants"`
	LastMessage  *Message       `json:"last_message,omitempty"`
	UnreadCount  int            `json:"unread_count"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Includes reports whether userID is one of the two participants.
func (c Conversation) Includes(userID string) bool {
	return c.Participants[0].ID == userID || c.Participants[1].ID == userID
}

// Between reports whether the conversation joins a and b, in either order.
func (c Conversation) Between(a, b string) bool {
	return c.Includes(a) && c.Includes(b)
}

// Other returns the participant that is not userID.
func (c Conversation) Other(userID string) Participant {
	if c.Participants[0].ID == userID {
		return c.Participants[1]
	}
	return c.Participants[0]
}

// Contact is an address-book entry read from the user's device.
type Contact struct {
	ID       string   `json:"id"`
	Name     string   `json:"name,omitempty"`
	Emails   []string `json:"emails,omitempty"`
	ImageURI string   `json:"image_uri,omitempty"`
}

// PrimaryEmail returns the first non-blank email, if any.
func (c Contact) PrimaryEmail() string {
	for _, e := range c.Emails {
		if e = strings.TrimSpace(e); e != "" {
			return e
		}
	}
	return ""
}
