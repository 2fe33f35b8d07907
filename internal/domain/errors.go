package domain

import "errors"

// Sentinel errors for the application.
var (
	ErrNotFound             = errors.New("resource not found")
	ErrUnauthorized         = errors.New("unauthorized access")
	ErrForbidden            = errors.New("forbidden")
	ErrConflict             = errors.New("resource already exists")
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotSignedIn          = errors.New("no user signed in")
	ErrFindNotFound         = errors.New("find not found")
	ErrFriendNotFound       = errors.New("friend not found")
	ErrRequestNotFound      = errors.New("request not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidTransition    = errors.New("friend request already resolved")
	ErrPermissionDenied     = errors.New("permission denied")
)
