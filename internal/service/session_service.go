package service

import (
	"context"
	"fmt"

	"github.com/fridayce/rork-mapcask/internal/domain"
	"github.com/fridayce/rork-mapcask/internal/security"
)

// SessionService issues bearer tokens for the signed-in user.
type SessionService struct {
	identity Identity
	tokens   *security.TokenService

	// OnSessionEnd, when set, runs with the id of a user whose session ended
	// by signing out or being replaced by a newer sign-in.
	OnSessionEnd func(userID string)
}

func NewSessionService(identity Identity, tokens *security.TokenService) *SessionService {
	return &SessionService{identity: identity, tokens: tokens}
}

type Session struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *domain.User `json:"user"`
}

func (s *SessionService) SignIn(ctx context.Context, name, email string) (*Session, error) {
	prev, _ := s.identity.CurrentUser(ctx)
	user, err := s.identity.SignIn(ctx, name, email)
	if err != nil {
		return nil, err
	}
	if prev != nil && prev.ID != user.ID {
		s.ended(prev.ID)
	}
	token, err := s.tokens.CreateForUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}
	return &Session{AccessToken: token, TokenType: "bearer", User: user}, nil
}

// Authenticate resolves a token to the signed-in user. Tokens of users who
// have since signed out, or been replaced by a newer sign-in, are rejected.
func (s *SessionService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil || claims.Role != security.RoleUser {
		return nil, domain.ErrUnauthorized
	}
	user, err := s.identity.CurrentUser(ctx)
	if err != nil || user.ID != claims.Subject {
		return nil, domain.ErrUnauthorized
	}
	return user, nil
}

func (s *SessionService) SignOut(ctx context.Context) error {
	prev, _ := s.identity.CurrentUser(ctx)
	if err := s.identity.SignOut(ctx); err != nil {
		return err
	}
	if prev != nil {
		s.ended(prev.ID)
	}
	return nil
}

func (s *SessionService) ended(userID string) {
	if s.OnSessionEnd != nil {
		s.OnSessionEnd(userID)
	}
}
