package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fridayce/rork-mapcask/internal/domain"
	"github.com/fridayce/rork-mapcask/internal/security"
)

// AdminService backs the password-gated maintenance portal.
type AdminService struct {
	kv           domain.KeyValueStore
	app          *AppService
	social       *SocialService
	tokens       *security.TokenService
	hasher       *security.PasswordHasher
	passwordHash string

	TokenTTL time.Duration
}

func NewAdminService(
	kv domain.KeyValueStore,
	app *AppService,
	social *SocialService,
	tokens *security.TokenService,
	hasher *security.PasswordHasher,
	passwordHash string,
) *AdminService {
	return &AdminService{
		kv:           kv,
		app:          app,
		social:       social,
		tokens:       tokens,
		hasher:       hasher,
		passwordHash: passwordHash,
		TokenTTL:     time.Hour,
	}
}

// Authenticate exchanges the admin password for an admin token. The portal
// is disabled when no password hash is configured.
func (s *AdminService) Authenticate(password string) (string, error) {
	if s.passwordHash == "" {
		return "", fmt.Errorf("admin portal disabled: %w", domain.ErrForbidden)
	}
	if err := s.hasher.Verify(password, s.passwordHash); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return "", fmt.Errorf("invalid admin password: %w", domain.ErrUnauthorized)
		}
		return "", fmt.Errorf("verify admin password: %w", err)
	}
	return s.tokens.CreateAdmin(s.TokenTTL)
}

// Authorize accepts only admin tokens.
func (s *AdminService) Authorize(token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil || claims.Role != security.RoleAdmin {
		return domain.ErrUnauthorized
	}
	return nil
}

type Export struct {
	ExportedAt time.Time `json:"exported_at"`
	Snapshot
	SocialSnapshot
}

func (s *AdminService) Export() Export {
	return Export{
		ExportedAt:     s.app.Now().UTC(),
		Snapshot:       s.app.Snapshot(),
		SocialSnapshot: s.social.Snapshot(),
	}
}

// ClearAll wipes every persisted key and reloads both stores, which brings
// back the seed content and signs the user out.
func (s *AdminService) ClearAll(ctx context.Context) error {
	if err := s.kv.Clear(ctx); err != nil {
		return fmt.Errorf("clear storage: %w", err)
	}
	if err := s.app.Load(ctx); err != nil {
		return fmt.Errorf("reload app state: %w", err)
	}
	if err := s.social.Load(ctx); err != nil {
		return fmt.Errorf("reload social state: %w", err)
	}
	return nil
}

type SearchResult struct {
	Stores   []domain.LiquorStore `json:"stores"`
	Finds    []domain.BourbonFind `json:"finds"`
	Friends  []domain.Friend      `json:"friends"`
	Messages []domain.Message     `json:"messages"`
}

// Search filters every list case-insensitively. An empty query matches all.
func (s *AdminService) Search(query string) SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	match := func(fields ...string) bool {
		if q == "" {
			return true
		}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), q) {
				return true
			}
		}
		return false
	}

	app := s.app.Snapshot()
	social := s.social.Snapshot()
	var res SearchResult
	for _, st := range app.Stores {
		if match(st.Name, st.Address, st.AddedBy) {
			res.Stores = append(res.Stores, st)
		}
	}
	for _, f := range app.Finds {
		if match(f.BourbonName, f.BourbonBrand, f.StoreName, f.HunterName) {
			res.Finds = append(res.Finds, f)
		}
	}
	for _, f := range social.Friends {
		if match(f.Name, f.Email) {
			res.Friends = append(res.Friends, f)
		}
	}
	for _, m := range social.Messages {
		if match(m.Text, m.SenderName) {
			res.Messages = append(res.Messages, m)
		}
	}
	return res
}
