package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fridayce/rork-mapcask/internal/domain"
	"github.com/fridayce/rork-mapcask/internal/security"
	"github.com/fridayce/rork-mapcask/internal/service"
)

const testSecret = "test-secret"

func TestSessionService_SignInAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp(t)
	tokens := security.NewTokenService(testSecret, time.Hour)
	sessions := service.NewSessionService(app, tokens)

	sess, err := sessions.SignIn(ctx, "Jane", "jane@x.com")
	require.NoError(t, err)
	assert.Equal(t, "bearer", sess.TokenType)
	assert.NotEmpty(t, sess.AccessToken)
	assert.Equal(t, "Jane", sess.User.Name)

	u, err := sessions.Authenticate(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, u.ID)

	_, err = sessions.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	admin, err := tokens.CreateAdmin(time.Minute)
	require.NoError(t, err)
	_, err = sessions.Authenticate(ctx, admin)
	assert.ErrorIs(t, err, domain.ErrUnauthorized, "admin tokens are not user sessions")
}

func TestSessionService_RejectsStaleTokens(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp(t)
	app.NewID = sequence("user")
	sessions := service.NewSessionService(app, security.NewTokenService(testSecret, time.Hour))

	first, err := sessions.SignIn(ctx, "Jane", "jane@x.com")
	require.NoError(t, err)
	second, err := sessions.SignIn(ctx, "Jim", "jim@x.com")
	require.NoError(t, err)

	_, err = sessions.Authenticate(ctx, first.AccessToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized, "replaced by a newer sign-in")

	require.NoError(t, sessions.SignOut(ctx))
	_, err = sessions.Authenticate(ctx, second.AccessToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSessionService_SignInValidation(t *testing.T) {
	app, _ := newApp(t)
	sessions := service.NewSessionService(app, security.NewTokenService(testSecret, time.Hour))

	_, err := sessions.SignIn(context.Background(), "", "nobody")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSessionService_OnSessionEnd(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp(t)
	app.NewID = sequence("user")
	sessions := service.NewSessionService(app, security.NewTokenService(testSecret, time.Hour))
	var ended []string
	sessions.OnSessionEnd = func(userID string) { ended = append(ended, userID) }

	first, err := sessions.SignIn(ctx, "Jane", "jane@x.com")
	require.NoError(t, err)
	assert.Empty(t, ended, "nobody was signed in")

	second, err := sessions.SignIn(ctx, "Kate", "kate@x.com")
	require.NoError(t, err)
	assert.Equal(t, []string{first.User.ID}, ended)

	require.NoError(t, sessions.SignOut(ctx))
	require.NoError(t, sessions.SignOut(ctx))
	assert.Equal(t, []string{first.User.ID, second.User.ID}, ended)
}
