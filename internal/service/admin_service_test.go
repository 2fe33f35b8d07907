package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fridayce/rork-mapcask/internal/contacts"
	"github.com/fridayce/rork-mapcask/internal/domain"
	"github.com/fridayce/rork-mapcask/internal/security"
	"github.com/fridayce/rork-mapcask/internal/service"
	"github.com/fridayce/rork-mapcask/internal/store/memory"
)

type adminFixture struct {
	admin  *service.AdminService
	app    *service.AppService
	social *service.SocialService
	kv     *memory.KVStore
}

func newAdmin(t *testing.T, password string) *adminFixture {
	t.Helper()
	ctx := context.Background()
	kv := memory.NewKVStore()
	app := service.NewAppService(kv, nil)
	app.Now = ticker()
	require.NoError(t, app.Load(ctx))
	social := service.NewSocialService(kv, app, contacts.Unsupported{}, nil)
	require.NoError(t, social.Load(ctx))

	hasher := security.NewPasswordHasher(4)
	hash := ""
	if password != "" {
		var err error
		hash, err = hasher.Hash(password)
		require.NoError(t, err)
	}
	tokens := security.NewTokenService(testSecret, time.Hour)
	return &adminFixture{
		admin:  service.NewAdminService(kv, app, social, tokens, hasher, hash),
		app:    app,
		social: social,
		kv:     kv,
	}
}

func TestAdminService_Authenticate(t *testing.T) {
	f := newAdmin(t, "hunter2")

	_, err := f.admin.Authenticate("wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	tok, err := f.admin.Authenticate("hunter2")
	require.NoError(t, err)
	assert.NoError(t, f.admin.Authorize(tok))
	assert.ErrorIs(t, f.admin.Authorize("nope"), domain.ErrUnauthorized)

	userTok, err := security.NewTokenService(testSecret, time.Hour).CreateForUser("alice")
	require.NoError(t, err)
	assert.ErrorIs(t, f.admin.Authorize(userTok), domain.ErrUnauthorized)
}

func TestAdminService_DisabledWithoutHash(t *testing.T) {
	f := newAdmin(t, "")
	_, err := f.admin.Authenticate("anything")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAdminService_ExportSearchAndClear(t *testing.T) {
	ctx := context.Background()
	f := newAdmin(t, "hunter2")

	_, err := f.app.SignIn(ctx, "Jane", "jane@x.com")
	require.NoError(t, err)
	_, err = f.app.AddFind(ctx, validFind())
	require.NoError(t, err)

	exp := f.admin.Export()
	require.NotNil(t, exp.User)
	assert.Equal(t, "Jane", exp.User.Name)
	assert.Len(t, exp.Finds, 3)
	assert.False(t, exp.ExportedAt.IsZero())

	res := f.admin.Search("pappy")
	require.Len(t, res.Finds, 1)
	assert.Equal(t, "Pappy Van Winkle 15", res.Finds[0].BourbonName)
	assert.Empty(t, res.Stores)

	all := f.admin.Search("")
	assert.Len(t, all.Stores, 3)
	assert.Len(t, all.Finds, 3)

	require.NoError(t, f.admin.ClearAll(ctx))
	_, err = f.app.CurrentUser(ctx)
	assert.ErrorIs(t, err, domain.ErrNotSignedIn)
	assert.Len(t, f.app.Finds(), 2, "seed content is back")
	assert.Empty(t, f.kv.Keys())
}
