package security_test

import (
	"testing"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fridayce/rork-mapcask/internal/security"
)

func TestTokenService_RoundTrip(t *testing.T) {
	ts := security.NewTokenService("secret", time.Hour)

	tok, err := ts.CreateForUser("user-1")
	require.NoError(t, err)

	claims, err := ts.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, security.RoleUser, claims.Role)

	admin, err := ts.CreateAdmin(time.Minute)
	require.NoError(t, err)
	claims, err = ts.Parse(admin)
	require.NoError(t, err)
	assert.Equal(t, security.RoleAdmin, claims.Role)
}

func TestTokenService_Rejects(t *testing.T) {
	ts := security.NewTokenService("secret", time.Hour)
	other := security.NewTokenService("other", time.Hour)

	tok, err := other.CreateForUser("user-1")
	require.NoError(t, err)
	_, err = ts.Parse(tok)
	assert.Error(t, err)

	expired := security.NewTokenService("secret", -time.Minute)
	tok, err = expired.CreateForUser("user-1")
	require.NoError(t, err)
	_, err = ts.Parse(tok)
	assert.Error(t, err)

	_, err = ts.Parse("not-a-token")
	assert.Error(t, err)
}

func TestPasswordHasher(t *testing.T) {
	h := security.NewPasswordHasher(4)
	hash, err := h.Hash("bourbon")
	require.NoError(t, err)

	assert.NoError(t, h.Verify("bourbon", hash))
	assert.ErrorIs(t, h.Verify("rye", hash), security.ErrPasswordMismatch)
	assert.Error(t, h.Verify("bourbon", "not-a-hash"))
}

func TestEncryptor_RoundTrip(t *testing.T) {
	e, err := security.NewEncryptor([]byte("any length secret"), nil)
	require.NoError(t, err)

	enc, err := e.Encrypt(`{"id":"u1"}`)
	require.NoError(t, err)
	assert.NotContains(t, enc, "u1")

	plain, err := e.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"u1"}`, plain)

	_, err = e.Decrypt("garbage")
	assert.ErrorIs(t, err, security.ErrDecrypt)

	_, err = security.NewEncryptor(nil, nil)
	assert.Error(t, err)
}

func TestEncryptor_LegacyFernet(t *testing.T) {
	var k fernet.Key
	require.NoError(t, k.Generate())

	legacy, err := fernet.EncryptAndSign([]byte("old value"), &k)
	require.NoError(t, err)

	e, err := security.NewEncryptor([]byte("new secret"), []string{k.Encode()})
	require.NoError(t, err)

	plain, err := e.Decrypt(string(legacy))
	require.NoError(t, err)
	assert.Equal(t, "old value", plain)
}
