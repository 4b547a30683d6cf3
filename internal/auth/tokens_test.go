package auth

import (
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return hex.EncodeToString(key)
}

func TestIssueAndVerifyToken(t *testing.T) {
	svc, err := NewTokenService(newTestKey(t), 24*time.Hour)
	require.NoError(t, err)

	token, expiresAt, err := svc.IssueToken("user-abc123")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-abc123", claims.Subject)
	assert.NotEmpty(t, claims.TokenID)
}

func TestVerifyExpiredToken(t *testing.T) {
	svc, err := NewTokenService(newTestKey(t), -time.Minute)
	require.NoError(t, err)

	token, _, err := svc.IssueToken("user-abc123")
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyWithWrongKey(t *testing.T) {
	issuer, err := NewTokenService(newTestKey(t), time.Hour)
	require.NoError(t, err)
	verifier, err := NewTokenService(newTestKey(t), time.Hour)
	require.NoError(t, err)

	token, _, err := issuer.IssueToken("user-abc123")
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyGarbage(t *testing.T) {
	svc, err := NewTokenService(newTestKey(t), time.Hour)
	require.NoError(t, err)

	_, err = svc.VerifyToken("v4.local.garbage")
	assert.Error(t, err)
}

func TestNewTokenServiceRejectsBadKey(t *testing.T) {
	_, err := NewTokenService("too-short", time.Hour)
	assert.Error(t, err)

	_, err = NewTokenService(string(make([]byte, 64)), time.Hour)
	assert.Error(t, err)
}

func TestLoadOrGenerateKey(t *testing.T) {
	dir := t.TempDir()

	key1, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Len(t, key1, 64)

	// Second load returns the same key.
	key2, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
}
