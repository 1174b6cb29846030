package services

import (
	"strings"
	"testing"
	"time"

	"parley/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_EmptyTokenYieldsGuest(t *testing.T) {
	svc := NewAuthService("test-secret", time.Minute)

	id, err := svc.VerifyConnectionCredential("")
	require.NoError(t, err)
	assert.True(t, id.Guest)
	assert.Equal(t, "Guest", id.Name)
	assert.True(t, strings.HasPrefix(string(id.UserID), "guest_"))

	// A second guest gets a distinct generated ID.
	other, err := svc.VerifyConnectionCredential("")
	require.NoError(t, err)
	assert.NotEqual(t, id.UserID, other.UserID)
}

func TestAuth_ValidTokenRoundTrip(t *testing.T) {
	svc := NewAuthService("test-secret", time.Minute)

	token, err := svc.GenerateToken(domain.UserID("user-1"), "Alice")
	require.NoError(t, err)

	id, err := svc.VerifyConnectionCredential(token)
	require.NoError(t, err)
	assert.False(t, id.Guest)
	assert.Equal(t, domain.UserID("user-1"), id.UserID)
	assert.Equal(t, "Alice", id.Name)
}

func TestAuth_InvalidToken(t *testing.T) {
	svc := NewAuthService("test-secret", time.Minute)

	_, err := svc.VerifyConnectionCredential("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuth_WrongSecretRejected(t *testing.T) {
	issuer := NewAuthService("issuer-secret", time.Minute)
	verifier := NewAuthService("other-secret", time.Minute)

	token, err := issuer.GenerateToken(domain.UserID("user-1"), "Alice")
	require.NoError(t, err)

	_, err = verifier.VerifyConnectionCredential(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuth_ExpiredToken(t *testing.T) {
	svc := NewAuthService("test-secret", -time.Minute)

	token, err := svc.GenerateToken(domain.UserID("user-1"), "Alice")
	require.NoError(t, err)

	_, err = svc.VerifyConnectionCredential(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
