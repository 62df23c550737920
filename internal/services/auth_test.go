package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAuth(ttl time.Duration) *AuthService {
	return NewAuthService(nil, "test-secret", ttl, zap.NewNop())
}

func TestAuthService_TokenRoundTrip(t *testing.T) {
	auth := newTestAuth(time.Hour)
	userID := uuid.New()

	token, err := auth.IssueToken(userID)
	require.NoError(t, err)

	got, err := auth.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestAuthService_ExpiredToken(t *testing.T) {
	auth := newTestAuth(-time.Minute)
	token, err := auth.IssueToken(uuid.New())
	require.NoError(t, err)

	_, err = auth.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_WrongSecret(t *testing.T) {
	token, err := newTestAuth(time.Hour).IssueToken(uuid.New())
	require.NoError(t, err)

	other := NewAuthService(nil, "different-secret", time.Hour, zap.NewNop())
	_, err = other.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_GarbageToken(t *testing.T) {
	auth := newTestAuth(time.Hour)
	_, err := auth.ParseToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
