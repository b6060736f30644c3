package services

import (
	"testing"
	"time"

	"relay-chat/config"
	"relay-chat/internal/domain/user"
	relay_errors "relay-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userFixture(id string) *user.User {
	name := id
	return &user.User{ID: id, Username: &name}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc, err := NewAuthService(&config.Config{JWTSecret: "secret", JWTIssuer: "relay"})
	require.NoError(t, err)

	token, err := svc.SignAccessToken("auth0|alice", time.Minute)
	require.NoError(t, err)

	claims, err := svc.ParseAccessToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "auth0|alice", claims.UserID())

	expired, err := svc.SignAccessToken("auth0|alice", -time.Minute)
	require.NoError(t, err)
	_, err = svc.ParseAccessToken(expired)
	assert.ErrorIs(t, err, relay_errors.ErrUnauthenticated)

	other, err := NewAuthService(&config.Config{JWTSecret: "other", JWTIssuer: "relay"})
	require.NoError(t, err)
	_, err = other.ParseAccessToken(token)
	assert.ErrorIs(t, err, relay_errors.ErrUnauthenticated)

	_, err = svc.ParseAccessToken("")
	assert.ErrorIs(t, err, relay_errors.ErrUnauthenticated)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{relay_errors.ErrInvalidParticipantCount, 400, "INVALID_REQUEST"},
		{relay_errors.ErrUnauthenticated, 401, "UNAUTHORIZED"},
		{relay_errors.ErrNotAParticipant, 404, "NOT_FOUND"},
		{relay_errors.ErrUsernameTaken, 409, "CONFLICT"},
		{errTooManyMessages, 429, "RATE_LIMITED"},
		{relay_errors.Dependency(assert.AnError), 503, "DEPENDENCY_FAILED"},
		{assert.AnError, 500, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, HTTPStatus(tc.err), tc.err.Error())
		assert.Equal(t, tc.code, ErrorCode(tc.err), tc.err.Error())
	}
}
