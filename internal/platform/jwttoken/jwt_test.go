package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "kycbuster/pkg/domain"
	dErrors "kycbuster/pkg/domain-errors"
)

var (
	service = NewService("test-signing-key", "test-issuer")
	userID  = id.UserID(uuid.New())
)

func TestIssueAndValidate(t *testing.T) {
	token, err := service.Issue(userID, "Admin", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	identity, err := service.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)
	assert.Equal(t, "admin", identity.Role)
}

func TestValidateInvalidToken(t *testing.T) {
	_, err := service.Validate("invalid-token-string")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Equal(t, "invalid token", dErrors.MessageOf(err))
}

func TestValidateExpiredToken(t *testing.T) {
	token, err := service.Issue(userID, "", -time.Hour)
	require.NoError(t, err)

	_, err = service.Validate(token)
	assert.Equal(t, "token has expired", dErrors.MessageOf(err))
}

func TestValidateRejectsOtherKeyAndIssuer(t *testing.T) {
	other, err := NewService("another-key", "test-issuer").Issue(userID, "", time.Hour)
	require.NoError(t, err)
	_, err = service.Validate(other)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	foreign, err := NewService("test-signing-key", "someone-else").Issue(userID, "", time.Hour)
	require.NoError(t, err)
	_, err = service.Validate(foreign)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateRequiresUserID(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "not-a-uuid",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	_, err = service.Validate(token)
	assert.Equal(t, "token has no valid user_id", dErrors.MessageOf(err))
}
