package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, secret, subject string, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService(testSecret)

	userID, err := svc.ValidateToken(signToken(t, testSecret, "42", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	svc := NewAuthService(testSecret)

	_, err := svc.ValidateToken(signToken(t, "another-secret-another-secret-xx", "42", time.Now().Add(time.Hour)))
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	svc := NewAuthService(testSecret)

	_, err := svc.ValidateToken(signToken(t, testSecret, "42", time.Now().Add(-time.Hour)))
	assert.Error(t, err)
}

func TestValidateTokenNonNumericSubject(t *testing.T) {
	svc := NewAuthService(testSecret)

	_, err := svc.ValidateToken(signToken(t, testSecret, "alice", time.Now().Add(time.Hour)))
	assert.Error(t, err)
}

func TestValidateTokenGarbage(t *testing.T) {
	svc := NewAuthService(testSecret)
	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
