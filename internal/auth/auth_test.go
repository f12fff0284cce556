package auth

import (
	"testing"
	"time"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/errs"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func mint(t *testing.T, key, subject string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

func TestRPISubjectResolvesToOwner(t *testing.T) {
	d := NewDecoder([]byte("k"), "HS256", 42)
	userID, err := d.Authenticate(mint(t, "k", "rpi", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	require.Equal(t, uint(42), userID)
}

func TestNumericSubjectIsParsed(t *testing.T) {
	d := NewDecoder([]byte("k"), "HS256", 42)
	userID, err := d.Authenticate(mint(t, "k", "7", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	require.Equal(t, uint(7), userID)
}

func TestExpiredTokenIsAuthError(t *testing.T) {
	d := NewDecoder([]byte("k"), "HS256", 42)
	_, err := d.Authenticate(mint(t, "k", "7", time.Now().Add(-time.Hour)))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.AuthErrorKind))
}

func TestWrongKeyIsAuthError(t *testing.T) {
	d := NewDecoder([]byte("k"), "HS256", 42)
	_, err := d.Authenticate(mint(t, "other", "7", time.Now().Add(time.Hour)))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.AuthErrorKind))
}

func TestNonNumericSubjectIsAuthError(t *testing.T) {
	d := NewDecoder([]byte("k"), "HS256", 42)
	_, err := d.Authenticate(mint(t, "k", "somebody", time.Now().Add(time.Hour)))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.AuthErrorKind))
}
