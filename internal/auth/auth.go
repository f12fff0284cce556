// Package auth decodes the bearer token carried on the connect URL and
// resolves its subject to a user id.
package auth

import (
	"strconv"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/errs"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the minimal claim set this system relies on: a subject
// identifying the caller and standard expiry/issued-at validation.
type Claims struct {
	jwt.RegisteredClaims
}

// Decoder validates bearer tokens against a signing key and resolves
// the "rpi" subject (the device's own service identity) to the
// configured owner account.
type Decoder struct {
	key          []byte
	method       jwt.SigningMethod
	rpiOwnerUser uint
}

func NewDecoder(key []byte, algorithm string, rpiOwnerUserID uint) *Decoder {
	return &Decoder{
		key:          key,
		method:       jwt.GetSigningMethod(algorithm),
		rpiOwnerUser: rpiOwnerUserID,
	}
}

// Authenticate parses and validates token, returning the resolved user
// id. Any parse/validation failure is an AuthError; callers treat it as
// terminal and do not retry the connection.
func (d *Decoder) Authenticate(token string) (uint, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != d.method.Alg() {
			return nil, errs.Auth("unexpected signing method", nil)
		}
		return d.key, nil
	})
	if err != nil || !parsed.Valid {
		return 0, errs.Auth("invalid or expired token", err)
	}

	sub := claims.Subject
	if sub == "rpi" {
		return d.rpiOwnerUser, nil
	}

	userID, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return 0, errs.Auth("malformed token subject", err)
	}
	return uint(userID), nil
}
