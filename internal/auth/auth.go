// Package auth verifies the bearer credentials presented at handshake time.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

/*
Identity is the verified user attached to a connection.  It is captured once
from the credential when the connection is established and never re-fetched,
so a renamed user keeps the old display name until reconnecting.
*/
type Identity struct {
	ID       string
	Username string
	Avatar   string
}

// Claims defines the structure of the data stored inside the JWT.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates tokens signed with a shared HMAC secret.  The account
// service signs with the same secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) Verifier {
	return Verifier{secret: []byte(secret)}
}

/*
GenerateToken creates a signed JWT for a specific user.  The relay never
mints tokens for clients; this exists for tests and local tooling.
*/
func (v Verifier) GenerateToken(id Identity, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID:   id.ID,
		Username: id.Username,
		Avatar:   id.Avatar,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "relay",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

/*
VerifyToken parses and validates the signature and expiration of a token
string and returns the identity it carries.
*/
func (v Verifier) VerifyToken(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(t *jwt.Token) (any, error) {
			return v.secret, nil
		})
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		ID:       claims.UserID,
		Username: claims.Username,
		Avatar:   claims.Avatar,
	}, nil
}
