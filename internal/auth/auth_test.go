package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)
	v := NewVerifier("test-secret")

	id := Identity{ID: "u1", Username: "alice", Avatar: "https://cdn/a.png"}
	token, err := v.GenerateToken(id, time.Hour)
	req.NoError(err)

	got, err := v.VerifyToken(token)
	req.NoError(err)
	req.Equal(id, got)
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	req := require.New(t)

	token, err := NewVerifier("secret-a").GenerateToken(Identity{ID: "u1"}, time.Hour)
	req.NoError(err)

	_, err = NewVerifier("secret-b").VerifyToken(token)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	req := require.New(t)
	v := NewVerifier("test-secret")

	token, err := v.GenerateToken(Identity{ID: "u1"}, -time.Minute)
	req.NoError(err)

	_, err = v.VerifyToken(token)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	_, err := NewVerifier("test-secret").VerifyToken("not.a.token")
	require.ErrorIs(t, err, ErrInvalidToken)
}
