// Package identity derives the current user from the session token.
package identity

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned for an empty token.
	ErrMissingToken = errors.New("missing token")

	// ErrInvalidToken is returned when the token cannot be parsed, fails
	// verification or carries no user id.
	ErrInvalidToken = errors.New("invalid token")
)

// User is the authenticated user of a chat session.
type User struct {
	ID       int64
	Username string
	// Token is the raw bearer token, forwarded to the chat server.
	Token string
}

// IsAuthor reports whether a message written by userID is the user's own.
func (u User) IsAuthor(userID int64) bool {
	return u.ID == userID
}

type claims struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// FromToken reads the id and username claims of token. With a non-empty
// secret the HS256 signature and expiry are verified; otherwise the claims
// are read without verification and the server stays the authority.
func FromToken(token, secret string) (User, error) {
	if token == "" {
		return User{}, ErrMissingToken
	}

	c := &claims{}
	if secret != "" {
		parsed, err := jwt.ParseWithClaims(token, c, func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !parsed.Valid {
			return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, c); err != nil {
			return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	if c.ID <= 0 {
		return User{}, fmt.Errorf("%w: no user id", ErrInvalidToken)
	}

	return User{ID: c.ID, Username: c.Username, Token: token}, nil
}
