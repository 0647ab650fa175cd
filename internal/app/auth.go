// internal/app/auth.go
package app

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingBearer = errors.New("Missing or invalid Authorization header")
	ErrInvalidToken  = errors.New("Invalid token")
)

// Auth guards the API with a single static bearer token shared with callers.
type Auth struct {
	token []byte
}

func NewAuth(config *Config) *Auth {
	return &Auth{token: []byte(config.Server.BearerToken)}
}

func (a *Auth) ValidateRequest(r *http.Request) error {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ErrMissingBearer
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")

	if subtle.ConstantTimeCompare([]byte(token), a.token) != 1 {
		return ErrInvalidToken
	}
	return nil
}
