// Package credentials supplies the access token used to authenticate API calls
// and push channel connections.
package credentials

import (
	"context"
	"errors"
	"sync"
)

// ErrNoCredential is returned when no token is available.
var ErrNoCredential = errors.New("no access credential")

// Provider returns the current access token.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// Static is a Provider backed by a token that can be swapped at runtime.
type Static struct {
	mu    sync.RWMutex
	token string
}

// NewStatic returns a provider holding token.
func NewStatic(token string) *Static {
	return &Static{token: token}
}

// Token implements Provider.
func (s *Static) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNoCredential
	}
	return s.token, nil
}

// Set replaces the token, e.g. after a refresh.
func (s *Static) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Anonymous is a Provider for unauthenticated access. It always returns an empty token.
type Anonymous struct{}

// Token implements Provider.
func (Anonymous) Token(ctx context.Context) (string, error) {
	return "", nil
}

// BearerHeader returns the Authorization header value for token, or "" for an empty token.
func BearerHeader(token string) string {
	if token == "" {
		return ""
	}
	return "Bearer " + token
}
