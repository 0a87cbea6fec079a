// Package credential supplies the bearer token used for mutating requests.
// Token storage itself is outside this module; sources only read it.
package credential

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Source reports the current authentication token, if any.
type Source interface {
	Token() (string, bool)
}

// Static always returns the same token. An empty Static reports absent.
type Static string

func (s Static) Token() (string, bool) {
	tok := strings.TrimSpace(string(s))
	return tok, tok != ""
}

// Func adapts a plain function to Source.
type Func func() (string, bool)

func (f Func) Token() (string, bool) { return f() }

// Env reads the token from an environment variable on every call.
func Env(name string) Source {
	return Func(func() (string, bool) {
		return Static(os.Getenv(name)).Token()
	})
}

// Mutable holds a token that can be swapped at runtime, e.g. after login or
// logout.
type Mutable struct {
	mu    sync.RWMutex
	token string
}

func (m *Mutable) Set(token string) {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}

func (m *Mutable) Clear() { m.Set("") }

func (m *Mutable) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Static(m.token).Token()
}

// Expiring wraps a source holding a JWT and reports the token absent once its
// exp claim has passed. The signature is not checked here; the server does that.
type Expiring struct {
	Inner Source
	// Leeway tolerates clock skew between client and server.
	Leeway time.Duration
	Now    func() time.Time
}

func (e Expiring) Token() (string, bool) {
	if e.Inner == nil {
		return "", false
	}
	tok, ok := e.Inner.Token()
	if !ok {
		return "", false
	}
	exp, err := ExpiresAt(tok)
	if err != nil {
		// Opaque tokens are passed through untouched.
		return tok, true
	}
	if exp.IsZero() {
		return tok, true
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	if now().After(exp.Add(e.Leeway)) {
		return "", false
	}
	return tok, true
}

// ExpiresAt reads the exp claim of a JWT without verifying its signature.
// A token without exp yields the zero time.
func ExpiresAt(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}
