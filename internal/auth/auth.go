// Package auth holds the session-expiry contract shared by every canvas
// component: the expiry error, the login redirect and local inspection of
// bearer tokens.
package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// LoginPath is the entry point users are sent to when their session ends.
const LoginPath = "/auth/login"

// ErrExpired reports that the bearer credential is missing, expired or was
// rejected by the server.
var ErrExpired = errors.New("authentication expired")

// Navigator moves the user to another screen.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// HandleExpiry redirects to the login entry point when err is an expiry
// and reports whether it did.
func HandleExpiry(err error, nav Navigator) bool {
	if !errors.Is(err, ErrExpired) {
		return false
	}
	if nav != nil {
		nav.Navigate(LoginPath)
	}
	return true
}

// TokenExpired reports whether token is a JWT whose exp claim is at or
// before now. Tokens that are not JWTs, or carry no exp, are left for the
// server to judge.
func TokenExpired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}

// Redirects records login redirects and logs them. The CLI uses it to
// turn a redirect into an exit message; the terminal UI polls it to quit.
type Redirects struct {
	mu     sync.Mutex
	paths  []string
	logger *zap.Logger
}

// NewRedirects creates an empty redirect recorder.
func NewRedirects(logger *zap.Logger) *Redirects {
	return &Redirects{logger: logger}
}

// Navigate records path.
func (r *Redirects) Navigate(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	r.logger.Warn("session expired, redirecting", zap.String("path", path))
}

// Requested reports whether a redirect to LoginPath was recorded.
func (r *Redirects) Requested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.paths {
		if p == LoginPath {
			return true
		}
	}
	return false
}
