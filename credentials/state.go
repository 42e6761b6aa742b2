package credentials

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenStatus is the lifecycle stage of a cached token
type TokenStatus int

const (
	TokenEmpty TokenStatus = iota
	TokenValid
	// TokenStale tokens are still accepted by the server but should be replaced
	TokenStale
	TokenExpired
)

func (s TokenStatus) String() string {
	switch s {
	case TokenEmpty:
		return "empty"
	case TokenValid:
		return "valid"
	case TokenStale:
		return "stale"
	case TokenExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// DefaultTokenTTL applies to tokens that carry no expiration claim
const DefaultTokenTTL = time.Hour

// TokenState is a cached token and its deadlines. Validate is the only
// transition function.
type TokenState struct {
	Status    TokenStatus
	Token     string
	RefreshAt time.Time
	ExpiresAt time.Time
}

// NewTokenState reads the expiration of a JWT without verifying it. Opaque
// tokens get DefaultTokenTTL. The token turns stale once refreshRatio of its
// lifetime has passed.
func NewTokenState(token string, now time.Time, refreshRatio float64) TokenState {
	if token == "" {
		return TokenState{Status: TokenEmpty}
	}

	expiresAt := now.Add(DefaultTokenTTL)
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil && claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.In(now.Location())
	}

	if refreshRatio <= 0 || refreshRatio > 1 {
		refreshRatio = 0.5
	}
	lifetime := expiresAt.Sub(now)
	if lifetime < 0 {
		lifetime = 0
	}

	s := TokenState{
		Status:    TokenValid,
		Token:     token,
		RefreshAt: now.Add(time.Duration(float64(lifetime) * refreshRatio)),
		ExpiresAt: expiresAt,
	}
	return s.Validate(now)
}

// Validate moves the state forward according to now
func (s TokenState) Validate(now time.Time) TokenState {
	switch s.Status {
	case TokenEmpty, TokenExpired:
		return s
	case TokenValid, TokenStale:
		if !now.Before(s.ExpiresAt) {
			s.Status = TokenExpired
		} else if !now.Before(s.RefreshAt) {
			s.Status = TokenStale
		}
		return s
	default:
		return TokenState{Status: TokenEmpty}
	}
}

// Usable reports whether the token may still be sent to the server
func (s TokenState) Usable() bool {
	return s.Status == TokenValid || s.Status == TokenStale
}
