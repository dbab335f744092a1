package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Policy decides whether a stored access token still counts as a session.
type Policy int

const (
	// PolicyExpiry treats a JWT whose exp claim has passed as logged out.
	// Tokens that are not JWTs, or carry no exp, are trusted on presence.
	PolicyExpiry Policy = iota
	// PolicyPresence trusts any non-empty token.
	PolicyPresence
)

func (p Policy) String() string {
	switch p {
	case PolicyPresence:
		return "presence"
	default:
		return "expiry"
	}
}

// ParsePolicy accepts "expiry" and "presence"; the empty string means expiry.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "expiry":
		return PolicyExpiry, nil
	case "presence":
		return PolicyPresence, nil
	default:
		return PolicyExpiry, fmt.Errorf("unknown token policy %q", s)
	}
}

var tokenParser = jwt.NewParser()

// tokenExpiry returns the exp claim of a JWT. ok is false for opaque tokens
// and for JWTs without exp. The signature is not checked; only the server
// can do that.
func tokenExpiry(token string) (exp time.Time, ok bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := tokenParser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (p Policy) expired(token string, now time.Time, leeway time.Duration) bool {
	if p == PolicyPresence {
		return false
	}
	exp, ok := tokenExpiry(token)
	if !ok {
		return false
	}
	return !now.Before(exp.Add(leeway))
}
