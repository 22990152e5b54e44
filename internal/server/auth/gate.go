package auth

import (
	"errors"
	"strings"
)

// ErrMissingBearer covers every Authorization header that is not exactly
// "Bearer <token>".
var ErrMissingBearer = errors.New("missing or malformed bearer credentials")

const bearerPrefix = "Bearer "

// Gate is the transport-neutral part of request authentication: public
// path matching and stateless token verification. It never consults the
// user store.
type Gate struct {
	secret []byte
	public []string
}

// NewGate creates a gate. Each public prefix matches itself and anything
// below it ("/api/public" matches "/api/public/auth/login" but not
// "/api/publicity").
func NewGate(secret []byte, publicPrefixes []string) *Gate {
	public := make([]string, 0, len(publicPrefixes))
	for _, p := range publicPrefixes {
		p = strings.TrimRight(strings.TrimSpace(p), "/")
		if p != "" {
			public = append(public, p)
		}
	}
	return &Gate{secret: secret, public: public}
}

// IsPublic reports whether path bypasses authentication.
func (g *Gate) IsPublic(path string) bool {
	for _, p := range g.public {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Authenticate verifies an Authorization header value and resolves the
// identity it carries.
func (g *Gate) Authenticate(header string) (*Identity, error) {
	token, err := BearerToken(header)
	if err != nil {
		return nil, err
	}
	claims, err := Decode(token, g.secret)
	if err != nil {
		return nil, err
	}
	return IdentityFromClaims(claims)
}

// BearerToken extracts the token from "Bearer <token>". The scheme is case
// sensitive and the token may not be empty or contain whitespace.
func BearerToken(header string) (string, error) {
	token, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok || token == "" || strings.ContainsAny(token, " \t\r\n") {
		return "", ErrMissingBearer
	}
	return token, nil
}

// Redact keeps a short prefix of a token for log correlation.
func Redact(token string) string {
	if len(token) <= 10 {
		return "[REDACTED]"
	}
	return token[:10] + "...[REDACTED]"
}
