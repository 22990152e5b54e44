// Package auth issues and verifies the HS256 bearer tokens used by webshelf
// and turns verified claims into a request identity.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload: sub, role, iat and exp (unix seconds).
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// nowFunc is the clock used for issuing and expiry checks.
var nowFunc = time.Now

// errUnexpectedAlg is raised from the key func and joined into the parser
// error, so it survives errors.Is.
var errUnexpectedAlg = errors.New("unexpected signing method")

// NewClaims builds claims issued now and expiring ttl later. Both
// timestamps are truncated to whole seconds.
func NewClaims(subject, role string, ttl time.Duration) Claims {
	now := nowFunc()
	return Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

// Sign encodes c as a compact JWS signed with HMAC-SHA256 over secret.
func Sign(c Claims, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty signing secret")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}

// Encode issues a token for subject with the given role and lifetime.
func Encode(subject, role string, secret []byte, ttl time.Duration) (string, error) {
	if ttl < time.Second {
		return "", fmt.Errorf("token ttl must be at least one second, got %s", ttl)
	}
	return Sign(NewClaims(subject, role, ttl), secret)
}

// Decode verifies tokenString against secret and returns its claims. The
// signature is checked before the claims, so a forged expired token reports
// ErrBadSignature. A token is valid strictly before its exp second.
func Decode(tokenString string, secret []byte) (*Claims, error) {
	if len(secret) == 0 {
		return nil, newTokenError(CodeBadSignature, "no verification secret", nil)
	}

	parser := jwt.NewParser(
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return nowFunc() }),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("%w: %v", errUnexpectedAlg, t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, classify(token, err)
	}
	if !token.Valid {
		return nil, newTokenError(CodeMalformed, "token is not valid", nil)
	}
	if claims.Subject == "" || claims.Role == "" {
		return nil, newTokenError(CodeMalformed, "missing sub or role claim", nil)
	}

	return claims, nil
}

func classify(token *jwt.Token, err error) *TokenError {
	switch {
	case errors.Is(err, errUnexpectedAlg):
		return newTokenError(CodeAlgorithmMismatch, "unexpected signing algorithm", err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return newTokenError(CodeMalformed, "token is malformed", err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		// alg names a method this build does not know.
		if token != nil && token.Header["alg"] != nil {
			return newTokenError(CodeAlgorithmMismatch, "unexpected signing algorithm", err)
		}
		return newTokenError(CodeMalformed, "token has no algorithm", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return newTokenError(CodeBadSignature, "token signature is invalid", err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return newTokenError(CodeExpired, "token has expired", err)
	default:
		return newTokenError(CodeMalformed, "token claims are invalid", err)
	}
}
