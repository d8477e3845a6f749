package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier validates HS256 tokens issued by the identity provider. The
// account ID is carried in the subject claim.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier builds a verifier with the given shared secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

var _ Verifier = (*JWTVerifier)(nil)

// Verify parses and validates a JWT and returns its subject.
func (v *JWTVerifier) Verify(ctx context.Context, credential string) (string, error) {
	if len(v.secret) == 0 {
		return "", fmt.Errorf("jwt verifier: no secret configured")
	}
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "", ErrInvalidCredential
	}

	parsed, err := jwt.Parse(credential, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidCredential
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return "", ErrInvalidCredential
	}
	return subject, nil
}

// MintToken issues a signed token for an account. It exists for the CLI's
// local development helper and for tests; production tokens come from the
// identity provider.
func MintToken(secret, accountID string, expiry time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  accountID,
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	// Zero means no expiry; a negative value mints an already-expired token.
	if expiry != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(expiry))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
