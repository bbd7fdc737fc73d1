package security

import (
	"crypto/subtle"
	"strings"

	apperrors "tradecoach/internal/errors"
)

// TokenChecker validates bearer tokens against a single configured secret.
// An empty secret disables authentication.
type TokenChecker struct {
	secret []byte
}

// NewTokenChecker creates a token checker.
func NewTokenChecker(secret string) *TokenChecker {
	return &TokenChecker{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured.
func (tc *TokenChecker) Enabled() bool {
	return len(tc.secret) > 0
}

// CheckAuthorization validates an Authorization header value.
func (tc *TokenChecker) CheckAuthorization(header string) error {
	if !tc.Enabled() {
		return nil
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return apperrors.NewAuthError("missing bearer token")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return apperrors.NewAuthError("authorization scheme must be Bearer")
	}
	token = strings.TrimSpace(token)
	if subtle.ConstantTimeCompare([]byte(token), tc.secret) != 1 {
		return apperrors.NewAuthError("invalid bearer token")
	}
	return nil
}
