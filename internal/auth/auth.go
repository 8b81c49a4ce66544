// Package auth guards operator-only endpoints with a bearer token.
//
// Ownership boundary:
// - token validation primitives
//
// - bearer header extraction
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// Validator validates an operator token.
type Validator interface {
	Validate(token string) error
}

// StaticToken accepts exactly one shared token. An empty Token denies everything.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// AllowAll is used when no operator token is configured.
type AllowAll struct{}

func (AllowAll) Validate(string) error { return nil }

// ForToken returns StaticToken for a non-empty token and AllowAll otherwise.
func ForToken(token string) Validator {
	if token = strings.TrimSpace(token); token != "" {
		return StaticToken{Token: token}
	}
	return AllowAll{}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
