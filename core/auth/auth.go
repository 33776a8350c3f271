// Package auth resolves request identities for the deploy surface.
// Deploys authenticate with scoped tokens carried in the HTTP Basic
// password slot; real passwords are never accepted here.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

// TokenPrefix distinguishes deploy-token secrets from passwords.
const TokenPrefix = "jvt_"

var (
	// ErrNoCredentials means the request carried no Basic credentials.
	ErrNoCredentials = errors.New("no credentials")
	// ErrPasswordAuth means the request used a password where a deploy
	// token is required.
	ErrPasswordAuth = errors.New("password authentication is not accepted for deploys")
	// ErrUnknownToken means the token secret did not resolve.
	ErrUnknownToken = errors.New("unknown deploy token")
	// ErrScope means the token's scope does not cover the coordinate.
	ErrScope = errors.New("token scope does not permit this coordinate")
)

// Token is a deploy credential, optionally scoped to a group or a
// group+artifact pair.
type Token struct {
	Username  string `json:"username"`
	GroupName string `json:"group_name,omitempty"`
	JarName   string `json:"jar_name,omitempty"`
	Disabled  bool   `json:"disabled,omitempty"`
}

// Identity is the authenticated principal of one request. Token is nil
// for cookie/password principals.
type Identity struct {
	Username string
	Token    *Token
}

// TokenSource resolves token secrets to their records.
type TokenSource interface {
	// Lookup resolves a sha256 hex digest of a token secret. Returns
	// nil when no such token exists.
	Lookup(ctx context.Context, digest string) (*Token, error)
}

// DigestSecret hashes a token secret for storage and lookup.
func DigestSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// IsTokenSecret reports whether a Basic password looks like a deploy
// token rather than an account password.
func IsTokenSecret(secret string) bool {
	return strings.HasPrefix(secret, TokenPrefix)
}

// FromRequest authenticates an incoming deploy request. Password-shaped
// credentials yield ErrPasswordAuth so the caller can reject them with
// 401 before any token lookup happens.
func FromRequest(ctx context.Context, r *http.Request, tokens TokenSource) (*Identity, error) {
	user, secret, ok := r.BasicAuth()
	if !ok || secret == "" {
		return nil, ErrNoCredentials
	}
	if !IsTokenSecret(secret) {
		return nil, ErrPasswordAuth
	}
	tok, err := tokens.Lookup(ctx, DigestSecret(secret))
	if err != nil {
		return nil, err
	}
	if tok == nil || tok.Disabled {
		return nil, ErrUnknownToken
	}
	if user != "" && subtle.ConstantTimeCompare([]byte(user), []byte(tok.Username)) != 1 {
		return nil, ErrUnknownToken
	}
	return &Identity{Username: tok.Username, Token: tok}, nil
}

// CheckScope verifies the identity's token covers (group, artifact).
// Non-token identities and unscoped tokens cover everything.
func CheckScope(ident *Identity, group, artifact string) error {
	if ident == nil || ident.Token == nil {
		return nil
	}
	tok := ident.Token
	if tok.GroupName == "" && tok.JarName == "" {
		return nil
	}
	if tok.GroupName != group {
		return ErrScope
	}
	if tok.JarName != "" && tok.JarName != artifact {
		return ErrScope
	}
	return nil
}
