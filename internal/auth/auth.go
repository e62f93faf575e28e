// Package auth resolves the caller identity of a request.
//
// There is no real user directory: every authenticated caller is the fixed
// mock user. A bearer token can be required in front of it.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	docerrors "github.com/Aman-CERP/docqa/internal/errors"
)

// MockUser is the identity every authenticated caller receives.
const MockUser = "mock_user"

// Identity is the opaque caller identity passed to engine operations.
type Identity struct {
	User string `json:"user"`
}

// Anonymous is the identity used by local front ends (CLI, MCP, chat).
var Anonymous = Identity{User: MockUser}

// Authenticator resolves identities from HTTP requests.
type Authenticator struct {
	token string
}

// New creates an Authenticator. A non-empty token must be presented as
// "Authorization: Bearer <token>".
func New(token string) *Authenticator {
	return &Authenticator{token: token}
}

// Authenticate returns the caller identity for r.
func (a *Authenticator) Authenticate(r *http.Request) (Identity, error) {
	if a.token != "" && !tokenMatch(extractBearerToken(r), a.token) {
		return Identity{}, docerrors.New(docerrors.ErrCodeUnauthorized, "missing or invalid bearer token", nil).
			WithSuggestion("Send Authorization: Bearer <server.auth_token>.")
	}
	return Identity{User: MockUser}, nil
}

// RequiresToken reports whether a bearer token is configured.
func (a *Authenticator) RequiresToken() bool {
	return a.token != ""
}

// extractBearerToken extracts a bearer token from the Authorization header.
func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

// tokenMatch compares tokens in constant time.
func tokenMatch(provided, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored in ctx, or Anonymous.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(ctxKey{}).(Identity); ok {
		return id
	}
	return Anonymous
}
