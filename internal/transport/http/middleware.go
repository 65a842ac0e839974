package http

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey int

const accountIDKey ctxKey = iota

// SessionLookup resolves an opaque bearer token to an account id.
type SessionLookup interface {
	Lookup(ctx context.Context, token string) (string, error)
}

// Auth gates metered routes. No token or an unknown token means the request
// never reaches a provider call.
type Auth struct {
	sessions SessionLookup
}

func NewAuth(sessions SessionLookup) *Auth {
	return &Auth{sessions: sessions}
}

func (a *Auth) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		accountID, err := a.sessions.Lookup(r.Context(), token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		ctx := context.WithValue(r.Context(), accountIDKey, accountID)
		next(w, r.WithContext(ctx))
	}
}

// AccountID returns the authenticated account id set by Auth.Require.
func AccountID(ctx context.Context) string {
	id, _ := ctx.Value(accountIDKey).(string)
	return id
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
