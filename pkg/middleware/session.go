package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/diagnosis/tablelink/pkg/auth"
	"github.com/diagnosis/tablelink/pkg/logger"
)

type ctxKey string

const CtxClaims ctxKey = "claims"

// Verifier is satisfied by *auth.Signer.
type Verifier interface {
	VerifyKind(token, kind string) (*auth.Claims, error)
}

// RequireSession accepts a session credential from the Authorization
// header or the session_token query parameter. When roles is non-empty the
// credential's role must be one of them.
func RequireSession(v Verifier, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerToken(r)
			if tok == "" {
				tok = r.URL.Query().Get("session_token")
			}
			if tok == "" {
				writeError(w, http.StatusUnauthorized, "session token is required", "UNAUTHORIZED")
				return
			}

			claims, err := v.VerifyKind(tok, auth.KindSession)
			if err != nil {
				code := "INVALID_TOKEN"
				if errors.Is(err, auth.ErrExpiredCredential) {
					code = "EXPIRED_TOKEN"
				}
				writeError(w, http.StatusUnauthorized, "invalid session token", code)
				return
			}

			if len(roles) > 0 && !hasRole(claims.Role, roles) {
				writeError(w, http.StatusForbidden, "insufficient permissions", "FORBIDDEN")
				return
			}

			ctx := context.WithValue(r.Context(), CtxClaims, claims)
			ctx = context.WithValue(ctx, logger.UserIDKey, claims.SubjectID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func Claims(r *http.Request) *auth.Claims {
	if v := r.Context().Value(CtxClaims); v != nil {
		if c, ok := v.(*auth.Claims); ok {
			return c
		}
	}
	return nil
}

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
}

func hasRole(role string, roles []string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
