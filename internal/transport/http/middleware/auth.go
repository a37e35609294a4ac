package httpmw

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const (
	ctxKeyToken  ctxKey = "token"
	ctxKeyUserID ctxKey = "user_id"
)

// TokenVerifier checks a bearer token and returns the user id it was issued for.
type TokenVerifier interface {
	Subject(token string) (string, error)
}

// Auth requires "Authorization: Bearer <token>". With a nil verifier the token is not
// checked and the caller is taken from X-User-ID; otherwise the token subject is the caller.
func Auth(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || len(strings.TrimSpace(auth[7:])) == 0 {
				unauthorized(w, "missing bearer token")
				return
			}
			token := strings.TrimSpace(auth[7:])

			var uid string
			if v == nil {
				uid = strings.TrimSpace(r.Header.Get("X-User-ID"))
				if uid == "" {
					unauthorized(w, "missing X-User-ID")
					return
				}
			} else {
				sub, err := v.Subject(token)
				if err != nil {
					unauthorized(w, "invalid token")
					return
				}
				uid = sub
			}

			ctx := context.WithValue(r.Context(), ctxKeyToken, token)
			ctx = context.WithValue(ctx, ctxKeyUserID, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

// UserIDFromCtx returns the authenticated caller, or "".
func UserIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyUserID).(string)
	return id
}
