package session

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ctxKey struct{}

// WithID stores the storefront session identifier on the provided context.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// ID extracts the storefront session identifier from the context if present.
func ID(ctx context.Context) (string, bool) {
	v := ctx.Value(ctxKey{})
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// Middleware assigns an anonymous session identifier to every request. The
// identifier rides on a cookie so the same browser tab keeps hitting the same
// in-memory cart; a fresh cookie means a fresh, empty cart.
type Middleware struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Handler implements the chi middleware contract.
func (m Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := m.sessionID(r)
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     m.cookieName(),
				Value:    id,
				Path:     "/",
				MaxAge:   int(m.ttl().Seconds()),
				HttpOnly: true,
				Secure:   m.Secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}

func (m Middleware) sessionID(r *http.Request) string {
	cookie, err := r.Cookie(m.cookieName())
	if err != nil {
		return ""
	}
	value := strings.TrimSpace(cookie.Value)
	if value == "" {
		return ""
	}
	if _, err := uuid.Parse(value); err != nil {
		return ""
	}
	return value
}

func (m Middleware) cookieName() string {
	if strings.TrimSpace(m.CookieName) == "" {
		return "sid"
	}
	return m.CookieName
}

func (m Middleware) ttl() time.Duration {
	if m.TTL <= 0 {
		return 30 * time.Minute
	}
	return m.TTL
}
