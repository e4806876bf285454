package identity

import (
	"context"
	"net/http"
	"strings"
)

// Anonymous owns the cart of a shopper who has not signed in.
const Anonymous = "anonymous_user"

const HeaderUserID = "X-User-Id"

// Provider yields the id of the user a request acts for. It never returns an empty id.
type Provider interface {
	CurrentUserID(ctx context.Context) string
}

type ctxKey struct{}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// FromContext returns the user id stored by Middleware or WithUserID, or Anonymous.
func FromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok && v != "" {
		return v
	}
	return Anonymous
}

// ContextProvider reads the user id placed in the context by Middleware.
type ContextProvider struct{}

func (ContextProvider) CurrentUserID(ctx context.Context) string {
	return FromContext(ctx)
}

// Static always reports the same user. Blank means Anonymous.
type Static string

func (s Static) CurrentUserID(context.Context) string {
	if id := strings.TrimSpace(string(s)); id != "" {
		return id
	}
	return Anonymous
}

// Middleware stores the X-User-Id header in the request context. Requests without one act as Anonymous.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if uid == "" {
			uid = Anonymous
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uid)))
	})
}
