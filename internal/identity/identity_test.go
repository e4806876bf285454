package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"header present", "u-42", "u-42"},
		{"header trimmed", "  u-42 ", "u-42"},
		{"missing header", "", Anonymous},
		{"blank header", "   ", Anonymous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ContextProvider{}.CurrentUserID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
			if tt.header != "" {
				req.Header.Set(HeaderUserID, tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromContextDefaultsToAnonymous(t *testing.T) {
	assert.Equal(t, Anonymous, FromContext(context.Background()))
	assert.Equal(t, "u1", FromContext(WithUserID(context.Background(), "u1")))
}

func TestStatic(t *testing.T) {
	assert.Equal(t, "u1", Static("u1").CurrentUserID(context.Background()))
	assert.Equal(t, Anonymous, Static("").CurrentUserID(context.Background()))
}
