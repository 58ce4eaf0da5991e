package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPrincipal struct {
	subject     string
	permissions []string
}

func (p *testPrincipal) Caller() string { return p.subject }

func (p *testPrincipal) HasPermission(permission string) bool {
	for _, have := range p.permissions {
		if have == permission {
			return true
		}
	}
	return false
}

// testTokenValidator is a test implementation of TokenValidator for unit tests.
type testTokenValidator map[string]*testPrincipal

func (v testTokenValidator) ValidateToken(tokenString string) (Principal, error) {
	p, ok := v[tokenString]
	if !ok {
		return nil, fmt.Errorf("invalid token")
	}
	return p, nil
}

func TestAuthMiddleware(t *testing.T) {
	validator := testTokenValidator{
		"downloader": {subject: "svc-fur", permissions: []string{"furs:download"}},
		"reader":     {subject: "svc-read", permissions: []string{"furs:read"}},
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantSub    string
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic downloader", wantStatus: http.StatusUnauthorized},
		{name: "extra parts", header: "Bearer a b", wantStatus: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "missing permission", header: "Bearer reader", wantStatus: http.StatusForbidden},
		{name: "valid", header: "Bearer downloader", wantStatus: http.StatusOK, wantSub: "svc-fur"},
		{name: "lowercase scheme", header: "bearer downloader", wantStatus: http.StatusOK, wantSub: "svc-fur"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotSub string
			handler := AuthMiddleware(validator, "furs:download")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				sub, err := GetSubject(r)
				require.NoError(t, err)
				gotSub = sub
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/furs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantSub, gotSub)
		})
	}
}

func TestAuthMiddleware_NoPermissionRequired(t *testing.T) {
	validator := testTokenValidator{"reader": {subject: "svc-read"}}
	handler := AuthMiddleware(validator, "")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer reader")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestGetSubject_Missing(t *testing.T) {
	_, err := GetSubject(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Error(t, err)
}
