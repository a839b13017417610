package auth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmt-backend/internal/storage"
)

const secret = "test_secret"

func echoUser(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(user.ID + "/" + user.CompanyID + "/" + user.Role))
	})
}

func TestCurrentUser(t *testing.T) {
	valid, err := GenerateToken(secret, storage.User{ID: "u1", CompanyID: "c9", Role: "engineer"}, time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken(secret, storage.User{ID: "u1"}, -time.Minute)
	require.NoError(t, err)
	otherKey, err := GenerateToken("other", storage.User{ID: "u1"}, time.Hour)
	require.NoError(t, err)
	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantBody string
	}{
		{name: "valid token", header: "Bearer " + valid, wantCode: http.StatusOK, wantBody: "u1/c9/engineer"},
		{name: "no header", wantCode: http.StatusUnauthorized},
		{name: "basic scheme", header: "Basic dTpw", wantCode: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, wantCode: http.StatusUnauthorized},
		{name: "wrong key", header: "Bearer " + otherKey, wantCode: http.StatusUnauthorized},
		{name: "alg none", header: "Bearer " + unsigned, wantCode: http.StatusUnauthorized},
	}

	h := CurrentUser(slog.New(slog.DiscardHandler), secret)(echoUser(t))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rr.Body.String())
			}
		})
	}
}

func TestBasicAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name       string
		login      string
		user, pass string
		setCreds   bool
		wantCode   int
	}{
		{name: "valid", login: "admin", user: "admin", pass: "pw", setCreds: true, wantCode: http.StatusNoContent},
		{name: "wrong password", login: "admin", user: "admin", pass: "nope", setCreds: true, wantCode: http.StatusUnauthorized},
		{name: "no credentials", login: "admin", wantCode: http.StatusUnauthorized},
		{name: "admin disabled", login: "", user: "", pass: "", setCreds: true, wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.setCreds {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rr := httptest.NewRecorder()
			BasicAuth(tt.login, "pw")(ok).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			if tt.wantCode == http.StatusUnauthorized {
				assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Basic")
			}
		})
	}
}
