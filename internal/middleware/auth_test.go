package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := UserIDFromContext(r.Context())
		role, _ := RoleFromContext(r.Context())
		w.Header().Set("X-User", uid.String())
		w.Header().Set("X-Role", role)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate(t *testing.T) {
	uid := uuid.New()
	exp := time.Now().Add(time.Hour).Unix()
	mw := NewAuthMiddleware(testSecret, "yieldwallet")

	tests := []struct {
		name   string
		header string
		status int
		role   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, ""},
		{"bad signature", "Bearer " + sign(t, jwt.MapClaims{"sub": uid.String(), "exp": exp, "iss": "yieldwallet"}, "other"), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + sign(t, jwt.MapClaims{"sub": uid.String(), "exp": time.Now().Add(-time.Minute).Unix(), "iss": "yieldwallet"}, testSecret), http.StatusUnauthorized, ""},
		{"no expiry", "Bearer " + sign(t, jwt.MapClaims{"sub": uid.String(), "iss": "yieldwallet"}, testSecret), http.StatusUnauthorized, ""},
		{"wrong issuer", "Bearer " + sign(t, jwt.MapClaims{"sub": uid.String(), "exp": exp, "iss": "elsewhere"}, testSecret), http.StatusUnauthorized, ""},
		{"bad subject", "Bearer " + sign(t, jwt.MapClaims{"sub": "nobody", "exp": exp, "iss": "yieldwallet"}, testSecret), http.StatusUnauthorized, ""},
		{"user default role", "Bearer " + sign(t, jwt.MapClaims{"sub": uid.String(), "exp": exp, "iss": "yieldwallet"}, testSecret), http.StatusOK, RoleUser},
		{"admin role", "Bearer " + sign(t, jwt.MapClaims{"sub": uid.String(), "exp": exp, "iss": "yieldwallet", "role": "admin"}, testSecret), http.StatusOK, RoleAdmin},
		{"legacy user_id claim", "Bearer " + sign(t, jwt.MapClaims{"user_id": uid.String(), "exp": exp, "iss": "yieldwallet"}, testSecret), http.StatusOK, RoleUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			mw.Authenticate(echoIdentity()).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, uid.String(), rec.Header().Get("X-User"))
				assert.Equal(t, tt.role, rec.Header().Get("X-Role"))
			} else {
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(echoIdentity())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), uuid.New(), RoleUser))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), uuid.New(), RoleAdmin))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(echoIdentity())

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCorrelationID(t *testing.T) {
	var seen string
	h := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}
