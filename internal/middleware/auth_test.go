package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nexahq/nexa-backend/pkg/logger"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestVapiSecret(t *testing.T) {
	log := logger.NewDefault("test")
	handler := VapiSecret("s3cret", log)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/vapi-webhook", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing secret: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/vapi-webhook", nil)
	req.Header.Set("x-vapi-secret", "wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/vapi-webhook", nil)
	req.Header.Set("x-vapi-secret", "s3cret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("correct secret: status = %d", rec.Code)
	}
}

func signAdminToken(t *testing.T, secret []byte, expires time.Time) string {
	t.Helper()
	claims := AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops@nexa",
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAdminJWT(t *testing.T) {
	secret := []byte("jwt-secret")
	log := logger.NewDefault("test")

	var subject string
	handler := AdminJWT(secret, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = AdminSubject(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/call-logs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/call-logs", nil)
	req.Header.Set("Authorization", "Bearer "+signAdminToken(t, secret, time.Now().Add(time.Hour)))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d", rec.Code)
	}
	if subject != "ops@nexa" {
		t.Fatalf("subject = %q", subject)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/call-logs", nil)
	req.Header.Set("Authorization", "Bearer "+signAdminToken(t, secret, time.Now().Add(-time.Hour)))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired token: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/call-logs", nil)
	req.Header.Set("Authorization", "Bearer "+signAdminToken(t, []byte("other-secret"), time.Now().Add(time.Hour)))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: status = %d", rec.Code)
	}
}
