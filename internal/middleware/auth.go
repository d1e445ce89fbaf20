package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/nexahq/nexa-backend/pkg/logger"
)

type authContextKey string

const adminSubjectKey authContextKey = "admin_subject"

// VapiSecret authenticates webhook deliveries via the shared x-vapi-secret
// header. An empty configured secret disables the check.
func VapiSecret(secret string, log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			got := r.Header.Get("x-vapi-secret")
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				log.WithContext(r.Context()).WithFields(map[string]interface{}{
					"path":   r.URL.Path,
					"client": clientIP(r),
				}).Warn("webhook secret mismatch")
				writeError(w, http.StatusUnauthorized, "invalid webhook secret")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AdminClaims are the JWT claims accepted on the admin surface.
type AdminClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// AdminJWT authenticates admin requests with an HS256 bearer token.
func AdminJWT(secret []byte, log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			scheme, token, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") {
				writeError(w, http.StatusUnauthorized, "invalid Authorization header format")
				return
			}

			claims, err := validateAdminToken(token, secret)
			if err != nil {
				log.WithContext(r.Context()).WithError(err).Warn("admin token rejected")
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), adminSubjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validateAdminToken(tokenString string, secret []byte) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// AdminSubject returns the authenticated admin subject, if any.
func AdminSubject(ctx context.Context) string {
	subject, _ := ctx.Value(adminSubjectKey).(string)
	return subject
}
