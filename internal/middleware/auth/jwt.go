package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cmt-backend/internal/storage"
)

var ErrNoToken = errors.New("no bearer token")

// Claims issued by the auth backend.
type Claims struct {
	CompanyID string `json:"company_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

type ctxKey struct{}

// GenerateToken signs an HS256 token for user. Used by tooling and tests; the
// production issuer is the auth backend.
func GenerateToken(secret string, user storage.User, ttl time.Duration) (string, error) {
	claims := Claims{
		CompanyID: user.CompanyID,
		Role:      user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies tokenString and returns the user it identifies.
func ParseToken(tokenString, secret string) (storage.User, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return storage.User{}, err
	}
	if !token.Valid || claims.Subject == "" {
		return storage.User{}, errors.New("invalid token claims")
	}
	return storage.User{ID: claims.Subject, CompanyID: claims.CompanyID, Role: claims.Role}, nil
}

func bearer(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" || !strings.HasPrefix(h, "Bearer ") {
		return "", ErrNoToken
	}
	return strings.TrimPrefix(h, "Bearer "), nil
}

// CurrentUser identifies the caller from the bearer token and stores the user
// in the request context.
func CurrentUser(log *slog.Logger, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearer(r)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := ParseToken(token, secret)
			if err != nil {
				log.Debug("rejected token", slog.String("error", err.Error()))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func WithUser(ctx context.Context, user storage.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

func UserFromContext(ctx context.Context) (storage.User, bool) {
	user, ok := ctx.Value(ctxKey{}).(storage.User)
	return user, ok
}
