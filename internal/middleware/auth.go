package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/exp/slog"

	"github.com/alovak/paysim/internal/apperr"
)

// Principal is the caller identity attached to each request.
type Principal struct {
	Subject string
	// Stub is true when no bearer token was presented.
	Stub bool
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Claims carried by simulator tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// IssueToken mints an HS256 token for subject valid for ttl from now.
func IssueToken(secret []byte, subject string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("jwt secret is empty")
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "paysim",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates an HS256 token and returns its subject.
func ParseToken(secret []byte, token string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// NewAuthenticator attaches a Principal to every request. Requests without an
// Authorization header run as stubSubject; a presented bearer token must verify
// against secret, otherwise the request is answered with 401.
func NewAuthenticator(secret []byte, stubSubject string, logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), Principal{Subject: stubSubject, Stub: true})))
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				unauthorized(w, "authorization header must be a bearer token")
				return
			}
			if len(secret) == 0 {
				unauthorized(w, "bearer tokens are not accepted")
				return
			}
			subject, err := ParseToken(secret, strings.TrimSpace(token))
			if err != nil {
				logger.Debug("rejected bearer token", "err", err)
				unauthorized(w, fmt.Sprintf("invalid token: %v", err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), Principal{Subject: subject})))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="paysim"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"code":    string(apperr.KindUnauthorized),
		"message": msg,
	})
}
