package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthService validates bearer tokens. The authorization rule engine
// itself (RBAC) lives outside this service; this is only the
// token-verification boundary.
type AuthService struct {
	secret   []byte
	tokenTTL time.Duration
}

// NewAuthService constructs an AuthService around an HMAC secret.
func NewAuthService(secret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{secret: []byte(secret), tokenTTL: tokenTTL}
}

// GenerateToken issues a signed bearer token for subject, carrying roles
// for downstream authorization decisions.
func (s *AuthService) GenerateToken(subject string, roles []string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   subject,
		"roles": roles,
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses and verifies tokenString, rejecting anything not
// signed with HS256 to rule out algorithm-confusion attacks.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

type subjectCtxKey struct{}

// requireAuth enforces a valid bearer token on every request it guards.
func requireAuth(auth *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				writeOutcome(w, http.StatusUnauthorized, "unauthorized", "missing or malformed Authorization header", nil)
				return
			}

			claims, err := auth.ValidateToken(parts[1])
			if err != nil {
				writeOutcome(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token", nil)
				return
			}

			subject, _ := claims["sub"].(string)
			ctx := context.WithValue(r.Context(), subjectCtxKey{}, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Subject extracts the authenticated caller's subject from ctx, empty if
// the request was never authenticated.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectCtxKey{}).(string)
	return s
}
