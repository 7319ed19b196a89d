package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/confhub/confhub/internal/domain"
)

type contextKey string

const callerContextKey contextKey = "caller"

// callerClaims is the token payload carrying the caller's tenancy identity.
type callerClaims struct {
	DomainID string   `json:"did"`
	Role     string   `json:"rol"`
	Projects []string `json:"prj,omitempty"`
	jwt.RegisteredClaims
}

// Auth creates authentication middleware validating the Bearer token and
// storing the resulting CallerContext on the request context. The token's
// subject is the user, "did" the domain, "rol" the identity type and "prj"
// the caller's visible project list.
func Auth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"code":401,"message":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}
			if !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, `{"code":401,"message":"invalid authorization header format"}`, http.StatusUnauthorized)
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims := &callerClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				http.Error(w, `{"code":401,"message":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			if claims.DomainID == "" {
				http.Error(w, `{"code":401,"message":"token carries no domain"}`, http.StatusUnauthorized)
				return
			}

			caller := domain.CallerContext{
				UserID:   claims.Subject,
				DomainID: claims.DomainID,
				Role:     domain.RoleType(claims.Role),
				Projects: claims.Projects,
			}

			ctx := context.WithValue(r.Context(), callerContextKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCaller retrieves the caller context from the request context.
func GetCaller(ctx context.Context) (domain.CallerContext, bool) {
	caller, ok := ctx.Value(callerContextKey).(domain.CallerContext)
	return caller, ok
}
