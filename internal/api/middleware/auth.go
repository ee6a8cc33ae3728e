package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/inkwell-api/internal/api/shared"
	"github.com/phrazzld/inkwell-api/internal/platform/logger"
	"github.com/phrazzld/inkwell-api/internal/redact"
	"github.com/phrazzld/inkwell-api/internal/service/auth"
)

// AuthMiddleware provides JWT authentication for routes.
type AuthMiddleware struct {
	jwtService auth.JWTService
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(jwtService auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
	}
}

// Authenticate validates JWT tokens from the Authorization header and
// adds the owner ID to the request context for authorized requests.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.WriteError(w, r, http.StatusUnauthorized, "Authorization header required", nil)
			return
		}

		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || token == "" || strings.Contains(token, " ") {
			shared.WriteError(w, r, http.StatusUnauthorized, "Invalid authorization format", nil)
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				shared.WriteError(w, r, http.StatusUnauthorized, "Token expired", nil)
			case errors.Is(err, auth.ErrInvalidToken),
				errors.Is(err, auth.ErrWrongTokenType),
				errors.Is(err, auth.ErrTokenNotYetValid),
				errors.Is(err, auth.ErrMissingToken):
				shared.WriteError(w, r, http.StatusUnauthorized, "Invalid token", nil)
			default:
				slog.Error("failed to validate token", "error", redact.Error(err))
				shared.WriteError(w, r, http.StatusInternalServerError, "Authentication error", nil)
			}
			return
		}

		ctx := shared.WithOwnerID(r.Context(), claims.OwnerID)
		log := logger.FromContextOrDefault(ctx, slog.Default()).With("owner_id", claims.OwnerID)
		ctx = logger.WithLogger(ctx, log)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
