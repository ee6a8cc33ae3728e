package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/api/shared"
	"github.com/phrazzld/inkwell-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
)

// mockJWTService implements auth.JWTService for testing
type mockJWTService struct {
	ValidateTokenFn func(ctx context.Context, token string) (*auth.Claims, error)
}

func (m *mockJWTService) GenerateToken(context.Context, uuid.UUID) (string, error) {
	return "", nil
}

func (m *mockJWTService) GenerateTokenWithLifetime(context.Context, uuid.UUID, time.Duration) (string, error) {
	return "", nil
}

func (m *mockJWTService) ValidateToken(ctx context.Context, token string) (*auth.Claims, error) {
	return m.ValidateTokenFn(ctx, token)
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()

	tests := []struct {
		name            string
		authHeader      string
		validateErr     error
		expectedStatus  int
		expectedOwnerID uuid.UUID
	}{
		{
			name:            "valid token",
			authHeader:      "Bearer valid-token",
			expectedStatus:  http.StatusOK,
			expectedOwnerID: ownerID,
		},
		{
			name:           "missing auth header",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid auth format",
			authHeader:     "InvalidFormat",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "basic auth",
			authHeader:     "Basic dXNlcjpwYXNz",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "expired token",
			authHeader:     "Bearer expired-token",
			validateErr:    auth.ErrExpiredToken,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid token",
			authHeader:     "Bearer invalid-token",
			validateErr:    auth.ErrInvalidToken,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "wrong token type",
			authHeader:     "Bearer refresh-token",
			validateErr:    auth.ErrWrongTokenType,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "unexpected error",
			authHeader:     "Bearer some-token",
			validateErr:    errors.New("keystore unavailable"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &mockJWTService{
				ValidateTokenFn: func(context.Context, string) (*auth.Claims, error) {
					if tt.validateErr != nil {
						return nil, tt.validateErr
					}
					return &auth.Claims{OwnerID: ownerID, TokenType: "access"}, nil
				},
			}

			var gotOwner uuid.UUID
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotOwner, _ = shared.OwnerID(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()

			NewAuthMiddleware(svc).Authenticate(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, tt.expectedOwnerID, gotOwner)
		})
	}
}

func TestTraceMiddleware(t *testing.T) {
	t.Parallel()

	var traceID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = shared.GetTraceID(r.Context())
	})

	TraceMiddleware(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, traceID, 32)
}
