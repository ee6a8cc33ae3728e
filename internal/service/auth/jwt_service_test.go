package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-for-testing"

func newTestJWTService(t *testing.T, secret string, lifetime time.Duration, now func() time.Time) JWTService {
	t.Helper()
	svc, err := newHMACService(secret, lifetime, now)
	require.NoError(t, err)
	return svc
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tokenLifetime := 60 * time.Minute
	ownerID := uuid.New()

	svc := newTestJWTService(t, testSecret, tokenLifetime, func() time.Time { return fixedTime })

	token, err := svc.GenerateToken(context.Background(), ownerID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, ownerID, claims.OwnerID)
	assert.Equal(t, ownerID.String(), claims.Subject)
	assert.Equal(t, "access", claims.TokenType)
	// Compare Unix timestamps to avoid timezone issues
	assert.Equal(t, fixedTime.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, fixedTime.Add(tokenLifetime).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)

	_, err = svc.GenerateToken(context.Background(), uuid.Nil)
	assert.Error(t, err)
}

func TestGenerateTokenWithLifetime(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestJWTService(t, testSecret, time.Hour, func() time.Time { return fixedTime })

	token, err := svc.GenerateTokenWithLifetime(context.Background(), uuid.New(), 24*time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, fixedTime.Add(24*time.Hour).Unix(), claims.ExpiresAt.Unix())
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tokenLifetime := 60 * time.Minute
	wrongSecret := "wrong-secret-that-is-long-enough-for-testing"
	ownerID := uuid.New()
	atFixedTime := func() time.Time { return fixedTime }

	tests := []struct {
		name      string
		setupFunc func(t *testing.T) (JWTService, string)
		wantErr   error
	}{
		{
			name: "valid token",
			setupFunc: func(t *testing.T) (JWTService, string) {
				svc := newTestJWTService(t, testSecret, tokenLifetime, atFixedTime)
				token, err := svc.GenerateToken(context.Background(), ownerID)
				require.NoError(t, err)
				return svc, token
			},
		},
		{
			name: "expired token",
			setupFunc: func(t *testing.T) (JWTService, string) {
				genSvc := newTestJWTService(t, testSecret, tokenLifetime, atFixedTime)
				token, err := genSvc.GenerateToken(context.Background(), ownerID)
				require.NoError(t, err)

				valSvc := newTestJWTService(t, testSecret, tokenLifetime, func() time.Time {
					return fixedTime.Add(tokenLifetime + time.Hour)
				})
				return valSvc, token
			},
			wantErr: ErrExpiredToken,
		},
		{
			name: "within clock skew",
			setupFunc: func(t *testing.T) (JWTService, string) {
				genSvc := newTestJWTService(t, testSecret, tokenLifetime, atFixedTime)
				token, err := genSvc.GenerateToken(context.Background(), ownerID)
				require.NoError(t, err)

				valSvc := newTestJWTService(t, testSecret, tokenLifetime, func() time.Time {
					return fixedTime.Add(tokenLifetime + time.Minute)
				})
				return valSvc, token
			},
		},
		{
			name: "invalid signature",
			setupFunc: func(t *testing.T) (JWTService, string) {
				genSvc := newTestJWTService(t, testSecret, tokenLifetime, atFixedTime)
				token, err := genSvc.GenerateToken(context.Background(), ownerID)
				require.NoError(t, err)
				return newTestJWTService(t, wrongSecret, tokenLifetime, atFixedTime), token
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "malformed token",
			setupFunc: func(t *testing.T) (JWTService, string) {
				return newTestJWTService(t, testSecret, tokenLifetime, atFixedTime), "this.is.not.a.valid.jwt.token"
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "empty token",
			setupFunc: func(t *testing.T) (JWTService, string) {
				return newTestJWTService(t, testSecret, tokenLifetime, atFixedTime), ""
			},
			wantErr: ErrMissingToken,
		},
		{
			name: "wrong token type",
			setupFunc: func(t *testing.T) (JWTService, string) {
				claims := jwtCustomClaims{
					OwnerID:   ownerID,
					TokenType: "refresh",
					RegisteredClaims: jwt.RegisteredClaims{
						IssuedAt:  jwt.NewNumericDate(fixedTime),
						ExpiresAt: jwt.NewNumericDate(fixedTime.Add(time.Hour)),
					},
				}
				token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
				require.NoError(t, err)
				return newTestJWTService(t, testSecret, tokenLifetime, atFixedTime), token
			},
			wantErr: ErrWrongTokenType,
		},
		{
			name: "unexpected signing method",
			setupFunc: func(t *testing.T) (JWTService, string) {
				claims := jwtCustomClaims{OwnerID: ownerID, TokenType: "access"}
				token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
				require.NoError(t, err)
				return newTestJWTService(t, testSecret, tokenLifetime, atFixedTime), token
			},
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, token := tt.setupFunc(t)
			claims, err := svc.ValidateToken(context.Background(), token)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
			} else {
				require.NoError(t, err)
				assert.Equal(t, ownerID, claims.OwnerID)
			}
		})
	}
}

func TestNewJWTService(t *testing.T) {
	t.Parallel()

	_, err := NewJWTService(config.AuthConfig{JWTSecret: "short", TokenLifetimeMinutes: 60})
	assert.Error(t, err)

	_, err = NewJWTService(config.AuthConfig{JWTSecret: testSecret})
	assert.Error(t, err)

	svc, err := NewJWTService(config.AuthConfig{JWTSecret: testSecret, TokenLifetimeMinutes: 60})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}
