// Package auth issues and validates the bearer tokens that identify the
// owner of credit accounts, jobs and articles. Users are managed elsewhere;
// a token only carries the owner id.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService defines operations for managing JWT authentication tokens.
type JWTService interface {
	// GenerateToken creates a signed JWT access token for the owner using the
	// configured lifetime.
	GenerateToken(ctx context.Context, ownerID uuid.UUID) (string, error)

	// GenerateTokenWithLifetime creates a signed JWT access token that expires
	// after lifetime instead of the configured default.
	GenerateTokenWithLifetime(ctx context.Context, ownerID uuid.UUID, lifetime time.Duration) (string, error)

	// ValidateToken validates the provided access token string and extracts the claims.
	// Returns the claims if the token is valid, or an error if validation fails
	// (expired, invalid signature, wrong token type, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the custom claims structure for the JWT tokens.
type Claims struct {
	// OwnerID is the account owner the token was issued for.
	OwnerID uuid.UUID `json:"uid,omitempty"`

	// TokenType is always "access" for tokens accepted by the API.
	TokenType string `json:"type,omitempty"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
