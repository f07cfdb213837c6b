package auth

import "docusight/internal/domain/models"

// JWTVerifier validates bearer tokens.
type JWTVerifier interface {
	// VerifyToken validates a JWT and returns its claims.
	// Returns domain.ErrUnauthorized if the token is invalid, expired or
	// signed with an unexpected algorithm.
	VerifyToken(tokenString string) (*models.OwnerClaims, error)

	// Close releases resources held by the verifier
	Close() error
}
