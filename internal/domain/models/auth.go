package models

import "github.com/golang-jwt/jwt/v5"

// OwnerClaims is the JWT claim set accepted by the API.
// The subject is the owner every folder, document and classification is scoped to.
type OwnerClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"` // "authenticated" or "anon"
}

// GetOwnerID returns the owner ID from the subject claim
func (c *OwnerClaims) GetOwnerID() string {
	return c.Subject
}
