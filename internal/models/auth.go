package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token types
const (
	TokenTypeAccess = "access"
	TokenTypeReset  = "password_reset"
)

// TokenClaims are the claims carried by access tokens
type TokenClaims struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ResetClaims are the claims carried by the advisory reset token issued after Verify.
// Subject is the identity; QuestionIDs names the questions that were answered correctly.
type ResetClaims struct {
	Type        string   `json:"type"`
	QuestionIDs []string `json:"qids"`
	jwt.RegisteredClaims
}
