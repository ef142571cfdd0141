package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/warden/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer   = "warden"
	audienceAPI   = "api"
	audienceReset = "password-reset"
)

// TokenManager issues and validates HS256 access and reset tokens
type TokenManager struct {
	secret            []byte
	accessTokenExpiry time.Duration
	resetTokenExpiry  time.Duration
	now               func() time.Time
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, accessExpiry, resetExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:            []byte(secret),
		accessTokenExpiry: accessExpiry,
		resetTokenExpiry:  resetExpiry,
		now:               time.Now,
	}
}

// SetClock replaces the time source used for issuing and validating tokens
func (tm *TokenManager) SetClock(now func() time.Time) {
	tm.now = now
}

// GenerateAccessToken creates a short-lived access token carrying the identity's role
func (tm *TokenManager) GenerateAccessToken(identity *models.Identity) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(tm.accessTokenExpiry)

	claims := &models.TokenClaims{
		Type:   models.TokenTypeAccess,
		UserID: identity.ID,
		Email:  identity.Email,
		Role:   identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   identity.Email,
			Audience:  jwt.ClaimStrings{audienceAPI},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateAccessToken verifies an access token and returns its claims
func (tm *TokenManager) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}
	if err := tm.parse(tokenString, claims, audienceAPI); err != nil {
		return nil, models.ErrUnauthorized
	}
	if claims.Type != models.TokenTypeAccess {
		return nil, models.ErrUnauthorized
	}
	return claims, nil
}

// GenerateResetToken issues the advisory token handed out after a successful Verify.
// It names the identity and the questions that were answered correctly.
func (tm *TokenManager) GenerateResetToken(identity string, questionIDs []string) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(tm.resetTokenExpiry)

	claims := &models.ResetClaims{
		Type:        models.TokenTypeReset,
		QuestionIDs: questionIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   identity,
			Audience:  jwt.ClaimStrings{audienceReset},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign reset token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateResetToken verifies a reset token was issued for identity and is unexpired
func (tm *TokenManager) ValidateResetToken(tokenString, identity string) (*models.ResetClaims, error) {
	claims := &models.ResetClaims{}
	if err := tm.parse(tokenString, claims, audienceReset); err != nil {
		return nil, models.ErrInvalidResetToken
	}
	if claims.Type != models.TokenTypeReset || claims.Subject != identity || claims.ID == "" {
		return nil, models.ErrInvalidResetToken
	}
	return claims, nil
}

func (tm *TokenManager) parse(tokenString string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return tm.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}
