package service

import (
	"fmt"
	"time"

	"github.com/boddenberg/wallet-insights-bfa/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer     = "wallet-insights-bfa"
	accessTokenType = "access"
)

// JWTClaims represents the custom claims in access tokens. The customer ID
// travels in the standard "sub" claim.
type JWTClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// TokenService signs and validates HS256 access tokens.
type TokenService struct {
	secret    []byte
	accessTTL time.Duration
}

// NewTokenService creates a TokenService for secret.
func NewTokenService(secret string, accessTTL time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), accessTTL: accessTTL}
}

// SignAccessToken issues an access token for customerID.
func (s *TokenService) SignAccessToken(customerID string) (string, error) {
	if customerID == "" {
		return "", &domain.ErrValidation{Field: "customerId", Message: "must not be empty"}
	}

	now := time.Now()
	claims := JWTClaims{
		Type: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   customerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateAccessToken parses tokenString and returns its claims. Any failure
// is reported as *domain.ErrUnauthorized.
func (s *TokenService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.Type != accessTokenType {
		return nil, &domain.ErrUnauthorized{Message: "invalid token type"}
	}
	if claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "token has no subject"}
	}

	return claims, nil
}
