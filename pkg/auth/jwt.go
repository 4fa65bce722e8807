// Package auth validates the JWT bearer tokens carried by API requests.
// A token identifies the calling actor; what that actor may do to any
// given owner's store is the capability ledger's decision, not this
// package's.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrMissingToken     = errors.New("missing authentication token")
	ErrInvalidClaims    = errors.New("invalid token claims")
)

// Claims are the JWT claims carried by an API token
type Claims struct {
	ActorID string `json:"sub"`
	jwt.RegisteredClaims
}

// JWTConfig configures token validation
type JWTConfig struct {
	SecretKey string
	Issuer    string
}

// JWTValidator validates HS256 bearer tokens
type JWTValidator struct {
	secretKey []byte
	issuer    string
}

// NewJWTValidator creates a validator
func NewJWTValidator(config JWTConfig) (*JWTValidator, error) {
	if config.SecretKey == "" {
		return nil, errors.New("secret key is required")
	}
	return &JWTValidator{secretKey: []byte(config.SecretKey), issuer: config.Issuer}, nil
}

// ValidateToken validates a token and returns its claims
func (v *JWTValidator) ValidateToken(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method)
		}
		return v.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: invalid issuer", ErrInvalidClaims)
	}
	if claims.ActorID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidClaims)
	}
	return claims, nil
}

// JWTGenerator issues HS256 tokens. Used by tests and local tooling; a
// production deployment issues tokens from its identity provider.
type JWTGenerator struct {
	secretKey []byte
	issuer    string
	expiry    time.Duration
}

// NewJWTGenerator creates a generator
func NewJWTGenerator(config JWTConfig, expiry time.Duration) (*JWTGenerator, error) {
	if config.SecretKey == "" {
		return nil, errors.New("secret key is required")
	}
	return &JWTGenerator{secretKey: []byte(config.SecretKey), issuer: config.Issuer, expiry: expiry}, nil
}

// GenerateToken issues a token for an actor
func (g *JWTGenerator) GenerateToken(actorID string) (string, error) {
	now := time.Now()
	claims := Claims{
		ActorID: actorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secretKey)
}
