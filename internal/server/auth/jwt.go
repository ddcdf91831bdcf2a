// Package auth issues and verifies wallet session tokens.
package auth

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// SessionTTL is the fixed validity of an issued session token.
const SessionTTL = 24 * time.Hour

// Claims is the token payload: the standard registered claims plus the
// wallet the session belongs to.
type Claims struct {
	jwt.RegisteredClaims
	WalletAddress string `json:"walletAddress"`
}

// TokenService signs and validates HS256 session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService returns a TokenService using secret as the HMAC key.
// An empty secret is a configuration error.
func NewTokenService(secret string) (*TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: JWT secret is not configured", common.ErrConfig)
	}
	return &TokenService{secret: []byte(secret), ttl: SessionTTL, now: time.Now}, nil
}

// Issue creates a token for walletAddress that expires after SessionTTL.
func (s *TokenService) Issue(walletAddress string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		WalletAddress: walletAddress,
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Verify checks signature and expiry and returns the wallet address carried
// by the token. Every failure is reported as common.ErrInvalidToken.
func (s *TokenService) Verify(tokenString string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: expired", common.ErrInvalidToken)
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.WalletAddress == "" {
		return "", common.ErrInvalidToken
	}

	return claims.WalletAddress, nil
}

// GenerateNonce returns a 6-digit, zero-padded decimal string.
func GenerateNonce() string {
	return fmt.Sprintf("%06d", rand.IntN(1_000_000))
}
