package services

import (
	"crypto/rsa"
	"fmt"
	"os"
	"strings"
	"time"

	"relay-chat/config"
	relay_errors "relay-chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// AuthService verifies bearer tokens issued by the identity provider. Tokens are signed
// either with a shared HS256 secret or with an RS256 key whose public half is configured.
type AuthService struct {
	jwtSecret []byte
	publicKey *rsa.PublicKey
	issuer    string
}

type AccessClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// UserID is the token subject.
func (c AccessClaims) UserID() string {
	return c.Subject
}

func NewAuthService(cfg *config.Config) (*AuthService, error) {
	s := &AuthService{jwtSecret: []byte(cfg.JWTSecret), issuer: cfg.JWTIssuer}
	if cfg.JWTPublicKeyPath != "" {
		pem, err := os.ReadFile(cfg.JWTPublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read jwt public key: %w", err)
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jwt public key: %w", err)
		}
		s.publicKey = key
	}
	return s, nil
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return AccessClaims{}, relay_errors.ErrUnauthenticated
	}

	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA:
			if s.publicKey == nil {
				return nil, relay_errors.ErrUnauthenticated
			}
			return s.publicKey, nil
		case *jwt.SigningMethodHMAC:
			if len(s.jwtSecret) == 0 {
				return nil, relay_errors.ErrUnauthenticated
			}
			return s.jwtSecret, nil
		default:
			return nil, relay_errors.ErrUnauthenticated
		}
	}, opts...)
	if err != nil {
		return AccessClaims{}, relay_errors.ErrUnauthenticated
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return AccessClaims{}, relay_errors.ErrUnauthenticated
	}
	return *claims, nil
}

// SignAccessToken issues an HS256 token for userID. Only used by local tooling and tests;
// production tokens come from the identity provider.
func (s *AuthService) SignAccessToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}
