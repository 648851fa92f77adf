package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Syddevv/SpenSyd-Server/internal/config"
	"github.com/Syddevv/SpenSyd-Server/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Token purposes. An access token cannot be used to reset a password and vice versa.
const (
	PurposeAccess        = "access"
	PurposePasswordReset = "password_reset"
)

// Claims holds the JWT payload fields.
type Claims struct {
	UserID  string `json:"user_id,omitempty"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 JWTs.
type Provider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	expiry     time.Duration
	now        func() time.Time
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &Provider{privateKey: privKey, publicKey: pubKey, expiry: cfg.JWTExpiry, now: time.Now}, nil
}

// NewProviderFromKey builds a provider around an in-memory key pair.
func NewProviderFromKey(key *rsa.PrivateKey, expiry time.Duration) *Provider {
	return &Provider{privateKey: key, publicKey: &key.PublicKey, expiry: expiry, now: time.Now}
}

// Sign issues an access token for userID. The token identifies the account only; the
// current email is always read from the user record.
func (p *Provider) Sign(userID string) (string, error) {
	now := p.now()
	return p.sign(Claims{
		UserID:  userID,
		Purpose: PurposeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
}

// SignReset issues a short-lived password reset token bound to email. grantID is the
// server-side one-time grant the token redeems.
func (p *Provider) SignReset(email, grantID string, ttl time.Duration) (string, error) {
	now := p.now()
	return p.sign(Claims{
		Purpose: PurposePasswordReset,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ID:        grantID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
}

// Verify validates an access token.
func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	claims, err := p.parse(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
	}
	if claims.Purpose != PurposeAccess || claims.UserID == "" {
		return nil, fmt.Errorf("not an access token: %w", domain.ErrUnauthorized)
	}
	return claims, nil
}

// VerifyReset validates a password reset token. An expired token maps to domain.ErrExpired,
// anything else to domain.ErrUnauthorized.
func (p *Provider) VerifyReset(tokenStr string) (*Claims, error) {
	claims, err := p.parse(tokenStr)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("reset token expired: %w", domain.ErrExpired)
		}
		return nil, fmt.Errorf("invalid reset token: %w", domain.ErrUnauthorized)
	}
	if claims.Purpose != PurposePasswordReset || claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("not a reset token: %w", domain.ErrUnauthorized)
	}
	return claims, nil
}

func (p *Provider) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(p.privateKey)
}

func (p *Provider) parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
