// Package services provides technical concerns used by the HTTP layer, such as operator tokens
package services

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/charmemo/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token service error constants
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenScope   = errors.New("token scope not allowed")
)

// ScopeCharactersWrite allows creating and deleting characters
const ScopeCharactersWrite = "characters:write"

// TokenService issues and validates operator tokens for write routes
type TokenService interface {
	GenerateOperatorToken(subject string) (string, error)
	ValidateToken(token string) (*TokenClaims, error)
}

// TokenClaims represents the claims in a validated operator token
type TokenClaims struct {
	Subject   string    `json:"sub"`
	Scope     string    `json:"scope"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenID   string    `json:"jti"`
}

type operatorClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenServiceImpl implements TokenService
type TokenServiceImpl struct {
	tokenTTL      time.Duration
	signingMethod jwt.SigningMethod
	privateKey    *rsa.PrivateKey
	publicKey     *rsa.PublicKey
	secretKey     []byte
	useRSAKeys    bool
	issuer        string
	audience      string
}

// NewTokenService creates a new token service. HS256 with secretKey unless useRSAKeys is set.
func NewTokenService(tokenTTL time.Duration, issuer, audience string, useRSAKeys bool, privateKeyPEM, publicKeyPEM, secretKey string) (TokenService, error) {
	var privateKey *rsa.PrivateKey
	var publicKey *rsa.PublicKey
	var secretKeyBytes []byte
	var signingMethod jwt.SigningMethod

	if useRSAKeys {
		var err error
		privateKey, publicKey, err = parseRSAKeys(privateKeyPEM, publicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA keys: %w", err)
		}
		signingMethod = jwt.SigningMethodRS256
	} else {
		if secretKey == "" {
			return nil, fmt.Errorf("secret key is required when not using RSA keys")
		}
		secretKeyBytes = []byte(secretKey)
		signingMethod = jwt.SigningMethodHS256
	}

	if tokenTTL <= 0 {
		tokenTTL = utils.OperatorTokenTTL
	}

	return &TokenServiceImpl{
		tokenTTL:      tokenTTL,
		signingMethod: signingMethod,
		privateKey:    privateKey,
		publicKey:     publicKey,
		secretKey:     secretKeyBytes,
		useRSAKeys:    useRSAKeys,
		issuer:        issuer,
		audience:      audience,
	}, nil
}

// parseRSAKeys parses RSA private and public keys from PEM format
func parseRSAKeys(privateKeyPEM, publicKeyPEM string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	if privateKeyPEM == "" || publicKeyPEM == "" {
		return nil, nil, fmt.Errorf("both private and public keys are required")
	}

	privateKeyBlock, _ := pem.Decode([]byte(privateKeyPEM))
	if privateKeyBlock == nil {
		return nil, nil, fmt.Errorf("failed to decode private key")
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(privateKeyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	publicKeyBlock, _ := pem.Decode([]byte(publicKeyPEM))
	if publicKeyBlock == nil {
		return nil, nil, fmt.Errorf("failed to decode public key")
	}

	publicKey, err := x509.ParsePKIXPublicKey(publicKeyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaPublicKey, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("public key is not RSA")
	}

	return privateKey, rsaPublicKey, nil
}

// GenerateOperatorToken issues a write-scoped token for subject
func (s *TokenServiceImpl) GenerateOperatorToken(subject string) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("token subject is required")
	}

	now := utils.UTCNow()
	claims := operatorClaims{
		Scope: ScopeCharactersWrite,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	token := jwt.NewWithClaims(s.signingMethod, claims)
	if s.useRSAKeys {
		return token.SignedString(s.privateKey)
	}
	return token.SignedString(s.secretKey)
}

// ValidateToken verifies signature, expiry, issuer, audience and scope
func (s *TokenServiceImpl) ValidateToken(token string) (*TokenClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{s.signingMethod.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	var claims operatorClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if s.useRSAKeys {
			return s.publicKey, nil
		}
		return s.secretKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Scope != ScopeCharactersWrite {
		return nil, ErrTokenScope
	}

	result := &TokenClaims{
		Subject: claims.Subject,
		Scope:   claims.Scope,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}
