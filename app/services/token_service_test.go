package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-32-chars"

// createTestTokenService creates a token service for testing with symmetric key
func createTestTokenService(t *testing.T) TokenService {
	t.Helper()
	service, err := NewTokenService(
		15*time.Minute,
		"test-issuer",
		"test-audience",
		false, // useRSAKeys
		"",    // privateKeyPEM
		"",    // publicKeyPEM
		testSecret,
	)
	require.NoError(t, err)
	return service
}

// signClaims signs arbitrary claims with the test secret
func signClaims(t *testing.T, claims operatorClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name          string
		useRSAKeys    bool
		privateKeyPEM string
		publicKeyPEM  string
		secretKey     string
		expectError   bool
	}{
		{
			name:        "valid symmetric key configuration",
			secretKey:   testSecret,
			expectError: false,
		},
		{
			name:        "missing secret key",
			secretKey:   "",
			expectError: true,
		},
		{
			name:          "RSA without keys",
			useRSAKeys:    true,
			privateKeyPEM: "",
			publicKeyPEM:  "",
			expectError:   true,
		},
		{
			name:          "RSA with malformed keys",
			useRSAKeys:    true,
			privateKeyPEM: "not a pem block",
			publicKeyPEM:  "not a pem block",
			expectError:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewTokenService(
				time.Hour,
				"test-issuer",
				"test-audience",
				tt.useRSAKeys,
				tt.privateKeyPEM,
				tt.publicKeyPEM,
				tt.secretKey,
			)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, service)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, service)
			}
		})
	}
}

func TestGenerateAndValidateOperatorToken(t *testing.T) {
	service := createTestTokenService(t)

	token, err := service.GenerateOperatorToken("  ops@example.com ")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, ScopeCharactersWrite, claims.Scope)
	assert.NotEmpty(t, claims.TokenID)
	assert.WithinDuration(t, claims.IssuedAt.Add(15*time.Minute), claims.ExpiresAt, time.Second)

	other, err := service.GenerateOperatorToken("ops@example.com")
	require.NoError(t, err)
	otherClaims, err := service.ValidateToken(other)
	require.NoError(t, err)
	assert.NotEqual(t, claims.TokenID, otherClaims.TokenID)
}

func TestGenerateOperatorTokenRequiresSubject(t *testing.T) {
	service := createTestTokenService(t)

	token, err := service.GenerateOperatorToken("   ")
	assert.Error(t, err)
	assert.Empty(t, token)
}

func TestValidateToken(t *testing.T) {
	service := createTestTokenService(t)
	now := time.Now().UTC()

	validRegistered := func() jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			Subject:   "ops",
			Issuer:    "test-issuer",
			Audience:  jwt.ClaimStrings{"test-audience"},
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}
	}

	t.Run("Expired", func(t *testing.T) {
		registered := validRegistered()
		registered.IssuedAt = jwt.NewNumericDate(now.Add(-2 * time.Hour))
		registered.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Hour))
		token := signClaims(t, operatorClaims{Scope: ScopeCharactersWrite, RegisteredClaims: registered})

		claims, err := service.ValidateToken(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
		assert.Nil(t, claims)
	})

	t.Run("WrongScope", func(t *testing.T) {
		token := signClaims(t, operatorClaims{Scope: "characters:read", RegisteredClaims: validRegistered()})

		claims, err := service.ValidateToken(token)
		assert.ErrorIs(t, err, ErrTokenScope)
		assert.Nil(t, claims)
	})

	t.Run("WrongIssuer", func(t *testing.T) {
		registered := validRegistered()
		registered.Issuer = "someone-else"
		token := signClaims(t, operatorClaims{Scope: ScopeCharactersWrite, RegisteredClaims: registered})

		_, err := service.ValidateToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("WrongAudience", func(t *testing.T) {
		registered := validRegistered()
		registered.Audience = jwt.ClaimStrings{"another-api"}
		token := signClaims(t, operatorClaims{Scope: ScopeCharactersWrite, RegisteredClaims: registered})

		_, err := service.ValidateToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other, err := NewTokenService(time.Hour, "test-issuer", "test-audience", false, "", "", "another-secret-key-for-jwt-signing-32")
		require.NoError(t, err)
		token, err := other.GenerateOperatorToken("ops")
		require.NoError(t, err)

		_, err = service.ValidateToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := service.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}
