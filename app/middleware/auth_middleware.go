// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"strings"

	"github.com/amirphl/charmemo/app/dto"
	"github.com/amirphl/charmemo/app/services"
	"github.com/gofiber/fiber/v3"
)

// AuthMiddleware guards write routes with operator tokens
type AuthMiddleware struct {
	tokenService services.TokenService
	required     bool
}

// NewAuthMiddleware creates the guard. When required is false every request passes through.
func NewAuthMiddleware(tokenService services.TokenService, required bool) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
		required:     required && tokenService != nil,
	}
}

// RequireWriteToken rejects requests without a valid "Bearer <token>" carrying the write scope
func (m *AuthMiddleware) RequireWriteToken() fiber.Handler {
	return func(c fiber.Ctx) error {
		if !m.required {
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "Authorization header is required", "MISSING_AUTHORIZATION_HEADER")
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c, "Invalid authorization header format. Expected 'Bearer <token>'", "INVALID_AUTHORIZATION_FORMAT")
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return unauthorized(c, "Access token is required", "MISSING_ACCESS_TOKEN")
		}

		claims, err := m.tokenService.ValidateToken(token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				return unauthorized(c, "Access token has expired", "TOKEN_EXPIRED")
			case errors.Is(err, services.ErrTokenScope):
				return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
					Success: false,
					Message: "Token does not allow this operation",
					Error:   dto.ErrorDetail{Code: "TOKEN_SCOPE_DENIED"},
				})
			case errors.Is(err, services.ErrTokenInvalid):
				return unauthorized(c, "Invalid access token", "TOKEN_INVALID")
			default:
				return unauthorized(c, "Token validation failed", "TOKEN_VALIDATION_FAILED")
			}
		}

		c.Locals("operator", claims.Subject)
		c.Locals("token_id", claims.TokenID)
		c.Locals("token_claims", claims)

		return c.Next()
	}
}

func unauthorized(c fiber.Ctx, message, code string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: code},
	})
}
