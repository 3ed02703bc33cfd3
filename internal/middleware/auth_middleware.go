package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/pkg/bcrypt"
	jwtPkg "github.com/sefazor/storycredits/pkg/jwt"
	"go.uber.org/zap"
)

const (
	LocalUserID    = "userID"
	AdminKeyHeader = "X-Admin-Key"
)

func AuthMiddleware(secret string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("Authorization header is required"))
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("Invalid authorization header format"))
		}

		claims, err := jwtPkg.ValidateToken(secret, strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			log.Debug("Token validation failed", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("Invalid token"))
		}

		userID, err := jwtPkg.UserID(claims)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("Invalid user ID in token"))
		}

		c.Locals(LocalUserID, userID)
		return c.Next()
	}
}

// AdminMiddleware checks the shared ops key against its bcrypt hash. With no
// hash configured every admin request is refused.
func AdminMiddleware(keyHash string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(AdminKeyHeader)
		if keyHash == "" || key == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("Admin key is required"))
		}
		if err := bcrypt.CompareSecret(keyHash, key); err != nil {
			log.Warn("Rejected admin key", zap.String("ip", c.IP()), zap.String("path", c.Path()))
			return c.Status(fiber.StatusForbidden).JSON(models.ErrorResponse("Invalid admin key"))
		}
		return c.Next()
	}
}

// UserID returns the authenticated user set by AuthMiddleware.
func UserID(c *fiber.Ctx) (string, bool) {
	userID, ok := c.Locals(LocalUserID).(string)
	return userID, ok && userID != ""
}

// AllowMethods answers 405 for any other method. Mount it before the auth
// middleware so the method check does not depend on credentials.
func AllowMethods(methods ...string) fiber.Handler {
	allowed := strings.Join(methods, ", ")
	return func(c *fiber.Ctx) error {
		for _, m := range methods {
			if c.Method() == m {
				return c.Next()
			}
		}
		c.Set(fiber.HeaderAllow, allowed)
		return c.Status(fiber.StatusMethodNotAllowed).JSON(models.ErrorResponse("Method not allowed"))
	}
}
