package middleware

import (
	"crypto/subtle"
	"strings"

	"meal-image-service/internal/errors"
	"meal-image-service/internal/logger"
	"meal-image-service/internal/utils"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// BearerAuth requires "Authorization: Bearer <token>". An empty token turns
// the check off.
func BearerAuth(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if token == "" {
			return next
		}
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)

			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				logger.Warn("invalid authorization header",
					zap.String("method", c.Request().Method),
					zap.String("uri", c.Request().RequestURI),
					zap.String("remote_addr", c.RealIP()),
				)
				return errors.NewUnauthorizedError("invalid authorization header")
			}

			got := strings.TrimPrefix(auth, "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				logger.Warn("invalid token",
					zap.String("method", c.Request().Method),
					zap.String("uri", c.Request().RequestURI),
					zap.String("remote_addr", c.RealIP()),
					zap.String("token", utils.MaskSecret(got)),
				)
				return errors.NewUnauthorizedError("invalid token")
			}

			return next(c)
		}
	}
}
