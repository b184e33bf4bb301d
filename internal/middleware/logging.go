package middleware

import (
	"time"

	"meal-image-service/internal/config"
	"meal-image-service/internal/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request
func RequestLogger(cfg *config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !cfg.Logging.EnableRequestLog {
			return next
		}
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			res := c.Response()

			requestID := requestIDOf(c)
			if requestID == "" {
				requestID = uuid.NewString()
				res.Header().Set(echo.HeaderXRequestID, requestID)
			}

			err := next(c)
			if err != nil {
				// let the error handler write the response so the status is final
				c.Error(err)
			}

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", res.Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_addr", c.RealIP()),
				zap.String("request_id", requestID),
				zap.String("user_agent", req.UserAgent()),
			}
			if res.Size > 0 {
				fields = append(fields, zap.Int64("response_size", res.Size))
			}

			switch {
			case res.Status >= 500:
				logger.Error("request completed with server error", fields...)
			case res.Status >= 400:
				logger.Warn("request completed with client error", fields...)
			default:
				logger.Info("request completed", fields...)
			}

			return nil
		}
	}
}
