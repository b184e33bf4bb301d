package middleware

import (
	stderrors "errors"
	"net/http"

	"meal-image-service/internal/errors"
	"meal-image-service/internal/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrorHandler renders every error as {"error":{code,message,request_id}}
func ErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		requestID := requestIDOf(c)

		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			status, response := appErr.HTTPResponse()
			if errMap, ok := response["error"].(map[string]any); ok {
				errMap["request_id"] = requestID
			}

			fields := []zap.Field{
				zap.Int("status", status),
				zap.Int("error_code", int(appErr.Code)),
				zap.String("error_msg", appErr.Message),
				zap.String("request_id", requestID),
			}
			if appErr.Err != nil {
				fields = append(fields, zap.Error(appErr.Err))
			}
			if status >= http.StatusInternalServerError {
				logger.Error("application error", fields...)
			} else {
				logger.Warn("application error", fields...)
			}

			respond(c, status, response)
			return
		}

		var echoErr *echo.HTTPError
		if stderrors.As(err, &echoErr) {
			status := echoErr.Code
			message := http.StatusText(status)
			if m, ok := echoErr.Message.(string); ok {
				message = m
			}

			logger.Warn("framework error",
				zap.Int("status", status),
				zap.String("error_msg", message),
				zap.String("request_id", requestID),
				zap.Error(err),
			)

			respond(c, status, map[string]any{
				"error": map[string]any{
					"code":       status,
					"message":    message,
					"request_id": requestID,
				},
			})
			return
		}

		status := http.StatusInternalServerError
		logger.Error("unclassified error",
			zap.Int("status", status),
			zap.String("request_id", requestID),
			zap.Error(err),
		)

		respond(c, status, map[string]any{
			"error": map[string]any{
				"code":       status,
				"message":    "internal server error",
				"request_id": requestID,
			},
		})
	}
}

func respond(c echo.Context, status int, body map[string]any) {
	var err error
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		logger.Error("failed to write error response", zap.Error(err))
	}
}

// requestIDOf the id set by the RequestID middleware, else the client's
func requestIDOf(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
