package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"meal-image-service/internal/config"
	apperrors "meal-image-service/internal/errors"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errorBody struct {
	Error struct {
		Code      int    `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler()
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorHandlerAppError(t *testing.T) {
	e := newEcho()
	e.GET("/images/:filename", func(c echo.Context) error {
		return apperrors.NewNotFoundError("image " + c.Param("filename") + " not found")
	})

	req := httptest.NewRequest(http.MethodGet, "/images/nope.png", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	rec := serve(e, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, int(apperrors.ErrNotFound), body.Error.Code)
	assert.Contains(t, body.Error.Message, "nope.png")
	assert.Equal(t, "req-1", body.Error.RequestID)
}

func TestErrorHandlerPrefersResponseRequestID(t *testing.T) {
	e := newEcho()
	e.GET("/", func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderXRequestID, "generated")
		return apperrors.NewInternalError(errors.New("boom"))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "client")
	rec := serve(e, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "generated", decodeError(t, rec).Error.RequestID)
}

func TestErrorHandlerEchoAndPlainErrors(t *testing.T) {
	e := newEcho()
	e.GET("/plain", func(c echo.Context) error {
		return errors.New("unexpected")
	})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, decodeError(t, rec).Error.Code)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/plain", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "internal server error", body.Error.Message)
}

func TestBearerAuth(t *testing.T) {
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }

	t.Run("disabled", func(t *testing.T) {
		e := newEcho()
		e.POST("/generate-image", ok, BearerAuth(""))
		rec := serve(e, httptest.NewRequest(http.MethodPost, "/generate-image", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEcho()
			e.POST("/generate-image", ok, BearerAuth("s3cret"))

			req := httptest.NewRequest(http.MethodPost, "/generate-image", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := serve(e, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2)
	defer rl.Close()

	e := newEcho()
	e.POST("/generate-image", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, rl.Middleware())

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/generate-image", nil)
		req.Header.Set("X-Real-IP", ip)
		return serve(e, req)
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)

	rec := send("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, int(apperrors.ErrRateLimited), decodeError(t, rec).Error.Code)

	// other clients have their own bucket
	assert.Equal(t, http.StatusOK, send("10.0.0.2").Code)
	assert.Equal(t, 2, rl.Clients())
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(5)
	defer rl.Close()

	rl.Allow("10.0.0.1")
	rl.evictIdle(time.Now())
	assert.Equal(t, 1, rl.Clients())

	rl.evictIdle(time.Now().Add(clientIdleTimeout + time.Second))
	assert.Zero(t, rl.Clients())
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"real ip", map[string]string{"X-Real-IP": "1.2.3.4"}, "9.9.9.9:1", "1.2.3.4"},
		{"forwarded", map[string]string{"X-Forwarded-For": "5.6.7.8, 10.0.0.1"}, "9.9.9.9:1", "5.6.7.8"},
		{"invalid header", map[string]string{"X-Real-IP": "garbage"}, "9.9.9.9:1", "9.9.9.9"},
		{"remote", nil, "9.9.9.9:1234", "9.9.9.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			c := echo.New().NewContext(req, httptest.NewRecorder())
			assert.Equal(t, tt.want, clientIP(c))
		})
	}
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.EnableRequestLog = true

	e := newEcho()
	e.Use(RequestLogger(cfg))
	e.GET("/fail", func(c echo.Context) error {
		return apperrors.NewBadRequestError("bad", nil)
	})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	id := rec.Header().Get(echo.HeaderXRequestID)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, decodeError(t, rec).Error.RequestID)
}

func TestMetricsMiddlewarePassesThrough(t *testing.T) {
	e := newEcho()
	e.Use(Metrics())
	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
