package utils

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"meal-image-service/internal/config"
	"meal-image-service/internal/logger"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// NewHTTPClient builds the pooled transport shared by the provider clients
func NewHTTPClient(cfg *config.Config) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.HTTPClient.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.HTTPClient.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.HTTPClient.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.Security.TLSSkipVerify,
			MinVersion:         tls.VersionTLS12,
		},
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.HTTPClient.Timeout,
	}
}

// NewRestyClient JSON client for image provider REST APIs. Resty's own retry
// is left off: attempts are counted by imagegen.Retrier.
func NewRestyClient(cfg *config.Config) *resty.Client {
	client := resty.NewWithClient(NewHTTPClient(cfg)).
		SetRetryCount(0).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetHeaders(map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
			"User-Agent":   "meal-image-service/1.0",
		}).
		OnBeforeRequest(func(c *resty.Client, r *resty.Request) error {
			logger.Debug("image provider request",
				zap.String("url", r.URL),
				zap.String("method", r.Method),
			)
			return nil
		}).
		OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
			if resp.StatusCode() >= 400 {
				return fmt.Errorf("image provider API error: status %d, body: %s",
					resp.StatusCode(), truncate(resp.String(), 512))
			}
			return nil
		})

	return client
}

// truncate caps s at n bytes
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
