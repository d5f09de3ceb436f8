package fetcher

import (
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"resty.dev/v3"
)

const (
	// Transport-level retries only absorb throttling responses. Retry budgets
	// per source belong to the fallback orchestrator.
	defaultRetryCount       = 1
	defaultRetryWaitTime    = 1 * time.Second
	defaultRetryMaxWaitTime = 5 * time.Second

	// BrowserUserAgent is sent to upstreams that reject non-browser clients
	BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"
)

// NewHTTPClient creates an HTTP client with a cookie jar, a browser user agent
// and a short retry for rate-limited responses
func NewHTTPClient(baseURL string) *resty.Client {
	jar, _ := cookiejar.New(nil)

	client := resty.New().
		SetBaseURL(baseURL).
		SetCookieJar(jar).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", BrowserUserAgent).
		SetRetryCount(defaultRetryCount).
		SetRetryWaitTime(defaultRetryWaitTime).
		SetRetryMaxWaitTime(defaultRetryMaxWaitTime).
		AddRetryConditions(retryCondition).
		AddRetryHooks(retryHook)

	return client
}

// retryCondition retries only when the upstream asks us to slow down
func retryCondition(r *resty.Response, err error) bool {
	if err != nil || r == nil {
		return false
	}

	switch r.StatusCode() {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	default:
		return false
	}
}

// retryHook logs each throttled retry at debug level
func retryHook(r *resty.Response, err error) {
	attrs := []any{"url", r.Request.URL, "attempt", r.Request.Attempt}
	if err != nil {
		slog.Debug("upstream retry", append(attrs, "error", err)...)
		return
	}
	slog.Debug("upstream throttled", append(attrs, "status_code", r.StatusCode())...)
}
