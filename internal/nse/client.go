// Package nse talks to the National Stock Exchange website: index constituent
// CSVs, the equity JSON API and the trading holiday calendar. The site refuses
// requests without the cookies set by its home page, so every client warms up
// a shared cookie jar before its first call.
package nse

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync"

	"resty.dev/v3"

	"marketpulse/internal/fetcher"
)

const (
	// Source names in the category table
	SourceAPI = "nse_api"
	SourceCSV = "nse_csv"

	// DefaultBaseURL is the NSE website, which also serves the JSON API under /api
	DefaultBaseURL = "https://www.nseindia.com"

	// DefaultArchiveURL serves the index constituent CSVs
	DefaultArchiveURL = "https://nsearchives.nseindia.com"

	referer = "https://www.nseindia.com/market-data/live-equity-market"
)

// Options configures a Client
type Options struct {
	BaseURL    string
	ArchiveURL string
	Logger     *slog.Logger
}

// Client is a cookie-warmed session against the NSE website and archives
type Client struct {
	site    *resty.Client
	archive *resty.Client
	logger  *slog.Logger

	mu     sync.Mutex
	warmed bool
}

// NewClient creates an NSE session. No request is made until first use.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.ArchiveURL == "" {
		opts.ArchiveURL = DefaultArchiveURL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	jar, _ := cookiejar.New(nil)

	site := fetcher.NewHTTPClient(opts.BaseURL).
		SetCookieJar(jar).
		SetHeader("Accept-Language", "en-US,en;q=0.9").
		SetHeader("Referer", referer)

	archive := fetcher.NewHTTPClient(opts.ArchiveURL).
		SetCookieJar(jar).
		SetHeader("Accept", "text/csv,*/*").
		SetHeader("Accept-Language", "en-US,en;q=0.9").
		SetHeader("Referer", referer)

	return &Client{
		site:    site,
		archive: archive,
		logger:  opts.Logger.With("component", "nse"),
	}
}

// warmUp visits the home page once so later calls carry session cookies.
// A failed warm-up is logged and retried on the next call.
func (c *Client) warmUp(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.warmed {
		return
	}

	resp, err := c.site.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html").
		Get("/")
	if err != nil {
		c.logger.Debug("cookie warm-up failed", "error", err)
		return
	}
	if !resp.IsSuccess() {
		c.logger.Debug("cookie warm-up rejected", "status_code", resp.StatusCode())
		return
	}
	c.warmed = true
}

// get issues a warmed request against the site
func (c *Client) get(ctx context.Context, path string, params map[string]string, result any) (*resty.Response, error) {
	c.warmUp(ctx)

	resp, err := c.site.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(result).
		Get(path)

	if err != nil {
		return nil, fetcher.ClassifyTransportError(err)
	}
	switch status := resp.StatusCode(); {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		c.expire()
		return nil, fetcher.NewSessionError(status)
	case !resp.IsSuccess():
		return nil, fetcher.ClassifyHTTPError(status)
	}
	return resp, nil
}

// expire forces the next call to warm up again
func (c *Client) expire() {
	c.mu.Lock()
	c.warmed = false
	c.mu.Unlock()
}
