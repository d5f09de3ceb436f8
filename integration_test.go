package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/config"
	"marketpulse/internal/fallback"
)

// upstreams fakes Yahoo, NSE and Etherscan and counts requests per path
type upstreams struct {
	yahoo, nse, etherscan *httptest.Server

	mu   sync.Mutex
	hits map[string]int
}

func (u *upstreams) hit(path string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.hits[path]++
}

func (u *upstreams) count(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[path]
}

// chartJSON builds a daily chart of n closes rising from start by one per day
func chartJSON(symbol string, start float64, n int) string {
	base := time.Now().AddDate(0, 0, -n).Unix()
	ts := make([]string, n)
	closes := make([]string, n)
	for i := range n {
		ts[i] = fmt.Sprint(base + int64(i)*86400)
		closes[i] = fmt.Sprint(start + float64(i))
	}
	return fmt.Sprintf(`{"chart": {"result": [{
		"meta": {"currency": "INR", "symbol": %q, "shortName": %q},
		"timestamp": [%s],
		"indicators": {"quote": [{"close": [%s]}]}
	}], "error": null}}`, symbol, symbol, strings.Join(ts, ","), strings.Join(closes, ","))
}

const nifty50CSV = "Company Name,Industry,Symbol,Series,ISIN Code\n" +
	"Reliance Industries Ltd.,Energy,RELIANCE,EQ,INE002A01018\n" +
	"HDFC Bank Ltd.,Financial Services,HDFCBANK,EQ,INE040A01034\n" +
	"Infosys Ltd.,Information Technology,INFY,EQ,INE009A01021\n" +
	"ICICI Bank Ltd.,Financial Services,ICICIBANK,EQ,INE090A01021\n" +
	"Tata Consultancy Services Ltd.,Information Technology,TCS,EQ,INE467B01029\n" +
	"Bharti Airtel Ltd.,Telecommunication,BHARTIARTL,EQ,INE397D01024\n"

func newUpstreams(t *testing.T) *upstreams {
	t.Helper()
	u := &upstreams{hits: map[string]int{}}

	charts := map[string]string{
		"/v8/finance/chart/GOOD.NS": chartJSON("GOOD.NS", 100, 100),
		"/v8/finance/chart/^NSEI":   chartJSON("^NSEI", 24000, 5),
		"/v8/finance/chart/GC=F":    chartJSON("GC=F", 3300, 5),
	}
	u.yahoo = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hit(r.URL.Path)
		body, ok := charts[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(u.yahoo.Close)

	u.nse = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hit(r.URL.Path)
		if r.URL.Path == "/" {
			http.SetCookie(w, &http.Cookie{Name: "nsit", Value: "warm", Path: "/"})
			return
		}
		if _, err := r.Cookie("nsit"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.URL.Path == "/content/indices/ind_nifty50list.csv":
			w.Header().Set("Content-Type", "text/csv")
			w.Write([]byte(nifty50CSV))
		case r.URL.Path == "/api/quote-equity" && r.URL.Query().Get("symbol") == "FALLBACK":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"info": {"symbol": "FALLBACK"}, "priceInfo": {"lastPrice": 512.25, "pChange": 1.5, "previousClose": 504.7}}`))
		case r.URL.Path == "/api/allIndices":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data": [{"index": "NIFTY BANK", "indexSymbol": "NIFTY BANK", "last": 55120.1, "percentChange": -0.42}]}`))
		case r.URL.Path == "/api/fiidiiTradeReact":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"category": "FII/FPI *", "date": "17-Oct-2025", "buyValue": "11542.50", "sellValue": "11850.04", "netValue": "-307.54"},
				{"category": "DII **", "date": "17-Oct-2025", "buyValue": "16360.09", "sellValue": "12046.71", "netValue": "4313.38"}]`))
		case r.URL.Path == "/api/holiday-master":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"CM": [{"tradingDate": "26-Jan-2026", "weekDay": "Monday", "description": "Republic Day"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(u.nse.Close)

	u.etherscan = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hit("etherscan")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "1", "message": "OK", "result": {"ethusd": "3812.337"}}`))
	}))
	t.Cleanup(u.etherscan.Close)

	return u
}

func testConfig(t *testing.T, u *upstreams) *config.Config {
	t.Helper()
	return &config.Config{
		CachePath:     filepath.Join(t.TempDir(), "market_cache.json"),
		LogLevel:      "error",
		Timezone:      config.DefaultTimezone,
		MaxWorkers:    3,
		WorkerTimeout: 5 * time.Second,
		RetryDelay:    -1,
		RateLimits: map[string]float64{
			"yfinance": 0, "nse_api": 0, "nse_csv": 0, "alphavantage": 0, "etherscan": 0,
		},
		EtherscanAPIKey:  "test_etherscan_key",
		YahooBaseURL:     u.yahoo.URL,
		NSEBaseURL:       u.nse.URL,
		NSEArchiveURL:    u.nse.URL,
		EtherscanBaseURL: u.etherscan.URL,
		// no key configured, so this source always fails validation
		AlphavantageBaseURL: "http://127.0.0.1:1",
		MoneycontrolBaseURL: "http://127.0.0.1:1",
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := newApp(cfg, logger, io.Discard)
	require.NoError(t, err)
	return a
}

// run executes one command line against a and returns what it printed
func run(t *testing.T, a *app, args ...string) (string, subcommands.ExitStatus) {
	t.Helper()
	var out bytes.Buffer
	a.out = &out

	fs := flag.NewFlagSet("marketpulse", flag.ContinueOnError)
	cdr := subcommands.NewCommander(fs, "marketpulse")
	register(cdr, a)
	require.NoError(t, fs.Parse(args))

	status := cdr.Execute(context.Background())
	return out.String(), status
}

func TestIntegration_ResolveWithFallback(t *testing.T) {
	u := newUpstreams(t)
	a := newTestApp(t, testConfig(t, u))

	out, status := run(t, a, "resolve", "GOOD.NS", "FALLBACK.NS", "MISSING.NS")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "GOOD.NS")
	assert.Contains(t, out, "199.00")
	assert.Contains(t, out, "yfinance")
	assert.Contains(t, out, "FALLBACK.NS")
	assert.Contains(t, out, "512.25")
	assert.Contains(t, out, "nse_api")
	assert.Contains(t, out, "No data for 1 of 3 symbols: MISSING.NS")

	// GOOD.NS is served from the cache the second time
	before := u.count("/v8/finance/chart/GOOD.NS")
	_, status = run(t, a, "resolve", "GOOD.NS")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, before, u.count("/v8/finance/chart/GOOD.NS"))

	_, status = run(t, a, "resolve", "-no-cache", "GOOD.NS")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, before+1, u.count("/v8/finance/chart/GOOD.NS"))

	out, _ = run(t, a, "stats")
	assert.Contains(t, out, "Total: 2  Valid: 2  Expired: 0")
}

func TestIntegration_ResolveNothingFound(t *testing.T) {
	u := newUpstreams(t)
	a := newTestApp(t, testConfig(t, u))

	out, status := run(t, a, "resolve", "MISSING.NS")
	assert.Equal(t, subcommands.ExitFailure, status)
	assert.Contains(t, out, "No data for 1 of 1 symbols")

	_, status = run(t, a, "resolve")
	assert.Equal(t, subcommands.ExitUsageError, status)
}

func TestIntegration_IndicesAndCommodities(t *testing.T) {
	u := newUpstreams(t)
	a := newTestApp(t, testConfig(t, u))

	out, status := run(t, a, "indices")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "Nifty 50")
	assert.Contains(t, out, "Bank Nifty")
	assert.Contains(t, out, "55120.10")
	assert.Contains(t, out, "-0.42%")
	assert.NotContains(t, out, "Sensex")

	out, status = run(t, a, "commodities")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "Gold")
	assert.Contains(t, out, "Ethereum")
	assert.Contains(t, out, "3812.34 USD")
	assert.Contains(t, out, "etherscan")
	assert.NotContains(t, out, "Bitcoin")
}

func TestIntegration_ListAndCacheAdmin(t *testing.T) {
	u := newUpstreams(t)
	a := newTestApp(t, testConfig(t, u))

	out, status := run(t, a, "list", "Nifty", "50")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "Fetched 6 stocks from Nifty 50")
	assert.Contains(t, out, "BHARTIARTL.NS")

	out, status = run(t, a, "list")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "Nifty Private Bank")

	run(t, a, "resolve", "GOOD.NS")
	out, _ = run(t, a, "stats", "-keys")
	assert.Contains(t, out, "Total: 1")
	assert.Contains(t, out, "GOOD.NS")

	out, status = run(t, a, "clear")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "Cache cleared")

	out, _ = run(t, a, "stats")
	assert.Contains(t, out, "Total: 0")
}

func TestIntegration_StatusAndHolidays(t *testing.T) {
	u := newUpstreams(t)
	a := newTestApp(t, testConfig(t, u))

	out, status := run(t, a, "status")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "Session: ")
	assert.Contains(t, out, "Cache lifetime: ")

	out, status = run(t, a, "holidays")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.NotEmpty(t, out)

	out, status = run(t, a, "holidays", "-exchange")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "2026-01-26 Mon  Republic Day")
}

func TestIntegration_Migrate(t *testing.T) {
	u := newUpstreams(t)
	cfg := testConfig(t, u)
	a := newTestApp(t, cfg)

	// legacy files share the directory with the new store
	dir := filepath.Dir(cfg.CachePath)
	legacy := `{"ticker": "RELIANCE.NS", "data": {"Stock Name": "RELIANCE", "Current Price": "₹2,890.46", "Today %": 0.98}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "RELIANCE_NS.json"), []byte(legacy), 0o644))
	run(t, a, "resolve", "GOOD.NS")

	out, status := run(t, a, "migrate", "-dir", dir, "-delete")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "Found: 1  Migrated: 1  Skipped: 0  Failed: 0  Deleted: 1")

	out, _ = run(t, a, "stats", "-keys")
	assert.Contains(t, out, "Total: 2")
	assert.Contains(t, out, "RELIANCE.NS")

	_, err := os.Stat(cfg.CachePath)
	assert.NoError(t, err, "the store itself is never treated as a legacy file")
}

func TestIntegration_ReloadDisablesCategory(t *testing.T) {
	u := newUpstreams(t)
	cfg := testConfig(t, u)
	a := newTestApp(t, cfg)

	_, status := run(t, a, "resolve", "-no-cache", "GOOD.NS")
	require.Equal(t, subcommands.ExitSuccess, status)

	changed := *cfg
	changed.DisabledCategories = []string{fallback.CategoryStockPrices}
	a.reload(&changed)

	before := u.count("/v8/finance/chart/GOOD.NS")
	_, status = run(t, a, "resolve", "-no-cache", "GOOD.NS")
	assert.Equal(t, subcommands.ExitFailure, status)
	assert.Equal(t, before, u.count("/v8/finance/chart/GOOD.NS"), "a disabled category makes no requests")
}

func TestIntegration_FIIDII(t *testing.T) {
	u := newUpstreams(t)
	a := newTestApp(t, testConfig(t, u))

	out, status := run(t, a, "fiidii")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "Date: 17-Oct-2025  Source: nse_api")
	assert.Contains(t, out, "-307.54")
	assert.Contains(t, out, "4313.38")
	assert.Equal(t, 1, u.count("/api/fiidiiTradeReact"))

	out, status = run(t, a, "fiidii")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "Source: nse_api")
	assert.Equal(t, 1, u.count("/api/fiidiiTradeReact"), "served from cache")

	out, _ = run(t, a, "stats", "-keys")
	assert.Contains(t, out, "flows:FII_DII")

	_, status = run(t, a, "fiidii", "-no-cache")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, 2, u.count("/api/fiidiiTradeReact"))
}
