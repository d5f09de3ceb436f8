// Package migrate converts the older one-file-per-ticker cache layout into
// entries of the durable store.
package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"

	"marketpulse/internal/cachestore"
	"marketpulse/internal/model"
)

// Source tags snapshots recovered from legacy files
const Source = "legacy_cache"

// Importer accepts entries with their original fetch times and reports how
// many it kept
type Importer interface {
	Import(ctx context.Context, entries []cachestore.Entry) (int, error)
}

// Options configures a migration run
type Options struct {
	// Dir holds the legacy <TICKER_WITH_UNDERSCORES>.json files
	Dir string
	// Fs defaults to the OS filesystem
	Fs afero.Fs
	// Exclude lists base names in Dir that are not legacy files (the new store, say)
	Exclude []string
	// DeleteOld removes each legacy file once its entry has been imported
	DeleteOld bool

	Logger *slog.Logger
}

// Report summarises a run
type Report struct {
	Found    int
	Migrated int
	// Skipped counts parsed files older than what the store already holds
	Skipped int
	Deleted int
	Failed  []string
}

type legacyFile struct {
	Ticker string          `json:"ticker"`
	Data   json.RawMessage `json:"data"`
}

type legacyRecord struct {
	Name        string              `json:"Stock Name"`
	Price       json.RawMessage     `json:"Current Price"`
	Today       decimal.NullDecimal `json:"Today %"`
	Week        decimal.NullDecimal `json:"1 Week %"`
	Month       decimal.NullDecimal `json:"1 Month %"`
	TwoMonths   decimal.NullDecimal `json:"2 Months %"`
	ThreeMonths decimal.NullDecimal `json:"3 Months %"`
}

// Run imports every legacy file in Dir. Files that cannot be parsed are
// reported in Failed and left in place. The file's modification time becomes
// the entry's fetch time, so stale data stays stale after conversion.
func Run(ctx context.Context, store Importer, opts Options) (Report, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("component", "migrate", "dir", opts.Dir)

	var report Report
	exists, err := afero.DirExists(opts.Fs, opts.Dir)
	if err != nil {
		return report, fmt.Errorf("failed to stat %s: %w", opts.Dir, err)
	}
	if !exists {
		logger.Info("no legacy cache directory, nothing to migrate")
		return report, nil
	}

	infos, err := afero.ReadDir(opts.Fs, opts.Dir)
	if err != nil {
		return report, fmt.Errorf("failed to list %s: %w", opts.Dir, err)
	}

	var entries []cachestore.Entry
	var migrated []string
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || !strings.HasSuffix(name, ".json") || slices.Contains(opts.Exclude, name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Found++

		file := filepath.Join(opts.Dir, name)
		entry, err := readEntry(opts.Fs, file, name)
		if err != nil {
			logger.Warn("skipping legacy file", "file", name, "error", err)
			report.Failed = append(report.Failed, name)
			continue
		}
		entry.FetchedAt = info.ModTime()
		entries = append(entries, entry)
		migrated = append(migrated, file)
	}

	written, err := store.Import(ctx, entries)
	if err != nil {
		return report, fmt.Errorf("failed to import legacy entries: %w", err)
	}
	report.Migrated = written
	report.Skipped = len(entries) - written
	logger.Info("legacy cache imported",
		"found", report.Found,
		"migrated", report.Migrated,
		"skipped", report.Skipped,
		"failed", len(report.Failed))

	if opts.DeleteOld {
		for _, file := range migrated {
			if err := opts.Fs.Remove(file); err != nil {
				logger.Warn("failed to delete legacy file", "file", file, "error", err)
				continue
			}
			report.Deleted++
		}
	}
	return report, nil
}

func readEntry(fs afero.Fs, file, name string) (cachestore.Entry, error) {
	raw, err := afero.ReadFile(fs, file)
	if err != nil {
		return cachestore.Entry{}, err
	}

	var lf legacyFile
	if err := json.Unmarshal(raw, &lf); err != nil {
		return cachestore.Entry{}, fmt.Errorf("invalid JSON: %w", err)
	}
	ticker := lf.Ticker
	if ticker == "" {
		ticker = strings.ReplaceAll(strings.TrimSuffix(name, ".json"), "_", ".")
	}

	// Some files hold the record at the top level
	data := lf.Data
	if len(data) == 0 {
		data = raw
	}
	var rec legacyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return cachestore.Entry{}, fmt.Errorf("invalid record: %w", err)
	}
	if len(rec.Price) == 0 {
		return cachestore.Entry{}, errors.New("record has no price")
	}
	price, err := parsePrice(rec.Price)
	if err != nil {
		return cachestore.Entry{}, err
	}

	displayName := rec.Name
	if displayName == "" {
		displayName = model.DisplayName(ticker)
	}
	snap := model.NewStock(ticker, Source, model.StockPerformance{
		Symbol:      ticker,
		Name:        displayName,
		Price:       price,
		Currency:    "INR",
		Today:       rec.Today,
		Week:        rec.Week,
		Month:       rec.Month,
		TwoMonths:   rec.TwoMonths,
		ThreeMonths: rec.ThreeMonths,
	})
	return cachestore.Entry{Key: ticker, Payload: snap}, nil
}

var priceCleaner = strings.NewReplacer("₹", "", ",", "", " ", "")

// parsePrice reads "₹1,234.56" or a bare number
func parsePrice(raw json.RawMessage) (decimal.Decimal, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		d, err := decimal.NewFromString(priceCleaner.Replace(s))
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("invalid price %q", s)
		}
		return d, nil
	}

	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid price %s", raw)
	}
	return d, nil
}
