package migrate

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/cachestore"
	"marketpulse/internal/model"
	"marketpulse/internal/testutil"
)

const dir = "cache"

func writeLegacy(t *testing.T, fs afero.Fs, name, body string, mtime time.Time) {
	t.Helper()
	file := filepath.Join(dir, name)
	require.NoError(t, afero.WriteFile(fs, file, []byte(body), 0o644))
	require.NoError(t, fs.Chtimes(file, mtime, mtime))
}

func TestRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	recent := testutil.MarketOpen.Add(-2 * time.Minute)
	old := testutil.MarketOpen.Add(-2 * time.Hour)

	writeLegacy(t, fs, "RELIANCE_NS.json", `{
		"ticker": "RELIANCE.NS",
		"timestamp": "2025-06-03T10:58:00",
		"data": {
			"Stock Name": "RELIANCE",
			"Current Price": "₹2,890.46",
			"Today %": 0.98,
			"1 Week %": -1.2,
			"1 Month %": 3.4,
			"2 Months %": 5.55,
			"3 Months %": null
		}
	}`, recent)
	// no ticker field and the record at the top level
	writeLegacy(t, fs, "TCS_NS.json", `{"Stock Name": "TCS", "Current Price": 3412.5, "Today %": -0.3}`, old)
	writeLegacy(t, fs, "BROKEN_NS.json", `{"data": `, recent)
	writeLegacy(t, fs, "NOPRICE_NS.json", `{"data": {"Stock Name": "NOPRICE"}}`, recent)
	writeLegacy(t, fs, "market_cache.json", `{"version": 2}`, recent)
	writeLegacy(t, fs, "notes.txt", "ignore me", recent)
	require.NoError(t, fs.MkdirAll(filepath.Join(dir, "nested.json"), 0o755))

	store := testutil.NewStore(t, nil)
	ctx := context.Background()

	report, err := Run(ctx, store, Options{
		Dir:       dir,
		Fs:        fs,
		Exclude:   []string{"market_cache.json"},
		DeleteOld: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Found)
	assert.Equal(t, 2, report.Migrated)
	assert.Zero(t, report.Skipped)
	assert.Equal(t, 2, report.Deleted)
	assert.ElementsMatch(t, []string{"BROKEN_NS.json", "NOPRICE_NS.json"}, report.Failed)

	e, ok := store.Get(ctx, "RELIANCE.NS")
	require.True(t, ok)
	assert.True(t, e.FetchedAt.Equal(recent))
	assert.Equal(t, model.KindStock, e.Payload.Kind)
	assert.Equal(t, Source, e.Payload.Source)
	p := e.Payload.Stock
	assert.Equal(t, "RELIANCE", p.Name)
	assert.Equal(t, "2890.46", p.Price.String())
	assert.Equal(t, "0.98", p.Today.Decimal.String())
	assert.Equal(t, "-1.2", p.Week.Decimal.String())
	assert.True(t, p.TwoMonths.Valid)
	assert.False(t, p.ThreeMonths.Valid)

	e, ok = store.Get(ctx, "TCS.NS")
	require.True(t, ok)
	assert.Equal(t, "3412.5", e.Payload.Stock.Price.String())
	assert.Equal(t, "TCS", e.Payload.Stock.Name)

	// the two-hour-old file arrives already stale
	hits, misses := store.GetMany(ctx, []string{"RELIANCE.NS", "TCS.NS"})
	require.Len(t, hits, 1)
	assert.Equal(t, "RELIANCE.NS", hits[0].Key)
	assert.Equal(t, []string{"TCS.NS"}, misses)

	for name, kept := range map[string]bool{
		"RELIANCE_NS.json":  false,
		"TCS_NS.json":       false,
		"BROKEN_NS.json":    true,
		"NOPRICE_NS.json":   true,
		"market_cache.json": true,
	} {
		exists, err := afero.Exists(fs, filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, kept, exists, name)
	}
}

func TestRun_KeepsFilesByDefault(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeLegacy(t, fs, "INFY_NS.json", `{"data": {"Current Price": "₹1562.35"}}`, testutil.MarketOpen)

	store := testutil.NewStore(t, nil)
	report, err := Run(context.Background(), store, Options{Dir: dir, Fs: fs})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Migrated)
	assert.Zero(t, report.Deleted)

	exists, err := afero.Exists(fs, filepath.Join(dir, "INFY_NS.json"))
	require.NoError(t, err)
	assert.True(t, exists)

	e, ok := store.Get(context.Background(), "INFY.NS")
	require.True(t, ok)
	assert.Equal(t, "INFY", e.Payload.Stock.Name, "name falls back to the ticker")
}

func TestRun_DoesNotOverwriteLiveData(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeLegacy(t, fs, "INFY_NS.json", `{"data": {"Current Price": "₹1400.00"}}`, testutil.MarketOpen.Add(-72*time.Hour))
	writeLegacy(t, fs, "TCS_NS.json", `{"data": {"Current Price": "₹3400.00"}}`, testutil.MarketOpen.Add(-72*time.Hour))

	store := testutil.NewStore(t, nil)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "INFY.NS", testutil.Stock("INFY.NS", "1562.35")))

	report, err := Run(ctx, store, Options{Dir: dir, Fs: fs, DeleteOld: true})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Found)
	assert.Equal(t, 1, report.Migrated)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, report.Deleted, "superseded files are removed too")

	e, ok := store.Get(ctx, "INFY.NS")
	require.True(t, ok)
	assert.Equal(t, "1562.35", e.Payload.Stock.Price.String())
	assert.True(t, e.FetchedAt.Equal(testutil.MarketOpen))
}

func TestRun_MissingDir(t *testing.T) {
	store := testutil.NewStore(t, nil)
	report, err := Run(context.Background(), store, Options{Dir: "nowhere", Fs: afero.NewMemMapFs()})
	require.NoError(t, err)
	assert.Zero(t, report.Found)
}

type failingImporter struct{}

func (failingImporter) Import(ctx context.Context, entries []cachestore.Entry) (int, error) {
	return 0, errors.New("disk full")
}

func TestRun_ImportFailureKeepsFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeLegacy(t, fs, "SBIN_NS.json", `{"data": {"Current Price": "₹801.10"}}`, testutil.MarketOpen)

	_, err := Run(context.Background(), failingImporter{}, Options{Dir: dir, Fs: fs, DeleteOld: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	exists, err := afero.Exists(fs, filepath.Join(dir, "SBIN_NS.json"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: `"₹2,890.46"`, want: "2890.46"},
		{raw: `"1562.35"`, want: "1562.35"},
		{raw: `3412.5`, want: "3412.5"},
		{raw: `"N/A"`, wantErr: true},
		{raw: `null`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parsePrice([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
