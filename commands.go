package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"marketpulse/internal/freshness"
	"marketpulse/internal/migrate"
	"marketpulse/internal/model"
)

// register adds every command to cdr. Commands read the app at Execute time,
// so it may be filled in after registration.
func register(cdr *subcommands.Commander, a *app) {
	cdr.Register(cdr.HelpCommand(), "")
	cdr.Register(cdr.FlagsCommand(), "")
	cdr.Register(&resolveCmd{app: a}, "market")
	cdr.Register(&listCmd{app: a}, "market")
	cdr.Register(&indicesCmd{app: a}, "market")
	cdr.Register(&commoditiesCmd{app: a}, "market")
	cdr.Register(&fiidiiCmd{app: a}, "market")
	cdr.Register(&statusCmd{app: a}, "market")
	cdr.Register(&holidaysCmd{app: a}, "market")
	cdr.Register(&statsCmd{app: a}, "cache")
	cdr.Register(&clearCmd{app: a}, "cache")
	cdr.Register(&migrateCmd{app: a}, "cache")
}

func pct(d decimal.NullDecimal) string {
	if !d.Valid {
		return "N/A"
	}
	return d.Decimal.StringFixed(2) + "%"
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, err)
	return subcommands.ExitFailure
}

// resolve

type resolveCmd struct {
	*app
	noCache bool
	list    string
}

func (*resolveCmd) Name() string     { return "resolve" }
func (*resolveCmd) Synopsis() string { return "show price and trailing returns for stocks" }
func (*resolveCmd) Usage() string {
	return `resolve [-no-cache] [-list <name>] [SYMBOL...]

  Prints price and 1 day, 1 week, 1, 2 and 3 month returns. Fresh cached
  values are served without contacting any source.
`
}

func (c *resolveCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.noCache, "no-cache", false, "Ignore cached values and fetch every symbol.")
	f.StringVar(&c.list, "list", "", "Resolve the members of a named stock list.")
}

func (c *resolveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbols := f.Args()
	if c.list != "" {
		members, status := c.svc.GetStockList(ctx, c.list)
		fmt.Fprintln(c.out, status)
		symbols = append(symbols, members...)
	}
	if len(symbols) == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	snaps, missing := c.svc.ResolvePerformance(ctx, symbols, !c.noCache)

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tNAME\tPRICE\tTODAY\t1W\t1M\t2M\t3M\tSOURCE")
	for _, s := range snaps {
		p := s.Stock
		if p == nil {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Key, p.Name, p.Price.StringFixed(2),
			pct(p.Today), pct(p.Week), pct(p.Month), pct(p.TwoMonths), pct(p.ThreeMonths), s.Source)
	}
	w.Flush()

	if len(missing) > 0 {
		fmt.Fprintf(c.out, "No data for %d of %d symbols: %s\n", len(missing), len(symbols), strings.Join(missing, ", "))
	}
	if len(snaps) == 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// list

type listCmd struct {
	*app
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "show the members of an index stock list" }
func (*listCmd) Usage() string {
	return `list [NAME]

  Without a name, prints the lists that can be fetched.
`
}

func (*listCmd) SetFlags(*flag.FlagSet) {}

func (c *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		for _, name := range c.svc.StockLists() {
			fmt.Fprintln(c.out, name)
		}
		return subcommands.ExitSuccess
	}

	name := strings.Join(f.Args(), " ")
	symbols, status := c.svc.GetStockList(ctx, name)
	fmt.Fprintln(c.out, status)
	for _, s := range symbols {
		fmt.Fprintln(c.out, s)
	}
	if len(symbols) == 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// indices

type indicesCmd struct {
	*app
}

func (*indicesCmd) Name() string           { return "indices" }
func (*indicesCmd) Synopsis() string       { return "show the dashboard market indices" }
func (*indicesCmd) Usage() string          { return "indices\n" }
func (*indicesCmd) SetFlags(*flag.FlagSet) {}

func (c *indicesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	snaps := c.svc.IndexPerformance(ctx)

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tLEVEL\tCHANGE\tSOURCE")
	for _, s := range snaps {
		if s.Index == nil {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Index.Name, s.Index.Price.StringFixed(2), pct(s.Index.Change), s.Source)
	}
	w.Flush()

	if len(snaps) == 0 {
		fmt.Fprintln(c.out, "No index data available")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// commodities

type commoditiesCmd struct {
	*app
}

func (*commoditiesCmd) Name() string           { return "commodities" }
func (*commoditiesCmd) Synopsis() string       { return "show commodity, crypto and currency prices" }
func (*commoditiesCmd) Usage() string          { return "commodities\n" }
func (*commoditiesCmd) SetFlags(*flag.FlagSet) {}

func (c *commoditiesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	snaps := c.svc.Commodities(ctx)

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPRICE\tCHANGE\tSOURCE")
	for _, s := range snaps {
		cm := s.Commodity
		if cm == nil {
			continue
		}
		change := "N/A"
		if cm.Change.Valid {
			change = cm.Change.Decimal.StringFixed(2)
		}
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\n", cm.Name, cm.Price.StringFixed(2), cm.Currency, change, s.Source)
	}
	w.Flush()

	if len(snaps) == 0 {
		fmt.Fprintln(c.out, "No commodity data available")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// fiidii

type fiidiiCmd struct {
	*app
	noCache bool
}

func (*fiidiiCmd) Name() string     { return "fiidii" }
func (*fiidiiCmd) Synopsis() string { return "show the latest FII/DII cash-market flows" }
func (*fiidiiCmd) Usage() string {
	return `fiidii [-no-cache]

  Prints buy, sell and net values in crore rupees for foreign (FII/FPI)
  and domestic (DII) institutions.
`
}

func (c *fiidiiCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.noCache, "no-cache", false, "Ignore a cached copy and fetch again.")
}

func (c *fiidiiCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	flows, err := c.svc.FIIDII(ctx, !c.noCache)
	if err != nil {
		return fail(fmt.Errorf("no FII/DII data available: %w", err))
	}

	fmt.Fprintf(c.out, "Date: %s  Source: %s\n", flows.Date, flows.Source)
	if flows.Stale {
		fmt.Fprintf(c.out, "Sources unavailable, showing data fetched %s\n", flows.FetchedAt.In(c.clock.Location()).Format("2006-01-02 15:04"))
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tBUY\tSELL\tNET")
	for _, row := range []struct {
		label string
		flow  *model.Flow
	}{{"FII/FPI", flows.FII}, {"DII", flows.DII}} {
		if row.flow == nil {
			fmt.Fprintf(w, "%s\tN/A\tN/A\tN/A\n", row.label)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.label,
			row.flow.Buy.StringFixed(2), row.flow.Sell.StringFixed(2), row.flow.Net.StringFixed(2))
	}
	w.Flush()
	return subcommands.ExitSuccess
}

// status

type statusCmd struct {
	*app
}

func (*statusCmd) Name() string           { return "status" }
func (*statusCmd) Synopsis() string       { return "show the market session and cache lifetime in force" }
func (*statusCmd) Usage() string          { return "status\n" }
func (*statusCmd) SetFlags(*flag.FlagSet) {}

func (c *statusCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	st := c.svc.Status()
	fmt.Fprintf(c.out, "Session: %s\n", st.Session())
	fmt.Fprintf(c.out, "Cache lifetime: %s\n", freshness.TTL(st.Session()))
	fmt.Fprintln(c.out, c.svc.CacheInfo())
	if h, ok := c.svc.NextHoliday(); ok {
		fmt.Fprintf(c.out, "Next holiday: %s %s\n", h.Date.Format("Mon 02 Jan 2006"), h.Name)
	}
	return subcommands.ExitSuccess
}

// holidays

type holidaysCmd struct {
	*app
	exchange bool
}

func (*holidaysCmd) Name() string     { return "holidays" }
func (*holidaysCmd) Synopsis() string { return "list trading holidays" }
func (*holidaysCmd) Usage() string {
	return `holidays [-exchange]

  Prints the configured holiday calendar, or with -exchange the calendar
  currently published by NSE.
`
}

func (c *holidaysCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.exchange, "exchange", false, "Fetch the calendar published by the exchange.")
}

func (c *holidaysCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	holidays := c.clock.Holidays()
	if c.exchange {
		var err error
		if holidays, err = c.nse.Holidays(ctx, c.clock.Location()); err != nil {
			return fail(fmt.Errorf("failed to fetch exchange holidays: %w", err))
		}
	}
	for _, h := range holidays {
		fmt.Fprintf(c.out, "%s  %s\n", h.Date.Format("2006-01-02 Mon"), h.Name)
	}
	return subcommands.ExitSuccess
}

// stats

type statsCmd struct {
	*app
	keys bool
}

func (*statsCmd) Name() string     { return "stats" }
func (*statsCmd) Synopsis() string { return "count cached entries by freshness" }
func (*statsCmd) Usage() string    { return "stats [-keys]\n" }

func (c *statsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.keys, "keys", false, "Also print every cached key.")
}

func (c *statsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	stats := c.svc.CacheStats(ctx)
	fmt.Fprintf(c.out, "Cache: %s\n", c.store.Path())
	fmt.Fprintf(c.out, "Total: %d  Valid: %d  Expired: %d\n", stats.Total, stats.Valid, stats.Expired)
	fmt.Fprintln(c.out, c.svc.CacheInfo())
	if c.keys {
		for _, k := range c.store.Keys(ctx) {
			fmt.Fprintln(c.out, k)
		}
	}
	return subcommands.ExitSuccess
}

// clear

type clearCmd struct {
	*app
}

func (*clearCmd) Name() string           { return "clear" }
func (*clearCmd) Synopsis() string       { return "delete every cached entry" }
func (*clearCmd) Usage() string          { return "clear\n" }
func (*clearCmd) SetFlags(*flag.FlagSet) {}

func (c *clearCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.svc.CacheClear(ctx); err != nil {
		return fail(fmt.Errorf("failed to clear cache: %w", err))
	}
	fmt.Fprintln(c.out, "Cache cleared")
	return subcommands.ExitSuccess
}

// migrate

type migrateCmd struct {
	*app
	dir       string
	deleteOld bool
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "import a legacy per-ticker JSON cache directory" }
func (*migrateCmd) Usage() string {
	return `migrate [-dir <path>] [-delete]

  Each <TICKER>.json file becomes a cache entry dated by the file's
  modification time. Files that cannot be read are reported and kept.
`
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dir, "dir", "cache", "Directory holding the legacy files.")
	f.BoolVar(&c.deleteOld, "delete", false, "Delete legacy files once imported.")
}

func (c *migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var exclude []string
	if sameDir(c.dir, filepath.Dir(c.store.Path())) {
		exclude = append(exclude, filepath.Base(c.store.Path()))
	}

	report, err := migrate.Run(ctx, c.store, migrate.Options{
		Dir:       c.dir,
		Exclude:   exclude,
		DeleteOld: c.deleteOld,
		Logger:    c.logger,
	})
	if err != nil {
		return fail(err)
	}

	fmt.Fprintf(c.out, "Found: %d  Migrated: %d  Skipped: %d  Failed: %d  Deleted: %d\n",
		report.Found, report.Migrated, report.Skipped, len(report.Failed), report.Deleted)
	for _, name := range report.Failed {
		fmt.Fprintf(c.out, "  failed: %s\n", name)
	}
	return subcommands.ExitSuccess
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
