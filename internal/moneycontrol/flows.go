// Package moneycontrol reads the FII/DII activity table published on
// Moneycontrol. It backs up the exchange API for institutional flows.
package moneycontrol

import (
	"context"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"resty.dev/v3"

	"marketpulse/internal/fetcher"
	"marketpulse/internal/model"
)

const (
	// Source is the name this adapter answers to in the category table
	Source = "moneycontrol"

	// DefaultBaseURL is the Moneycontrol website
	DefaultBaseURL = "https://www.moneycontrol.com"

	activityPath = "/stocks/marketstats/fii_dii_activity/index.php"
	dateLayout   = "02-Jan-2006"
)

// tableClasses mark the tables that carry the activity rows
var tableClasses = []string{"tbldata14", "mctable1"}

// Client scrapes the activity page
type Client struct {
	client *resty.Client
	now    func() time.Time
}

// NewClient creates a scraper against baseURL. now dates the snapshot, since
// the page does not label its rows with a parseable date.
func NewClient(baseURL string, now func() time.Time) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if now == nil {
		now = time.Now
	}
	return &Client{
		client: fetcher.NewHTTPClient(baseURL).SetHeader("Accept", "text/html"),
		now:    now,
	}
}

// Source names the client in the category table
func (c *Client) Source() string {
	return Source
}

// FIIDII returns the flows found in the page's activity tables
func (c *Client) FIIDII(ctx context.Context) (model.FlowSnapshot, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(activityPath)
	if err != nil {
		return model.FlowSnapshot{}, fetcher.ClassifyTransportError(err)
	}
	if !resp.IsSuccess() {
		return model.FlowSnapshot{}, fetcher.ClassifyHTTPError(resp.StatusCode())
	}

	doc, err := html.Parse(strings.NewReader(resp.String()))
	if err != nil {
		return model.FlowSnapshot{}, fetcher.NewValidationError("unparseable activity page: " + err.Error())
	}

	out := parseActivity(doc)
	if out.Empty() {
		return out, fetcher.NewNoDataError("fii_dii_activity")
	}
	out.Date = c.now().Format(dateLayout)
	return out, nil
}

// parseActivity scans every row of the activity tables with at least four
// cells. The first cell names the participant; the next three are buy, sell
// and net. A later matching row replaces an earlier one.
func parseActivity(doc *html.Node) model.FlowSnapshot {
	var out model.FlowSnapshot
	for _, table := range findAll(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Table && hasClass(n, tableClasses)
	}) {
		for _, row := range findAll(table, func(n *html.Node) bool { return n.DataAtom == atom.Tr }) {
			cells := findAll(row, func(n *html.Node) bool { return n.DataAtom == atom.Td || n.DataAtom == atom.Th })
			if len(cells) < 4 {
				continue
			}
			flow, err := model.ParseFlow(text(cells[1]), text(cells[2]), text(cells[3]))
			if err != nil {
				continue
			}
			out.Set(text(cells[0]), flow)
		}
	}
	return out
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && match(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

func hasClass(n *html.Node, classes []string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			for _, want := range classes {
				if c == want {
					return true
				}
			}
		}
	}
	return false
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
