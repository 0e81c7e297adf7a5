// Package price implements the historical/current price API client used by
// the enrichment engine.
package price

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/htngan/walletfeed/internal/infra/rpc"
	"golang.org/x/sync/errgroup"
)

// dateLayout is the calendar-date wire format of the history endpoint (UTC).
const dateLayout = "02-01-2006"

// FormatDate renders the UTC calendar date of t in the provider's format.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// ParseDate is the inverse of FormatDate.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

// Result is the per-asset outcome of a batched historical query.
// Assets fail independently; one bad asset never fails the batch.
type Result struct {
	Price float64
	Err   error
}

// Source is the price surface the enrichment engine consumes.
type Source interface {
	CurrentPrice(ctx context.Context, id string) (float64, error)
	CurrentPrices(ctx context.Context, ids []string) (map[string]float64, error)
	HistoricalPrice(ctx context.Context, id, date string) (float64, error)
	HistoricalBatch(ctx context.Context, date string, ids []string) map[string]Result
}

// Client implements Source against a CoinGecko-compatible REST API.
type Client struct {
	provider rpc.Provider
}

// NewClient creates a price client. The provider's endpoint is the API base
// URL (e.g. https://api.coingecko.com/api/v3).
func NewClient(provider rpc.Provider) *Client {
	return &Client{provider: provider}
}

// CurrentPrice returns the current USD price for one asset identifier.
func (c *Client) CurrentPrice(ctx context.Context, id string) (float64, error) {
	prices, err := c.CurrentPrices(ctx, []string{id})
	if err != nil {
		return 0, err
	}
	p, ok := prices[id]
	if !ok {
		return 0, fmt.Errorf("no price for %s", id)
	}
	return p, nil
}

// CurrentPrices returns current USD prices for multiple asset identifiers in
// one call.
func (c *Client) CurrentPrices(ctx context.Context, ids []string) (map[string]float64, error) {
	op := rpc.NewGetOperation("simple/price", map[string]string{
		"ids":           strings.Join(ids, ","),
		"vs_currencies": "usd",
	})
	result, err := c.provider.Execute(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("fetch current prices: %w", err)
	}

	data, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid price response format")
	}

	prices := make(map[string]float64, len(ids))
	for _, id := range ids {
		entry, ok := data[id].(map[string]any)
		if !ok {
			continue
		}
		if usd, ok := entry["usd"].(float64); ok {
			prices[id] = usd
		}
	}
	return prices, nil
}

// HistoricalPrice returns the USD price of one asset on the given calendar
// date (FormatDate format).
func (c *Client) HistoricalPrice(ctx context.Context, id, date string) (float64, error) {
	op := rpc.NewGetOperation(fmt.Sprintf("coins/%s/history", id), map[string]string{
		"date":         date,
		"localization": "false",
	})
	result, err := c.provider.Execute(ctx, op)
	if err != nil {
		return 0, fmt.Errorf("fetch history for %s: %w", id, err)
	}

	data, ok := result.(map[string]any)
	if !ok {
		return 0, fmt.Errorf("invalid history response format")
	}
	marketData, ok := data["market_data"].(map[string]any)
	if !ok {
		return 0, fmt.Errorf("no market data for %s on %s", id, date)
	}
	currentPrice, ok := marketData["current_price"].(map[string]any)
	if !ok {
		return 0, fmt.Errorf("no price data for %s on %s", id, date)
	}
	usd, ok := currentPrice["usd"].(float64)
	if !ok {
		return 0, fmt.Errorf("no usd price for %s on %s", id, date)
	}
	return usd, nil
}

// HistoricalBatch resolves all assets needed for one date in a single
// batched query. Per-asset failures are reported in the result map and do
// not abort the batch.
func (c *Client) HistoricalBatch(ctx context.Context, date string, ids []string) map[string]Result {
	results := make(map[string]Result, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			p, err := c.HistoricalPrice(gctx, id, date)
			mu.Lock()
			results[id] = Result{Price: p, Err: err}
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}
