package price

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htngan/walletfeed/internal/infra/rpc"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider := rpc.NewHTTPProvider("price", server.URL, 5*time.Second)
	provider.SetPace(0)
	return NewClient(provider)
}

func TestDateRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 5, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "05-03-2024", FormatDate(ts))

	parsed, err := ParseDate("05-03-2024")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), parsed)
}

func TestFormatDateUsesUTCDay(t *testing.T) {
	// 23:30 in UTC-5 is already the next calendar day in UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	ts := time.Date(2024, 3, 5, 23, 30, 0, 0, loc)
	assert.Equal(t, "06-03-2024", FormatDate(ts))
}

func TestCurrentPrices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "polkadot,kusama", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		_, _ = w.Write([]byte(`{"polkadot":{"usd":7.25},"kusama":{"usd":32.1}}`))
	})

	prices, err := c.CurrentPrices(context.Background(), []string{"polkadot", "kusama"})
	require.NoError(t, err)
	assert.Equal(t, 7.25, prices["polkadot"])
	assert.Equal(t, 32.1, prices["kusama"])
}

func TestCurrentPriceMissingAsset(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.CurrentPrice(context.Background(), "unknowncoin")
	require.Error(t, err)
}

func TestHistoricalPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/polkadot/history", r.URL.Path)
		assert.Equal(t, "05-03-2024", r.URL.Query().Get("date"))
		_, _ = w.Write([]byte(`{"market_data":{"current_price":{"usd":6.5}}}`))
	})

	p, err := c.HistoricalPrice(context.Background(), "polkadot", "05-03-2024")
	require.NoError(t, err)
	assert.Equal(t, 6.5, p)
}

func TestHistoricalPriceNoMarketData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Assets too young for the requested date come back bare.
		_, _ = w.Write([]byte(`{"id":"newcoin"}`))
	})

	_, err := c.HistoricalPrice(context.Background(), "newcoin", "05-03-2024")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no market data")
}

func TestHistoricalBatchFailsPerAsset(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/coins/badcoin/history" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"market_data":{"current_price":{"usd":2.0}}}`))
	})

	results := c.HistoricalBatch(context.Background(), "05-03-2024", []string{"polkadot", "badcoin", "kusama"})
	require.Len(t, results, 3)

	require.NoError(t, results["polkadot"].Err)
	assert.Equal(t, 2.0, results["polkadot"].Price)
	require.NoError(t, results["kusama"].Err)
	assert.Error(t, results["badcoin"].Err, "one bad asset must not fail the batch")
}

func TestHistoricalBatchCoversAllAssets(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"market_data":{"current_price":{"usd":1.0}}}`))
	})

	ids := make([]string, 10)
	for i := range ids {
		ids[i] = fmt.Sprintf("asset-%d", i)
	}

	results := c.HistoricalBatch(context.Background(), "05-03-2024", ids)
	assert.Len(t, results, len(ids))
}
