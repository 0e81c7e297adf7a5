// Package enrich assigns historical fiat value to canonical transactions.
//
// Records are grouped by (UTC calendar date, asset identifier) so the number
// of external price queries is bounded by distinct (date, asset) pairs, never
// by record count.
package enrich

import (
	"context"
	"math/big"

	logger "log/slog"

	"github.com/htngan/walletfeed/internal/core/domain"
	"github.com/htngan/walletfeed/internal/infra/price"
	rediscache "github.com/htngan/walletfeed/internal/infra/redis"
	"github.com/htngan/walletfeed/internal/pipeline/metrics"
)

// Engine resolves historical USD values for transactions.
type Engine struct {
	source   price.Source
	cache    *rediscache.Client
	networks []domain.Network
}

// New creates an engine. cache may be nil.
func New(source price.Source, cache *rediscache.Client, networks []domain.Network) *Engine {
	return &Engine{source: source, cache: cache, networks: networks}
}

// Enrich populates USDValue on every record whose asset has a known price
// identifier. Assets without an identifier and per-asset price failures are
// skipped silently; USDValue stays nil for those records.
func (e *Engine) Enrich(ctx context.Context, txs []*domain.Transaction) {
	values := e.resolve(ctx, txs)
	for i, v := range values {
		txs[i].USDValue = v
	}
}

// BatchCalculateUSDValues returns the USD value for each transaction as a
// parallel list of nullable values, without mutating the inputs.
func (e *Engine) BatchCalculateUSDValues(ctx context.Context, txs []*domain.Transaction) []*float64 {
	return e.resolve(ctx, txs)
}

// group is one (date, asset) bucket with the indexes of its records.
type group struct {
	indexes []int
}

func (e *Engine) resolve(ctx context.Context, txs []*domain.Transaction) []*float64 {
	values := make([]*float64, len(txs))

	// Group record indexes by date, then by price identifier.
	byDate := make(map[string]map[string]*group)
	for i, tx := range txs {
		asset, _ := e.assetFor(tx)
		if asset == "" {
			continue // no known price-provider identifier
		}
		date := price.FormatDate(tx.Timestamp)
		if byDate[date] == nil {
			byDate[date] = make(map[string]*group)
		}
		if byDate[date][asset] == nil {
			byDate[date][asset] = &group{}
		}
		byDate[date][asset].indexes = append(byDate[date][asset].indexes, i)
	}

	for date, assets := range byDate {
		prices := make(map[string]float64, len(assets))

		// Cache first, then one batched query for the remainder.
		var missing []string
		for asset := range assets {
			if p, ok := e.cache.GetPrice(ctx, asset, date); ok {
				prices[asset] = p
				metrics.PriceCacheHits.Inc()
				continue
			}
			missing = append(missing, asset)
		}

		if len(missing) > 0 {
			metrics.PriceBatchCalls.Inc()
			for asset, res := range e.source.HistoricalBatch(ctx, date, missing) {
				if res.Err != nil {
					logger.Warn("price lookup failed", "asset", asset, "date", date, "error", res.Err)
					continue
				}
				prices[asset] = res.Price
				e.cache.SetPrice(ctx, asset, date, res.Price)
			}
		}

		for asset, g := range assets {
			p, ok := prices[asset]
			if !ok {
				continue
			}
			for _, i := range g.indexes {
				_, decimals := e.assetFor(txs[i])
				if v := usdValue(txs[i].Value, decimals, p); v != nil {
					values[i] = v
				}
			}
		}
	}

	return values
}

// assetFor returns the price identifier and decimals for a record's asset.
// Token transfers carry no provider identifier and stay unpriced.
func (e *Engine) assetFor(tx *domain.Transaction) (string, int) {
	if tx.Type == domain.TxTypeTokenTransfer {
		return "", 0
	}
	n, ok := domain.FindNetwork(e.networks, tx.Network)
	if !ok {
		return "", 0
	}
	return n.PriceID, n.Decimals
}

// usdValue computes price × (value ÷ 10^decimals) without ever coercing the
// raw integer amount to a float first.
func usdValue(value string, decimals int, priceUSD float64) *float64 {
	n := new(big.Int)
	if _, ok := n.SetString(value, 10); !ok {
		return nil
	}

	amount := new(big.Float).SetInt(n)
	if decimals > 0 {
		div := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
		amount.Quo(amount, div)
	}
	amount.Mul(amount, big.NewFloat(priceUSD))

	v, _ := amount.Float64()
	return &v
}
