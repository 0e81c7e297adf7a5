// Package noderpc is the degraded fallback source: when the indexer is
// unreachable it scans a bounded window of recent blocks directly over node
// JSON-RPC. Full-history scans over RPC are explicitly not attempted.
package noderpc

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	logger "log/slog"

	"github.com/htngan/walletfeed/internal/core/domain"
	"github.com/htngan/walletfeed/internal/infra/rpc"
	"github.com/htngan/walletfeed/internal/infra/source"
	"github.com/htngan/walletfeed/internal/pipeline/metrics"
)

const (
	// maxScanBlocks bounds the window; older history is out of reach for
	// this source by design.
	maxScanBlocks = 10_000
	// batchSize is the number of block fetches grouped into one JSON-RPC
	// batch round trip.
	batchSize = 200
)

// Adapter implements source.Adapter over raw node JSON-RPC.
type Adapter struct {
	registry *rpc.Registry
}

// New creates an RPC fallback adapter on the shared provider registry.
func New(registry *rpc.Registry) *Adapter {
	return &Adapter{registry: registry}
}

func (a *Adapter) Name() string { return "noderpc" }

// Fetch scans the recent block window for transactions touching address and
// enriches matches with their receipts.
func (a *Adapter) Fetch(
	ctx context.Context,
	network domain.Network,
	address string,
	opts source.Options,
) ([]*domain.Transaction, error) {
	if network.NodeURL == "" {
		return nil, fmt.Errorf("network %s has no node RPC endpoint", network.Name)
	}
	provider := a.registry.Provider("noderpc:"+network.Name, network.NodeURL)

	metrics.SourceCalls.WithLabelValues(network.Name, a.Name(), "eth_blockNumber").Inc()
	result, err := rpc.ExecuteWithRetry(ctx, provider,
		rpc.NewJSONRPCOperation("eth_blockNumber"), rpc.DefaultRetryConfig)
	if err != nil {
		metrics.SourceErrors.WithLabelValues(network.Name, a.Name(), "eth_blockNumber").Inc()
		return nil, fmt.Errorf("eth_blockNumber failed: %w", err)
	}
	latest, err := parseHexUint(getString(result))
	if err != nil {
		return nil, fmt.Errorf("invalid block number response: %w", err)
	}

	first := uint64(0)
	if latest > maxScanBlocks {
		first = latest - maxScanBlocks + 1
	}

	target := strings.ToLower(address)
	matched := make([]*domain.Transaction, 0)

	// Scan newest-first so a satisfied limit short-circuits the window.
	for high := latest; high >= first && !limitReached(opts.Limit, matched); {
		low := first
		if high >= uint64(batchSize) && high-uint64(batchSize)+1 > first {
			low = high - uint64(batchSize) + 1
		}

		blockTxs, err := a.scanRange(ctx, provider, network, low, high, target)
		if err != nil {
			return nil, err
		}
		matched = append(matched, blockTxs...)
		opts.Notify("scan", len(matched))

		if low == first {
			break
		}
		high = low - 1
	}

	if err := a.enrichReceipts(ctx, provider, network, matched); err != nil {
		return nil, err
	}

	metrics.RecordsNormalized.WithLabelValues(network.Name, a.Name()).Add(float64(len(matched)))
	return matched, nil
}

// scanRange fetches blocks [low, high] with full transactions in one batch
// call and filters them by sender/recipient.
func (a *Adapter) scanRange(
	ctx context.Context,
	provider rpc.Provider,
	network domain.Network,
	low, high uint64,
	target string,
) ([]*domain.Transaction, error) {
	requests := make([]rpc.BatchRequest, 0, high-low+1)
	for n := high; ; n-- {
		requests = append(requests, rpc.BatchRequest{
			Method: "eth_getBlockByNumber",
			Params: []any{fmt.Sprintf("0x%x", n), true},
		})
		if n == low {
			break
		}
	}

	metrics.SourceCalls.WithLabelValues(network.Name, a.Name(), "eth_getBlockByNumber").Inc()
	responses, err := provider.BatchCall(ctx, requests)
	if err != nil {
		metrics.SourceErrors.WithLabelValues(network.Name, a.Name(), "eth_getBlockByNumber").Inc()
		return nil, fmt.Errorf("block scan failed: %w", err)
	}

	matched := make([]*domain.Transaction, 0)
	for _, resp := range responses {
		if resp.Error != nil || resp.Result == nil {
			if resp.Error != nil {
				logger.Warn("block fetch failed during scan", "error", resp.Error)
			}
			continue
		}
		rawBlock, ok := resp.Result.(map[string]any)
		if !ok {
			continue
		}

		blockNumber, _ := parseHexUint(getString(rawBlock["number"]))
		blockTime, _ := parseHexUint(getString(rawBlock["timestamp"]))
		rawTxs, _ := rawBlock["transactions"].([]any)

		for _, txRaw := range rawTxs {
			txData, ok := txRaw.(map[string]any)
			if !ok {
				continue
			}
			from := strings.ToLower(getString(txData["from"]))
			to := strings.ToLower(getString(txData["to"]))
			if from != target && to != target {
				continue
			}
			matched = append(matched, parseTransaction(txData, network, blockNumber, blockTime))
		}
	}
	return matched, nil
}

// enrichReceipts backfills fee and status for matched transactions. Receipts
// for one window travel in a single batch round trip; individual receipt
// failures leave the defaults in place.
func (a *Adapter) enrichReceipts(
	ctx context.Context,
	provider rpc.Provider,
	network domain.Network,
	txs []*domain.Transaction,
) error {
	if len(txs) == 0 {
		return nil
	}

	requests := make([]rpc.BatchRequest, len(txs))
	for i, tx := range txs {
		requests[i] = rpc.BatchRequest{
			Method: "eth_getTransactionReceipt",
			Params: []any{tx.Hash},
		}
	}

	metrics.SourceCalls.WithLabelValues(network.Name, a.Name(), "eth_getTransactionReceipt").Inc()
	responses, err := provider.BatchCall(ctx, requests)
	if err != nil {
		metrics.SourceErrors.WithLabelValues(network.Name, a.Name(), "eth_getTransactionReceipt").Inc()
		return fmt.Errorf("receipt fetch failed: %w", err)
	}

	for i, resp := range responses {
		if i >= len(txs) {
			break
		}
		if resp.Error != nil || resp.Result == nil {
			if resp.Error != nil {
				logger.Warn("receipt fetch failed", "tx", txs[i].Hash, "error", resp.Error)
			}
			continue
		}
		receipt, ok := resp.Result.(map[string]any)
		if !ok {
			continue
		}

		gasUsed, _ := parseHexUint(getString(receipt["gasUsed"]))
		gasPrice := new(big.Int)
		gasPrice.SetString(strings.TrimPrefix(getString(receipt["effectiveGasPrice"]), "0x"), 16)
		fee := new(big.Int).Mul(new(big.Int).SetUint64(gasUsed), gasPrice)
		txs[i].Fee = fee.String()

		if getString(receipt["status"]) == "0x0" {
			txs[i].Status = domain.TxStatusFailed
		}
	}
	return nil
}

func parseTransaction(
	raw map[string]any,
	network domain.Network,
	blockNumber, blockTime uint64,
) *domain.Transaction {
	txIndex, _ := parseHexUint(getString(raw["transactionIndex"]))

	txType := domain.TxTypeTransfer
	method := "transfer"
	section := "balances"
	if input := getString(raw["input"]); input != "" && input != "0x" {
		txType = domain.TxTypeContract
		method = "execute"
		section = "contract"
	}

	return &domain.Transaction{
		ID:          fmt.Sprintf("%d-%d", blockNumber, txIndex),
		Hash:        getString(raw["hash"]),
		BlockNumber: blockNumber,
		Timestamp:   time.Unix(int64(blockTime), 0).UTC(),
		From:        strings.ToLower(getString(raw["from"])),
		To:          strings.ToLower(getString(raw["to"])),
		Value:       hexToDecimal(getString(raw["value"])),
		Fee:         "0", // backfilled from the receipt
		Status:      domain.TxStatusSuccess,
		Network:     network.Name,
		Type:        txType,
		Method:      method,
		Section:     section,
		Events:      []domain.TxEvent{},
		IsSigned:    true,
	}
}

func limitReached(limit int, txs []*domain.Transaction) bool {
	return limit > 0 && len(txs) >= limit
}

func hexToDecimal(hexStr string) string {
	if hexStr == "" || hexStr == "0x" {
		return "0"
	}
	n := new(big.Int)
	if _, ok := n.SetString(strings.TrimPrefix(hexStr, "0x"), 16); !ok {
		return "0"
	}
	return n.String()
}

func parseHexUint(hexStr string) (uint64, error) {
	n := new(big.Int)
	if _, ok := n.SetString(strings.TrimPrefix(hexStr, "0x"), 16); !ok {
		return 0, fmt.Errorf("invalid hex: %s", hexStr)
	}
	return n.Uint64(), nil
}

func getString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
