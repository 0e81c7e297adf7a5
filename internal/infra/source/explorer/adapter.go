// Package explorer fetches EVM chain history from a unified multi-chain
// block-explorer REST API keyed by numeric chain ID.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	logger "log/slog"

	"github.com/htngan/walletfeed/internal/core/domain"
	"github.com/htngan/walletfeed/internal/infra/rpc"
	"github.com/htngan/walletfeed/internal/infra/source"
	"github.com/htngan/walletfeed/internal/pipeline/metrics"
)

// ErrMissingAPIKey is returned before any network call when no credential is
// configured. The message is deliberately actionable.
var ErrMissingAPIKey = errors.New(
	"explorer API key is not configured: set explorer.api_key in the config file or the EXPLORER_API_KEY environment variable")

// Explorer responses use status "0" both for real errors and for empty
// history; only the message distinguishes them.
var emptyResultMessages = []string{
	"no transactions found",
	"no records found",
}

const defaultOffset = 100

// Adapter implements source.Adapter for explorer APIs.
type Adapter struct {
	registry *rpc.Registry
	baseURL  string
	apiKey   string
}

// New creates an explorer adapter. baseURL is the unified endpoint
// (e.g. https://api.etherscan.io/v2/api); apiKey may be empty, in which case
// every Fetch fails fast.
func New(registry *rpc.Registry, baseURL, apiKey string) *Adapter {
	return &Adapter{registry: registry, baseURL: baseURL, apiKey: apiKey}
}

func (a *Adapter) Name() string { return "explorer" }

// Fetch returns native transactions first, then token transfers, so a token
// variant never displaces its base transaction during deduplication.
func (a *Adapter) Fetch(
	ctx context.Context,
	network domain.Network,
	address string,
	opts source.Options,
) ([]*domain.Transaction, error) {
	if a.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	provider := a.registry.Provider("explorer", a.baseURL)

	offset := opts.Limit
	if offset <= 0 || offset > defaultOffset {
		offset = defaultOffset
	}

	native, err := a.queryAction(ctx, provider, network, "txlist", address, opts.Page, offset, true)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	opts.Notify("txlist", len(native))

	// Token transfers are best-effort enrichment.
	tokens, err := a.queryAction(ctx, provider, network, "tokentx", address, opts.Page, offset, false)
	if err != nil {
		logger.Warn("token transfer fetch failed, continuing with native transactions only",
			"network", network.Name, "error", err)
		tokens = nil
	}
	opts.Notify("tokentx", len(tokens))

	txs := make([]*domain.Transaction, 0, len(native)+len(tokens))
	for _, raw := range native {
		txs = append(txs, parseNative(raw, network))
	}
	for _, raw := range tokens {
		txs = append(txs, parseToken(raw, network))
	}

	metrics.RecordsNormalized.WithLabelValues(network.Name, a.Name()).Add(float64(len(txs)))
	return txs, nil
}

func (a *Adapter) queryAction(
	ctx context.Context,
	provider rpc.Provider,
	network domain.Network,
	action, address string,
	page, offset int,
	required bool,
) ([]map[string]any, error) {
	metrics.SourceCalls.WithLabelValues(network.Name, a.Name(), action).Inc()

	op := rpc.NewGetOperation("", map[string]string{
		"chainid":    strconv.Itoa(network.ChainID),
		"module":     "account",
		"action":     action,
		"address":    address,
		"startblock": "0",
		"endblock":   "99999999",
		"page":       strconv.Itoa(page + 1), // explorer pages are 1-based
		"offset":     strconv.Itoa(offset),
		"sort":       "desc",
		"apikey":     a.apiKey,
	})

	var result any
	var err error
	if required {
		result, err = rpc.ExecuteWithRetry(ctx, provider, op, rpc.DefaultRetryConfig)
	} else {
		result, err = provider.Execute(ctx, op)
	}
	if err != nil {
		metrics.SourceErrors.WithLabelValues(network.Name, a.Name(), action).Inc()
		return nil, err
	}

	resp, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid response format")
	}

	if getString(resp["status"]) != "1" {
		message := getString(resp["message"])
		if res, ok := resp["result"].(string); ok && message == "NOTOK" {
			message = res
		}
		if isEmptyResult(message) {
			return nil, nil // empty history, not an error
		}
		metrics.SourceErrors.WithLabelValues(network.Name, a.Name(), action).Inc()
		return nil, fmt.Errorf("explorer error: %s", message)
	}

	items, _ := resp["result"].([]any)
	list := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			list = append(list, m)
		}
	}
	return list, nil
}

// isEmptyResult matches the known "no results" message patterns so empty
// history is not surfaced as a fault.
func isEmptyResult(message string) bool {
	lower := strings.ToLower(message)
	for _, pattern := range emptyResultMessages {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func parseNative(raw map[string]any, network domain.Network) *domain.Transaction {
	blockNumber := parseUint(getString(raw["blockNumber"]))
	txIndex := getString(raw["transactionIndex"])
	ts := time.Unix(parseInt(getString(raw["timeStamp"])), 0).UTC()

	status := domain.TxStatusSuccess
	if getString(raw["isError"]) == "1" || getString(raw["txreceipt_status"]) == "0" {
		status = domain.TxStatusFailed
	}

	txType := domain.TxTypeTransfer
	method := "transfer"
	section := "balances"
	if input := getString(raw["input"]); input != "" && input != "0x" {
		txType = domain.TxTypeContract
		method = "execute"
		section = "contract"
	}

	return &domain.Transaction{
		ID:          fmt.Sprintf("%d-%s", blockNumber, txIndex),
		Hash:        getString(raw["hash"]),
		BlockNumber: blockNumber,
		Timestamp:   ts,
		From:        strings.ToLower(getString(raw["from"])),
		To:          strings.ToLower(getString(raw["to"])),
		Value:       decimalString(getString(raw["value"])),
		Fee:         computeFee(getString(raw["gasUsed"]), getString(raw["gasPrice"])),
		Status:      status,
		Network:     network.Name,
		Type:        txType,
		Method:      method,
		Section:     section,
		Events:      []domain.TxEvent{},
		IsSigned:    true,
	}
}

// parseToken builds the token-transfer variant of a transaction. Its ID
// carries a source discriminator so it never collides with the base record,
// while its hash intentionally matches for hash-keyed deduplication.
func parseToken(raw map[string]any, network domain.Network) *domain.Transaction {
	blockNumber := parseUint(getString(raw["blockNumber"]))
	txIndex := getString(raw["transactionIndex"])
	ts := time.Unix(parseInt(getString(raw["timeStamp"])), 0).UTC()

	decimals := int(parseInt(getString(raw["tokenDecimal"])))
	value := decimalString(getString(raw["value"]))

	return &domain.Transaction{
		ID:          fmt.Sprintf("%d-%s-token", blockNumber, txIndex),
		Hash:        getString(raw["hash"]),
		BlockNumber: blockNumber,
		Timestamp:   ts,
		From:        strings.ToLower(getString(raw["from"])),
		To:          strings.ToLower(getString(raw["to"])),
		Value:       value,
		Fee:         computeFee(getString(raw["gasUsed"]), getString(raw["gasPrice"])),
		Status:      domain.TxStatusSuccess,
		Network:     network.Name,
		Type:        domain.TxTypeTokenTransfer,
		Method:      "transfer",
		Section:     "tokens",
		Events: []domain.TxEvent{
			{
				Module:   "tokens",
				EventID:  "Transfer",
				Symbol:   getString(raw["tokenSymbol"]),
				Decimals: decimals,
				Value:    value,
			},
		},
		IsSigned: true,
	}
}

// computeFee multiplies gas used by gas price; the explorer does not report
// the fee directly.
func computeFee(gasUsed, gasPrice string) string {
	used, ok1 := new(big.Int).SetString(gasUsed, 10)
	price, ok2 := new(big.Int).SetString(gasPrice, 10)
	if !ok1 || !ok2 {
		return "0"
	}
	return new(big.Int).Mul(used, price).String()
}

func decimalString(s string) string {
	if _, ok := new(big.Int).SetString(s, 10); !ok {
		return "0"
	}
	return s
}

func parseUint(s string) uint64 {
	n, _ := strconv.ParseUint(s, 10, 64)
	return n
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func getString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
