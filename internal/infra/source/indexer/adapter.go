// Package indexer fetches account-based ledger history from a Subscan-style
// indexed-query API: one required transfers call plus best-effort extrinsics
// and staking-reward calls.
package indexer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	logger "log/slog"

	"github.com/htngan/walletfeed/internal/core/domain"
	"github.com/htngan/walletfeed/internal/infra/rpc"
	"github.com/htngan/walletfeed/internal/infra/source"
	"github.com/htngan/walletfeed/internal/pipeline/classify"
	"github.com/htngan/walletfeed/internal/pipeline/metrics"
)

const (
	endpointTransfers  = "api/scan/transfers"
	endpointExtrinsics = "api/scan/extrinsics"
	endpointRewards    = "api/scan/account/reward_slash"

	defaultRow = 100
)

// Adapter implements source.Adapter for indexed-query APIs.
type Adapter struct {
	registry   *rpc.Registry
	classifier *classify.Classifier
}

// New creates an indexer adapter on the shared provider registry.
func New(registry *rpc.Registry, classifier *classify.Classifier) *Adapter {
	return &Adapter{registry: registry, classifier: classifier}
}

func (a *Adapter) Name() string { return "indexer" }

// Fetch returns the wallet's history, primary transfers first, then
// standalone extrinsics, then rewards, so the deduplicator's
// first-occurrence-wins rule keeps transfer records authoritative.
func (a *Adapter) Fetch(
	ctx context.Context,
	network domain.Network,
	address string,
	opts source.Options,
) ([]*domain.Transaction, error) {
	provider := a.registry.Provider("indexer:"+network.Name, network.IndexerHost)

	row := opts.Limit
	if row <= 0 || row > defaultRow {
		row = defaultRow
	}

	transfersRaw, err := a.queryList(ctx, provider, network, endpointTransfers, map[string]any{
		"address": address,
		"row":     row,
		"page":    opts.Page,
	}, true)
	if err != nil {
		return nil, fmt.Errorf("fetch transfers: %w", err)
	}
	opts.Notify(endpointTransfers, len(transfersRaw))

	// Extrinsics carry the detailed call module/function; a failure here
	// degrades to transfer-only data.
	extrinsicsRaw, err := a.queryList(ctx, provider, network, endpointExtrinsics, map[string]any{
		"address": address,
		"row":     row,
		"page":    opts.Page,
	}, false)
	if err != nil {
		logger.Warn("extrinsics fetch failed, continuing with transfers only",
			"network", network.Name, "error", err)
		extrinsicsRaw = nil
	}
	opts.Notify(endpointExtrinsics, len(extrinsicsRaw))

	var rewardsRaw []map[string]any
	if network.HasStaking {
		rewardsRaw, err = a.queryList(ctx, provider, network, endpointRewards, map[string]any{
			"address":  address,
			"row":      row,
			"page":     opts.Page,
			"is_stash": true,
		}, false)
		if err != nil {
			logger.Warn("rewards fetch failed, continuing without rewards",
				"network", network.Name, "error", err)
			rewardsRaw = nil
		}
		opts.Notify(endpointRewards, len(rewardsRaw))
	}

	extrinsics := indexExtrinsics(extrinsicsRaw)

	txs := make([]*domain.Transaction, 0, len(transfersRaw)+len(rewardsRaw))
	for _, raw := range transfersRaw {
		txs = append(txs, a.parseTransfer(raw, network, extrinsics))
	}
	for _, raw := range extrinsicsRaw {
		id := getString(raw["extrinsic_index"])
		if _, isTransfer := hasTransfer(transfersRaw, id); isTransfer {
			continue
		}
		txs = append(txs, a.parseExtrinsic(raw, network, address))
	}
	for _, raw := range rewardsRaw {
		txs = append(txs, a.parseReward(raw, network, address))
	}

	metrics.RecordsNormalized.WithLabelValues(network.Name, a.Name()).Add(float64(len(txs)))
	return txs, nil
}

// queryList posts to one indexer endpoint and unwraps the data array.
// Required endpoints retry; optional endpoints get a single attempt.
func (a *Adapter) queryList(
	ctx context.Context,
	provider rpc.Provider,
	network domain.Network,
	endpoint string,
	body map[string]any,
	required bool,
) ([]map[string]any, error) {
	metrics.SourceCalls.WithLabelValues(network.Name, a.Name(), endpoint).Inc()

	op := rpc.NewPostOperation(endpoint, body)
	var result any
	var err error
	if required {
		result, err = rpc.ExecuteWithRetry(ctx, provider, op, rpc.DefaultRetryConfig)
	} else {
		result, err = provider.Execute(ctx, op)
	}
	if err != nil {
		metrics.SourceErrors.WithLabelValues(network.Name, a.Name(), endpoint).Inc()
		return nil, err
	}

	resp, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid response format from %s", endpoint)
	}

	if code := getFloat(resp["code"]); code != 0 {
		metrics.SourceErrors.WithLabelValues(network.Name, a.Name(), endpoint).Inc()
		return nil, fmt.Errorf("indexer error (code %d): %s", int(code), getString(resp["message"]))
	}

	data, ok := resp["data"].(map[string]any)
	if !ok {
		return nil, nil // empty history
	}

	// Transfers arrive under "transfers"; extrinsics and rewards under "list".
	items, ok := data["transfers"].([]any)
	if !ok {
		items, _ = data["list"].([]any)
	}

	list := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			list = append(list, m)
		}
	}
	return list, nil
}

func (a *Adapter) parseTransfer(
	raw map[string]any,
	network domain.Network,
	extrinsics map[string]map[string]any,
) *domain.Transaction {
	id := getString(raw["extrinsic_index"])
	ts := time.Unix(int64(getFloat(raw["block_timestamp"])), 0).UTC()

	sig := classify.Signals{
		FromDisplay:  displayName(raw["from_account_display"]),
		ToDisplay:    displayName(raw["to_account_display"]),
		CallModule:   getString(raw["module"]),
		CallFunction: "transfer",
		From:         getString(raw["from"]),
		To:           getString(raw["to"]),
		Value:        rawAmount(raw, network.Decimals),
		Timestamp:    ts,
	}
	// Join to the extrinsic by shared identity to backfill method/section.
	if ext, ok := extrinsics[id]; ok {
		sig.ExtrinsicModule = getString(ext["call_module"])
		sig.ExtrinsicFunction = getString(ext["call_module_function"])
	}
	res := a.classifier.Classify(sig)

	status := domain.TxStatusFailed
	if getBool(raw["success"]) {
		status = domain.TxStatusSuccess
	}

	return &domain.Transaction{
		ID:          id,
		Hash:        getString(raw["hash"]),
		BlockNumber: uint64(getFloat(raw["block_num"])),
		Timestamp:   ts,
		From:        getString(raw["from"]),
		To:          getString(raw["to"]),
		Value:       rawAmount(raw, network.Decimals),
		Fee:         amountString(raw["fee"]),
		Status:      status,
		Network:     network.Name,
		Type:        domain.TxType(res.Type),
		Method:      res.Method,
		Section:     res.Section,
		Events:      []domain.TxEvent{},
		IsSigned:    true,
	}
}

func (a *Adapter) parseExtrinsic(
	raw map[string]any,
	network domain.Network,
	address string,
) *domain.Transaction {
	ts := time.Unix(int64(getFloat(raw["block_timestamp"])), 0).UTC()

	res := a.classifier.Classify(classify.Signals{
		CallModule:   getString(raw["call_module"]),
		CallFunction: getString(raw["call_module_function"]),
		From:         address,
		Timestamp:    ts,
	})

	status := domain.TxStatusFailed
	if getBool(raw["success"]) {
		status = domain.TxStatusSuccess
	}

	return &domain.Transaction{
		ID:          getString(raw["extrinsic_index"]),
		Hash:        getString(raw["extrinsic_hash"]),
		BlockNumber: uint64(getFloat(raw["block_num"])),
		Timestamp:   ts,
		From:        address,
		To:          "",
		Value:       "0",
		Fee:         amountString(raw["fee"]),
		Status:      status,
		Network:     network.Name,
		Type:        domain.TxType(res.Type),
		Method:      res.Method,
		Section:     res.Section,
		Events:      []domain.TxEvent{},
		IsSigned:    true,
	}
}

// parseReward turns a reward/slash event into an unsigned record. Rewards
// have no originating transaction of their own; Hash may be empty.
func (a *Adapter) parseReward(
	raw map[string]any,
	network domain.Network,
	address string,
) *domain.Transaction {
	ts := time.Unix(int64(getFloat(raw["block_timestamp"])), 0).UTC()

	res := a.classifier.Classify(classify.Signals{
		EventModule: getString(raw["module_id"]),
		EventID:     getString(raw["event_id"]),
		To:          address,
		Value:       amountString(raw["amount"]),
		Timestamp:   ts,
	})

	return &domain.Transaction{
		ID:          getString(raw["event_index"]) + "-reward",
		Hash:        getString(raw["extrinsic_hash"]),
		BlockNumber: uint64(getFloat(raw["block_num"])),
		Timestamp:   ts,
		From:        "",
		To:          address,
		Value:       amountString(raw["amount"]),
		Fee:         "0",
		Status:      domain.TxStatusSuccess,
		Network:     network.Name,
		Type:        domain.TxType(res.Type),
		Method:      res.Method,
		Section:     res.Section,
		Events:      []domain.TxEvent{},
		IsSigned:    false,
	}
}

// indexExtrinsics maps extrinsic_index -> raw extrinsic for the join.
func indexExtrinsics(list []map[string]any) map[string]map[string]any {
	m := make(map[string]map[string]any, len(list))
	for _, raw := range list {
		if id := getString(raw["extrinsic_index"]); id != "" {
			m[id] = raw
		}
	}
	return m
}

func hasTransfer(transfers []map[string]any, id string) (map[string]any, bool) {
	for _, t := range transfers {
		if getString(t["extrinsic_index"]) == id {
			return t, true
		}
	}
	return nil, false
}

func displayName(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	return getString(m["display"])
}

// rawAmount prefers the raw smallest-unit amount (amount_v2) and falls back
// to scaling the display amount by the network's decimals.
func rawAmount(raw map[string]any, decimals int) string {
	if v := getString(raw["amount_v2"]); v != "" {
		return v
	}
	return scaleDecimal(getString(raw["amount"]), decimals)
}

// scaleDecimal converts a decimal display string ("1.23") to smallest units
// without going through float64.
func scaleDecimal(amount string, decimals int) string {
	if amount == "" {
		return "0"
	}
	f, _, err := big.ParseFloat(amount, 10, 256, big.ToNearestEven)
	if err != nil {
		return "0"
	}
	mul := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	f.Mul(f, mul)
	n, _ := f.Int(nil)
	return n.String()
}

func amountString(v any) string {
	s := getString(v)
	if s == "" {
		return "0"
	}
	return s
}

func getString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func getFloat(v any) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return 0
}

func getBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}
