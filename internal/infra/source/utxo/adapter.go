// Package utxo fetches UTXO-chain history by deriving a bounded set of
// addresses from an extended public key and querying a Blockbook-style REST
// API per derived address.
package utxo

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

// gapLimit is the number of receiving and change addresses derived per xPub.
const gapLimit = 20

// Adapter implements source.Adapter for UTXO chains addressed by xPub.
type Adapter struct {
	registry   *rpc.Registry
	classifier *classify.Classifier
}

// New creates a UTXO adapter on the shared provider registry.
func New(registry *rpc.Registry, classifier *classify.Classifier) *Adapter {
	return &Adapter{registry: registry, classifier: classifier}
}

func (a *Adapter) Name() string { return "utxo" }

// UTXO is one unspent output of a derived address.
type UTXO struct {
	TxID          string
	Vout          int
	Value         string
	Height        uint64
	Confirmations uint64
}

// Fetch derives receiving and change addresses from the xPub, queries each
// derived address and returns the union of their transactions. Addresses
// with no activity contribute nothing. A single literal address (not an
// xPub) is queried directly.
func (a *Adapter) Fetch(
	ctx context.Context,
	network domain.Network,
	xpub string,
	opts source.Options,
) ([]*domain.Transaction, error) {
	provider := a.registry.Provider("utxo:"+network.Name, network.UTXOHost)

	addresses, err := a.walletAddresses(xpub)
	if err != nil {
		return nil, err
	}

	owned := make(map[string]struct{}, len(addresses))
	for _, addr := range addresses {
		owned[addr] = struct{}{}
	}

	txs := make([]*domain.Transaction, 0)
	for _, addr := range addresses {
		addrTxs, err := a.fetchAddress(ctx, provider, network, addr, owned, opts.Limit)
		if err != nil {
			return nil, fmt.Errorf("fetch address %s: %w", addr, err)
		}
		txs = append(txs, addrTxs...)
		opts.Notify("address", len(txs))
	}

	metrics.RecordsNormalized.WithLabelValues(network.Name, a.Name()).Add(float64(len(txs)))
	return txs, nil
}

// walletAddresses expands an xPub into its derived address set, or passes a
// literal address through after validation.
func (a *Adapter) walletAddresses(input string) ([]string, error) {
	if _, err := TypeFromKey(input); err != nil {
		if ValidateAddress(input) {
			return []string{input}, nil
		}
		return nil, fmt.Errorf("input is neither an extended public key nor a valid address")
	}

	receive, err := DeriveAddresses(input, receiveBranch, gapLimit)
	if err != nil {
		return nil, fmt.Errorf("derive receiving addresses: %w", err)
	}
	change, err := DeriveAddresses(input, changeBranch, gapLimit)
	if err != nil {
		return nil, fmt.Errorf("derive change addresses: %w", err)
	}
	return append(receive, change...), nil
}

func (a *Adapter) fetchAddress(
	ctx context.Context,
	provider rpc.Provider,
	network domain.Network,
	addr string,
	owned map[string]struct{},
	limit int,
) ([]*domain.Transaction, error) {
	metrics.SourceCalls.WithLabelValues(network.Name, a.Name(), "address").Inc()

	op := rpc.NewGetOperation("api/v2/address/"+addr, map[string]string{
		"details": "txs",
	})
	result, err := rpc.ExecuteWithRetry(ctx, provider, op, rpc.DefaultRetryConfig)
	if err != nil {
		metrics.SourceErrors.WithLabelValues(network.Name, a.Name(), "address").Inc()
		return nil, err
	}

	resp, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid address response format")
	}

	// Only derived addresses with non-zero activity are of interest.
	if getFloat(resp["txs"]) == 0 && getFloat(resp["unconfirmedTxs"]) == 0 {
		return nil, nil
	}

	rawTxs, _ := resp["transactions"].([]any)
	txs := make([]*domain.Transaction, 0, len(rawTxs))
	for _, txRaw := range rawTxs {
		txData, ok := txRaw.(map[string]any)
		if !ok {
			continue
		}
		tx, err := a.parseTransaction(txData, network, addr, owned)
		if err != nil {
			logger.Warn("failed to parse transaction", "address", addr, "error", err)
			continue
		}
		txs = append(txs, tx)
		if limit > 0 && len(txs) >= limit {
			break
		}
	}
	return txs, nil
}

// UnspentOutputs lists the unspent outputs of one derived address.
func (a *Adapter) UnspentOutputs(
	ctx context.Context,
	network domain.Network,
	addr string,
) ([]UTXO, error) {
	provider := a.registry.Provider("utxo:"+network.Name, network.UTXOHost)

	metrics.SourceCalls.WithLabelValues(network.Name, a.Name(), "utxo").Inc()
	result, err := rpc.ExecuteWithRetry(ctx, provider,
		rpc.NewGetOperation("api/v2/utxo/"+addr, nil), rpc.DefaultRetryConfig)
	if err != nil {
		metrics.SourceErrors.WithLabelValues(network.Name, a.Name(), "utxo").Inc()
		return nil, err
	}

	items, ok := result.([]any)
	if !ok {
		return nil, fmt.Errorf("invalid utxo response format")
	}

	utxos := make([]UTXO, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		utxos = append(utxos, UTXO{
			TxID:          getString(m["txid"]),
			Vout:          int(getFloat(m["vout"])),
			Value:         getString(m["value"]),
			Height:        uint64(getFloat(m["height"])),
			Confirmations: uint64(getFloat(m["confirmations"])),
		})
	}
	return utxos, nil
}

// parseTransaction computes the wallet-relative movement of one transaction:
// the sum spent from owned inputs versus the sum received on owned outputs.
func (a *Adapter) parseTransaction(
	raw map[string]any,
	network domain.Network,
	addr string,
	owned map[string]struct{},
) (*domain.Transaction, error) {
	txid := getString(raw["txid"])
	if txid == "" {
		return nil, fmt.Errorf("missing txid")
	}

	spent := sumOwned(raw["vin"], owned)
	received := sumOwned(raw["vout"], owned)

	from, to := "", addr
	value := received
	if spent.Cmp(received) > 0 {
		// Net outflow: the wallet funded this transaction.
		from, to = addr, firstExternal(raw["vout"], owned)
		value = new(big.Int).Sub(spent, received)
	}

	fee := "0"
	if from != "" {
		fee = amountString(raw["fees"])
	}

	ts := time.Unix(int64(getFloat(raw["blockTime"])), 0).UTC()
	res := a.classifier.Classify(classify.Signals{
		From:      from,
		To:        to,
		Value:     value.String(),
		Timestamp: ts,
	})

	return &domain.Transaction{
		// No stable intra-block index is exposed; identity falls back to
		// the hash, which also collapses the same transaction seen from
		// multiple derived addresses.
		ID:          "",
		Hash:        txid,
		BlockNumber: uint64(getFloat(raw["blockHeight"])),
		Timestamp:   ts,
		From:        from,
		To:          to,
		Value:       value.String(),
		Fee:         fee,
		Status:      domain.TxStatusSuccess,
		Network:     network.Name,
		Type:        domain.TxType(res.Type),
		Method:      res.Method,
		Section:     res.Section,
		Events:      []domain.TxEvent{},
		IsSigned:    from != "",
	}, nil
}

// sumOwned sums the satoshi values of vin/vout entries whose address belongs
// to the wallet.
func sumOwned(v any, owned map[string]struct{}) *big.Int {
	total := big.NewInt(0)
	items, ok := v.([]any)
	if !ok {
		return total
	}
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if !entryOwned(m, owned) {
			continue
		}
		if n, ok := new(big.Int).SetString(getString(m["value"]), 10); ok {
			total.Add(total, n)
		}
	}
	return total
}

func firstExternal(v any, owned map[string]struct{}) string {
	items, ok := v.([]any)
	if !ok {
		return ""
	}
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok || entryOwned(m, owned) {
			continue
		}
		if addrs, ok := m["addresses"].([]any); ok && len(addrs) > 0 {
			return getString(addrs[0])
		}
	}
	return ""
}

func entryOwned(m map[string]any, owned map[string]struct{}) bool {
	addrs, ok := m["addresses"].([]any)
	if !ok {
		return false
	}
	for _, a := range addrs {
		if _, ok := owned[getString(a)]; ok {
			return true
		}
	}
	return false
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
