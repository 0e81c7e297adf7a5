// Package orchestrator coordinates a wallet history run: source selection,
// fallback, merging, enrichment and persistence.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	logger "log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/htngan/walletfeed/internal/core/domain"
	"github.com/htngan/walletfeed/internal/infra/source"
	"github.com/htngan/walletfeed/internal/infra/storage"
	"github.com/htngan/walletfeed/internal/pipeline/dedup"
	"github.com/htngan/walletfeed/internal/pipeline/enrich"
	"github.com/htngan/walletfeed/internal/pipeline/metrics"
)

// progressBuffer sizes the event channel; a slow consumer never blocks the
// pipeline because sends are non-blocking.
const progressBuffer = 64

// Options controls one run.
type Options struct {
	// Limit caps the merged result; zero means no cap.
	Limit int
	// Page is the zero-based result page passed to paginated sources.
	Page int
	// Enrich attaches historical USD values to the merged records.
	Enrich bool
	// Save persists the merged records to the configured store.
	Save bool
}

// Result is the outcome of one run.
type Result struct {
	RunID        string
	Network      string
	Source       string
	UsedFallback bool
	Transactions []*domain.Transaction
}

// Orchestrator wires sources, the deduplicator, the enrichment engine and the
// store into a single run loop.
type Orchestrator struct {
	networks []domain.Network

	indexer  source.Adapter
	explorer source.Adapter
	noderpc  source.Adapter
	utxo     source.Adapter

	enricher *enrich.Engine
	store    storage.TransactionStore

	progress chan domain.ProgressEvent
}

// Config carries the orchestrator's collaborators. Enricher and Store may be
// nil; the corresponding run options then have no effect.
type Config struct {
	Networks []domain.Network
	Indexer  source.Adapter
	Explorer source.Adapter
	NodeRPC  source.Adapter
	UTXO     source.Adapter
	Enricher *enrich.Engine
	Store    storage.TransactionStore
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		networks: cfg.Networks,
		indexer:  cfg.Indexer,
		explorer: cfg.Explorer,
		noderpc:  cfg.NodeRPC,
		utxo:     cfg.UTXO,
		enricher: cfg.Enricher,
		store:    cfg.Store,
		progress: make(chan domain.ProgressEvent, progressBuffer),
	}
}

// Progress returns the event channel. Events are dropped, never blocked on,
// when the consumer lags.
func (o *Orchestrator) Progress() <-chan domain.ProgressEvent {
	return o.progress
}

// FetchAllTransactions runs the full pipeline for one wallet on one network.
func (o *Orchestrator) FetchAllTransactions(
	ctx context.Context,
	networkName, address string,
	opts Options,
) (*Result, error) {
	network, ok := domain.FindNetwork(o.networks, networkName)
	if !ok {
		return nil, fmt.Errorf("unknown network: %s", networkName)
	}

	runID := uuid.NewString()
	timer := prometheus.NewTimer(metrics.FetchDuration.WithLabelValues(network.Name))
	defer timer.ObserveDuration()

	o.emit(runID, domain.StageConnecting, network.Name, "", "selecting source", 0)

	adapter, err := o.primaryAdapter(network)
	if err != nil {
		return nil, err
	}

	fetchOpts := source.Options{
		Limit: opts.Limit,
		Page:  opts.Page,
		Progress: func(endpoint string, records int) {
			o.emit(runID, domain.StageFetching, network.Name, endpoint, "", records)
		},
	}

	txs, usedSource, usedFallback, err := o.fetch(ctx, adapter, network, address, fetchOpts)
	if err != nil {
		return nil, err
	}

	o.emit(runID, domain.StageProcessing, network.Name, usedSource, "merging", len(txs))
	merged := dedup.Merge(opts.Limit, txs)

	if opts.Enrich && o.enricher != nil {
		o.emit(runID, domain.StageProcessing, network.Name, usedSource, "pricing", len(merged))
		o.enricher.Enrich(ctx, merged)
	}

	if opts.Save && o.store != nil {
		o.emit(runID, domain.StageSaving, network.Name, usedSource, "", len(merged))
		if err := o.store.SaveBatch(ctx, merged); err != nil {
			return nil, fmt.Errorf("save batch: %w", err)
		}
	}

	o.emit(runID, domain.StageComplete, network.Name, usedSource, "", len(merged))

	return &Result{
		RunID:        runID,
		Network:      network.Name,
		Source:       usedSource,
		UsedFallback: usedFallback,
		Transactions: merged,
	}, nil
}

// primaryAdapter selects the source for a network by its kind.
func (o *Orchestrator) primaryAdapter(network domain.Network) (source.Adapter, error) {
	switch network.Kind {
	case domain.NetworkKindIndexer:
		return o.indexer, nil
	case domain.NetworkKindExplorer:
		return o.explorer, nil
	case domain.NetworkKindUTXO:
		return o.utxo, nil
	default:
		return nil, fmt.Errorf("network %s has unsupported kind %q", network.Name, network.Kind)
	}
}

// fetch runs the primary adapter and, for indexer networks only, falls back
// to direct node RPC when the indexer fails. Explorer and UTXO failures
// propagate: their APIs are the sole practical path to full history, and a
// windowed RPC scan would silently misrepresent it.
func (o *Orchestrator) fetch(
	ctx context.Context,
	adapter source.Adapter,
	network domain.Network,
	address string,
	opts source.Options,
) ([]*domain.Transaction, string, bool, error) {
	txs, err := adapter.Fetch(ctx, network, address, opts)
	if err == nil {
		return txs, adapter.Name(), false, nil
	}

	if network.Kind != domain.NetworkKindIndexer || network.NodeURL == "" {
		return nil, "", false, fmt.Errorf("fetch from %s: %w", adapter.Name(), err)
	}

	logger.Warn("indexer fetch failed, falling back to node RPC",
		"network", network.Name, "error", err)
	metrics.Fallbacks.WithLabelValues(network.Name).Inc()

	txs, rpcErr := o.noderpc.Fetch(ctx, network, address, opts)
	if rpcErr != nil {
		return nil, "", false, fmt.Errorf(
			"indexer failed (%v) and RPC fallback failed: %w", err, rpcErr)
	}
	return txs, o.noderpc.Name(), true, nil
}

func (o *Orchestrator) emit(runID string, stage domain.Stage, network, src, msg string, records int) {
	ev := domain.ProgressEvent{
		RunID:   runID,
		Stage:   stage,
		Network: network,
		Source:  src,
		Message: msg,
		Records: records,
		At:      time.Now().UTC(),
	}
	select {
	case o.progress <- ev:
	default:
	}
}
