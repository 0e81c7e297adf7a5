// Package source defines the contract every chain-data source adapter
// implements. Adapters normalize provider-specific responses into canonical
// transaction records and classify them inline; merging and pricing happen
// downstream.
package source

import (
	"context"

	"github.com/htngan/walletfeed/internal/core/domain"
)

// Options controls one fetch.
type Options struct {
	// Limit is the maximum number of records the caller wants. Adapters may
	// return more; the deduplicator truncates.
	Limit int
	// Page is the zero-based result page for paginated sources.
	Page int
	// Progress, when set, is invoked after each endpoint call with the
	// endpoint name and the number of records it yielded so far.
	Progress func(endpoint string, records int)
}

// Adapter fetches one wallet's history from one kind of chain-data provider.
//
// Required endpoint failures propagate; optional enrichment endpoints
// (token transfers, extrinsics, rewards) degrade to empty results.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, network domain.Network, address string, opts Options) ([]*domain.Transaction, error)
}

// Notify calls opts.Progress if set.
func (o Options) Notify(endpoint string, records int) {
	if o.Progress != nil {
		o.Progress(endpoint, records)
	}
}
