// Package storage defines the persistence boundary for normalized
// transaction history.
package storage

import (
	"context"

	"github.com/htngan/walletfeed/internal/core/domain"
)

// TransactionStore persists normalized history for a wallet run.
type TransactionStore interface {
	// SaveBatch upserts the batch; replaying the same history is a no-op
	// apart from refreshed enrichment values.
	SaveBatch(ctx context.Context, txs []*domain.Transaction) error

	// ListByNetwork returns stored history for a network, newest block first.
	ListByNetwork(ctx context.Context, network string, limit int) ([]*domain.Transaction, error)
}
