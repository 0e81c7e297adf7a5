// Package memory is an in-memory TransactionStore used in tests and when no
// database is configured.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/htngan/walletfeed/internal/core/domain"
)

// Store keeps transactions keyed by (network, identity).
type Store struct {
	mu  sync.RWMutex
	txs map[string]*domain.Transaction
}

func New() *Store {
	return &Store{txs: make(map[string]*domain.Transaction)}
}

func (s *Store) SaveBatch(_ context.Context, txs []*domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		s.txs[tx.Network+"/"+tx.Key()] = tx
	}
	return nil
}

func (s *Store) ListByNetwork(
	_ context.Context,
	network string,
	limit int,
) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := make([]*domain.Transaction, 0)
	for _, tx := range s.txs {
		if tx.Network == network {
			txs = append(txs, tx)
		}
	}
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].BlockNumber > txs[j].BlockNumber
	})
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

// Len reports the number of stored transactions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs)
}
