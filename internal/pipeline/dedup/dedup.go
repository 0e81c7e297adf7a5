// Package dedup merges the record lists produced by the source adapters for
// one wallet into a single sorted, duplicate-free sequence.
package dedup

import (
	"sort"

	"github.com/htngan/walletfeed/internal/core/domain"
)

// Merge combines record lists in iteration order, drops records whose
// identity was already seen, sorts by block number descending and truncates
// to limit (0 = unlimited).
//
// Identity is the composed ID when present, otherwise the transaction hash.
// A record whose hash matches an already kept record is dropped even when its
// ID differs: a token transfer shares its hash with the base transaction that
// emitted it, and only one record per hash survives. Lists must be passed
// primary first: the first occurrence wins, so a primary record is never
// overwritten by a supplementary variant of the same identity.
func Merge(limit int, lists ...[]*domain.Transaction) []*domain.Transaction {
	seen := make(map[string]struct{})
	merged := make([]*domain.Transaction, 0)

	for _, list := range lists {
		for _, tx := range list {
			if tx == nil {
				continue
			}
			key := tx.Key()
			if key == "" {
				// Sourceless events without hash nor id cannot collide.
				merged = append(merged, tx)
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			if tx.Hash != "" {
				if _, ok := seen[tx.Hash]; ok {
					continue
				}
				seen[tx.Hash] = struct{}{}
			}
			seen[key] = struct{}{}
			merged = append(merged, tx)
		}
	}

	// Stable: intra-block source order survives.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].BlockNumber > merged[j].BlockNumber
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
