package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htngan/walletfeed/internal/core/domain"
)

func tx(id, hash string, block uint64) *domain.Transaction {
	return &domain.Transaction{ID: id, Hash: hash, BlockNumber: block}
}

func TestMergeFirstOccurrenceWins(t *testing.T) {
	primary := tx("100-2", "0xaaa", 100)
	primary.Method = "transfer"
	duplicate := tx("100-2", "0xaaa", 100)
	duplicate.Method = "reward"

	merged := Merge(0, []*domain.Transaction{primary}, []*domain.Transaction{duplicate})

	assert.Len(t, merged, 1)
	assert.Equal(t, "transfer", merged[0].Method)
}

func TestMergeCollapsesSharedHashes(t *testing.T) {
	// Token transfers carry their own "-token" ID but the hash of the
	// transaction that emitted them. A token record whose hash matches an
	// already kept native record is dropped; one with its own hash stays.
	native := []*domain.Transaction{
		tx("10-0", "0xaaa", 10),
		tx("10-1", "0xbbb", 10),
		tx("11-0", "0xccc", 11),
	}
	tokens := []*domain.Transaction{
		tx("10-0-token", "0xaaa", 10), // same hash as native 10-0
		tx("12-0-token", "0xddd", 12),
	}

	merged := Merge(0, native, tokens)

	require.Len(t, merged, 4)
	for _, m := range merged {
		assert.NotEqual(t, "10-0-token", m.ID, "token variant of 0xaaa must merge into the native record")
	}
}

func TestMergeEmptyHashesDoNotCollide(t *testing.T) {
	// Reward events have an ID but no hash; they must never merge into each
	// other through the hash check.
	merged := Merge(0, []*domain.Transaction{
		tx("400-7-reward", "", 400),
		tx("401-2-reward", "", 401),
	})
	assert.Len(t, merged, 2)
}

func TestMergeSortsByBlockDescending(t *testing.T) {
	merged := Merge(0,
		[]*domain.Transaction{tx("a", "", 5), tx("b", "", 20)},
		[]*domain.Transaction{tx("c", "", 12)},
	)

	blocks := []uint64{merged[0].BlockNumber, merged[1].BlockNumber, merged[2].BlockNumber}
	assert.Equal(t, []uint64{20, 12, 5}, blocks)
}

func TestMergeStableWithinBlock(t *testing.T) {
	first := tx("a", "", 7)
	second := tx("b", "", 7)

	merged := Merge(0, []*domain.Transaction{first, second})

	assert.Same(t, first, merged[0])
	assert.Same(t, second, merged[1])
}

func TestMergeLimit(t *testing.T) {
	list := []*domain.Transaction{
		tx("a", "", 3), tx("b", "", 2), tx("c", "", 1),
	}

	merged := Merge(2, list)
	assert.Len(t, merged, 2)
	assert.Equal(t, uint64(3), merged[0].BlockNumber)

	assert.Len(t, Merge(0, list), 3, "zero limit means unlimited")
}

func TestMergeKeylessRecordsPassThrough(t *testing.T) {
	merged := Merge(0,
		[]*domain.Transaction{tx("", "", 1), tx("", "", 1)},
	)
	assert.Len(t, merged, 2)
}

func TestMergeIdempotent(t *testing.T) {
	list := []*domain.Transaction{tx("a", "", 2), tx("b", "", 1)}

	once := Merge(0, list)
	twice := Merge(0, once, list)

	assert.Equal(t, once, twice)
}

func TestMergeSkipsNil(t *testing.T) {
	merged := Merge(0, []*domain.Transaction{nil, tx("a", "", 1)})
	assert.Len(t, merged, 1)
}
