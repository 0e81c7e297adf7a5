package domain

import (
	"math/big"
	"time"
)

// Transaction is the canonical record every source adapter normalizes into.
// Value and Fee are decimal strings in the smallest unit (wei, planck, satoshi)
// to avoid floating-point precision loss.
type Transaction struct {
	ID          string    `json:"id"`
	Hash        string    `json:"hash"`
	BlockNumber uint64    `json:"block_number"`
	Timestamp   time.Time `json:"timestamp"`
	From        string    `json:"from_address"`
	To          string    `json:"to_address"`
	Value       string    `json:"value"`
	Fee         string    `json:"fee"`
	Status      TxStatus  `json:"status"`
	Network     string    `json:"network"`
	Type        TxType    `json:"type"`
	Method      string    `json:"method"`
	Section     string    `json:"section"`
	Events      []TxEvent `json:"events"`
	IsSigned    bool      `json:"is_signed"`
	USDValue    *float64  `json:"usd_value,omitempty"`
}

// TxEvent is an ordered sub-event attached to a transaction, e.g. the token
// metadata of a token transfer.
type TxEvent struct {
	Module   string `json:"module"`
	EventID  string `json:"event_id"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals int    `json:"decimals,omitempty"`
	Value    string `json:"value,omitempty"`
}

type TxStatus string

const (
	TxStatusSuccess TxStatus = "success"
	TxStatusFailed  TxStatus = "failed"
)

type TxType string

const (
	TxTypeTransfer      TxType = "transfer"
	TxTypeStaking       TxType = "staking"
	TxTypeGovernance    TxType = "governance"
	TxTypeXCM           TxType = "xcm"
	TxTypeContract      TxType = "contract"
	TxTypeTokenTransfer TxType = "token_transfer"
	TxTypeOther         TxType = "other"
)

// Key returns the record identity: the composed ID when the source provides
// one, otherwise the transaction hash. Deduplication additionally collapses
// distinct IDs that share a hash, since a token transfer carries the hash of
// the transaction that emitted it.
func (t *Transaction) Key() string {
	if t.ID != "" {
		return t.ID
	}
	return t.Hash
}

// Amount parses Value as a big integer. Invalid or empty values parse as zero.
func (t *Transaction) Amount() *big.Int {
	n := new(big.Int)
	if _, ok := n.SetString(t.Value, 10); !ok {
		return big.NewInt(0)
	}
	return n
}
