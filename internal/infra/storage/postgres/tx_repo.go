package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/htngan/walletfeed/internal/core/domain"
)

// TxRepo implements storage.TransactionStore using PostgreSQL.
type TxRepo struct {
	db *DB
}

// NewTxRepo creates a new PostgreSQL transaction repository.
func NewTxRepo(db *DB) *TxRepo {
	return &TxRepo{db: db}
}

const upsertQuery = `
	INSERT INTO transactions (
		network, record_id, tx_hash, block_number, ts, from_address, to_address,
		value, fee, status, tx_type, method, section, is_signed, usd_value, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
	ON CONFLICT (network, record_id) DO UPDATE SET
		block_number = EXCLUDED.block_number,
		status = EXCLUDED.status,
		usd_value = COALESCE(EXCLUDED.usd_value, transactions.usd_value)
`

// SaveBatch upserts multiple transactions in one database transaction.
// Records are keyed by their deduplication identity, so replays update in
// place instead of duplicating rows.
func (r *TxRepo) SaveBatch(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range txs {
		_, err := stmt.ExecContext(ctx,
			t.Network, t.Key(), t.Hash, t.BlockNumber, t.Timestamp,
			t.From, t.To, t.Value, t.Fee, string(t.Status),
			string(t.Type), t.Method, t.Section, t.IsSigned, t.USDValue,
		)
		if err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", t.Key(), err)
		}
	}

	return tx.Commit()
}

type txRow struct {
	Network     string    `db:"network"`
	RecordID    string    `db:"record_id"`
	TxHash      string    `db:"tx_hash"`
	BlockNumber uint64    `db:"block_number"`
	Timestamp   time.Time `db:"ts"`
	From        string    `db:"from_address"`
	To          string    `db:"to_address"`
	Value       string    `db:"value"`
	Fee         string    `db:"fee"`
	Status      string    `db:"status"`
	TxType      string    `db:"tx_type"`
	Method      string    `db:"method"`
	Section     string    `db:"section"`
	IsSigned    bool      `db:"is_signed"`
	USDValue    *float64  `db:"usd_value"`
	CreatedAt   time.Time `db:"created_at"`
}

func (t *txRow) toDomain() *domain.Transaction {
	tx := &domain.Transaction{
		ID:          t.RecordID,
		Hash:        t.TxHash,
		BlockNumber: t.BlockNumber,
		Timestamp:   t.Timestamp,
		From:        t.From,
		To:          t.To,
		Value:       t.Value,
		Fee:         t.Fee,
		Status:      domain.TxStatus(t.Status),
		Network:     t.Network,
		Type:        domain.TxType(t.TxType),
		Method:      t.Method,
		Section:     t.Section,
		IsSigned:    t.IsSigned,
		USDValue:    t.USDValue,
	}
	if tx.ID == tx.Hash {
		// Hash-keyed record; the ID column holds the fallback identity.
		tx.ID = ""
	}
	return tx
}

// ListByNetwork retrieves stored history for a network, newest block first.
func (r *TxRepo) ListByNetwork(
	ctx context.Context,
	network string,
	limit int,
) ([]*domain.Transaction, error) {
	query := `
		SELECT network, record_id, tx_hash, block_number, ts, from_address, to_address,
		       value, fee, status, tx_type, method, section, is_signed, usd_value, created_at
		FROM transactions
		WHERE network = $1
		ORDER BY block_number DESC
		LIMIT $2
	`

	var rows []txRow
	if err := r.db.SelectContext(ctx, &rows, query, network, limit); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	txs := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		txs = append(txs, rows[i].toDomain())
	}
	return txs, nil
}
