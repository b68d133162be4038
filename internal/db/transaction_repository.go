package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/udisondev/updstatus/internal/model"
)

// TransactionRow holds the ledger_transaction columns of a joined row.
// Pointers are nil when the join found no transaction.
type TransactionRow struct {
	ID         *int64
	Type       *int16
	Subtype    *int16
	Height     *int32
	Timestamp  *int32
	Attachment []byte
	FullHash   []byte
}

// dest returns scan targets in transactionColumns order.
func (r *TransactionRow) dest() []any {
	return []any{&r.ID, &r.Type, &r.Subtype, &r.Height, &r.Timestamp, &r.Attachment, &r.FullHash}
}

const transactionColumns = `ledger_transaction.id, ledger_transaction.type, ledger_transaction.subtype,
	ledger_transaction.height, ledger_transaction.timestamp, ledger_transaction.attachment,
	ledger_transaction.full_hash`

// TransactionLoader rebuilds a domain transaction from a raw row.
type TransactionLoader interface {
	LoadTransaction(ctx context.Context, row TransactionRow) (*model.Transaction, error)
}

var (
	errTransactionMissing = errors.New("referenced transaction not found")
	errHashMismatch       = errors.New("full hash does not match transaction content")
)

// TransactionRepository stores ledger transactions referenced by the update
// status and is the default TransactionLoader.
type TransactionRepository struct {
	provider Provider
}

var _ TransactionLoader = (*TransactionRepository)(nil)

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(provider Provider) *TransactionRepository {
	return &TransactionRepository{provider: provider}
}

// Save inserts a ledger transaction. FullHash is computed when empty.
// tx may be nil.
func (r *TransactionRepository) Save(ctx context.Context, tx Tx, t *model.Transaction) error {
	if len(t.FullHash) == 0 {
		t.FullHash = t.ComputeFullHash()
	}

	query := `
		INSERT INTO ledger_transaction (id, type, subtype, height, timestamp, attachment, full_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	err := withQuerier(ctx, r.provider, tx, func(q Querier) error {
		_, err := q.Exec(ctx, query, t.ID, t.Type, t.Subtype, t.Height, t.Timestamp, t.Attachment, t.FullHash)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting transaction %d: %w", t.ID, err)
	}

	slog.Debug("saved ledger transaction", "transactionID", t.ID, "height", t.Height)
	return nil
}

// Get returns the transaction with the given ID.
// Returns nil, nil if it does not exist.
func (r *TransactionRepository) Get(ctx context.Context, tx Tx, id int64) (*model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM ledger_transaction WHERE ledger_transaction.id = ?`

	var found *model.Transaction
	err := withQuerier(ctx, r.provider, tx, func(q Querier) error {
		rows, err := q.Query(ctx, query, id)
		if err != nil {
			return err
		}
		defer rows.Close()

		if !rows.Next() {
			return rows.Err()
		}
		var row TransactionRow
		if err := rows.Scan(row.dest()...); err != nil {
			return fmt.Errorf("scanning transaction row: %w", err)
		}
		found, err = r.LoadTransaction(ctx, row)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("querying transaction %d: %w", id, err)
	}
	return found, nil
}

// LoadTransaction implements TransactionLoader. It rejects rows with missing
// columns and transactions whose full hash does not verify.
func (r *TransactionRepository) LoadTransaction(_ context.Context, row TransactionRow) (*model.Transaction, error) {
	if row.ID == nil || row.Type == nil || row.Subtype == nil || row.Height == nil || row.Timestamp == nil {
		return nil, errTransactionMissing
	}

	t := &model.Transaction{
		ID:         *row.ID,
		Type:       *row.Type,
		Subtype:    *row.Subtype,
		Height:     *row.Height,
		Timestamp:  *row.Timestamp,
		Attachment: row.Attachment,
		FullHash:   row.FullHash,
	}
	if !t.Verify() {
		return nil, errHashMismatch
	}
	return t, nil
}
