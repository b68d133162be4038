package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/udisondev/updstatus/internal/model"
)

const updateStatusTable = "update_status"

// UpdateStatusRepository persists the single-row update_status table.
//
// Every method takes an optional transaction. With a nil tx the method works
// on its own connection (or, for ClearAndSave, its own transaction) and
// releases it before returning. With a non-nil tx the method runs inside the
// caller's transaction and never commits, rolls back or releases it.
//
// No in-process locking guards the single-row invariant: concurrent
// ClearAndSave calls rely on the isolation level of the database.
type UpdateStatusRepository struct {
	provider Provider
	loader   TransactionLoader
	metrics  *Metrics
}

// RepositoryOption configures an UpdateStatusRepository.
type RepositoryOption func(*UpdateStatusRepository)

// WithMetrics records operation counts and latencies.
func WithMetrics(m *Metrics) RepositoryOption {
	return func(r *UpdateStatusRepository) {
		r.metrics = m
	}
}

// NewUpdateStatusRepository creates a repository that acquires connections
// from provider and rebuilds transactions with loader.
func NewUpdateStatusRepository(provider Provider, loader TransactionLoader, opts ...RepositoryOption) *UpdateStatusRepository {
	r := &UpdateStatusRepository{provider: provider, loader: loader}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// GetLast returns the recorded update status.
// Returns nil, nil if none is recorded.
func (r *UpdateStatusRepository) GetLast(ctx context.Context, tx Tx) (status *model.UpdateStatus, err error) {
	start := time.Now()
	defer func() { r.metrics.observe("get_last", start, err) }()

	query := `
		SELECT update_status.transaction_id, update_status.updated, ` + transactionColumns + `
		FROM update_status
		LEFT JOIN ledger_transaction ON update_status.transaction_id = ledger_transaction.id
	`

	err = withQuerier(ctx, r.provider, tx, func(q Querier) error {
		rows, err := q.Query(ctx, query)
		if err != nil {
			return &StorageError{Op: "get last", Err: err}
		}
		defer rows.Close()

		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return &StorageError{Op: "get last", Err: err}
			}
			return nil
		}

		var (
			statusTxID int64
			updated    bool
			row        TransactionRow
		)
		if err := rows.Scan(append([]any{&statusTxID, &updated}, row.dest()...)...); err != nil {
			return &StorageError{Op: "get last", Err: fmt.Errorf("scanning update status row: %w", err)}
		}

		t, err := r.loader.LoadTransaction(ctx, row)
		if err != nil {
			slog.Debug("unable to load update transaction", "transactionID", statusTxID, "error", err)
			return &StorageError{Op: "get last", Err: &ReconstructionError{TransactionID: statusTxID, Err: err}}
		}

		if err := checkSingleRow(rows); err != nil {
			return err
		}
		status = model.NewUpdateStatus(t, updated)
		return nil
	})
	if err != nil {
		return nil, asStorageError("get last", err)
	}
	return status, nil
}

// checkSingleRow fails if the cursor, already past its first row, has more.
func checkSingleRow(rows Rows) error {
	found := int64(1)
	for rows.Next() {
		found++
	}
	if err := rows.Err(); err != nil {
		return &StorageError{Op: "get last", Err: err}
	}
	if found > 1 {
		return &InvariantError{Table: updateStatusTable, Op: "get last", Rows: found}
	}
	return nil
}

// Save inserts the status. Exactly one row must be created.
func (r *UpdateStatusRepository) Save(ctx context.Context, tx Tx, status *model.UpdateStatus) (err error) {
	start := time.Now()
	defer func() { r.metrics.observe("save", start, err) }()

	if err := checkStatus("save", status); err != nil {
		return err
	}

	err = withQuerier(ctx, r.provider, tx, func(q Querier) error {
		return save(ctx, q, status)
	})
	if err != nil {
		slog.Error("unable to save update status", "transactionID", status.TransactionID(), "error", err)
		return asStorageError("save", err)
	}
	return nil
}

// checkStatus rejects statuses that would write transaction_id 0.
func checkStatus(op string, status *model.UpdateStatus) error {
	if status == nil || status.Transaction == nil {
		return fmt.Errorf("%s: %w", op, ErrIncompleteStatus)
	}
	return nil
}

func save(ctx context.Context, q Querier, status *model.UpdateStatus) error {
	n, err := q.Exec(ctx,
		`INSERT INTO update_status (transaction_id, updated) VALUES (?, ?)`,
		status.TransactionID(), status.Updated,
	)
	if err != nil {
		return &StorageError{Op: "save", Err: fmt.Errorf("inserting update status %d: %w", status.TransactionID(), err)}
	}
	if n != 1 {
		return &InvariantError{Table: updateStatusTable, Op: "save", Rows: n}
	}
	return nil
}

// Update sets the updated flag of the row referencing status's transaction.
// A missing row is not an error; more than one affected row is.
func (r *UpdateStatusRepository) Update(ctx context.Context, tx Tx, status *model.UpdateStatus) (err error) {
	start := time.Now()
	defer func() { r.metrics.observe("update", start, err) }()

	if err := checkStatus("update", status); err != nil {
		return err
	}

	var n int64
	err = withQuerier(ctx, r.provider, tx, func(q Querier) error {
		var err error
		n, err = q.Exec(ctx,
			`UPDATE update_status SET updated = ? WHERE transaction_id = ?`,
			status.Updated, status.TransactionID(),
		)
		if err != nil {
			return &StorageError{Op: "update", Err: fmt.Errorf("updating update status %d: %w", status.TransactionID(), err)}
		}
		if n > 1 {
			return &InvariantError{Table: updateStatusTable, Op: "update", Rows: n}
		}
		return nil
	})
	if err != nil {
		slog.Error("unable to update update status", "transactionID", status.TransactionID(), "error", err)
		return asStorageError("update", err)
	}
	if n == 0 {
		slog.Debug("no update status row to update", "transactionID", status.TransactionID())
	}
	return nil
}

// Clear deletes all rows and returns how many were removed.
// A failing delete is logged and reported as zero rows; only a failure to
// obtain a connection is returned.
func (r *UpdateStatusRepository) Clear(ctx context.Context, tx Tx) (removed int64, err error) {
	start := time.Now()
	defer func() { r.metrics.observe("clear", start, err) }()

	q := Querier(tx)
	if tx == nil {
		conn, err := r.provider.Acquire(ctx)
		if err != nil {
			slog.Error("unable to open connection", "error", err)
			return 0, &StorageError{Op: "clear", Err: err}
		}
		defer conn.Release()
		q = conn
	}

	n, err := deleteAll(ctx, q)
	if err != nil {
		slog.Warn("unable to delete update status entries", "error", err)
		return 0, nil
	}
	return n, nil
}

func deleteAll(ctx context.Context, q Querier) (int64, error) {
	return q.Exec(ctx, `DELETE FROM update_status`)
}

// ClearAndSave atomically replaces whatever status is recorded with status.
//
// With a nil tx it begins, commits and, on failure, rolls back its own
// transaction. With a caller's tx it only runs the statements; the caller
// decides the fate of the transaction.
func (r *UpdateStatusRepository) ClearAndSave(ctx context.Context, tx Tx, status *model.UpdateStatus) (err error) {
	start := time.Now()
	defer func() { r.metrics.observe("clear_and_save", start, err) }()

	if err := checkStatus("clear and save", status); err != nil {
		return err
	}

	owned := tx == nil
	if owned {
		tx, err = r.provider.Begin(ctx)
		if err != nil {
			return &StorageError{Op: "clear and save", Err: err}
		}
		// Ends the transaction on every path; a no-op after a successful commit.
		defer func() {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Error("rollback failed", "transactionID", status.TransactionID(), "error", rbErr)
			}
		}()
	}

	removed, err := deleteAll(ctx, tx)
	if err != nil {
		return &StorageError{Op: "clear and save", Err: fmt.Errorf("deleting update status: %w", err)}
	}
	if err := save(ctx, tx, status); err != nil {
		slog.Error("unable to replace update status", "transactionID", status.TransactionID(), "error", err)
		return asStorageError("clear and save", err)
	}

	if owned {
		if err := tx.Commit(ctx); err != nil {
			return &StorageError{Op: "clear and save", Err: fmt.Errorf("committing: %w", err)}
		}
	}

	slog.Info("update status replaced",
		"transactionID", status.TransactionID(),
		"updated", status.Updated,
		"removed", removed,
		"ambientTx", !owned)
	return nil
}

// asStorageError wraps err in a *StorageError for op unless it already is one.
// Invariant errors are wrapped too so callers see a single error shape while
// errors.Is(err, ErrInvariantViolation) keeps working.
func asStorageError(op string, err error) error {
	if se, ok := err.(*StorageError); ok {
		return se
	}
	return &StorageError{Op: op, Err: err}
}
