package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/udisondev/updstatus/internal/model"
)

var errSimulated = errors.New("simulated error for testing")

// setupSQLite opens a migrated SQLite database in a per-test temp dir.
func setupSQLite(tb testing.TB) *SQLite {
	tb.Helper()
	ctx := context.Background()

	s, err := OpenSQLite(ctx, filepath.Join(tb.TempDir(), "status.db"))
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = s.Close() })

	require.NoError(tb, RunSQLiteMigrations(ctx, s.DB()))
	return s
}

// newRepos returns both repositories over s and stores the given ledger transactions.
func newRepos(tb testing.TB, s *SQLite, ids ...int64) (*UpdateStatusRepository, *TransactionRepository) {
	tb.Helper()
	txRepo := NewTransactionRepository(s)
	for _, id := range ids {
		require.NoError(tb, txRepo.Save(context.Background(), nil, updateTx(id)))
	}
	return NewUpdateStatusRepository(s, txRepo), txRepo
}

func updateTx(id int64) *model.Transaction {
	t := &model.Transaction{
		ID:         id,
		Type:       model.TypeUpdate,
		Subtype:    model.SubtypeCriticalUpdate,
		Height:     int32(100 + id),
		Timestamp:  int32(5000 + id),
		Attachment: []byte{0xCA, 0xFE, byte(id)},
	}
	t.FullHash = t.ComputeFullHash()
	return t
}

func countStatusRows(tb testing.TB, s *SQLite) int {
	tb.Helper()
	var n int
	require.NoError(tb, s.DB().QueryRowContext(context.Background(), `SELECT COUNT(*) FROM update_status`).Scan(&n))
	return n
}

// insertRawStatus bypasses the repository to corrupt the table on purpose.
func insertRawStatus(tb testing.TB, s *SQLite, txID int64, updated bool) {
	tb.Helper()
	_, err := s.DB().ExecContext(context.Background(),
		`INSERT INTO update_status (transaction_id, updated) VALUES (?, ?)`, txID, updated)
	require.NoError(tb, err)
}

// fakeProvider hands out a single scripted connection.
type fakeProvider struct {
	conn       *fakeConn
	acquireErr error
	beginErr   error
}

func (p *fakeProvider) Acquire(context.Context) (Conn, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	return p.conn, nil
}

func (p *fakeProvider) Begin(context.Context) (Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	return &fakeTx{fakeConn: p.conn}, nil
}

type fakeConn struct {
	affected int64
	execErr  error
	queryErr error
	released int
	execs    []string
}

func (c *fakeConn) Exec(_ context.Context, query string, _ ...any) (int64, error) {
	c.execs = append(c.execs, query)
	if c.execErr != nil {
		return 0, c.execErr
	}
	return c.affected, nil
}

func (c *fakeConn) Query(context.Context, string, ...any) (Rows, error) {
	if c.queryErr != nil {
		return nil, c.queryErr
	}
	return nil, errSimulated
}

func (c *fakeConn) Release() { c.released++ }

type fakeTx struct {
	*fakeConn
	commits   int
	rollbacks int
}

func (t *fakeTx) Commit(context.Context) error   { t.commits++; return nil }
func (t *fakeTx) Rollback(context.Context) error { t.rollbacks++; return nil }

// spyTx counts how often the wrapped transaction is finished.
type spyTx struct {
	Tx
	commits   int
	rollbacks int
}

func (t *spyTx) Commit(ctx context.Context) error {
	t.commits++
	return t.Tx.Commit(ctx)
}

func (t *spyTx) Rollback(ctx context.Context) error {
	t.rollbacks++
	return t.Tx.Rollback(ctx)
}

// failingLoader rejects every row.
type failingLoader struct{}

func (failingLoader) LoadTransaction(context.Context, TransactionRow) (*model.Transaction, error) {
	return nil, errSimulated
}

func modelStatus(id int64, updated bool) *model.UpdateStatus {
	return model.NewUpdateStatus(updateTx(id), updated)
}
