package integration

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/udisondev/updstatus/internal/db"
)

// UpdateStatusSuite проверяет UpdateStatusRepository на PostgreSQL.
type UpdateStatusSuite struct {
	IntegrationSuite
}

func TestUpdateStatusSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	suite.Run(t, new(UpdateStatusSuite))
}

func (s *UpdateStatusSuite) TestGetLastEmpty() {
	got, err := s.status.GetLast(s.ctx, nil)
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *UpdateStatusSuite) TestSaveRoundTrip() {
	s.storeLedger(10)

	s.Require().NoError(s.status.ClearAndSave(s.ctx, nil, status(10, true)))

	got, err := s.status.GetLast(s.ctx, nil)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(int64(10), got.TransactionID())
	s.True(got.Updated)
	s.Equal(status(10, true).Transaction.FullHash, got.Transaction.FullHash)
}

func (s *UpdateStatusSuite) TestClearAndSaveReplaces() {
	s.storeLedger(1, 2)

	s.Require().NoError(s.status.ClearAndSave(s.ctx, nil, status(1, true)))
	s.Require().NoError(s.status.ClearAndSave(s.ctx, nil, status(2, false)))

	got, err := s.status.GetLast(s.ctx, nil)
	s.Require().NoError(err)
	s.Equal(int64(2), got.TransactionID())
	s.False(got.Updated)
	s.Equal(1, s.statusRows())
}

func (s *UpdateStatusSuite) TestGetLastDetectsSecondRow() {
	s.storeLedger(1, 2)
	s.Require().NoError(s.status.Save(s.ctx, nil, status(1, false)))
	s.Require().NoError(s.status.Save(s.ctx, nil, status(2, false)))

	got, err := s.status.GetLast(s.ctx, nil)
	s.Nil(got)
	s.Require().ErrorIs(err, db.ErrInvariantViolation)

	var invErr *db.InvariantError
	s.Require().ErrorAs(err, &invErr)
	s.Equal("update_status", invErr.Table)
	s.Equal(int64(2), invErr.Rows)
}

func (s *UpdateStatusSuite) TestUpdateIsEffective() {
	s.storeLedger(7)
	s.Require().NoError(s.status.ClearAndSave(s.ctx, nil, status(7, false)))

	s.Require().NoError(s.status.Update(s.ctx, nil, status(7, true)))

	got, err := s.status.GetLast(s.ctx, nil)
	s.Require().NoError(err)
	s.True(got.Updated)
}

func (s *UpdateStatusSuite) TestClearReturnsRemovedRows() {
	s.storeLedger(1, 2)
	s.Require().NoError(s.status.Save(s.ctx, nil, status(1, false)))
	s.Require().NoError(s.status.Save(s.ctx, nil, status(2, false)))

	removed, err := s.status.Clear(s.ctx, nil)
	s.Require().NoError(err)
	s.Equal(int64(2), removed)

	removed, err = s.status.Clear(s.ctx, nil)
	s.Require().NoError(err)
	s.Zero(removed)
}

func (s *UpdateStatusSuite) TestSaveUnknownTransaction() {
	err := s.status.Save(s.ctx, nil, status(404, false))

	var storageErr *db.StorageError
	s.Require().ErrorAs(err, &storageErr)
	s.NotErrorIs(err, db.ErrInvariantViolation)
	s.Zero(s.statusRows())
}

func (s *UpdateStatusSuite) TestClearAndSaveFailureKeepsPreviousRow() {
	s.storeLedger(1)
	s.Require().NoError(s.status.ClearAndSave(s.ctx, nil, status(1, true)))

	// Транзакция 404 отсутствует в ledger: INSERT нарушает FK после DELETE.
	err := s.status.ClearAndSave(s.ctx, nil, status(404, false))
	s.Require().Error(err)

	got, err := s.status.GetLast(s.ctx, nil)
	s.Require().NoError(err)
	s.Equal(int64(1), got.TransactionID())
	s.True(got.Updated)
}

func (s *UpdateStatusSuite) TestAmbientTransactionRollback() {
	s.storeLedger(1, 2)
	s.Require().NoError(s.status.ClearAndSave(s.ctx, nil, status(1, false)))

	tx, err := s.db.Begin(s.ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.status.ClearAndSave(s.ctx, tx, status(2, true)))

	inside, err := s.status.GetLast(s.ctx, tx)
	s.Require().NoError(err)
	s.Equal(int64(2), inside.TransactionID())

	outside, err := s.status.GetLast(s.ctx, nil)
	s.Require().NoError(err)
	s.Equal(int64(1), outside.TransactionID(), "uncommitted replace must not be visible")

	s.Require().NoError(tx.Rollback(s.ctx))

	got, err := s.status.GetLast(s.ctx, nil)
	s.Require().NoError(err)
	s.Equal(int64(1), got.TransactionID())
	s.False(got.Updated)
}

func (s *UpdateStatusSuite) TestAmbientTransactionCommit() {
	s.storeLedger(3)

	tx, err := s.db.Begin(s.ctx)
	s.Require().NoError(err)
	defer func() { _ = tx.Rollback(s.ctx) }()

	s.Require().NoError(s.status.ClearAndSave(s.ctx, tx, status(3, false)))
	s.Require().NoError(s.status.Update(s.ctx, tx, status(3, true)))

	removed, err := s.status.Clear(s.ctx, tx)
	s.Require().NoError(err)
	s.Equal(int64(1), removed)
	s.Require().NoError(s.status.Save(s.ctx, tx, status(3, true)))

	s.Require().NoError(tx.Commit(s.ctx))

	got, err := s.status.GetLast(s.ctx, nil)
	s.Require().NoError(err)
	s.Equal(int64(3), got.TransactionID())
	s.True(got.Updated)
}

func (s *UpdateStatusSuite) TestAmbientFailureLeavesTransactionToCaller() {
	s.storeLedger(1)
	s.Require().NoError(s.status.ClearAndSave(s.ctx, nil, status(1, false)))

	tx, err := s.db.Begin(s.ctx)
	s.Require().NoError(err)

	err = s.status.ClearAndSave(s.ctx, tx, status(404, false))
	s.Require().Error(err)

	// PostgreSQL помечает транзакцию как aborted; решение остаётся за вызывающим.
	s.Require().NoError(tx.Rollback(s.ctx))

	got, err := s.status.GetLast(s.ctx, nil)
	s.Require().NoError(err)
	s.Equal(int64(1), got.TransactionID())
}

func (s *UpdateStatusSuite) TestConcurrentReadersNeverSeeTwoRows() {
	ids := []int64{1, 2, 3, 4, 5}
	s.storeLedger(ids...)
	s.Require().NoError(s.status.ClearAndSave(s.ctx, nil, status(ids[0], false)))

	var g errgroup.Group
	g.Go(func() error {
		for i := range 50 {
			if err := s.status.ClearAndSave(s.ctx, nil, status(ids[i%len(ids)], i%2 == 0)); err != nil {
				return err
			}
		}
		return nil
	})
	for range 4 {
		g.Go(func() error {
			for range 50 {
				got, err := s.status.GetLast(s.ctx, nil)
				if err != nil {
					return err
				}
				if got == nil {
					return errors.New("status vanished during replace")
				}
			}
			return nil
		})
	}

	s.Require().NoError(g.Wait())
	s.Equal(1, s.statusRows())
}
