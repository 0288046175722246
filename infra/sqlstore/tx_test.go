package sqlstore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbot/rounds/core/model"
	"github.com/medbot/rounds/core/store"
)

func TestRebind(t *testing.T) {
	c := conn{dialect: dialectPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y IN ($2, $3)", c.rebind("SELECT a FROM t WHERE x = ? AND y IN (?, ?)"))
	c.dialect = dialectSQLite
	assert.Equal(t, "x = ?", c.rebind("x = ?"))
}

func TestWithinTxCommitsSwapAsThreeUpdates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := New(db, true)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE scheduled_slots SET patient_id = $1 WHERE id = $2`)).
		WithArgs(nil, int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE scheduled_slots SET patient_id = $1 WHERE id = $2`)).
		WithArgs(int64(10), int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE scheduled_slots SET patient_id = $1 WHERE id = $2`)).
		WithArgs(int64(20), int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p1, p2 := int64(10), int64(20)
	err = s.WithinTx(context.Background(), func(tx store.Tx) error {
		ctx := context.Background()
		if err := tx.SetScheduledPatient(ctx, 1, nil); err != nil {
			return err
		}
		if err := tx.SetScheduledPatient(ctx, 2, &p1); err != nil {
			return err
		}
		return tx.SetScheduledPatient(ctx, 1, &p2)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollbackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := New(db, false)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE scheduled_slots SET schedule_order = CASE`)).
		WithArgs(1, 2, 2, 1, int64(7), 1, 2).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = s.WithinTx(context.Background(), func(tx store.Tx) error {
		n, err := tx.SwapOrders(context.Background(), 7, 1, 2)
		if err != nil {
			return err
		}
		if n == 0 {
			return model.NotFound("schedule order", 1)
		}
		return nil
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapErr(t *testing.T) {
	assert.Nil(t, mapErr(nil, "x"))
	assert.ErrorIs(t, mapErr(errors.New("UNIQUE constraint failed: rooms.room_name"), "x"), model.ErrConflict)
	other := errors.New("disk I/O error")
	assert.ErrorIs(t, mapErr(other, "x"), other)
}
