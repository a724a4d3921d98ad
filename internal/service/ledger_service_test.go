package service

import (
	"context"
	"strings"
	"testing"

	"keymarket/internal/model"
	"keymarket/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewLedgerService(db, nil)

	// 金额校验在加锁和落库之前，不应产生任何 SQL
	_, err := svc.Credit(context.Background(), 1, 0, model.TransactionTypeDeposit, "充值", EntryRefs{})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Credit(context.Background(), 1, -10, model.TransactionTypeDeposit, "充值", EntryRefs{})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewLedgerService(db, nil)

	_, err := svc.Debit(context.Background(), 1, 0, model.TransactionTypePurchase, "购买", EntryRefs{})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitTxBalanceNotEnough(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewLedgerService(db, nil)

	// 余额不够时整个事务回滚，流水表零写入
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `users` (.+)FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance", "version"}).AddRow(1, 30, 0))
	mock.ExpectRollback()

	err := db.Transaction(func(tx *gorm.DB) error {
		_, txErr := svc.DebitTx(context.Background(), tx, 1, 100, model.TransactionTypePurchase, "购买", EntryRefs{})
		return txErr
	})
	assert.ErrorIs(t, err, repository.ErrBalanceNotEnough)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditTxWritesBalanceAndLedgerTogether(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewLedgerService(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `users` (.+)FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance", "version"}).AddRow(7, 100, 2))
	mock.ExpectExec("UPDATE `users` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `balance_transactions`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	var trans *model.BalanceTransaction
	err := db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		trans, txErr = svc.CreditTx(context.Background(), tx, 7, 50, model.TransactionTypeDeposit, "充值审批", EntryRefs{})
		return txErr
	})
	require.NoError(t, err)

	// 流水记录的前后快照和符号
	assert.True(t, strings.HasPrefix(trans.TransactionNo, "TXN"))
	assert.Equal(t, int64(100), trans.BalanceBefore)
	assert.Equal(t, int64(150), trans.BalanceAfter)
	assert.Equal(t, int64(50), trans.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitTxRecordsNegativeAmount(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewLedgerService(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `users` (.+)FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance", "version"}).AddRow(7, 500, 0))
	mock.ExpectExec("UPDATE `users` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `balance_transactions`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	var trans *model.BalanceTransaction
	err := db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		trans, txErr = svc.DebitTx(context.Background(), tx, 7, 200, model.TransactionTypePurchase, "购买", EntryRefs{})
		return txErr
	})
	require.NoError(t, err)

	assert.Equal(t, int64(-200), trans.Amount)
	assert.Equal(t, int64(500), trans.BalanceBefore)
	assert.Equal(t, int64(300), trans.BalanceAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminAdjustRejectsZero(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewLedgerService(db, nil)

	_, err := svc.AdminAdjust(context.Background(), 1, 0, "测试")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
