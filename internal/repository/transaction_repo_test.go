package repository

import (
	"context"
	"testing"

	"keymarket/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestTransactionCreateBonusDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)

	// (related_referral_id, event_type) 唯一索引冲突 → 奖励已发放
	mock.ExpectExec("INSERT INTO `balance_transactions`").
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry '1-FIRST_PURCHASE' for key 'uk_referral_event'"})

	referralID := int64(1)
	eventType := model.ReferralEventFirstPurchase
	trans := &model.BalanceTransaction{
		TransactionNo:     "TXN001",
		UserID:            10,
		Type:              model.TransactionTypeReferralBonus,
		Amount:            100,
		RelatedReferralID: &referralID,
		EventType:         &eventType,
	}

	err := repo.Create(context.Background(), nil, trans)
	assert.ErrorIs(t, err, ErrBonusAlreadyGranted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionCreateNonBonusDuplicatePassesThrough(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)

	// 没有邀请引用的流水撞唯一键（比如流水号重复）不能伪装成奖励重复
	mock.ExpectExec("INSERT INTO `balance_transactions`").
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry 'TXN001' for key 'uni_balance_transactions_transaction_no'"})

	trans := &model.BalanceTransaction{
		TransactionNo: "TXN001",
		UserID:        10,
		Type:          model.TransactionTypeDeposit,
		Amount:        100,
	}

	err := repo.Create(context.Background(), nil, trans)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBonusAlreadyGranted)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionExistsReferralBonus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)

	mock.ExpectQuery("SELECT count(.+) FROM `balance_transactions`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	granted, err := repo.ExistsReferralBonus(context.Background(), 1, model.ReferralEventFirstPurchase)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionListByUserIDNewestFirst(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)

	mock.ExpectQuery("SELECT count(.+) FROM `balance_transactions`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT (.+) FROM `balance_transactions` WHERE user_id = (.+) ORDER BY created_at DESC").
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_no", "user_id", "amount"}).
			AddRow(2, "TXN002", 10, -300).
			AddRow(1, "TXN001", 10, 500))

	transactions, total, err := repo.ListByUserID(context.Background(), 10, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, transactions, 2)
	assert.Equal(t, "TXN002", transactions[0].TransactionNo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionSumByUserID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)

	mock.ExpectQuery("SELECT COALESCE(.+) FROM `balance_transactions`").
		WillReturnRows(sqlmock.NewRows([]string{"COALESCE(SUM(amount), 0)"}).AddRow(200))

	sum, err := repo.SumByUserID(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(200), sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}
