package service

import (
	"context"
	"testing"

	"keymarket/internal/config"
	"keymarket/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReferralService(t *testing.T) (*ReferralService, sqlmock.Sqlmock) {
	db, mock := newMockDB(t)
	cfg := &config.Config{}
	cfg.Business.ReferralBonusAmount = 100
	return NewReferralService(db, nil, cfg), mock
}

func TestRecordReferralEmptyCodeIgnored(t *testing.T) {
	svc, mock := newReferralService(t)

	referral, err := svc.RecordReferral(context.Background(), nil, "", 10)
	require.NoError(t, err)
	assert.Nil(t, referral)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordReferralUnknownCodeIgnored(t *testing.T) {
	svc, mock := newReferralService(t)

	// 邀请码查不到人，注册继续，不报错
	mock.ExpectQuery("SELECT (.+) FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	referral, err := svc.RecordReferral(context.Background(), nil, "deadbeef", 10)
	require.NoError(t, err)
	assert.Nil(t, referral)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordReferralSelfReferralIgnored(t *testing.T) {
	svc, mock := newReferralService(t)

	mock.ExpectQuery("SELECT (.+) FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "referral_code"}).AddRow(10, "cafe0123"))

	referral, err := svc.RecordReferral(context.Background(), nil, "cafe0123", 10)
	require.NoError(t, err)
	assert.Nil(t, referral)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantReferralBonusRejectsNonPositiveAmount(t *testing.T) {
	svc, mock := newReferralService(t)

	_, err := svc.GrantReferralBonus(context.Background(), 1, 0, model.ReferralEventFirstPurchase)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantReferralBonusAlreadyGranted(t *testing.T) {
	svc, mock := newReferralService(t)

	// 预检查发现奖励流水已存在，按已发放处理，零写入
	mock.ExpectQuery("SELECT (.+) FROM `referrals`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "referrer_user_id", "referred_user_id"}).
			AddRow(1, 5, 10))
	mock.ExpectQuery("SELECT count(.+) FROM `balance_transactions`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	trans, err := svc.GrantReferralBonus(context.Background(), 1, 100, model.ReferralEventFirstPurchase)
	require.NoError(t, err)
	assert.Nil(t, trans)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantReferralBonusMissingReferral(t *testing.T) {
	svc, mock := newReferralService(t)

	mock.ExpectQuery("SELECT (.+) FROM `referrals`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	trans, err := svc.GrantReferralBonus(context.Background(), 404, 100, model.ReferralEventFirstPurchase)
	require.NoError(t, err)
	assert.Nil(t, trans)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantFirstPurchaseBonusNoReferralSilent(t *testing.T) {
	svc, mock := newReferralService(t)

	// 用户没有邀请关系，静默返回
	mock.ExpectQuery("SELECT (.+) FROM `referrals`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := svc.GrantFirstPurchaseBonus(context.Background(), 10)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
