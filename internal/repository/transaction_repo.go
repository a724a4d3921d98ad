package repository

import (
	"context"
	"errors"

	"keymarket/internal/model"

	"gorm.io/gorm"
)

// ErrBonusAlreadyGranted 同一邀请同一事件的奖励流水已存在
var ErrBonusAlreadyGranted = errors.New("邀请奖励已发放，请勿重复操作")

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create 追加一条流水
// (related_referral_id, event_type) 唯一索引冲突说明奖励重复发放，
// 翻译成业务错误交给调用方处理
func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.BalanceTransaction) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).Create(trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) && trans.RelatedReferralID != nil {
			return ErrBonusAlreadyGranted
		}
		return err
	}
	return nil
}

func (r *TransactionRepository) GetByTransactionNo(ctx context.Context, transactionNo string) (*model.BalanceTransaction, error) {
	var trans model.BalanceTransaction
	err := r.db.WithContext(ctx).Where("transaction_no = ?", transactionNo).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

// ListByUserID 按创建时间倒序分页查询用户流水
func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.BalanceTransaction, int64, error) {
	var transactions []*model.BalanceTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.BalanceTransaction{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

// ExistsReferralBonus 查询某邀请某事件是否已发放过奖励
func (r *TransactionRepository) ExistsReferralBonus(ctx context.Context, referralID int64, eventType string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.BalanceTransaction{}).
		Where("related_referral_id = ? AND event_type = ?", referralID, eventType).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SumByUserID 用户流水总和，对账用：任何时刻应等于 users.balance
func (r *TransactionRepository) SumByUserID(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&model.BalanceTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}
