package repository

import (
	"context"
	"errors"

	"keymarket/internal/model"

	"gorm.io/gorm"
)

var ErrReferralExists = errors.New("该用户已有邀请人")

type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// Create 写入邀请关系
// referred_user_id 唯一索引保证一个用户最多一个邀请人
func (r *ReferralRepository) Create(ctx context.Context, tx *gorm.DB, referral *model.Referral) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).Create(referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrReferralExists
		}
		return err
	}
	return nil
}

func (r *ReferralRepository) GetByID(ctx context.Context, id int64) (*model.Referral, error) {
	var referral model.Referral
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &referral, nil
}

// GetByReferredUserID 查询某用户的邀请关系，没有则返回 nil
func (r *ReferralRepository) GetByReferredUserID(ctx context.Context, referredUserID int64) (*model.Referral, error) {
	var referral model.Referral
	err := r.db.WithContext(ctx).Where("referred_user_id = ?", referredUserID).First(&referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &referral, nil
}
