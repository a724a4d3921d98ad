package repository

import (
	"context"
	"errors"

	"keymarket/internal/model"

	"gorm.io/gorm"
)

var ErrPurchaseNotFound = errors.New("购买订单不存在")

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) Create(ctx context.Context, tx *gorm.DB, purchase *model.Purchase) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(purchase).Error
}

// GetByRequestID 幂等查询：相同 request_id 的重放返回原结果
func (r *PurchaseRepository) GetByRequestID(ctx context.Context, requestID string) (*model.Purchase, error) {
	var purchase model.Purchase
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

// CountByUserID 用户已完成购买数，首购判定用
func (r *PurchaseRepository) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Purchase{}).
		Where("user_id = ? AND status = ?", userID, model.SettlementStatusCompleted).
		Count(&count).Error
	return count, err
}

func (r *PurchaseRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Purchase, int64, error) {
	var purchases []*model.Purchase
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Purchase{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&purchases).Error

	return purchases, total, err
}

// ============================================================
// 开箱记录
// ============================================================

type CaseOpeningRepository struct {
	db *gorm.DB
}

func NewCaseOpeningRepository(db *gorm.DB) *CaseOpeningRepository {
	return &CaseOpeningRepository{db: db}
}

func (r *CaseOpeningRepository) Create(ctx context.Context, tx *gorm.DB, opening *model.CaseOpening) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(opening).Error
}

func (r *CaseOpeningRepository) GetByRequestID(ctx context.Context, requestID string) (*model.CaseOpening, error) {
	var opening model.CaseOpening
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&opening).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &opening, nil
}

func (r *CaseOpeningRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.CaseOpening, int64, error) {
	var openings []*model.CaseOpening
	var total int64

	query := r.db.WithContext(ctx).Model(&model.CaseOpening{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&openings).Error

	return openings, total, err
}
