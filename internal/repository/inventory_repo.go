package repository

import (
	"context"
	"errors"

	"keymarket/internal/model"

	"gorm.io/gorm"
)

var ErrInventoryNotFound = errors.New("库存记录不存在")

type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) Create(ctx context.Context, tx *gorm.DB, item *model.UserInventory) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (r *InventoryRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.UserInventory, int64, error) {
	var items []*model.UserInventory
	var total int64

	query := r.db.WithContext(ctx).Model(&model.UserInventory{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// DeleteByIDAndUser 用户删除自己的库存行
// 只删库存，历史流水不受影响
func (r *InventoryRepository) DeleteByIDAndUser(ctx context.Context, id, userID int64) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.UserInventory{})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrInventoryNotFound
	}

	return nil
}
