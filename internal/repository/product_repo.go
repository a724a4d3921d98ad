package repository

import (
	"context"
	"errors"

	"keymarket/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrProductNotFound = errors.New("商品不存在")
	ErrKeySoldOut      = errors.New("该商品激活码已售罄")
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

// AddKeys 向激活码池补货
func (r *ProductRepository) AddKeys(ctx context.Context, keys []*model.ProductKey) error {
	return r.db.WithContext(ctx).Create(keys).Error
}

// ClaimKey 在结算事务内领取一枚可用激活码
//
// 【关键点】FOR UPDATE 锁定候选行后再改状态，
// 两笔并发结算不可能领到同一枚 key；池空返回 ErrKeySoldOut，
// 由外层事务整体回滚，扣款不会落库
func (r *ProductRepository) ClaimKey(ctx context.Context, tx *gorm.DB, productID int64) (*model.ProductKey, error) {
	var key model.ProductKey
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND status = ?", productID, model.KeyStatusAvailable).
		Order("id ASC").
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrKeySoldOut
		}
		return nil, err
	}

	result := tx.WithContext(ctx).
		Model(&model.ProductKey{}).
		Where("id = ? AND status = ?", key.ID, model.KeyStatusAvailable).
		Update("status", model.KeyStatusAssigned)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrKeySoldOut
	}

	key.Status = model.KeyStatusAssigned
	return &key, nil
}

// BindInventory 把已领取的 key 绑定到库存行
func (r *ProductRepository) BindInventory(ctx context.Context, tx *gorm.DB, keyID, inventoryID int64) error {
	return tx.WithContext(ctx).
		Model(&model.ProductKey{}).
		Where("id = ?", keyID).
		Update("assigned_inventory_id", inventoryID).Error
}
