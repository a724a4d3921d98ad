package model

import (
	"time"
)

const (
	ProductTypeKey  = "KEY"  // 激活码商品，交付时从 key 池领一枚
	ProductTypeCase = "CASE" // 盲盒商品，开箱后奖励另一个商品
)

const (
	KeyStatusAvailable = "AVAILABLE"
	KeyStatusAssigned  = "ASSIGNED"
)

// Product 商品表（仅结算所需的最小字段，目录展示由上游系统负责）
type Product struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"type:varchar(128);not null" json:"name"`
	Price       int64     `gorm:"not null" json:"price"` // 金币价
	ProductType string    `gorm:"type:varchar(20);not null" json:"product_type"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Product) TableName() string {
	return "products"
}

// ProductKey 激活码池
// 结算事务内通过条件更新领取，领完即售罄
type ProductKey struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID           int64     `gorm:"index;not null" json:"product_id"`
	KeyCode             string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"key_code"`
	Status              string    `gorm:"type:varchar(20);index;not null;default:AVAILABLE" json:"status"`
	AssignedInventoryID *int64    `gorm:"index" json:"assigned_inventory_id,omitempty"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ProductKey) TableName() string {
	return "product_keys"
}
