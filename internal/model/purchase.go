package model

import (
	"time"
)

const (
	SettlementStatusCompleted = "COMPLETED"
)

const (
	InventorySourcePurchase    = "PURCHASE"
	InventorySourceCaseOpening = "CASE_OPENING"
)

const (
	ActivationStatusUnused    = "UNUSED"
	ActivationStatusActivated = "ACTIVATED"
)

// Purchase 购买订单表
// 一笔成功的购买恰好对应一条扣款流水；结算失败时整行不落库
type Purchase struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PurchaseNo    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"purchase_no"`
	RequestID     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_id"` // 幂等ID，客户端生成
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	ProductID     int64     `gorm:"index;not null" json:"product_id"`
	Price         int64     `gorm:"not null" json:"price"`
	Status        string    `gorm:"type:varchar(20);not null" json:"status"`
	TransactionID int64     `gorm:"not null" json:"transaction_id"` // 对应的扣款流水
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Purchase) TableName() string {
	return "purchases"
}

// CaseOpening 开箱记录表
type CaseOpening struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OpeningNo        string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"opening_no"`
	RequestID        string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_id"`
	UserID           int64     `gorm:"index;not null" json:"user_id"`
	CaseProductID    int64     `gorm:"index;not null" json:"case_product_id"`
	Cost             int64     `gorm:"not null" json:"cost"`
	AwardedProductID int64     `gorm:"not null" json:"awarded_product_id"` // 抽中的商品，抽取策略由调用方决定
	Status           string    `gorm:"type:varchar(20);not null" json:"status"`
	TransactionID    int64     `gorm:"not null" json:"transaction_id"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (CaseOpening) TableName() string {
	return "case_openings"
}

// UserInventory 用户库存表
// 用户可删除自己的库存行，删除不影响历史流水
type UserInventory struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           int64     `gorm:"index;not null" json:"user_id"`
	ProductID        int64     `gorm:"index;not null" json:"product_id"`
	SourceType       string    `gorm:"type:varchar(20);not null" json:"source_type"`
	SourceID         int64     `gorm:"not null" json:"source_id"` // 购买订单或开箱记录ID
	ActivationKey    string    `gorm:"type:varchar(64)" json:"activation_key"`
	ActivationStatus string    `gorm:"type:varchar(20);not null;default:UNUSED" json:"activation_status"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (UserInventory) TableName() string {
	return "user_inventories"
}
