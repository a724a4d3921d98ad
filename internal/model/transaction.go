package model

import (
	"time"
)

// ============================================================================
// 流水类型常量
// ============================================================================

const (
	TransactionTypeDeposit         = "DEPOSIT"          // 充值（支付请求审批通过）
	TransactionTypePurchase        = "PURCHASE"         // 购买扣款
	TransactionTypeCaseOpening     = "CASE_OPENING"     // 开箱扣款
	TransactionTypeReferralBonus   = "REFERRAL_BONUS"   // 邀请奖励
	TransactionTypeAdminAdjustment = "ADMIN_ADJUSTMENT" // 管理员调账
	TransactionTypeRefund          = "REFUND"           // 退款
)

// 邀请奖励触发事件类型，配合 related_referral_id 组成幂等键
const (
	ReferralEventFirstPurchase = "FIRST_PURCHASE"
)

// BalanceTransaction 余额流水表
// 记录每一笔余额变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 冲正通过新增反向流水实现
// 2. 记录交易前后余额 —— 便于校验余额一致性
// 3. (related_referral_id, event_type) 唯一索引 —— 同一邀请同一事件最多发一次奖励
type BalanceTransaction struct {
	ID                   int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo        string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	UserID               int64     `gorm:"index;not null" json:"user_id"`
	Type                 string    `gorm:"type:varchar(20);not null" json:"type"`
	Amount               int64     `gorm:"not null" json:"amount"` // 正数入账，负数出账
	Description          string    `gorm:"type:varchar(256)" json:"description"`
	BalanceBefore        int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter         int64     `gorm:"not null" json:"balance_after"`
	RelatedRequestID     *int64    `gorm:"index" json:"related_request_id,omitempty"`      // 关联支付请求
	RelatedPurchaseID    *int64    `gorm:"index" json:"related_purchase_id,omitempty"`     // 关联购买订单
	RelatedCaseOpeningID *int64    `gorm:"index" json:"related_case_opening_id,omitempty"` // 关联开箱记录
	RelatedReferralID    *int64    `gorm:"uniqueIndex:uk_referral_event" json:"related_referral_id,omitempty"`
	EventType            *string   `gorm:"type:varchar(32);uniqueIndex:uk_referral_event" json:"event_type,omitempty"`
	CreatedAt            time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (BalanceTransaction) TableName() string {
	return "balance_transactions"
}
