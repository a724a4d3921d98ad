package model

import (
	"time"
)

const (
	RequestStatusPending  = "PENDING"
	RequestStatusApproved = "APPROVED"
	RequestStatusRejected = "REJECTED"
)

// ValidRequestTransitions 支付请求状态机
// PENDING 是唯一的非终态，离开 PENDING 之后不允许再变更
var ValidRequestTransitions = map[string][]string{
	RequestStatusPending: {RequestStatusApproved, RequestStatusRejected},
}

func CanTransitionRequest(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidRequestTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// PaymentRequest 支付请求表
// 用户发起充值请求，管理员审批：通过则入账，驳回则不动账
type PaymentRequest struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestNo     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_no"`
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	Amount        int64     `gorm:"not null" json:"amount"`
	Status        string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	PaymentMethod string    `gorm:"type:varchar(64)" json:"payment_method"` // 支付渠道备注（卡号、钱包地址等）
	AdminNotes    string    `gorm:"type:varchar(256)" json:"admin_notes"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PaymentRequest) TableName() string {
	return "payment_requests"
}
