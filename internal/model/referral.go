package model

import (
	"time"
)

// Referral 邀请关系表
// 注册时写入，一个用户最多只有一个邀请人（referred_user_id 唯一索引兜底）
type Referral struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ReferrerUserID   int64     `gorm:"index;not null" json:"referrer_user_id"`
	ReferredUserID   int64     `gorm:"uniqueIndex;not null" json:"referred_user_id"`
	ReferralCodeUsed string    `gorm:"type:varchar(16);not null" json:"referral_code_used"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Referral) TableName() string {
	return "referrals"
}
