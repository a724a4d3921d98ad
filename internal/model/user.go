package model

import (
	"time"
)

const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
	RoleBooster  = "BOOSTER"
)

// User 用户表
// 余额直接挂在用户行上，是流水表的物化汇总，
// 任何时刻 balance 必须等于该用户所有流水 amount 之和
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(128);not null" json:"-"`
	Role         string    `gorm:"type:varchar(20);not null;default:CUSTOMER" json:"role"`
	Balance      int64     `gorm:"not null;default:0" json:"balance"`        // 余额（金币数）
	Version      int       `gorm:"not null;default:0" json:"version"`        // 乐观锁版本号
	ReferralCode string    `gorm:"type:varchar(16);uniqueIndex" json:"referral_code"` // 本人的邀请码
	ReferredBy   *int64    `gorm:"index" json:"referred_by_user_id"`         // 邀请人ID，注册时写入后不再变更
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
