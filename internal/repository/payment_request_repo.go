package repository

import (
	"context"
	"errors"
	"time"

	"keymarket/internal/model"

	"gorm.io/gorm"
)

var (
	ErrRequestNotFound = errors.New("支付请求不存在")
	// ErrRequestProcessed 条件更新未命中：请求不存在或已离开 PENDING 状态
	ErrRequestProcessed = errors.New("支付请求不存在或已处理")
)

type PaymentRequestRepository struct {
	db *gorm.DB
}

func NewPaymentRequestRepository(db *gorm.DB) *PaymentRequestRepository {
	return &PaymentRequestRepository{db: db}
}

func (r *PaymentRequestRepository) Create(ctx context.Context, req *model.PaymentRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *PaymentRequestRepository) GetByID(ctx context.Context, id int64) (*model.PaymentRequest, error) {
	var req model.PaymentRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

// UpdateStatus 条件状态转移
//
// 【关键点】WHERE status = 'PENDING' 和状态更新在同一条语句里，
// status 列就是乐观锁：两个管理员并发审批同一笔请求，
// 只有一条 UPDATE 的 RowsAffected = 1，另一条直接落空
func (r *PaymentRequestRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus, adminNotes string) error {
	if !model.CanTransitionRequest(fromStatus, toStatus) {
		return ErrRequestProcessed
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.PaymentRequest{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(map[string]interface{}{
			"status":      toStatus,
			"admin_notes": adminNotes,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrRequestProcessed
	}

	return nil
}

func (r *PaymentRequestRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.PaymentRequest, int64, error) {
	var requests []*model.PaymentRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&model.PaymentRequest{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&requests).Error

	return requests, total, err
}

// ListByStatus 管理端待审批列表
func (r *PaymentRequestRepository) ListByStatus(ctx context.Context, status string, page, pageSize int) ([]*model.PaymentRequest, int64, error) {
	var requests []*model.PaymentRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&model.PaymentRequest{}).Where("status = ?", status)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&requests).Error

	return requests, total, err
}

// GetExpiredPending 查询挂起超时的请求，供后台任务自动驳回
func (r *PaymentRequestRepository) GetExpiredPending(ctx context.Context, before time.Time, limit int) ([]*model.PaymentRequest, error) {
	var requests []*model.PaymentRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.RequestStatusPending, before).
		Limit(limit).
		Find(&requests).Error
	return requests, err
}
