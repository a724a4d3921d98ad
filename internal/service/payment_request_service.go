package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"keymarket/internal/config"
	"keymarket/internal/infrastructure/lock"
	"keymarket/internal/model"
	"keymarket/internal/repository"
	"keymarket/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// PaymentRequestService 支付请求工作流
// 状态机：PENDING -> APPROVED（入账）或 PENDING -> REJECTED（不动账），
// 终态不可再转移
type PaymentRequestService struct {
	db            *gorm.DB
	redisClient   *redis.Client
	cfg           *config.Config
	requestRepo   *repository.PaymentRequestRepository
	userRepo      *repository.UserRepository
	outboxRepo    *repository.OutboxRepository
	ledgerService *LedgerService
}

func NewPaymentRequestService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *PaymentRequestService {
	return &PaymentRequestService{
		db:            db,
		redisClient:   redisClient,
		cfg:           cfg,
		requestRepo:   repository.NewPaymentRequestRepository(db),
		userRepo:      repository.NewUserRepository(db),
		outboxRepo:    repository.NewOutboxRepository(db),
		ledgerService: NewLedgerService(db, redisClient),
	}
}

// Submit 用户发起充值请求
func (s *PaymentRequestService) Submit(ctx context.Context, userID, amount int64, paymentMethod string) (*model.PaymentRequest, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	request := &model.PaymentRequest{
		RequestNo:     idgen.GenerateRequestNo(),
		UserID:        userID,
		Amount:        amount,
		Status:        model.RequestStatusPending,
		PaymentMethod: paymentMethod,
	}

	if err := s.requestRepo.Create(ctx, request); err != nil {
		return nil, fmt.Errorf("创建支付请求失败: %w", err)
	}

	log.Printf("支付请求已创建: requestNo=%s, userID=%d, amount=%d", request.RequestNo, userID, amount)
	return request, nil
}

// Approve 管理员审批通过
//
// 【关键点】整个系统最敏感的操作，必须保证：
// 1. 并发安全：分布式锁 + status = PENDING 条件更新，双重防线防止重复审批
// 2. 原子性：状态翻转和入账在同一个数据库事务里，
//    不可能出现"已审批未入账"或"已入账仍挂起"的中间态
func (s *PaymentRequestService) Approve(ctx context.Context, requestID int64, adminNotes string) (*model.PaymentRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, repository.ErrRequestProcessed
		}
		return nil, fmt.Errorf("查询支付请求失败: %w", err)
	}
	if request.Status != model.RequestStatusPending {
		return nil, repository.ErrRequestProcessed
	}

	requestLock := lock.NewRequestLock(s.redisClient, requestID, idgen.GenerateRequestNo())
	if err := requestLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer requestLock.Unlock(ctx)

	// 获取锁后再次检查状态
	request, err = s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, repository.ErrRequestProcessed
	}
	if request.Status != model.RequestStatusPending {
		return nil, repository.ErrRequestProcessed
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.requestRepo.UpdateStatus(ctx, tx, requestID, model.RequestStatusPending, model.RequestStatusApproved, adminNotes); err != nil {
			return err
		}

		trans, err := s.ledgerService.CreditTx(ctx, tx, request.UserID, request.Amount,
			model.TransactionTypeDeposit,
			fmt.Sprintf("充值-%s", request.RequestNo),
			EntryRefs{RequestID: &request.ID})
		if err != nil {
			return err
		}

		return s.writeOutcomeOutbox(ctx, tx, request, model.RequestStatusApproved, trans.TransactionNo)
	})
	if err != nil {
		return nil, err
	}

	request.Status = model.RequestStatusApproved
	request.AdminNotes = adminNotes

	log.Printf("支付请求审批通过: requestNo=%s, userID=%d, amount=%d", request.RequestNo, request.UserID, request.Amount)
	return request, nil
}

// Reject 管理员驳回，不动账
func (s *PaymentRequestService) Reject(ctx context.Context, requestID int64, adminNotes string) (*model.PaymentRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, repository.ErrRequestProcessed
		}
		return nil, fmt.Errorf("查询支付请求失败: %w", err)
	}
	if request.Status != model.RequestStatusPending {
		return nil, repository.ErrRequestProcessed
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.requestRepo.UpdateStatus(ctx, tx, requestID, model.RequestStatusPending, model.RequestStatusRejected, adminNotes); err != nil {
			return err
		}
		return s.writeOutcomeOutbox(ctx, tx, request, model.RequestStatusRejected, "")
	})
	if err != nil {
		return nil, err
	}

	request.Status = model.RequestStatusRejected
	request.AdminNotes = adminNotes

	log.Printf("支付请求已驳回: requestNo=%s, userID=%d", request.RequestNo, request.UserID)
	return request, nil
}

// GetRequest 查询请求详情
func (s *PaymentRequestService) GetRequest(ctx context.Context, requestID int64) (*model.PaymentRequest, error) {
	return s.requestRepo.GetByID(ctx, requestID)
}

// ListUserRequests 用户自己的请求列表
func (s *PaymentRequestService) ListUserRequests(ctx context.Context, userID int64, page, pageSize int) ([]*model.PaymentRequest, int64, error) {
	return s.requestRepo.ListByUserID(ctx, userID, page, pageSize)
}

// ListPendingRequests 管理端待审批列表
func (s *PaymentRequestService) ListPendingRequests(ctx context.Context, page, pageSize int) ([]*model.PaymentRequest, int64, error) {
	return s.requestRepo.ListByStatus(ctx, model.RequestStatusPending, page, pageSize)
}

// writeOutcomeOutbox 审批结果通知走发件箱，与业务变更同事务落库
// 通知投递失败只影响发件箱重试，不会回滚账务
func (s *PaymentRequestService) writeOutcomeOutbox(ctx context.Context, tx *gorm.DB, request *model.PaymentRequest, outcome, transactionNo string) error {
	msgPayload := map[string]interface{}{
		"request_no":     request.RequestNo,
		"user_id":        request.UserID,
		"amount":         request.Amount,
		"status":         outcome,
		"transaction_no": transactionNo,
		"processed_at":   time.Now().Format(time.RFC3339),
	}
	payloadBytes, _ := json.Marshal(msgPayload)

	outboxMsg := &model.OutboxMessage{
		MessageKey: request.RequestNo,
		Topic:      s.cfg.Kafka.Topic.PaymentResult,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}
