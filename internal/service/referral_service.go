package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"keymarket/internal/config"
	"keymarket/internal/model"
	"keymarket/internal/repository"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// ReferralService 邀请引擎
// 注册时记录邀请关系，被邀请人达成里程碑（首购）时给邀请人发奖励
type ReferralService struct {
	db              *gorm.DB
	cfg             *config.Config
	userRepo        *repository.UserRepository
	referralRepo    *repository.ReferralRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
	ledgerService   *LedgerService
}

func NewReferralService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *ReferralService {
	return &ReferralService{
		db:              db,
		cfg:             cfg,
		userRepo:        repository.NewUserRepository(db),
		referralRepo:    repository.NewReferralRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
		ledgerService:   NewLedgerService(db, redisClient),
	}
}

// RecordReferral 注册时记录邀请关系
//
// 邀请码无效时静默放弃：邀请不是注册的前置条件，
// 返回 nil 让注册继续走完
func (s *ReferralService) RecordReferral(ctx context.Context, tx *gorm.DB, referrerCode string, newUserID int64) (*model.Referral, error) {
	if referrerCode == "" {
		return nil, nil
	}

	referrer, err := s.userRepo.GetByReferralCode(ctx, referrerCode)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			log.Printf("邀请码无法解析，忽略: code=%s, newUserID=%d", referrerCode, newUserID)
			return nil, nil
		}
		return nil, err
	}

	// 不允许自己邀请自己
	if referrer.ID == newUserID {
		return nil, nil
	}

	referral := &model.Referral{
		ReferrerUserID:   referrer.ID,
		ReferredUserID:   newUserID,
		ReferralCodeUsed: referrerCode,
	}
	if err := s.referralRepo.Create(ctx, tx, referral); err != nil {
		if errors.Is(err, repository.ErrReferralExists) {
			return nil, nil
		}
		return nil, err
	}

	if err := s.userRepo.SetReferrer(ctx, tx, newUserID, referrer.ID); err != nil {
		return nil, err
	}

	log.Printf("邀请关系已记录: referrer=%d, referred=%d", referrer.ID, newUserID)
	return referral, nil
}

// GrantReferralBonus 给邀请人发奖励
//
// 【关键点】触发事件可能重复送达（比如支付回调重放），
// 幂等兜底在流水表的 (related_referral_id, event_type) 唯一索引上：
// 预检查挡掉大多数重复，索引冲突挡掉并发间隙里漏网的那次，
// 两种情况都按"已发放"处理，不报错
func (s *ReferralService) GrantReferralBonus(ctx context.Context, referralID int64, amount int64, eventType string) (*model.BalanceTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	referral, err := s.referralRepo.GetByID(ctx, referralID)
	if err != nil {
		return nil, fmt.Errorf("查询邀请关系失败: %w", err)
	}
	if referral == nil {
		return nil, nil
	}

	granted, err := s.transactionRepo.ExistsReferralBonus(ctx, referralID, eventType)
	if err != nil {
		return nil, fmt.Errorf("查询奖励流水失败: %w", err)
	}
	if granted {
		return nil, nil
	}

	trans, err := s.ledgerService.Credit(ctx, referral.ReferrerUserID, amount,
		model.TransactionTypeReferralBonus,
		fmt.Sprintf("邀请奖励-%s", eventType),
		EntryRefs{ReferralID: &referral.ID, EventType: &eventType})
	if err != nil {
		if errors.Is(err, repository.ErrBonusAlreadyGranted) {
			return nil, nil
		}
		return nil, err
	}

	s.notifyBonusGranted(ctx, referral, trans, eventType)

	log.Printf("邀请奖励已发放: referralID=%d, referrer=%d, amount=%d, event=%s",
		referralID, referral.ReferrerUserID, amount, eventType)
	return trans, nil
}

// GrantFirstPurchaseBonus 被邀请人首购后触发
// 被邀请人没有邀请关系时静默返回
func (s *ReferralService) GrantFirstPurchaseBonus(ctx context.Context, referredUserID int64) error {
	referral, err := s.referralRepo.GetByReferredUserID(ctx, referredUserID)
	if err != nil {
		return err
	}
	if referral == nil {
		return nil
	}

	_, err = s.GrantReferralBonus(ctx, referral.ID, s.cfg.Business.ReferralBonusAmount, model.ReferralEventFirstPurchase)
	return err
}

// notifyBonusGranted 奖励发放通知
// 奖励流水已提交，通知写入失败只记日志，绝不回滚账务
func (s *ReferralService) notifyBonusGranted(ctx context.Context, referral *model.Referral, trans *model.BalanceTransaction, eventType string) {
	msgPayload := map[string]interface{}{
		"referral_id":    referral.ID,
		"referrer_id":    referral.ReferrerUserID,
		"referred_id":    referral.ReferredUserID,
		"amount":         trans.Amount,
		"event_type":     eventType,
		"transaction_no": trans.TransactionNo,
		"granted_at":     time.Now().Format(time.RFC3339),
	}
	payloadBytes, _ := json.Marshal(msgPayload)

	outboxMsg := &model.OutboxMessage{
		MessageKey: trans.TransactionNo,
		Topic:      s.cfg.Kafka.Topic.ReferralBonus,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, nil, outboxMsg); err != nil {
		log.Printf("奖励通知写入失败: referralID=%d, err=%v", referral.ID, err)
	}
}
