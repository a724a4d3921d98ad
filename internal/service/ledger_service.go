package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"keymarket/internal/infrastructure/lock"
	"keymarket/internal/model"
	"keymarket/internal/repository"
	"keymarket/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

var ErrInvalidAmount = errors.New("金额必须大于0")

// EntryRefs 流水的业务关联引用
type EntryRefs struct {
	RequestID     *int64
	PurchaseID    *int64
	CaseOpeningID *int64
	ReferralID    *int64
	EventType     *string
}

// LedgerService 账本服务
//
// 【关键点】余额的唯一写入口。其他服务（审批、结算、邀请奖励）
// 一律通过这里变更余额，保证：
// 1. 余额列与流水表在同一个事务里更新，永不分叉
// 2. balance >= amount 的检查与扣减是同一条 UPDATE，不存在检查后过期
// 3. 任意时刻 users.balance == SUM(流水.amount)
type LedgerService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	userRepo        *repository.UserRepository
	transactionRepo *repository.TransactionRepository
}

func NewLedgerService(db *gorm.DB, redisClient *redis.Client) *LedgerService {
	return &LedgerService{
		db:              db,
		redisClient:     redisClient,
		userRepo:        repository.NewUserRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// Credit 入账：追加一条正向流水并同步增加余额
func (s *LedgerService) Credit(ctx context.Context, userID, amount int64, transType, description string, refs EntryRefs) (*model.BalanceTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	balanceLock := lock.NewBalanceLock(s.redisClient, userID, idgen.GenerateTransactionNo())
	if err := balanceLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer balanceLock.Unlock(ctx)

	var trans *model.BalanceTransaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		trans, txErr = s.CreditTx(ctx, tx, userID, amount, transType, description, refs)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	log.Printf("入账成功: userID=%d, amount=%d, type=%s, transNo=%s", userID, amount, transType, trans.TransactionNo)
	return trans, nil
}

// Debit 出账：检查余额并追加一条负向流水
// 余额不足返回 ErrBalanceNotEnough，且不产生任何写入
func (s *LedgerService) Debit(ctx context.Context, userID, amount int64, transType, description string, refs EntryRefs) (*model.BalanceTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	balanceLock := lock.NewBalanceLock(s.redisClient, userID, idgen.GenerateTransactionNo())
	if err := balanceLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer balanceLock.Unlock(ctx)

	var trans *model.BalanceTransaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		trans, txErr = s.DebitTx(ctx, tx, userID, amount, transType, description, refs)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	log.Printf("出账成功: userID=%d, amount=%d, type=%s, transNo=%s", userID, amount, transType, trans.TransactionNo)
	return trans, nil
}

// CreditTx 事务内入账，供审批/结算等已开启事务的调用方复用
// 先对用户行加 FOR UPDATE 锁，余额更新与流水追加同生共死
func (s *LedgerService) CreditTx(ctx context.Context, tx *gorm.DB, userID, amount int64, transType, description string, refs EntryRefs) (*model.BalanceTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	user, err := s.userRepo.GetByIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询账户失败: %w", err)
	}

	if err := s.userRepo.Increase(ctx, tx, userID, amount); err != nil {
		return nil, fmt.Errorf("入账失败: %w", err)
	}

	trans := s.buildTransaction(user, amount, transType, description, refs)
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		if errors.Is(err, repository.ErrBonusAlreadyGranted) {
			return nil, err
		}
		return nil, fmt.Errorf("记录流水失败: %w", err)
	}

	return trans, nil
}

// DebitTx 事务内出账
func (s *LedgerService) DebitTx(ctx context.Context, tx *gorm.DB, userID, amount int64, transType, description string, refs EntryRefs) (*model.BalanceTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	user, err := s.userRepo.GetByIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询账户失败: %w", err)
	}

	if user.Balance < amount {
		return nil, repository.ErrBalanceNotEnough
	}

	if err := s.userRepo.Deduct(ctx, tx, userID, amount, user.Version); err != nil {
		return nil, err
	}

	trans := s.buildTransaction(user, -amount, transType, description, refs)
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		return nil, fmt.Errorf("记录流水失败: %w", err)
	}

	return trans, nil
}

// History 用户流水，按创建时间倒序
func (s *LedgerService) History(ctx context.Context, userID int64, page, pageSize int) ([]*model.BalanceTransaction, int64, error) {
	return s.transactionRepo.ListByUserID(ctx, userID, page, pageSize)
}

// GetBalance 查询余额
func (s *LedgerService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// AdminAdjust 管理员调账，正数入账负数出账
func (s *LedgerService) AdminAdjust(ctx context.Context, userID, amount int64, note string) (*model.BalanceTransaction, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	description := fmt.Sprintf("管理员调账-%s", note)
	if amount > 0 {
		return s.Credit(ctx, userID, amount, model.TransactionTypeAdminAdjustment, description, EntryRefs{})
	}
	return s.Debit(ctx, userID, -amount, model.TransactionTypeAdminAdjustment, description, EntryRefs{})
}

func (s *LedgerService) buildTransaction(user *model.User, signedAmount int64, transType, description string, refs EntryRefs) *model.BalanceTransaction {
	return &model.BalanceTransaction{
		TransactionNo:        idgen.GenerateTransactionNo(),
		UserID:               user.ID,
		Type:                 transType,
		Amount:               signedAmount,
		Description:          description,
		BalanceBefore:        user.Balance,
		BalanceAfter:         user.Balance + signedAmount,
		RelatedRequestID:     refs.RequestID,
		RelatedPurchaseID:    refs.PurchaseID,
		RelatedCaseOpeningID: refs.CaseOpeningID,
		RelatedReferralID:    refs.ReferralID,
		EventType:            refs.EventType,
	}
}
