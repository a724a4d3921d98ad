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

var ErrNotCaseProduct = errors.New("该商品不是盲盒")

// SettlementService 购买/开箱结算
// 一次结算 = 扣款流水 + 订单/开箱记录 + 库存行，三者在同一个数据库事务里，
// 余额不足时什么都不落库
type SettlementService struct {
	db            *gorm.DB
	redisClient   *redis.Client
	cfg           *config.Config
	productRepo   *repository.ProductRepository
	purchaseRepo  *repository.PurchaseRepository
	openingRepo   *repository.CaseOpeningRepository
	inventoryRepo *repository.InventoryRepository
	outboxRepo    *repository.OutboxRepository
	ledgerService *LedgerService
	referral      *ReferralService
}

func NewSettlementService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *SettlementService {
	return &SettlementService{
		db:            db,
		redisClient:   redisClient,
		cfg:           cfg,
		productRepo:   repository.NewProductRepository(db),
		purchaseRepo:  repository.NewPurchaseRepository(db),
		openingRepo:   repository.NewCaseOpeningRepository(db),
		inventoryRepo: repository.NewInventoryRepository(db),
		outboxRepo:    repository.NewOutboxRepository(db),
		ledgerService: NewLedgerService(db, redisClient),
		referral:      NewReferralService(db, redisClient, cfg),
	}
}

type PurchaseRequest struct {
	RequestID string `json:"request_id" binding:"required"` // 幂等ID，客户端生成
	UserID    int64  `json:"user_id" binding:"required"`
	ProductID int64  `json:"product_id" binding:"required"`
}

type PurchaseResponse struct {
	PurchaseNo  string `json:"purchase_no"`
	Status      string `json:"status"`
	Price       int64  `json:"price"`
	InventoryID int64  `json:"inventory_id,omitempty"`
	Message     string `json:"message,omitempty"`
}

// SettlePurchase 结算一笔购买
//
// 【关键点】
// 1. 幂等性：相同 request_id 只结算一次，重放返回原结果
// 2. 原子性：扣款、订单、激活码领取、库存行同时成功或同时失败
// 3. 并发安全：按用户加分布式锁，行级锁和条件扣减兜底
func (s *SettlementService) SettlePurchase(ctx context.Context, req *PurchaseRequest) (*PurchaseResponse, error) {
	existing, err := s.purchaseRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询订单失败: %w", err)
	}
	if existing != nil {
		return &PurchaseResponse{
			PurchaseNo: existing.PurchaseNo,
			Status:     existing.Status,
			Price:      existing.Price,
			Message:    "订单已存在",
		}, nil
	}

	product, err := s.productRepo.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	balanceLock := lock.NewBalanceLock(s.redisClient, req.UserID, req.RequestID)
	if err := balanceLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer balanceLock.Unlock(ctx)

	// 获取锁后再次检查幂等
	existing, err = s.purchaseRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询订单失败: %w", err)
	}
	if existing != nil {
		return &PurchaseResponse{
			PurchaseNo: existing.PurchaseNo,
			Status:     existing.Status,
			Price:      existing.Price,
			Message:    "订单已存在",
		}, nil
	}

	purchase := &model.Purchase{
		PurchaseNo: idgen.GeneratePurchaseNo(),
		RequestID:  req.RequestID,
		UserID:     req.UserID,
		ProductID:  product.ID,
		Price:      product.Price,
		Status:     model.SettlementStatusCompleted,
	}
	var inventoryID int64

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.purchaseRepo.Create(ctx, tx, purchase); err != nil {
			return fmt.Errorf("创建订单失败: %w", err)
		}

		trans, err := s.ledgerService.DebitTx(ctx, tx, req.UserID, product.Price,
			model.TransactionTypePurchase,
			fmt.Sprintf("购买-%s", product.Name),
			EntryRefs{PurchaseID: &purchase.ID})
		if err != nil {
			return err
		}

		if err := tx.WithContext(ctx).Model(purchase).Update("transaction_id", trans.ID).Error; err != nil {
			return fmt.Errorf("回填流水引用失败: %w", err)
		}

		if product.ProductType == model.ProductTypeKey {
			inv, err := s.deliverKey(ctx, tx, req.UserID, product.ID, model.InventorySourcePurchase, purchase.ID)
			if err != nil {
				return err
			}
			inventoryID = inv.ID
		}

		return s.writeSettlementOutbox(ctx, tx, purchase.PurchaseNo, req.UserID, "PURCHASE", product.ID, product.Price)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("购买结算成功: purchaseNo=%s, userID=%d, price=%d", purchase.PurchaseNo, req.UserID, product.Price)

	// 首购触发邀请奖励；奖励失败不影响已完成的结算
	s.maybeGrantFirstPurchaseBonus(ctx, req.UserID)

	return &PurchaseResponse{
		PurchaseNo:  purchase.PurchaseNo,
		Status:      purchase.Status,
		Price:       product.Price,
		InventoryID: inventoryID,
		Message:     "购买成功",
	}, nil
}

type CaseOpeningRequest struct {
	RequestID        string `json:"request_id" binding:"required"`
	UserID           int64  `json:"user_id" binding:"required"`
	CaseProductID    int64  `json:"case_product_id" binding:"required"`
	AwardedProductID int64  `json:"awarded_product_id" binding:"required"` // 抽取策略由上游决定
}

type CaseOpeningResponse struct {
	OpeningNo        string `json:"opening_no"`
	Status           string `json:"status"`
	Cost             int64  `json:"cost"`
	AwardedProductID int64  `json:"awarded_product_id"`
	InventoryID      int64  `json:"inventory_id,omitempty"`
	Message          string `json:"message,omitempty"`
}

// SettleCaseOpening 结算一次开箱
// 与购买同构：扣箱价、落开箱记录、奖励商品入库，一个事务内完成
func (s *SettlementService) SettleCaseOpening(ctx context.Context, req *CaseOpeningRequest) (*CaseOpeningResponse, error) {
	existing, err := s.openingRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询开箱记录失败: %w", err)
	}
	if existing != nil {
		return &CaseOpeningResponse{
			OpeningNo:        existing.OpeningNo,
			Status:           existing.Status,
			Cost:             existing.Cost,
			AwardedProductID: existing.AwardedProductID,
			Message:          "开箱记录已存在",
		}, nil
	}

	caseProduct, err := s.productRepo.GetByID(ctx, req.CaseProductID)
	if err != nil {
		return nil, err
	}
	if caseProduct.ProductType != model.ProductTypeCase {
		return nil, ErrNotCaseProduct
	}

	awarded, err := s.productRepo.GetByID(ctx, req.AwardedProductID)
	if err != nil {
		return nil, err
	}

	balanceLock := lock.NewBalanceLock(s.redisClient, req.UserID, req.RequestID)
	if err := balanceLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer balanceLock.Unlock(ctx)

	existing, err = s.openingRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询开箱记录失败: %w", err)
	}
	if existing != nil {
		return &CaseOpeningResponse{
			OpeningNo:        existing.OpeningNo,
			Status:           existing.Status,
			Cost:             existing.Cost,
			AwardedProductID: existing.AwardedProductID,
			Message:          "开箱记录已存在",
		}, nil
	}

	opening := &model.CaseOpening{
		OpeningNo:        idgen.GenerateOpeningNo(),
		RequestID:        req.RequestID,
		UserID:           req.UserID,
		CaseProductID:    caseProduct.ID,
		Cost:             caseProduct.Price,
		AwardedProductID: awarded.ID,
		Status:           model.SettlementStatusCompleted,
	}
	var inventoryID int64

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.openingRepo.Create(ctx, tx, opening); err != nil {
			return fmt.Errorf("创建开箱记录失败: %w", err)
		}

		trans, err := s.ledgerService.DebitTx(ctx, tx, req.UserID, caseProduct.Price,
			model.TransactionTypeCaseOpening,
			fmt.Sprintf("开箱-%s", caseProduct.Name),
			EntryRefs{CaseOpeningID: &opening.ID})
		if err != nil {
			return err
		}

		if err := tx.WithContext(ctx).Model(opening).Update("transaction_id", trans.ID).Error; err != nil {
			return fmt.Errorf("回填流水引用失败: %w", err)
		}

		if awarded.ProductType == model.ProductTypeKey {
			inv, err := s.deliverKey(ctx, tx, req.UserID, awarded.ID, model.InventorySourceCaseOpening, opening.ID)
			if err != nil {
				return err
			}
			inventoryID = inv.ID
		} else {
			inv := &model.UserInventory{
				UserID:           req.UserID,
				ProductID:        awarded.ID,
				SourceType:       model.InventorySourceCaseOpening,
				SourceID:         opening.ID,
				ActivationStatus: model.ActivationStatusUnused,
			}
			if err := s.inventoryRepo.Create(ctx, tx, inv); err != nil {
				return fmt.Errorf("创建库存失败: %w", err)
			}
			inventoryID = inv.ID
		}

		return s.writeSettlementOutbox(ctx, tx, opening.OpeningNo, req.UserID, "CASE_OPENING", caseProduct.ID, caseProduct.Price)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("开箱结算成功: openingNo=%s, userID=%d, cost=%d, awarded=%d",
		opening.OpeningNo, req.UserID, caseProduct.Price, awarded.ID)

	return &CaseOpeningResponse{
		OpeningNo:        opening.OpeningNo,
		Status:           opening.Status,
		Cost:             caseProduct.Price,
		AwardedProductID: awarded.ID,
		InventoryID:      inventoryID,
		Message:          "开箱成功",
	}, nil
}

// deliverKey 事务内领取激活码并写库存行
func (s *SettlementService) deliverKey(ctx context.Context, tx *gorm.DB, userID, productID int64, sourceType string, sourceID int64) (*model.UserInventory, error) {
	key, err := s.productRepo.ClaimKey(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	inv := &model.UserInventory{
		UserID:           userID,
		ProductID:        productID,
		SourceType:       sourceType,
		SourceID:         sourceID,
		ActivationKey:    key.KeyCode,
		ActivationStatus: model.ActivationStatusUnused,
	}
	if err := s.inventoryRepo.Create(ctx, tx, inv); err != nil {
		return nil, fmt.Errorf("创建库存失败: %w", err)
	}

	if err := s.productRepo.BindInventory(ctx, tx, key.ID, inv.ID); err != nil {
		return nil, fmt.Errorf("绑定激活码失败: %w", err)
	}

	return inv, nil
}

func (s *SettlementService) maybeGrantFirstPurchaseBonus(ctx context.Context, userID int64) {
	count, err := s.purchaseRepo.CountByUserID(ctx, userID)
	if err != nil {
		log.Printf("首购判定失败: userID=%d, err=%v", userID, err)
		return
	}
	if count != 1 {
		return
	}

	if err := s.referral.GrantFirstPurchaseBonus(ctx, userID); err != nil {
		log.Printf("首购邀请奖励发放失败: userID=%d, err=%v", userID, err)
	}
}

func (s *SettlementService) writeSettlementOutbox(ctx context.Context, tx *gorm.DB, settlementNo string, userID int64, kind string, productID, amount int64) error {
	msgPayload := map[string]interface{}{
		"settlement_no": settlementNo,
		"user_id":       userID,
		"kind":          kind,
		"product_id":    productID,
		"amount":        amount,
		"settled_at":    time.Now().Format(time.RFC3339),
	}
	payloadBytes, _ := json.Marshal(msgPayload)

	outboxMsg := &model.OutboxMessage{
		MessageKey: settlementNo,
		Topic:      s.cfg.Kafka.Topic.Settlement,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}
