package job

import (
	"context"
	"errors"
	"log"
	"time"

	"keymarket/internal/config"
	"keymarket/internal/repository"
	"keymarket/internal/service"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// RequestExpiryJob 支付请求超时任务
// 挂起超过配置时长的充值请求自动驳回；
// 走和管理员审批同一条条件更新路径，不可能和人工审批撞出双重处理
type RequestExpiryJob struct {
	db             *gorm.DB
	requestRepo    *repository.PaymentRequestRepository
	requestService *service.PaymentRequestService
	cfg            *config.Config
	stopCh         chan struct{}
	interval       time.Duration
	batchSize      int
}

func NewRequestExpiryJob(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *RequestExpiryJob {
	return &RequestExpiryJob{
		db:             db,
		requestRepo:    repository.NewPaymentRequestRepository(db),
		requestService: service.NewPaymentRequestService(db, rdb, cfg),
		cfg:            cfg,
		stopCh:         make(chan struct{}),
		interval:       time.Minute,
		batchSize:      100,
	}
}

func (j *RequestExpiryJob) Start(ctx context.Context) {
	log.Println("[RequestExpiryJob] 支付请求超时任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[RequestExpiryJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[RequestExpiryJob] 任务停止")
			return
		case <-ticker.C:
			j.rejectExpiredRequests(ctx)
		}
	}
}

func (j *RequestExpiryJob) Stop() {
	close(j.stopCh)
}

func (j *RequestExpiryJob) rejectExpiredRequests(ctx context.Context) {
	before := time.Now().Add(-time.Duration(j.cfg.Business.RequestExpiryHours) * time.Hour)

	requests, err := j.requestRepo.GetExpiredPending(ctx, before, j.batchSize)
	if err != nil {
		log.Printf("[RequestExpiryJob] 查询超时请求失败: %v", err)
		return
	}

	if len(requests) == 0 {
		return
	}

	log.Printf("[RequestExpiryJob] 发现 %d 个超时请求", len(requests))

	rejectedCount := 0
	for _, request := range requests {
		_, err := j.requestService.Reject(ctx, request.ID, "超时自动驳回")
		if err != nil {
			// 管理员刚好处理掉的请求会落到这里，不算异常
			if errors.Is(err, repository.ErrRequestProcessed) {
				continue
			}
			log.Printf("[RequestExpiryJob] 驳回请求失败: requestNo=%s, err=%v", request.RequestNo, err)
			continue
		}
		rejectedCount++
		log.Printf("[RequestExpiryJob] 请求已超时驳回: requestNo=%s, userID=%d, amount=%d",
			request.RequestNo, request.UserID, request.Amount)
	}

	log.Printf("[RequestExpiryJob] 本次驳回 %d 个超时请求", rejectedCount)
}
