package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"keymarket/internal/config"
	"keymarket/internal/repository"
	"keymarket/internal/service"
	"keymarket/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	authService     *service.AuthService
	ledgerService   *service.LedgerService
	requestService  *service.PaymentRequestService
	settlementSvc   *service.SettlementService
	catalogService  *service.CatalogService
	referralService *service.ReferralService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		authService:     service.NewAuthService(db, rdb, cfg),
		ledgerService:   service.NewLedgerService(db, rdb),
		requestService:  service.NewPaymentRequestService(db, rdb, cfg),
		settlementSvc:   service.NewSettlementService(db, rdb, cfg),
		catalogService:  service.NewCatalogService(db),
		referralService: service.NewReferralService(db, rdb, cfg),
	}
}

// respondError 业务错误到 HTTP 的统一映射
// 内部错误不把 SQL/堆栈细节透给客户端，只记日志
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		response.InvalidAmount(c, "金额必须大于0")
	case errors.Is(err, repository.ErrBalanceNotEnough):
		response.InsufficientFunds(c, "余额不足")
	case errors.Is(err, repository.ErrRequestProcessed):
		response.AlreadyProcessed(c, "请求不存在或已处理")
	case errors.Is(err, repository.ErrKeySoldOut):
		response.Error(c, http.StatusConflict, response.CodeKeySoldOut, "该商品激活码已售罄")
	case errors.Is(err, repository.ErrDuplicateUser):
		response.Error(c, http.StatusConflict, response.CodeDuplicateUser, "用户名或邮箱已被占用")
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, "账号或密码错误")
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrInventoryNotFound),
		errors.Is(err, repository.ErrPurchaseNotFound),
		errors.Is(err, repository.ErrRequestNotFound):
		response.NotFound(c, err.Error())
	default:
		log.Printf("[HTTP] 内部错误: %v", err)
		response.ServerError(c, "服务器内部错误")
	}
}

func parsePaging(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	return page, pageSize
}

func parseUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return 0, false
	}
	return userID, true
}

// ============================================================
// 认证相关接口
// ============================================================

// Register 注册
// POST /api/v1/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id":       user.ID,
		"username":      user.Username,
		"referral_code": user.ReferralCode,
	})
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 登录（只校验密码哈希，会话由上游负责）
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     user.Role,
		"balance":  user.Balance,
	})
}

// ============================================================
// 账户相关接口
// ============================================================

// GetBalance 查询用户余额
// GET /api/v1/account/balance?user_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	balance, err := h.ledgerService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id": userID,
		"balance": balance,
	})
}

// GetTransactions 查询用户流水（按创建时间倒序）
// GET /api/v1/account/transactions?user_id=xxx&page=1&page_size=10
func (h *Handler) GetTransactions(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	page, pageSize := parsePaging(c)

	transactions, total, err := h.ledgerService.History(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      transactions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 支付请求相关接口
// ============================================================

// SubmitPaymentRequest 发起充值请求
type SubmitPaymentRequest struct {
	UserID        int64  `json:"user_id" binding:"required"`
	Amount        int64  `json:"amount" binding:"required"`
	PaymentMethod string `json:"payment_method"`
}

// SubmitRequest 用户发起充值请求
// POST /api/v1/payment/submit
func (h *Handler) SubmitRequest(c *gin.Context) {
	var req SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	request, err := h.requestService.Submit(c.Request.Context(), req.UserID, req.Amount, req.PaymentMethod)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"request_id": request.ID,
		"request_no": request.RequestNo,
		"status":     request.Status,
		"amount":     request.Amount,
	})
}

// ListMyRequests 用户自己的充值请求列表
// GET /api/v1/payment/list?user_id=xxx&page=1&page_size=10
func (h *Handler) ListMyRequests(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	page, pageSize := parsePaging(c)

	requests, total, err := h.requestService.ListUserRequests(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      requests,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
