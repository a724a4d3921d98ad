package handler

import (
	"keymarket/internal/service"
	"keymarket/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 购买/开箱相关接口
// ============================================================

// Purchase 购买商品
// POST /api/v1/store/purchase
//
// 【关键点】结算是整个系统最核心的写路径，需要保证：
// 1. 幂等性：相同的 request_id 只会结算一次
// 2. 原子性：扣款、订单、激活码领取、库存行必须同时成功或同时失败
// 3. 并发安全：按用户加分布式锁，余额条件扣减兜底
func (h *Handler) Purchase(c *gin.Context) {
	var req service.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.settlementSvc.SettlePurchase(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, result)
}

// OpenCase 开箱
// POST /api/v1/store/case/open
func (h *Handler) OpenCase(c *gin.Context) {
	var req service.CaseOpeningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.settlementSvc.SettleCaseOpening(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 库存相关接口
// ============================================================

// ListInventory 用户库存列表
// GET /api/v1/inventory/list?user_id=xxx&page=1&page_size=10
func (h *Handler) ListInventory(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	page, pageSize := parsePaging(c)

	items, total, err := h.catalogService.ListInventory(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// DeleteInventory 用户删除自己的库存行（不影响历史流水）
// POST /api/v1/inventory/delete
func (h *Handler) DeleteInventory(c *gin.Context) {
	var req struct {
		UserID      int64 `json:"user_id" binding:"required"`
		InventoryID int64 `json:"inventory_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.catalogService.DeleteInventory(c.Request.Context(), req.InventoryID, req.UserID); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"message": "库存已删除",
	})
}

// ============================================================
// 管理端接口
// ============================================================

// ApprovePaymentRequest 审批请求体
type ApprovePaymentRequest struct {
	RequestID  int64  `json:"request_id" binding:"required"`
	AdminNotes string `json:"admin_notes"`
}

// ApproveRequest 审批通过充值请求
// POST /api/v1/admin/payment/approve
func (h *Handler) ApproveRequest(c *gin.Context) {
	var req ApprovePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	request, err := h.requestService.Approve(c.Request.Context(), req.RequestID, req.AdminNotes)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"request_no": request.RequestNo,
		"status":     request.Status,
		"amount":     request.Amount,
	})
}

// RejectRequest 驳回充值请求
// POST /api/v1/admin/payment/reject
func (h *Handler) RejectRequest(c *gin.Context) {
	var req ApprovePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	request, err := h.requestService.Reject(c.Request.Context(), req.RequestID, req.AdminNotes)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"request_no": request.RequestNo,
		"status":     request.Status,
	})
}

// ListPendingRequests 待审批列表
// GET /api/v1/admin/payment/pending?page=1&page_size=10
func (h *Handler) ListPendingRequests(c *gin.Context) {
	page, pageSize := parsePaging(c)

	requests, total, err := h.requestService.ListPendingRequests(c.Request.Context(), page, pageSize)
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

// AdjustBalanceRequest 调账请求
type AdjustBalanceRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Amount int64  `json:"amount" binding:"required"` // 正数入账，负数出账
	Note   string `json:"note"`
}

// AdjustBalance 管理员调账
// POST /api/v1/admin/balance/adjust
func (h *Handler) AdjustBalance(c *gin.Context) {
	var req AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	trans, err := h.ledgerService.AdminAdjust(c.Request.Context(), req.UserID, req.Amount, req.Note)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"transaction_no": trans.TransactionNo,
		"amount":         trans.Amount,
		"balance_after":  trans.BalanceAfter,
	})
}

// CreateProductRequest 建商品请求
type CreateProductRequest struct {
	Name        string `json:"name" binding:"required"`
	Price       int64  `json:"price" binding:"required,gt=0"`
	ProductType string `json:"product_type" binding:"required,oneof=KEY CASE"`
}

// CreateProduct 新建商品
// POST /api/v1/admin/product/create
func (h *Handler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	product, err := h.catalogService.CreateProduct(c.Request.Context(), req.Name, req.Price, req.ProductType)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, product)
}

// AddKeysRequest 补充激活码请求
type AddKeysRequest struct {
	ProductID int64    `json:"product_id" binding:"required"`
	Keys      []string `json:"keys" binding:"required,min=1"`
}

// AddKeys 向激活码池补货
// POST /api/v1/admin/product/keys
func (h *Handler) AddKeys(c *gin.Context) {
	var req AddKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.catalogService.AddKeys(c.Request.Context(), req.ProductID, req.Keys); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"message": "激活码已入池",
		"count":   len(req.Keys),
	})
}
