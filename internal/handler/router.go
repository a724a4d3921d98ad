package handler

import (
	"keymarket/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 认证相关
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
		}

		// 账户相关
		account := api.Group("/account")
		{
			account.GET("/balance", h.GetBalance)
			account.GET("/transactions", h.GetTransactions)
		}

		// 充值请求相关
		payment := api.Group("/payment")
		{
			payment.POST("/submit", h.SubmitRequest)
			payment.GET("/list", h.ListMyRequests)
		}

		// 商城相关
		store := api.Group("/store")
		{
			store.POST("/purchase", h.Purchase)
			store.POST("/case/open", h.OpenCase)
		}

		// 库存相关
		inventory := api.Group("/inventory")
		{
			inventory.GET("/list", h.ListInventory)
			inventory.POST("/delete", h.DeleteInventory)
		}

		// 管理端
		admin := api.Group("/admin")
		admin.Use(AdminAuthMiddleware(db))
		{
			admin.GET("/payment/pending", h.ListPendingRequests)
			admin.POST("/payment/approve", h.ApproveRequest)
			admin.POST("/payment/reject", h.RejectRequest)
			admin.POST("/balance/adjust", h.AdjustBalance)
			admin.POST("/product/create", h.CreateProduct)
			admin.POST("/product/keys", h.AddKeys)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
