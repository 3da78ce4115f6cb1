package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yuandi/fulfillment/internal/infrastructure/logger"
)

type RouterConfig struct {
	Logger         *zap.Logger
	RateLimitRPS   float64
	RateLimitBurst int
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

func NewRouter(h *HTTPHandler, cfg RouterConfig) *gin.Engine {
	SetupValidator()
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(logger.RequestID(), logger.GinMiddleware(cfg.Logger), logger.Recovery(cfg.Logger))

	r.GET("/health", h.HealthCheck)
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	api := r.Group("/api/v1", RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	products := api.Group("/products")
	products.POST("", h.RegisterProduct)
	products.GET("", h.ListProducts)
	products.GET("/low-stock", h.ListLowStock)
	products.GET("/:id", h.GetProduct)
	products.POST("/:id/deactivate", h.DeactivateProduct)

	api.POST("/inbounds", h.CreateInbound)

	orders := api.Group("/orders")
	orders.POST("", h.CreateOrder)
	orders.GET("", h.ListOrders)
	orders.GET("/:id", h.GetOrder)
	orders.POST("/:id/ship", h.ShipOrder)
	orders.POST("/:id/complete", h.CompleteOrder)
	orders.POST("/:id/refund", h.RefundOrder)

	api.GET("/cashbook", h.GetCashbook)
	api.POST("/cashbook/adjustments", h.RecordAdjustment)

	api.GET("/integrity", h.ValidateIntegrity)

	return r
}
