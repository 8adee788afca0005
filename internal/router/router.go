package router

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/YouHyuksoo/HANES-sub002/internal/cache"
	"github.com/YouHyuksoo/HANES-sub002/internal/config"
	"github.com/YouHyuksoo/HANES-sub002/internal/http/handlers/shared"
	shippinghandlers "github.com/YouHyuksoo/HANES-sub002/internal/http/handlers/shipping"
	"github.com/YouHyuksoo/HANES-sub002/internal/logger"
	"github.com/YouHyuksoo/HANES-sub002/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 初始化路由，gatherer 为 nil 时不暴露 /metrics
func SetupRouter(cfg *config.Config, c *provider.Container, gatherer prometheus.Gatherer) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	if err := shared.RegisterValidators(); err != nil {
		logger.Errorw("router_register_validators_failed", "error", err)
	}
	r := gin.New()

	shippingHandler := shippinghandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "hanes"
	}
	writeRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:shipping_write", redisPrefix),
		WindowSeconds: cfg.Security.WriteRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.WriteRateLimit.MaxRequests,
		WriteOnly:     true,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))
	r.Use(MetricsMiddleware(c.Metrics))

	apiV1 := r.Group("/api/v1")
	shipping := apiV1.Group("/shipping")
	if cfg.Auth.Enabled {
		shipping.Use(BearerAuthMiddleware(cfg.Auth), RBACMiddleware(c.AuthzService))
	} else {
		logger.Warnw("router_auth_disabled", "group", "/api/v1/shipping")
	}
	shipping.Use(RateLimitMiddleware(cache.Client(), writeRule, KeyBySubjectOrIP))
	{
		boxes := shipping.Group("/boxes")
		{
			boxes.GET("", shippingHandler.ListBoxes)
			boxes.GET("/unassigned", shippingHandler.ListUnassignedBoxes)
			boxes.GET("/box-no/:boxNo", shippingHandler.GetBoxByNo)
			boxes.GET("/pallet/:palletId", shippingHandler.ListBoxesByPallet)
			boxes.GET("/:id", shippingHandler.GetBox)
			boxes.POST("", shippingHandler.CreateBox)
			boxes.DELETE("/:id", shippingHandler.DeleteBox)
			boxes.POST("/:id/serials", shippingHandler.AddBoxSerials)
			boxes.DELETE("/:id/serials", shippingHandler.RemoveBoxSerials)
			boxes.POST("/:id/close", shippingHandler.CloseBox)
			boxes.POST("/:id/reopen", shippingHandler.ReopenBox)
			boxes.POST("/:id/assign-pallet", shippingHandler.AssignBoxToPallet)
			boxes.POST("/:id/remove-pallet", shippingHandler.RemoveBoxFromPallet)
		}

		pallets := shipping.Group("/pallets")
		{
			pallets.GET("", shippingHandler.ListPallets)
			pallets.GET("/unassigned", shippingHandler.ListUnassignedPallets)
			pallets.GET("/pallet-no/:palletNo", shippingHandler.GetPalletByNo)
			pallets.GET("/shipment/:shipmentId", shippingHandler.ListPalletsByShipment)
			pallets.GET("/:id", shippingHandler.GetPallet)
			pallets.GET("/:id/summary", shippingHandler.GetPalletSummary)
			pallets.POST("", shippingHandler.CreatePallet)
			pallets.DELETE("/:id", shippingHandler.DeletePallet)
			pallets.POST("/:id/boxes", shippingHandler.AddPalletBoxes)
			pallets.DELETE("/:id/boxes", shippingHandler.RemovePalletBoxes)
			pallets.POST("/:id/close", shippingHandler.ClosePallet)
			pallets.POST("/:id/reopen", shippingHandler.ReopenPallet)
			pallets.POST("/:id/assign-shipment", shippingHandler.AssignPalletToShipment)
			pallets.POST("/:id/remove-shipment", shippingHandler.RemovePalletFromShipment)
		}

		shipments := shipping.Group("/shipments")
		{
			shipments.GET("", shippingHandler.ListShipments)
			shipments.GET("/ship-no/:shipNo", shippingHandler.GetShipmentByNo)
			shipments.GET("/stats/daily", shippingHandler.GetDailyStats)
			shipments.GET("/stats/customer", shippingHandler.GetCustomerStats)
			shipments.GET("/erp/unsynced", shippingHandler.ListErpUnsynced)
			shipments.POST("/erp/mark-synced", shippingHandler.MarkErpSynced)
			shipments.GET("/:id", shippingHandler.GetShipment)
			shipments.GET("/:id/summary", shippingHandler.GetShipmentSummary)
			shipments.GET("/:id/pallets", shippingHandler.ListShipmentPallets)
			shipments.GET("/:id/events", shippingHandler.ListShipmentEvents)
			shipments.GET("/:id/verify-pallet", shippingHandler.VerifyShipmentPallet)
			shipments.POST("", shippingHandler.CreateShipment)
			shipments.PUT("/:id", shippingHandler.UpdateShipment)
			shipments.DELETE("/:id", shippingHandler.DeleteShipment)
			shipments.POST("/:id/pallets", shippingHandler.LoadShipmentPallets)
			shipments.DELETE("/:id/pallets", shippingHandler.UnloadShipmentPallets)
			shipments.POST("/:id/mark-loaded", shippingHandler.MarkShipmentLoaded)
			shipments.POST("/:id/mark-shipped", shippingHandler.MarkShipmentShipped)
			shipments.POST("/:id/mark-delivered", shippingHandler.MarkShipmentDelivered)
			shipments.POST("/:id/cancel", shippingHandler.CancelShipment)
			shipments.PUT("/:id/status", shippingHandler.ChangeShipmentStatus)
			shipments.PUT("/:id/erp-sync", shippingHandler.UpdateShipmentErpSync)
		}
	}

	// 健康检查
	r.GET("/healthz", func(ctx *gin.Context) {
		checks := gin.H{"database": "ok", "redis": "ok"}
		status := "ok"
		if sqlDB, err := c.DB.DB(); err != nil || sqlDB.PingContext(ctx.Request.Context()) != nil {
			checks["database"] = "down"
			status = "degraded"
		}
		switch err := cache.Ping(ctx.Request.Context()); {
		case errors.Is(err, cache.ErrDisabled):
			checks["redis"] = "disabled"
		case err != nil:
			checks["redis"] = "down"
			status = "degraded"
		}
		ctx.JSON(http.StatusOK, gin.H{"status": status, "checks": checks})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return r
}
