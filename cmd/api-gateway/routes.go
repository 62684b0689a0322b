package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/erp-status-api/internal/handler"
	"github.com/noah-isme/erp-status-api/internal/middleware"
	"github.com/noah-isme/erp-status-api/internal/models"
	"github.com/noah-isme/erp-status-api/internal/service"
	"github.com/noah-isme/erp-status-api/pkg/config"
	"github.com/noah-isme/erp-status-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/erp-status-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/erp-status-api/pkg/middleware/requestid"
)

type routeDeps struct {
	auth       *service.AuthService
	metrics    *service.MetricsService
	reasons    *service.StatusReasonService
	records    *service.StatusRecordService
	exporter   *service.StatusExportService
	statusMgmt *service.StatusManagementService
	tokens     *service.AccessTokenService
	stock      *service.StockService
	hr         *service.HRService
	accounting *service.AccountingService
	assets     *service.AssetService
	checks     map[string]func() error
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	metricsHandler := handler.NewMetricsHandler(deps.metrics, deps.checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta(), middleware.JWT(deps.auth))
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(logr, action, resource)
	}

	if cfg.StatusManagement.Enabled {
		reasonHandler := handler.NewStatusReasonHandler(deps.reasons)
		reasons := api.Group("/status-change-reasons")
		reasons.GET("", reasonHandler.List)
		reasons.GET("/:id", reasonHandler.Get)
		manage := reasons.Group("", middleware.RequireRoles(models.RoleAdmin))
		manage.POST("", audit("reason.create", "status_change_reasons"), reasonHandler.Create)
		manage.PATCH("/:id", audit("reason.update", "status_change_reasons"), reasonHandler.Update)
		manage.DELETE("/:id", audit("reason.deactivate", "status_change_reasons"), reasonHandler.Delete)

		recordHandler := handler.NewStatusRecordHandler(deps.records, deps.statusMgmt, deps.exporter)
		records := api.Group("/status-change-records")
		records.GET("", recordHandler.List)
		records.GET("/export", middleware.RequireRoles(models.RoleAdmin, models.RoleAccountant, models.RoleHRManager), recordHandler.Export)
		records.GET("/history/:entityType/:entityId", recordHandler.History)
		records.GET("/:id", recordHandler.Get)
		records.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleHRManager, models.RoleStockManager, models.RoleAccountant, models.RoleService),
			audit("status.change", "status_change_records"), recordHandler.Create)
	}

	stockRoles := middleware.RequireRoles(models.RoleAdmin, models.RoleStockManager, models.RoleStaff, models.RoleService)
	stock := api.Group("/stock", stockRoles)
	inventoryTokens := handler.NewAccessTokenHandler(deps.tokens, models.ScopeInventory)
	stock.POST("/access-token", audit("token.request", "inventory"), inventoryTokens.Request)
	stock.POST("/access-token/:token/release", inventoryTokens.Release)
	stock.POST("/access-token/:token/cancel", inventoryTokens.Cancel)
	poTokens := handler.NewAccessTokenHandler(deps.tokens, models.ScopePurchaseOrder)
	stock.POST("/purchase-orders/access-token", audit("token.request", "purchase_orders"), poTokens.Request)
	stock.POST("/purchase-orders/access-token/:token/release", poTokens.Release)
	stock.POST("/purchase-orders/access-token/:token/cancel", poTokens.Cancel)

	stockHandler := handler.NewStockHandler(deps.stock)
	stock.GET("/inventory/:id", stockHandler.Get)
	stock.POST("/inventory/:id/movements", audit("stock.movement", "stock_inventory"), stockHandler.ApplyMovement)
	stock.DELETE("/inventory/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleStockManager),
		audit("stock.delete", "stock_inventory"), stockHandler.Delete)

	employeeHandler := handler.NewEmployeeHandler(deps.hr)
	employees := api.Group("/employees", middleware.RequireRoles(models.RoleAdmin, models.RoleHRManager))
	employees.GET("/:id", employeeHandler.Get)
	employees.DELETE("/:id", audit("employee.delete", "employees"), employeeHandler.Delete)

	invoiceHandler := handler.NewInvoiceHandler(deps.accounting)
	invoices := api.Group("/invoices", middleware.RequireRoles(models.RoleAdmin, models.RoleAccountant))
	invoices.POST("", audit("invoice.create", "invoices"), invoiceHandler.Create)
	invoices.GET("/:id", invoiceHandler.Get)
	invoices.POST("/:id/cancel", audit("invoice.cancel", "invoices"), invoiceHandler.Cancel)
	invoices.POST("/:id/pay", audit("invoice.pay", "invoices"), invoiceHandler.Pay)
	invoices.POST("/:id/refund", audit("invoice.refund", "invoices"), invoiceHandler.Refund)

	assetHandler := handler.NewAssetHandler(deps.assets)
	assets := api.Group("/assets", middleware.RequireRoles(models.RoleAdmin))
	assets.GET("/:id", assetHandler.Get)
	assets.DELETE("/:id", audit("asset.delete", "assets"), assetHandler.Delete)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "route not found", "status": http.StatusNotFound}})
	})
	return r
}
