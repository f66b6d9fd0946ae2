package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/dumeirei/affiliate-backend/internal/common/qrcode"
	adminHandler "github.com/dumeirei/affiliate-backend/internal/handler/admin"
	affiliateHandler "github.com/dumeirei/affiliate-backend/internal/handler/affiliate"
	eventHandler "github.com/dumeirei/affiliate-backend/internal/handler/event"
	"github.com/dumeirei/affiliate-backend/internal/middleware"
	"github.com/dumeirei/affiliate-backend/internal/service/order"
)

const maxRequestBodyBytes = 1 << 20

// newRouter 设置路由
func newRouter(a *app) *gin.Engine {
	r := gin.New()

	affiliateH := affiliateHandler.NewHandler(a.services, qrcode.NewGenerator())
	adminH := adminHandler.NewAffiliateHandler(a.services)
	eventH := eventHandler.NewHandler(order.NewOrderCompleteHook(
		a.services.Attribution,
		a.services.Ledger,
		a.log.Named("order"),
	))

	// 全局中间件
	r.Use(middleware.Recovery(a.log))
	r.Use(middleware.RequestID())
	r.Use(middleware.SecureHeaders())
	r.Use(middleware.RequestSizeLimiter(maxRequestBodyBytes))
	if a.cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(a.cfg.Tracing.ServiceName))
	}
	r.Use(middleware.CORS(middleware.CORSConfigFrom(&a.cfg.CORS)))
	r.Use(middleware.AccessLog(a.log, a.cfg.Metrics.Path))
	if a.metrics != nil {
		r.Use(a.metrics.Middleware(a.cfg.Metrics.Path))
		r.GET(a.cfg.Metrics.Path, a.metrics.Handler())
	}

	// 健康检查（不需要认证）
	r.GET("/health", healthHandler)
	r.GET("/ping", pingHandler)
	r.GET("/ready", readyHandler(a.db, a.redis))

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		// 公开接口
		public := v1.Group("")
		if a.cfg.RateLimit.Enabled {
			public.Use(middleware.IPRateLimit(a.redis, a.cfg.RateLimit.Limit, a.cfg.RateLimit.Window(), a.log))
		}
		affiliateH.RegisterPublicRoutes(public)

		// 推广员接口
		affiliate := v1.Group("/affiliate", middleware.AffiliateAuth(a.jwt))
		if a.cfg.RateLimit.Enabled {
			affiliate.Use(middleware.SubjectRateLimit(a.redis, a.cfg.RateLimit.Limit, a.cfg.RateLimit.Window(), a.log))
		}
		affiliateH.RegisterRoutes(affiliate)

		// 管理接口
		adminH.RegisterRoutes(v1.Group("/admin", middleware.AdminAuth(a.jwt)))

		// 订单系统回调
		eventH.RegisterRoutes(v1.Group("/internal/events", middleware.ServiceAuth(a.jwt)))
	}

	return r
}
