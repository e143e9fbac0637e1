package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/move-sure/ss-transport-sub000/internal/api/ginx"
	"github.com/move-sure/ss-transport-sub000/internal/api/handlers"
	"github.com/move-sure/ss-transport-sub000/internal/api/middlewares"
	"github.com/move-sure/ss-transport-sub000/pkg/logger"
)

// SetupRoutes 配置所有路由，使用 Route Group 分类
func SetupRoutes(
	ewbHandler *handlers.EwbHandler,
	bulkHandler *handlers.BulkHandler,
	log logger.Logger,
) *gin.Engine {
	if err := ginx.RegisterValidators(); err != nil {
		log.Errorf(context.Background(), "[Router] register validators failed: %v", err)
	}

	r := gin.New()

	r.Use(middlewares.RequestID())
	r.Use(middlewares.Logger(log))
	r.Use(middlewares.ErrorHandler(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "ewb-apiserver",
		})
	})

	v1 := r.Group("/api/v1")
	{
		ewb := v1.Group("/ewb")
		{
			ewb.POST("/validate", ewbHandler.Validate)
			ewb.POST("/validate-batch", ewbHandler.ValidateBatch)
			ewb.GET("/cache/stats", ewbHandler.CacheStats)
			ewb.DELETE("/cache", ewbHandler.ClearCache)
			ewb.GET("/:ewb_number/update", ewbHandler.GetUpdate)
		}

		runs := v1.Group("/bulk-updates")
		{
			runs.POST("", bulkHandler.Create)
			runs.GET("/:run_id", bulkHandler.Get)
			runs.POST("/:run_id/cancel", bulkHandler.Cancel)
		}
	}

	return r
}
