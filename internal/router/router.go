package router

import (
	"github.com/gin-gonic/gin"

	"hwcatalog_v1_202608/internal/controller"
)

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine,
	ingestCtl *controller.IngestController,
	jobCtl *controller.JobController,
	listingCtl *controller.ListingController) {
	// 健康检查
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// API 路由组
	api := r.Group("/api")
	{
		// ingest 采集触发与运行记录
		ingest := api.Group("/ingest")
		{
			// POST /api/ingest/grouping
			ingest.POST("/grouping", ingestCtl.TriggerGrouping)
			// POST /api/ingest/:source?category=gpu
			ingest.POST("/:source", ingestCtl.TriggerSource)
			// GET /api/ingest/:source/runs
			ingest.GET("/:source/runs", ingestCtl.ListRuns)
		}

		// jobs 规格提取队列
		jobs := api.Group("/jobs")
		{
			jobs.POST("", jobCtl.Create)
			jobs.GET("/stats", jobCtl.Stats)
			jobs.GET("/:id", jobCtl.GetDetail)
		}

		// listings 报价查询
		listings := api.Group("/listings")
		{
			// GET /api/listings/:category
			listings.GET("/:category", listingCtl.ListByCategory)
		}
	}
}
