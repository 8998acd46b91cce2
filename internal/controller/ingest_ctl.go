package controller

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"hwcatalog_v1_202608/internal/model"
	"hwcatalog_v1_202608/internal/repository"
	"hwcatalog_v1_202608/internal/task"
)

// IngestController 采集控制器
type IngestController struct {
	taskManager *task.TaskManager
	runRepo     repository.RunRepository
}

// NewIngestController 创建采集控制器
func NewIngestController(taskManager *task.TaskManager, runRepo repository.RunRepository) *IngestController {
	return &IngestController{taskManager: taskManager, runRepo: runRepo}
}

// ==================== Handler 实现 ====================

// TriggerSource 触发单来源采集
// @Summary 手动触发来源采集
// @Tags Ingest
// @Param source path string true "来源 slug"
// @Param category query string false "品类 slug，缺省为全品类"
// @Success 202 {object} map[string]interface{}
// @Router /api/ingest/{source} [post]
func (c *IngestController) TriggerSource(ctx *gin.Context) {
	sourceSlug := ctx.Param("source")
	category := ctx.DefaultQuery("category", "all")

	if category != "all" && !model.IsValidCategory(category) {
		ctx.JSON(400, gin.H{
			"code":    400,
			"message": "categoría inválida: " + category,
			"data":    gin.H{"valid_categories": model.AllCategories},
		})
		return
	}

	if c.taskManager.IngestRunning(sourceSlug) {
		ctx.JSON(409, gin.H{"code": 409, "message": "la fuente ya tiene una ejecución en curso"})
		return
	}

	// 采集耗时较长，后台执行
	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()
		_, _ = c.taskManager.TriggerIngest(runCtx, sourceSlug, category)
	}()

	ctx.JSON(202, gin.H{
		"code":    202,
		"message": "采集任务已触发",
		"data":    gin.H{"source": sourceSlug, "category": category},
	})
}

// TriggerGrouping 触发变体分组
// @Summary 手动触发变体分组
// @Tags Ingest
// @Success 200 {object} map[string]interface{}
// @Router /api/ingest/grouping [post]
func (c *IngestController) TriggerGrouping(ctx *gin.Context) {
	linked, err := c.taskManager.TriggerGrouping(ctx.Request.Context())
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(200, gin.H{
		"code":    200,
		"message": "分组完成",
		"data":    gin.H{"linked": linked},
	})
}

// ListRuns 查询来源运行记录
// @Summary 查询来源最近的采集运行
// @Tags Ingest
// @Param source path string true "来源 slug"
// @Success 200 {object} map[string]interface{}
// @Router /api/ingest/{source}/runs [get]
func (c *IngestController) ListRuns(ctx *gin.Context) {
	sourceSlug := ctx.Param("source")

	runs, err := c.runRepo.ListBySource(ctx.Request.Context(), sourceSlug, 20)
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(200, gin.H{
		"code": 200,
		"data": gin.H{"source": sourceSlug, "runs": runs},
	})
}
