package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"hwcatalog_v1_202608/internal/model"
	"hwcatalog_v1_202608/internal/repository"
)

// JobController 提取任务控制器
type JobController struct {
	jobRepo repository.JobRepository
}

// NewJobController 创建提取任务控制器
func NewJobController(jobRepo repository.JobRepository) *JobController {
	return &JobController{jobRepo: jobRepo}
}

// ==================== 请求结构 ====================

// CreateJobRequest 入队请求
type CreateJobRequest struct {
	MPN      string                 `json:"mpn" binding:"required"`
	Category string                 `json:"category" binding:"required"`
	RawText  string                 `json:"raw_text"`
	Context  map[string]interface{} `json:"context"`
}

// ==================== Handler 实现 ====================

// Create 入队一个规格提取任务
// @Summary 入队规格提取任务
// @Tags Jobs
// @Param request body CreateJobRequest true "任务参数"
// @Success 201 {object} map[string]interface{}
// @Router /api/jobs [post]
func (c *JobController) Create(ctx *gin.Context) {
	var req CreateJobRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"code": 400, "message": err.Error()})
		return
	}

	if !model.IsValidCategory(req.Category) {
		ctx.JSON(400, gin.H{
			"code":    400,
			"message": "categoría inválida: " + req.Category,
			"data":    gin.H{"valid_categories": model.AllCategories},
		})
		return
	}

	job := &model.ExtractionJob{
		MPN:      req.MPN,
		Category: model.CategorySlug(req.Category),
		RawText:  req.RawText,
		Context:  req.Context,
		Status:   model.JobStatusPending,
	}
	if err := c.jobRepo.Create(ctx.Request.Context(), job); err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(201, gin.H{
		"code": 201,
		"data": gin.H{"job_id": job.ID},
	})
}

// GetDetail 查询单个任务
// @Summary 查询提取任务详情
// @Tags Jobs
// @Param id path int true "任务 ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/jobs/{id} [get]
func (c *JobController) GetDetail(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		ctx.JSON(400, gin.H{"code": 400, "message": "ID 无效"})
		return
	}

	job, err := c.jobRepo.GetByID(ctx.Request.Context(), id)
	if err != nil {
		if repository.IsNotFound(err) {
			ctx.JSON(404, gin.H{"code": 404, "message": "任务不存在"})
			return
		}
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(200, gin.H{"code": 200, "data": job})
}

// Stats 队列状态统计
// @Summary 按状态统计队列任务数
// @Tags Jobs
// @Success 200 {object} map[string]interface{}
// @Router /api/jobs/stats [get]
func (c *JobController) Stats(ctx *gin.Context) {
	counts, err := c.jobRepo.CountByStatus(ctx.Request.Context())
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(200, gin.H{"code": 200, "data": counts})
}
