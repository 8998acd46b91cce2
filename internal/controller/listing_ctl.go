package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"hwcatalog_v1_202608/internal/model"
	"hwcatalog_v1_202608/internal/repository"
)

// ListingController 报价查询控制器
type ListingController struct {
	listingRepo  repository.ListingRepository
	categoryRepo repository.CategoryRepository
}

// NewListingController 创建报价查询控制器
func NewListingController(listingRepo repository.ListingRepository, categoryRepo repository.CategoryRepository) *ListingController {
	return &ListingController{listingRepo: listingRepo, categoryRepo: categoryRepo}
}

// ==================== Handler 实现 ====================

// ListByCategory 按品类查询上架报价
// @Summary 按品类分页查询上架报价（按现金价升序）
// @Tags Listings
// @Param category path string true "品类 slug"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} map[string]interface{}
// @Router /api/listings/{category} [get]
func (c *ListingController) ListByCategory(ctx *gin.Context) {
	categorySlug := ctx.Param("category")
	if !model.IsValidCategory(categorySlug) {
		ctx.JSON(400, gin.H{
			"code":    400,
			"message": "categoría inválida: " + categorySlug,
			"data":    gin.H{"valid_categories": model.AllCategories},
		})
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	category, err := c.categoryRepo.GetBySlug(ctx.Request.Context(), categorySlug)
	if err != nil {
		if repository.IsNotFound(err) {
			ctx.JSON(404, gin.H{"code": 404, "message": "品类未初始化"})
			return
		}
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	listings, total, err := c.listingRepo.ListActiveByCategory(ctx.Request.Context(), category.ID, page, pageSize)
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(200, gin.H{
		"code": 200,
		"data": gin.H{
			"category":  categorySlug,
			"page":      page,
			"page_size": pageSize,
			"total":     total,
			"listings":  listings,
		},
	})
}
