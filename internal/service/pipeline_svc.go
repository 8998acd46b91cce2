package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"

	"hwcatalog_v1_202608/internal/model"
)

// ==================== 结果 ====================

// PipelineResult 单条摄取结果
// 批处理调用方只看 Success 计数，Rejected 区分业务拒绝与真错误
type PipelineResult struct {
	Success   bool
	Rejected  bool
	ProductID int64
	ListingID int64
	Error     string
}

func pipelineFailure(format string, args ...interface{}) PipelineResult {
	return PipelineResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

// ==================== PipelineService 摄取管线 ====================

// PipelineService 单条抓取记录的处理管线
// 除批处理级累计指标（AI 延迟、缓存命中、LLM 调用数）外无跨调用状态，
// 每一步失败即短路
type PipelineService struct {
	resolver *ResolverService
	specs    *SpecService
	catalog  *CatalogService
	storage  *StorageService // 可为 nil：图片镜像是尽力而为
	ai       *AIService
	validate *validator.Validate
}

// NewPipelineService 创建摄取管线
func NewPipelineService(
	resolver *ResolverService,
	specs *SpecService,
	catalog *CatalogService,
	storage *StorageService,
	ai *AIService,
) *PipelineService {
	return &PipelineService{
		resolver: resolver,
		specs:    specs,
		catalog:  catalog,
		storage:  storage,
		ai:       ai,
		validate: validator.New(),
	}
}

// Process 处理一条抓取记录
// 新建报价以 pending 批次落库，审核/富化完成前保持 inactive
func (s *PipelineService) Process(ctx context.Context, raw model.ScrapedProduct, category model.CategorySlug, storeID int64) PipelineResult {
	// 1. 结构校验
	if err := s.validate.Struct(raw); err != nil {
		return pipelineFailure("registro inválido: %s", joinFieldErrors(err))
	}

	// 2. 品类校验：拒绝是预期业务结果，记 info 即可
	if result := ValidateCategory(raw.Title, category); !result.Valid {
		log.Printf("[Pipeline] 拒绝 %q (%s): %s", raw.Title, category, result.Reason)
		return PipelineResult{Success: false, Rejected: true, Error: result.Reason}
	}

	// 3. 品牌解析：解析不了是该条数据的失败，不是崩溃
	brandName := ExtractBrand(raw.Specs)
	brandID := s.resolver.ResolveBrandID(ctx, brandName)
	if brandID == 0 {
		return pipelineFailure("no se pudo resolver la marca %q", brandName)
	}

	// 4. 规格归一化；目录级形状校验只是建议性告警，残缺 specs 也有价值
	specs, err := s.specs.NormalizeFor(ctx, category, raw.MPN, raw.Specs, raw.Title)
	if err != nil {
		return pipelineFailure("normalización de specs falló: %v", err)
	}
	if err := ValidateSpecSchema(category, specs); err != nil {
		log.Printf("[Pipeline] specs incompletos %q: %v", raw.Title, err)
	}

	// 5. SEO 标题
	seoTitle := BuildSEOTitle(raw.Title, raw.MPN)

	// 6. 图片镜像：失败保留外站 URL 继续
	imageURL := raw.ImageURL
	if imageURL != "" && raw.MPN != "" && s.storage != nil {
		if uploaded := s.storage.UploadImage(ctx, raw.MPN, imageURL); uploaded.Success {
			imageURL = uploaded.URL
		}
	}

	// 7. 品类解析
	categoryID := s.resolver.GetCategoryID(ctx, category)
	if categoryID == 0 {
		return pipelineFailure("no se pudo resolver la categoría %s", category)
	}

	// 8. 落库，pending 批次压制新报价
	productID, listingID := s.catalog.UpsertProductAndListing(ctx,
		ProductInput{
			Name:       seoTitle,
			MPN:        raw.MPN,
			CategoryID: categoryID,
			BrandID:    brandID,
			ImageURL:   imageURL,
			Specs:      specs,
			Keywords:   buildKeywords(brandName, category, specs),
		},
		ListingInput{
			StoreID:       storeID,
			ExternalID:    raw.URL,
			PriceCash:     raw.Price,
			PriceNormal:   raw.OriginalPrice,
			Stock:         raw.Stock,
			StockQuantity: raw.StockQuantity,
		},
		true,
	)
	if productID == 0 || listingID == 0 {
		return pipelineFailure("upsert devolvió ids nulos")
	}

	return PipelineResult{Success: true, ProductID: productID, ListingID: listingID}
}

// AIMetrics 批处理级 AI 指标透出
func (s *PipelineService) AIMetrics() AIMetrics {
	if s.ai == nil {
		return AIMetrics{}
	}
	return s.ai.Metrics()
}

// joinFieldErrors 字段级错误拼接为单条信息
func joinFieldErrors(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// buildKeywords 搜索关键词：品牌 + 品类展示名 + 关键 spec 值
func buildKeywords(brand string, category model.CategorySlug, specs model.JSONMap) []string {
	keywords := []string{brand, model.CategoryNames[category]}
	for _, key := range []string{"chipset", "socket", "type", "bus"} {
		if v, ok := specs[key]; ok {
			if s, isStr := v.(string); isStr && s != "" {
				keywords = append(keywords, s)
			}
		}
	}
	return keywords
}
