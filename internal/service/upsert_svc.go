package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"hwcatalog_v1_202608/internal/model"
	"hwcatalog_v1_202608/internal/repository"
	"hwcatalog_v1_202608/pkg/utils"
)

// ==================== 输入 ====================

// ProductInput 归一化后的商品写入形状
type ProductInput struct {
	Name       string
	MPN        string
	CategoryID int64
	BrandID    int64
	ImageURL   string
	Specs      model.JSONMap
	Keywords   []string
}

// ListingInput 报价写入形状
type ListingInput struct {
	StoreID       int64
	ExternalID    string
	PriceCash     float64
	PriceNormal   float64
	Stock         bool
	StockQuantity *int
}

// ==================== CatalogService 商品/报价落库 ====================

// CatalogService 幂等地创建/更新商品与报价
// 批处理调用方依赖统一的结果形状统计成功数，
// 所以任何意外错误都在边界内转为 (0, 0) + 日志，从不向外抛
type CatalogService struct {
	productRepo repository.ProductRepository
	listingRepo repository.ListingRepository
}

// NewCatalogService 创建落库服务
func NewCatalogService(productRepo repository.ProductRepository, listingRepo repository.ListingRepository) *CatalogService {
	return &CatalogService{
		productRepo: productRepo,
		listingRepo: listingRepo,
	}
}

// UpsertProductAndListing 创建或更新商品行与 (store, external_id) 报价行
// pending=true 表示本批来自尚未审核的自动提取路径：
// 首次出现的报价强制压为 inactive；已存在的报价忽略 pending，
// 始终按当前抓取数据重算激活状态（审核过一次的商品应跟踪实时供货）
func (s *CatalogService) UpsertProductAndListing(ctx context.Context, p ProductInput, l ListingInput, pending bool) (productID, listingID int64) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Catalog] upsert panic: %v", r)
			productID, listingID = 0, 0
		}
	}()

	product, err := s.resolveProduct(ctx, p)
	if err != nil {
		log.Printf("[Catalog] 商品落库失败 %q: %v", p.Name, err)
		return 0, 0
	}

	listing, err := s.upsertListing(ctx, product.ID, l, pending)
	if err != nil {
		log.Printf("[Catalog] 报价落库失败 %q: %v", l.ExternalID, err)
		return 0, 0
	}

	// 价格历史尽力而为：写失败不影响整体结果
	if l.PriceCash > 0 {
		entry := &model.PriceHistory{
			ListingID:   listing.ID,
			PriceCash:   l.PriceCash,
			PriceNormal: l.PriceNormal,
		}
		if err := s.listingRepo.CreatePriceHistory(ctx, entry); err != nil {
			log.Printf("[Catalog] 价格历史写入失败 listing=%d: %v", listing.ID, err)
		}
	}

	return product.ID, listing.ID
}

// resolveProduct MPN 存在时按 MPN 复用已有商品；否则总是新建
func (s *CatalogService) resolveProduct(ctx context.Context, p ProductInput) (*model.Product, error) {
	if p.MPN != "" {
		existing, err := s.productRepo.GetByMPN(ctx, p.MPN)
		if err == nil {
			// specs 反映最近一次抓取，而非累积
			fields := map[string]interface{}{
				"specs":    p.Specs,
				"keywords": model.StringSlice(p.Keywords),
			}
			if p.ImageURL != "" {
				fields["image_url"] = p.ImageURL
			}
			if uerr := s.productRepo.UpdateFields(ctx, existing.ID, fields); uerr != nil {
				return nil, uerr
			}
			return existing, nil
		}
		if !repository.IsNotFound(err) {
			return nil, err
		}
	}

	// slug 带时间戳后缀：并发插入同名标题不需要第二次往返就能避开冲突
	product := &model.Product{
		Name:       p.Name,
		Slug:       fmt.Sprintf("%s-%d", utils.Slugify(p.Name), time.Now().UnixNano()),
		MPN:        p.MPN,
		CategoryID: p.CategoryID,
		BrandID:    p.BrandID,
		ImageURL:   p.ImageURL,
		Specs:      p.Specs,
		Keywords:   model.StringSlice(p.Keywords),
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		if repository.IsUniqueViolation(err) && p.MPN != "" {
			// 并发 upsert 同一 MPN：另一写入方赢了，重读复用
			existing, rerr := s.productRepo.GetByMPN(ctx, p.MPN)
			if rerr == nil {
				return existing, nil
			}
		}
		return nil, err
	}
	return product, nil
}

// upsertListing 以 (store_id, external_id) 为键的真 upsert
func (s *CatalogService) upsertListing(ctx context.Context, productID int64, l ListingInput, pending bool) (*model.Listing, error) {
	// 先读已有行以保留审核语义：is_active 的计算取决于报价是否首次出现
	existing, err := s.listingRepo.GetByStoreAndExternalID(ctx, l.StoreID, l.ExternalID)
	if err != nil && !repository.IsNotFound(err) {
		return nil, err
	}
	isNew := existing == nil

	isActive := l.PriceCash > 0 && l.Stock
	if isNew && pending {
		isActive = false
	}

	// 数量未给但库存明确为无时压为 0，让下游能区分「未知」与「确认为零」
	quantity := l.StockQuantity
	if quantity == nil && !l.Stock {
		zero := 0
		quantity = &zero
	}

	listing := &model.Listing{
		StoreID:       l.StoreID,
		ExternalID:    l.ExternalID,
		ProductID:     productID,
		PriceCash:     l.PriceCash,
		PriceNormal:   l.PriceNormal,
		StockQuantity: quantity,
		IsActive:      isActive,
		LastScrapedAt: time.Now(),
	}

	// ID 留空让冲突落在 (store_id, external_id) 上，而不是主键
	if err := s.listingRepo.Upsert(ctx, listing); err != nil {
		return nil, err
	}

	if listing.ID == 0 && !isNew {
		listing.ID = existing.ID
	}
	if listing.ID == 0 {
		// 冲突分支下主键可能未回填，补一次读
		saved, rerr := s.listingRepo.GetByStoreAndExternalID(ctx, l.StoreID, l.ExternalID)
		if rerr != nil {
			return nil, rerr
		}
		listing.ID = saved.ID
	}

	return listing, nil
}
