package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/singleflight"

	"hwcatalog_v1_202608/internal/model"
	"hwcatalog_v1_202608/internal/repository"
	"hwcatalog_v1_202608/pkg/utils"
)

// ==================== ResolverService 品牌/品类解析 ====================

// ResolverService 幂等地把可读名称映射为稳定目录 ID
// 正确性由数据库唯一约束兜底，进程内缓存与请求合并只是优化：
// 冷缓存重启后行为不变，只是多付一次读
type ResolverService struct {
	brandRepo    repository.BrandRepository
	categoryRepo repository.CategoryRepository
	storeRepo    repository.StoreRepository

	// 品牌缓存 slug -> id
	brandCache sync.Map
	// 同 slug 并发解析合并为一次创建尝试，而非互相竞争
	flight singleflight.Group
}

// NewResolverService 创建解析服务
func NewResolverService(
	brandRepo repository.BrandRepository,
	categoryRepo repository.CategoryRepository,
	storeRepo repository.StoreRepository,
) *ResolverService {
	return &ResolverService{
		brandRepo:    brandRepo,
		categoryRepo: categoryRepo,
		storeRepo:    storeRepo,
	}
}

// ==================== 品牌解析 ====================

// ResolveBrandID 解析品牌名为品牌 ID，必要时惰性创建
// 返回 0 表示无法解析；调用方应将该项判为失败，而不是让整批崩溃
func (s *ResolverService) ResolveBrandID(ctx context.Context, name string) int64 {
	slug := utils.Slugify(name)
	if slug == "" {
		return 0
	}

	if cached, ok := s.brandCache.Load(slug); ok {
		return cached.(int64)
	}

	id, err, _ := s.flight.Do("brand:"+slug, func() (interface{}, error) {
		return s.resolveBrandSlow(ctx, name, slug)
	})
	if err != nil {
		log.Printf("[Resolver] 品牌解析失败 %q: %v", name, err)
		return 0
	}

	brandID := id.(int64)
	if brandID > 0 {
		s.brandCache.Store(slug, brandID)
	}
	return brandID
}

// resolveBrandSlow 读 -> 插入 -> 冲突重读
func (s *ResolverService) resolveBrandSlow(ctx context.Context, name, slug string) (int64, error) {
	brand, err := s.brandRepo.GetBySlug(ctx, slug)
	if err == nil {
		return brand.ID, nil
	}
	if !repository.IsNotFound(err) {
		return 0, err
	}

	created := &model.Brand{Name: name, Slug: slug}
	err = s.brandRepo.Create(ctx, created)
	if err == nil {
		return created.ID, nil
	}

	// 唯一冲突说明有其它写入方抢先创建，重读复用其结果
	if repository.IsUniqueViolation(err) {
		brand, rerr := s.brandRepo.GetBySlug(ctx, slug)
		if rerr != nil {
			return 0, fmt.Errorf("冲突后重读失败: %v", rerr)
		}
		return brand.ID, nil
	}

	return 0, err
}

// ==================== 品类解析 ====================

// GetCategoryID 解析品类 slug 为品类 ID，首次使用时创建行
// 品类基数小且固定，不做跨品类缓存
func (s *ResolverService) GetCategoryID(ctx context.Context, slug model.CategorySlug) int64 {
	name, ok := model.CategoryNames[slug]
	if !ok {
		log.Printf("[Resolver] 未知品类: %s", slug)
		return 0
	}

	id, err, _ := s.flight.Do("category:"+string(slug), func() (interface{}, error) {
		category, err := s.categoryRepo.GetBySlug(ctx, string(slug))
		if err == nil {
			return category.ID, nil
		}
		if !repository.IsNotFound(err) {
			return int64(0), err
		}

		created := &model.Category{Slug: string(slug), Name: name}
		err = s.categoryRepo.Create(ctx, created)
		if err == nil {
			return created.ID, nil
		}

		if repository.IsUniqueViolation(err) {
			category, rerr := s.categoryRepo.GetBySlug(ctx, string(slug))
			if rerr != nil {
				return int64(0), fmt.Errorf("冲突后重读失败: %v", rerr)
			}
			return category.ID, nil
		}

		return int64(0), err
	})
	if err != nil {
		log.Printf("[Resolver] 品类解析失败 %s: %v", slug, err)
		return 0
	}

	return id.(int64)
}

// ==================== 店铺解析 ====================

// ResolveStoreID 按来源 slug 解析店铺 ID
// 店铺不存在属于配置错误，由调用方决定是否让整个任务失败
func (s *ResolverService) ResolveStoreID(ctx context.Context, slug string) (int64, error) {
	store, err := s.storeRepo.GetBySlug(ctx, slug)
	if err != nil {
		return 0, fmt.Errorf("店铺 %q 不存在: %v", slug, err)
	}
	return store.ID, nil
}

// CacheSize 当前品牌缓存条数（批处理统计用）
func (s *ResolverService) CacheSize() int {
	count := 0
	s.brandCache.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}
