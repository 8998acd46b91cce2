package source

import (
	"context"
	"fmt"
	"sort"

	"hwcatalog_v1_202608/internal/model"
)

// ==================== 爬虫契约 ====================

// Info 爬虫来源静态信息
// Slug 用于解析店铺行；Categories 为来源侧品类映射（品类 -> 来源路径/ID）
type Info struct {
	Slug       string
	Name       string
	BaseURL    string
	Categories map[model.CategorySlug]string
}

// APICrawler 直连 API 型爬虫：来源自带分页聚合
type APICrawler interface {
	Info() Info
	CrawlCategory(ctx context.Context, category model.CategorySlug) ([]model.ScrapedProduct, error)
}

// ScrapeCrawler HTML 抓取型爬虫
// URL 枚举与 HTML 解析归爬虫；批量抓取与并发控制归策略
type ScrapeCrawler interface {
	Info() Info
	GetAllProductURLs(ctx context.Context, category model.CategorySlug) ([]string, error)
	// ParseProduct 解析失败返回 nil, nil 表示该页无法解析（计失败，不中断批次）
	ParseProduct(html, url string) (*model.ScrapedProduct, error)
}

// ==================== 爬虫登记 ====================

// 站点爬虫通过 init() 自行登记，启动时据此构建策略与店铺种子
var (
	scrapeCrawlers []ScrapeCrawler
	apiCrawlers    []APICrawler
)

// RegisterScrapeCrawler 登记一个 HTML 抓取型爬虫
func RegisterScrapeCrawler(c ScrapeCrawler) {
	scrapeCrawlers = append(scrapeCrawlers, c)
}

// RegisterAPICrawler 登记一个 API 直连型爬虫
func RegisterAPICrawler(c APICrawler) {
	apiCrawlers = append(apiCrawlers, c)
}

// RegisteredScrapeCrawlers 已登记的 HTML 型爬虫
func RegisteredScrapeCrawlers() []ScrapeCrawler {
	return scrapeCrawlers
}

// RegisteredAPICrawlers 已登记的 API 型爬虫
func RegisteredAPICrawlers() []APICrawler {
	return apiCrawlers
}

// ==================== 策略注册表 ====================

// Registry 来源 slug -> 策略
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register 注册一个来源策略
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Source()] = s
}

// Get 按来源 slug 取策略
func (r *Registry) Get(slug string) (Strategy, error) {
	s, ok := r.strategies[slug]
	if !ok {
		return nil, fmt.Errorf("fuente desconocida: %s", slug)
	}
	return s, nil
}

// Sources 已注册来源（固定顺序）
func (r *Registry) Sources() []string {
	slugs := make([]string, 0, len(r.strategies))
	for slug := range r.strategies {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// resolveCategories 把 job 的品类参数展开为来源支持的品类列表
func resolveCategories(category string, available map[model.CategorySlug]string) ([]model.CategorySlug, error) {
	if category == "" || category == "all" {
		var out []model.CategorySlug
		for _, slug := range model.AllCategories {
			if _, ok := available[slug]; ok {
				out = append(out, slug)
			}
		}
		return out, nil
	}

	if !model.IsValidCategory(category) {
		return nil, fmt.Errorf("categoría inválida: %s", category)
	}
	slug := model.CategorySlug(category)
	if _, ok := available[slug]; !ok {
		return nil, fmt.Errorf("la fuente no cubre la categoría %s", slug)
	}
	return []model.CategorySlug{slug}, nil
}
