package source

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"hwcatalog_v1_202608/internal/model"
	"hwcatalog_v1_202608/internal/service"
)

// ==================== 采集策略 ====================

// Job 一次采集任务的参数，Category 为空或 "all" 表示全品类
type Job struct {
	Category string
}

// CategoryCount 单品类的采集统计
type CategoryCount struct {
	Total    int `json:"total"`
	Success  int `json:"success"`
	Rejected int `json:"rejected"`
	Failed   int `json:"failed"`
}

// JobResult 采集任务结果
type JobResult struct {
	Source     string
	Status     string
	Categories []model.CategorySlug
	Counts     map[model.CategorySlug]*CategoryCount
	TotalCount int
	Duration   time.Duration
	AIMetrics  service.AIMetrics
}

func (r *JobResult) add(cat model.CategorySlug, res service.PipelineResult) {
	c, ok := r.Counts[cat]
	if !ok {
		c = &CategoryCount{}
		r.Counts[cat] = c
	}
	c.Total++
	r.TotalCount++
	switch {
	case res.Rejected:
		c.Rejected++
	case res.Success:
		c.Success++
	default:
		c.Failed++
	}
}

// Strategy 来源采集策略
type Strategy interface {
	Source() string
	Execute(ctx context.Context, job Job) (*JobResult, error)
}

// ==================== 批量抓取策略 ====================

// BatchFetchStrategy HTML 来源的采集策略
// 固定大小分批：批内并发抓取 HTML，再并发过管道；单品失败只计数
type BatchFetchStrategy struct {
	crawler   ScrapeCrawler
	fetcher   *Fetcher
	pipeline  *service.PipelineService
	resolver  *service.ResolverService
	batchSize int
}

// NewBatchFetchStrategy 创建批量抓取策略
func NewBatchFetchStrategy(crawler ScrapeCrawler, fetcher *Fetcher, pipeline *service.PipelineService, resolver *service.ResolverService, batchSize int) *BatchFetchStrategy {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &BatchFetchStrategy{
		crawler:   crawler,
		fetcher:   fetcher,
		pipeline:  pipeline,
		resolver:  resolver,
		batchSize: batchSize,
	}
}

func (s *BatchFetchStrategy) Source() string {
	return s.crawler.Info().Slug
}

func (s *BatchFetchStrategy) Execute(ctx context.Context, job Job) (*JobResult, error) {
	info := s.crawler.Info()
	start := time.Now()

	// 店铺解析失败是配置错误，整个任务失败
	storeID, err := s.resolver.ResolveStoreID(ctx, info.Slug)
	if err != nil {
		return nil, fmt.Errorf("resolver tienda %s: %w", info.Slug, err)
	}

	categories, err := resolveCategories(job.Category, info.Categories)
	if err != nil {
		return nil, err
	}

	result := &JobResult{
		Source:     info.Slug,
		Status:     "completed",
		Categories: categories,
		Counts:     make(map[model.CategorySlug]*CategoryCount),
	}

	for _, cat := range categories {
		if err := s.runCategory(ctx, cat, storeID, result); err != nil {
			log.Printf("[Source:%s] 品类 %s 采集失败: %v", info.Slug, cat, err)
			result.Status = "partial"
		}
	}

	result.Duration = time.Since(start)
	result.AIMetrics = s.pipeline.AIMetrics()
	log.Printf("[Source:%s] 采集完成: %d 个商品, 耗时 %v", info.Slug, result.TotalCount, result.Duration)
	return result, nil
}

func (s *BatchFetchStrategy) runCategory(ctx context.Context, cat model.CategorySlug, storeID int64, result *JobResult) error {
	urls, err := s.crawler.GetAllProductURLs(ctx, cat)
	if err != nil {
		return fmt.Errorf("listar URLs: %w", err)
	}
	log.Printf("[Source:%s] 品类 %s: %d 个商品页", s.Source(), cat, len(urls))

	for i := 0; i < len(urls); i += s.batchSize {
		end := i + s.batchSize
		if end > len(urls) {
			end = len(urls)
		}
		s.runBatch(ctx, urls[i:end], cat, storeID, result)

		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (s *BatchFetchStrategy) runBatch(ctx context.Context, urls []string, cat model.CategorySlug, storeID int64, result *JobResult) {
	pages := s.fetcher.FetchHTMLBatch(ctx, urls)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, url := range urls {
		html, ok := pages[url]
		if !ok {
			// 抓取失败
			mu.Lock()
			result.add(cat, service.PipelineResult{})
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(u, body string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[Source:%s] 处理 %s panic: %v", s.Source(), u, r)
					mu.Lock()
					result.add(cat, service.PipelineResult{})
					mu.Unlock()
				}
			}()

			raw, err := s.crawler.ParseProduct(body, u)
			if err != nil || raw == nil {
				if err != nil {
					log.Printf("[Source:%s] 解析失败 %s: %v", s.Source(), u, err)
				}
				mu.Lock()
				result.add(cat, service.PipelineResult{})
				mu.Unlock()
				return
			}

			res := s.pipeline.Process(ctx, *raw, cat, storeID)
			mu.Lock()
			result.add(cat, res)
			mu.Unlock()
		}(url, html)
	}
	wg.Wait()
}

// ==================== API 直连策略 ====================

// DirectAPIStrategy API 来源的采集策略，来源自带分页聚合，逐条过管道
type DirectAPIStrategy struct {
	crawler  APICrawler
	pipeline *service.PipelineService
	resolver *service.ResolverService
}

// NewDirectAPIStrategy 创建 API 直连策略
func NewDirectAPIStrategy(crawler APICrawler, pipeline *service.PipelineService, resolver *service.ResolverService) *DirectAPIStrategy {
	return &DirectAPIStrategy{crawler: crawler, pipeline: pipeline, resolver: resolver}
}

func (s *DirectAPIStrategy) Source() string {
	return s.crawler.Info().Slug
}

func (s *DirectAPIStrategy) Execute(ctx context.Context, job Job) (*JobResult, error) {
	info := s.crawler.Info()
	start := time.Now()

	storeID, err := s.resolver.ResolveStoreID(ctx, info.Slug)
	if err != nil {
		return nil, fmt.Errorf("resolver tienda %s: %w", info.Slug, err)
	}

	categories, err := resolveCategories(job.Category, info.Categories)
	if err != nil {
		return nil, err
	}

	result := &JobResult{
		Source:     info.Slug,
		Status:     "completed",
		Categories: categories,
		Counts:     make(map[model.CategorySlug]*CategoryCount),
	}

	for _, cat := range categories {
		items, err := s.crawler.CrawlCategory(ctx, cat)
		if err != nil {
			log.Printf("[Source:%s] 品类 %s 采集失败: %v", info.Slug, cat, err)
			result.Status = "partial"
			continue
		}
		for _, item := range items {
			res := s.pipeline.Process(ctx, item, cat, storeID)
			result.add(cat, res)
		}
	}

	result.Duration = time.Since(start)
	result.AIMetrics = s.pipeline.AIMetrics()
	log.Printf("[Source:%s] 采集完成: %d 个商品, 耗时 %v", info.Slug, result.TotalCount, result.Duration)
	return result, nil
}
