package task

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"hwcatalog_v1_202608/internal/model"
	"hwcatalog_v1_202608/internal/repository"
	"hwcatalog_v1_202608/internal/source"
)

// ==================== IngestTask 采集任务 ====================

// IngestTask 来源采集定时任务
// 按固定周期跑全部已注册来源；同一来源同一时刻只允许一次运行
type IngestTask struct {
	registry *source.Registry
	runRepo  repository.RunRepository
	grouping *GroupingTask
	cron     *cron.Cron

	running sync.Map // source slug -> struct{}
}

// NewIngestTask 创建采集任务
func NewIngestTask(registry *source.Registry, runRepo repository.RunRepository, grouping *GroupingTask) *IngestTask {
	return &IngestTask{
		registry: registry,
		runRepo:  runRepo,
		grouping: grouping,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Start 启动定时任务
func (t *IngestTask) Start() {
	// 每天凌晨 2 点全量采集
	_, err := t.cron.AddFunc("0 0 2 * * *", func() {
		t.RunAll()
	})
	if err != nil {
		log.Printf("[IngestTask] 定时任务启动失败: %v", err)
		return
	}

	t.cron.Start()
	log.Println("[IngestTask] 已启动 (每天 02:00)")
}

// Stop 停止任务
func (t *IngestTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	log.Println("[IngestTask] 已停止")
}

// RunAll 依次跑全部来源，结束后触发一次变体分组
func (t *IngestTask) RunAll() {
	log.Println("[IngestTask] 开始全量采集...")
	for _, slug := range t.registry.Sources() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		if _, err := t.Trigger(ctx, slug, "all"); err != nil {
			log.Printf("[IngestTask] 来源 %s 采集失败: %v", slug, err)
		}
		cancel()
	}

	if t.grouping != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := t.grouping.Run(ctx); err != nil {
			log.Printf("[IngestTask] 采集后分组失败: %v", err)
		}
	}
	log.Println("[IngestTask] 全量采集结束")
}

// Trigger 触发单个来源的采集并落库运行记录
func (t *IngestTask) Trigger(ctx context.Context, slug, category string) (*source.JobResult, error) {
	strategy, err := t.registry.Get(slug)
	if err != nil {
		return nil, err
	}

	if _, loaded := t.running.LoadOrStore(slug, struct{}{}); loaded {
		return nil, fmt.Errorf("la fuente %s ya tiene una ejecución en curso", slug)
	}
	defer t.running.Delete(slug)

	result, err := strategy.Execute(ctx, source.Job{Category: category})
	if err != nil {
		t.saveRun(ctx, &model.IngestRun{
			Source: slug,
			Status: "failed",
			Error:  err.Error(),
		})
		return nil, err
	}

	t.saveRun(ctx, buildRun(result))
	return result, nil
}

// IsRunning 来源是否有在途运行
func (t *IngestTask) IsRunning(slug string) bool {
	_, ok := t.running.Load(slug)
	return ok
}

func (t *IngestTask) saveRun(ctx context.Context, run *model.IngestRun) {
	if err := t.runRepo.Create(ctx, run); err != nil {
		log.Printf("[IngestTask] 运行记录落库失败: %v", err)
	}
}

// buildRun 把策略结果折叠为运行记录
func buildRun(result *source.JobResult) *model.IngestRun {
	run := &model.IngestRun{
		Source:        result.Source,
		Status:        result.Status,
		Categories:    len(result.Categories),
		TotalCount:    result.TotalCount,
		DurationMs:    result.Duration.Milliseconds(),
		CategoryStats: model.JSONMap{},
		AIMetrics: model.JSONMap{
			"calls":      result.AIMetrics.Calls,
			"latency_ms": result.AIMetrics.LatencyMs,
			"cache_hits": result.AIMetrics.CacheHits,
		},
	}
	for cat, c := range result.Counts {
		run.SuccessCount += c.Success
		run.FailCount += c.Failed
		run.CategoryStats[string(cat)] = map[string]interface{}{
			"total":    c.Total,
			"success":  c.Success,
			"rejected": c.Rejected,
			"failed":   c.Failed,
		}
	}
	return run
}
