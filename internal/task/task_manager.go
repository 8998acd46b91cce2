package task

import (
	"context"
	"log"
	"time"

	"hwcatalog_v1_202608/internal/repository"
	"hwcatalog_v1_202608/internal/service"
	"hwcatalog_v1_202608/internal/source"
)

// ==================== TaskManager 后台任务管理器 ====================

// TaskManager 统一管理后台任务
// 管理范围：来源采集、变体分组、规格提取调度
type TaskManager struct {
	ingestTask     *IngestTask
	groupingTask   *GroupingTask
	extractionTask *ExtractionTask
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	// Repositories
	ProductRepo repository.ProductRepository
	GroupRepo   repository.GroupRepository
	ListingRepo repository.ListingRepository
	JobRepo     repository.JobRepository
	RunRepo     repository.RunRepository

	// Services
	AIService *service.AIService
	Registry  *source.Registry
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	// 采集
	IngestEnabled bool

	// 分组
	GroupingEnabled bool

	// 规格提取
	ExtractionEnabled      bool
	ExtractionPoolSize     int
	ExtractionBatchSize    int
	ExtractionPollInterval time.Duration
	ExtractionMaxAttempts  int
	ExtractionBackoffBase  time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		IngestEnabled:   true,
		GroupingEnabled: true,

		ExtractionEnabled:      true,
		ExtractionPoolSize:     5,
		ExtractionBatchSize:    10,
		ExtractionPollInterval: 5 * time.Second,
		ExtractionMaxAttempts:  3,
		ExtractionBackoffBase:  2 * time.Second,
	}
}

// NewTaskManager 创建任务管理器
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tm := &TaskManager{}

	// 变体分组任务
	if cfg.GroupingEnabled {
		tm.groupingTask = NewGroupingTask(deps.ProductRepo, deps.GroupRepo)
	}

	// 来源采集任务
	if cfg.IngestEnabled && deps.Registry != nil {
		tm.ingestTask = NewIngestTask(deps.Registry, deps.RunRepo, tm.groupingTask)
	}

	// 规格提取调度
	if cfg.ExtractionEnabled && deps.AIService != nil {
		tm.extractionTask = NewExtractionTask(deps.JobRepo, deps.ProductRepo, deps.ListingRepo, deps.AIService)
		tm.extractionTask.SetScheduling(cfg.ExtractionPoolSize, cfg.ExtractionBatchSize, cfg.ExtractionPollInterval)
		tm.extractionTask.SetRetry(cfg.ExtractionMaxAttempts, cfg.ExtractionBackoffBase)
	}

	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务
func (tm *TaskManager) Start() {
	log.Println("[TaskManager] 正在启动后台任务...")

	if tm.ingestTask != nil {
		tm.ingestTask.Start()
	}
	if tm.groupingTask != nil {
		tm.groupingTask.Start()
	}
	if tm.extractionTask != nil {
		tm.extractionTask.Start()
	}

	log.Println("[TaskManager] 后台任务已全部启动")
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	log.Println("[TaskManager] 正在停止后台任务...")

	if tm.ingestTask != nil {
		tm.ingestTask.Stop()
	}
	if tm.groupingTask != nil {
		tm.groupingTask.Stop()
	}
	if tm.extractionTask != nil {
		tm.extractionTask.Stop()
	}

	log.Println("[TaskManager] 后台任务已全部停止")
}

// ==================== 手动触发接口 ====================

// TriggerIngest 触发单来源采集
func (tm *TaskManager) TriggerIngest(ctx context.Context, sourceSlug, category string) (*source.JobResult, error) {
	if tm.ingestTask == nil {
		return nil, ErrTaskDisabled
	}
	return tm.ingestTask.Trigger(ctx, sourceSlug, category)
}

// TriggerGrouping 触发一次变体分组
func (tm *TaskManager) TriggerGrouping(ctx context.Context) (int, error) {
	if tm.groupingTask == nil {
		return 0, ErrTaskDisabled
	}
	return tm.groupingTask.Run(ctx)
}

// IngestRunning 来源是否有在途采集
func (tm *TaskManager) IngestRunning(sourceSlug string) bool {
	return tm.ingestTask != nil && tm.ingestTask.IsRunning(sourceSlug)
}

// ==================== 状态查询 ====================

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"ingest":     tm.ingestTask != nil,
		"grouping":   tm.groupingTask != nil,
		"extraction": tm.extractionTask != nil,
	}
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
)
