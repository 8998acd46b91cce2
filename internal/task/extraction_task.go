package task

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/panjf2000/ants/v2"

	"hwcatalog_v1_202608/internal/model"
	"hwcatalog_v1_202608/internal/repository"
	"hwcatalog_v1_202608/internal/service"
)

// ==================== ExtractionTask 规格提取调度器 ====================

// ExtractionTask 规格提取任务调度器
// 轮询认领 pending 任务，交给 worker 池执行 AI 提取
// 认领是原子的：同一任务同一时刻至多一个 worker 持有
type ExtractionTask struct {
	jobRepo     repository.JobRepository
	productRepo repository.ProductRepository
	listingRepo repository.ListingRepository
	ai          *service.AIService
	validate    *validator.Validate

	pool *ants.Pool

	// 调度参数
	poolSize     int
	batchSize    int
	pollInterval time.Duration
	maxAttempts  int
	backoffBase  time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewExtractionTask 创建提取调度器
func NewExtractionTask(
	jobRepo repository.JobRepository,
	productRepo repository.ProductRepository,
	listingRepo repository.ListingRepository,
	ai *service.AIService,
) *ExtractionTask {
	return &ExtractionTask{
		jobRepo:      jobRepo,
		productRepo:  productRepo,
		listingRepo:  listingRepo,
		ai:           ai,
		validate:     validator.New(),
		poolSize:     5,
		batchSize:    10,
		pollInterval: 5 * time.Second,
		maxAttempts:  3,
		backoffBase:  2 * time.Second,
	}
}

// SetScheduling 设置调度参数
func (t *ExtractionTask) SetScheduling(poolSize, batchSize int, pollInterval time.Duration) {
	if poolSize > 0 {
		t.poolSize = poolSize
	}
	if batchSize > 0 {
		t.batchSize = batchSize
	}
	if pollInterval > 0 {
		t.pollInterval = pollInterval
	}
}

// SetRetry 设置重试参数
func (t *ExtractionTask) SetRetry(maxAttempts int, backoffBase time.Duration) {
	if maxAttempts > 0 {
		t.maxAttempts = maxAttempts
	}
	if backoffBase > 0 {
		t.backoffBase = backoffBase
	}
}

// Start 启动轮询
func (t *ExtractionTask) Start() {
	pool, err := ants.NewPool(t.poolSize, ants.WithNonblocking(true))
	if err != nil {
		log.Printf("[ExtractionTask] worker 池创建失败: %v", err)
		return
	}
	t.pool = pool
	t.stopCh = make(chan struct{})

	t.wg.Add(1)
	go t.pollLoop()
	log.Printf("[ExtractionTask] 已启动 (池大小=%d, 批量=%d, 轮询=%v)", t.poolSize, t.batchSize, t.pollInterval)
}

// Stop 停止轮询并等待在途任务
func (t *ExtractionTask) Stop() {
	if t.stopCh == nil {
		return
	}
	close(t.stopCh)
	t.wg.Wait()
	if t.pool != nil {
		t.pool.Release()
	}
	log.Println("[ExtractionTask] 已停止")
}

// 轮询结果决定下一次间隔：空队列等满额间隔，
// 查询出错等半额后重试，池满或刚认领到任务则很快再看一眼
type pollOutcome int

const (
	pollIdle pollOutcome = iota
	pollBusy
	pollErr
	pollSaturated
)

func (t *ExtractionTask) pollLoop() {
	defer t.wg.Done()

	timer := time.NewTimer(t.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-timer.C:
			timer.Reset(t.nextDelay(t.pollOnce(context.Background())))
		}
	}
}

func (t *ExtractionTask) nextDelay(outcome pollOutcome) time.Duration {
	switch outcome {
	case pollErr:
		return t.pollInterval / 2
	case pollBusy, pollSaturated:
		return t.pollInterval / 10
	default:
		return t.pollInterval
	}
}

// pollOnce 认领一批任务并提交到 worker 池
// 认领数量受池空闲槽位约束，池满则本轮跳过
func (t *ExtractionTask) pollOnce(ctx context.Context) pollOutcome {
	free := t.pool.Free()
	if free <= 0 {
		return pollSaturated
	}
	limit := t.batchSize
	if free < limit {
		limit = free
	}

	jobs, err := t.jobRepo.ClaimPending(ctx, limit)
	if err != nil {
		log.Printf("[ExtractionTask] 认领任务失败: %v", err)
		return pollErr
	}
	if len(jobs) == 0 {
		return pollIdle
	}
	log.Printf("[ExtractionTask] 认领 %d 个任务", len(jobs))

	for i := range jobs {
		job := jobs[i]
		if err := t.pool.Submit(func() {
			t.runJob(context.Background(), &job)
		}); err != nil {
			// 池满时退回队列，下轮重新认领
			if reqErr := t.jobRepo.Requeue(ctx, job.ID, "worker pool saturado"); reqErr != nil {
				log.Printf("[ExtractionTask] 任务 %d 退回失败: %v", job.ID, reqErr)
			}
		}
	}
	return pollBusy
}

// runJob 执行单个提取任务
func (t *ExtractionTask) runJob(ctx context.Context, job *model.ExtractionJob) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	// 形状校验失败是永久错误，不重试
	if err := t.validate.Struct(job); err != nil {
		log.Printf("[ExtractionTask] 任务 %d 形状非法: %v", job.ID, err)
		_ = t.jobRepo.MarkFailed(ctx, job.ID, fmt.Sprintf("tarea malformada: %v", err))
		return
	}

	specs, err := t.ai.ExtractForCategory(ctx, job.Category, job.MPN, t.buildContext(job))
	if err != nil {
		t.handleFailure(ctx, job, err)
		return
	}

	if err := t.jobRepo.MarkCompleted(ctx, job.ID, specs); err != nil {
		log.Printf("[ExtractionTask] 任务 %d 标记完成失败: %v", job.ID, err)
		return
	}
	t.applyResult(ctx, job, specs)
	log.Printf("[ExtractionTask] 任务 %d 完成 (MPN=%s)", job.ID, job.MPN)
}

// buildContext 拼装 AI 提取的上下文文本
func (t *ExtractionTask) buildContext(job *model.ExtractionJob) string {
	var sb strings.Builder
	sb.WriteString(job.RawText)
	for k, v := range job.Context {
		sb.WriteString(fmt.Sprintf("\n%s: %v", k, v))
	}
	return sb.String()
}

// handleFailure 按错误类型决定重试或置失败
// 瞬态错误在未达上限时退避后重新入队，其余立即失败
// backoffFor 基础间隔按已失败次数翻倍
func (t *ExtractionTask) backoffFor(attempts int) time.Duration {
	return t.backoffBase * (1 << attempts)
}

func (t *ExtractionTask) handleFailure(ctx context.Context, job *model.ExtractionJob, cause error) {
	attempts := job.Attempts + 1
	if isTransient(cause) && attempts < t.maxAttempts {
		backoff := t.backoffFor(job.Attempts)
		log.Printf("[ExtractionTask] 任务 %d 瞬态失败 (第 %d 次), %v 后重试: %v", job.ID, attempts, backoff, cause)
		time.Sleep(backoff)
		if err := t.jobRepo.Requeue(ctx, job.ID, cause.Error()); err != nil {
			log.Printf("[ExtractionTask] 任务 %d 重新入队失败: %v", job.ID, err)
		}
		return
	}

	log.Printf("[ExtractionTask] 任务 %d 失败 (第 %d 次): %v", job.ID, attempts, cause)
	if err := t.jobRepo.MarkFailed(ctx, job.ID, cause.Error()); err != nil {
		log.Printf("[ExtractionTask] 任务 %d 标记失败出错: %v", job.ID, err)
	}
}

// isTransient 判断错误是否瞬态（可重试）
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	transientSignatures := []string{
		"timeout",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"429",
		"rate limit",
		"503",
		"temporarily unavailable",
		"eof",
	}
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// applyResult 提取成功后的联动更新
// 回填产品规格、缓存 MPN 结果、复活被压制但状态允许的报价
func (t *ExtractionTask) applyResult(ctx context.Context, job *model.ExtractionJob, specs model.JSONMap) {
	t.ai.CacheSpecs(job.MPN, specs)

	product, err := t.productRepo.GetByMPN(ctx, job.MPN)
	if err != nil {
		if !repository.IsNotFound(err) {
			log.Printf("[ExtractionTask] 查询产品 MPN=%s 失败: %v", job.MPN, err)
		}
		return
	}

	if err := t.productRepo.UpdateFields(ctx, product.ID, map[string]interface{}{
		"specs": specs,
	}); err != nil {
		log.Printf("[ExtractionTask] 更新产品 %d 规格失败: %v", product.ID, err)
	}

	// 待审核期间被强制下线的报价：价格为正且库存未确认为零的恢复上线
	listings, err := t.listingRepo.ListInactiveByProduct(ctx, product.ID)
	if err != nil {
		log.Printf("[ExtractionTask] 查询产品 %d 下线报价失败: %v", product.ID, err)
		return
	}
	for _, l := range listings {
		if l.PriceCash <= 0 {
			continue
		}
		if l.StockQuantity != nil && *l.StockQuantity == 0 {
			continue
		}
		if err := t.listingRepo.UpdateFields(ctx, l.ID, map[string]interface{}{
			"is_active": true,
		}); err != nil {
			log.Printf("[ExtractionTask] 复活报价 %d 失败: %v", l.ID, err)
		}
	}
}
