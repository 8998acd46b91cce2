package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hwcatalog_v1_202608/internal/model"
	"hwcatalog_v1_202608/internal/repository"
	"hwcatalog_v1_202608/internal/service"
)

// ==================== 测试辅助 ====================

func setupExtractionTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Brand{}, &model.Category{}, &model.Store{},
		&model.Product{}, &model.Listing{},
		&model.ExtractionJob{},
	); err != nil {
		t.Fatalf("迁移测试表失败: %v", err)
	}
	return db
}

func newExtractionTask(db *gorm.DB, ai *service.AIService) *ExtractionTask {
	return NewExtractionTask(
		repository.NewJobRepository(db),
		repository.NewProductRepository(db),
		repository.NewListingRepository(db),
		ai,
	)
}

// ==================== 认领语义 ====================

func TestClaimPendingClaimsEachJobOnce(t *testing.T) {
	db := setupExtractionTestDB(t)
	jobRepo := repository.NewJobRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		job := &model.ExtractionJob{MPN: "MPN", Category: model.CategorySSD, Status: model.JobStatusPending}
		if err := jobRepo.Create(ctx, job); err != nil {
			t.Fatalf("入队失败: %v", err)
		}
	}

	first, err := jobRepo.ClaimPending(ctx, 2)
	if err != nil {
		t.Fatalf("认领失败: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("首批认领 %d 个, want 2", len(first))
	}

	second, err := jobRepo.ClaimPending(ctx, 2)
	if err != nil {
		t.Fatalf("二次认领失败: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("二次认领 %d 个, want 1", len(second))
	}

	var processing int64
	db.Model(&model.ExtractionJob{}).Where("status = ?", model.JobStatusProcessing).Count(&processing)
	if processing != 3 {
		t.Fatalf("全部任务都应转为 processing, got %d", processing)
	}
}

// ==================== 永久失败 ====================

func TestRunJobMalformedFailsImmediately(t *testing.T) {
	db := setupExtractionTestDB(t)
	jobRepo := repository.NewJobRepository(db)
	task := newExtractionTask(db, service.NewAIService(&service.AIConfig{ApiKey: "test-key"}))
	ctx := context.Background()

	// MPN 为空是形状错误，不占用重试预算
	job := &model.ExtractionJob{MPN: "", Category: model.CategorySSD, Status: model.JobStatusProcessing}
	db.Create(job)

	task.runJob(ctx, job)

	saved, err := jobRepo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("读取任务失败: %v", err)
	}
	if saved.Status != model.JobStatusFailed {
		t.Fatalf("形状非法的任务应立即失败, status = %s", saved.Status)
	}
	if saved.LastError == "" {
		t.Fatal("失败任务必须带错误说明")
	}
}

// ==================== 瞬态错误分类 ====================

func TestIsTransient(t *testing.T) {
	transient := []error{
		errors.New("context deadline exceeded"),
		errors.New("Gemini API 返回 429 Too Many Requests"),
		errors.New("dial tcp: connection refused"),
		errors.New("unexpected EOF"),
	}
	for _, err := range transient {
		if !isTransient(err) {
			t.Errorf("%v 应判为瞬态", err)
		}
	}

	terminal := []error{
		errors.New("提取结果形状校验重试耗尽: falta capacity_gb"),
		errors.New("品类 monitor 无提取策略"),
		nil,
	}
	for _, err := range terminal {
		if isTransient(err) {
			t.Errorf("%v 不应判为瞬态", err)
		}
	}
}

func TestHandleFailureRetriesThenFails(t *testing.T) {
	db := setupExtractionTestDB(t)
	jobRepo := repository.NewJobRepository(db)
	task := newExtractionTask(db, service.NewAIService(&service.AIConfig{ApiKey: "test-key"}))
	task.SetRetry(3, time.Millisecond)
	ctx := context.Background()

	job := &model.ExtractionJob{MPN: "MPN1", Category: model.CategorySSD, Status: model.JobStatusProcessing}
	db.Create(job)

	// 第一次瞬态失败：退回队列，计数 +1
	task.handleFailure(ctx, job, errors.New("context deadline exceeded"))
	saved, _ := jobRepo.GetByID(ctx, job.ID)
	if saved.Status != model.JobStatusPending || saved.Attempts != 1 {
		t.Fatalf("瞬态失败应重新入队: status=%s attempts=%d", saved.Status, saved.Attempts)
	}

	// 重试预算耗尽：置为终态
	saved.Status = model.JobStatusProcessing
	db.Save(saved)
	saved.Attempts = 2
	task.handleFailure(ctx, saved, errors.New("context deadline exceeded"))
	final, _ := jobRepo.GetByID(ctx, job.ID)
	if final.Status != model.JobStatusFailed {
		t.Fatalf("预算耗尽应置失败, status = %s", final.Status)
	}

	// 非瞬态错误不看剩余预算
	job2 := &model.ExtractionJob{MPN: "MPN2", Category: model.CategorySSD, Status: model.JobStatusProcessing}
	db.Create(job2)
	task.handleFailure(ctx, job2, errors.New("invalid api key"))
	saved2, _ := jobRepo.GetByID(ctx, job2.ID)
	if saved2.Status != model.JobStatusFailed {
		t.Fatalf("非瞬态错误应立即失败, status = %s", saved2.Status)
	}
}

// ==================== 完成与联动 ====================

func TestRunJobCompletedAppliesResult(t *testing.T) {
	db := setupExtractionTestDB(t)
	jobRepo := repository.NewJobRepository(db)
	ctx := context.Background()

	ai := service.NewAIService(&service.AIConfig{ApiKey: "test-key"})
	// 预热 MPN 缓存，提取直接命中，不出网
	specs := model.JSONMap{"capacity_gb": 1000, "bus": "PCIe 4.0 NVMe"}
	ai.CacheSpecs("SNV2S/1000G", specs)

	task := newExtractionTask(db, ai)

	category := &model.Category{Slug: "ssd", Name: "Discos SSD"}
	brand := &model.Brand{Name: "Kingston", Slug: "kingston"}
	store := &model.Store{Name: "Tienda Uno", Slug: "tienda-uno"}
	db.Create(category)
	db.Create(brand)
	db.Create(store)

	product := &model.Product{
		Name:       "SSD Kingston NV2 1TB",
		Slug:       "ssd-kingston-nv2-1tb",
		MPN:        "SNV2S/1000G",
		CategoryID: category.ID,
		BrandID:    brand.ID,
	}
	db.Create(product)

	// 待审核期间被压制的报价：价格为正、数量未知
	suppressed := &model.Listing{
		StoreID:    store.ID,
		ExternalID: "https://tienda-uno.cl/nv2",
		ProductID:  product.ID,
		PriceCash:  45000,
		IsActive:   false,
	}
	db.Create(suppressed)

	// 库存确认为零的报价不应被复活
	zero := 0
	outOfStock := &model.Listing{
		StoreID:       store.ID,
		ExternalID:    "https://tienda-uno.cl/nv2-b",
		ProductID:     product.ID,
		PriceCash:     45000,
		StockQuantity: &zero,
		IsActive:      false,
	}
	db.Create(outOfStock)

	job := &model.ExtractionJob{MPN: "SNV2S/1000G", Category: model.CategorySSD, Status: model.JobStatusProcessing}
	db.Create(job)

	task.runJob(ctx, job)

	saved, err := jobRepo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("读取任务失败: %v", err)
	}
	if saved.Status != model.JobStatusCompleted {
		t.Fatalf("任务应完成, status = %s (%s)", saved.Status, saved.LastError)
	}
	if saved.Result["bus"] != "PCIe 4.0 NVMe" {
		t.Fatalf("任务结果应落库, got %v", saved.Result)
	}

	var savedProduct model.Product
	db.First(&savedProduct, product.ID)
	if savedProduct.Specs["capacity_gb"] == nil {
		t.Fatal("商品规格应被提取结果回填")
	}

	var revived, stillDown model.Listing
	db.First(&revived, suppressed.ID)
	db.First(&stillDown, outOfStock.ID)
	if !revived.IsActive {
		t.Fatal("价格为正且库存未确认为零的报价应被复活")
	}
	if stillDown.IsActive {
		t.Fatal("库存确认为零的报价不应被复活")
	}
}

// ==================== 退避序列 ====================

func TestBackoffProgression(t *testing.T) {
	task := newExtractionTask(setupExtractionTestDB(t), service.NewAIService(&service.AIConfig{ApiKey: "test-key"}))
	task.SetRetry(5, 2*time.Second)

	prev := time.Duration(0)
	for attempts := 0; attempts < 5; attempts++ {
		got := task.backoffFor(attempts)
		want := 2 * time.Second * (1 << attempts)
		if got != want {
			t.Fatalf("backoffFor(%d) = %v, want %v", attempts, got, want)
		}
		if got <= prev {
			t.Fatalf("退避序列必须严格递增: backoffFor(%d)=%v <= %v", attempts, got, prev)
		}
		prev = got
	}
}

// ==================== worker 池上限 ====================

// 提交 并发上限+K 个任务：同时运行的不能超过上限，
// 溢出的提交被拒绝（走退回重认领路径），最终全部完成
func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	db := setupExtractionTestDB(t)
	task := newExtractionTask(db, service.NewAIService(&service.AIConfig{ApiKey: "test-key"}))
	// 轮询间隔拉长，测试期间池只被本测试直接使用
	task.SetScheduling(2, 10, time.Hour)
	task.Start()
	defer task.Stop()

	const limit = 2
	const overflow = 3

	var running, peak, done int32
	gate := make(chan struct{})
	var wg sync.WaitGroup
	work := func() {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-gate
		atomic.AddInt32(&running, -1)
		atomic.AddInt32(&done, 1)
		wg.Done()
	}

	wg.Add(limit)
	for i := 0; i < limit; i++ {
		if err := task.pool.Submit(work); err != nil {
			t.Fatalf("第 %d 个提交不应被拒绝: %v", i+1, err)
		}
	}
	rejected := 0
	for i := 0; i < overflow; i++ {
		if err := task.pool.Submit(work); err != nil {
			rejected++
		}
	}
	if rejected != overflow {
		t.Fatalf("池满后 %d 个提交被拒绝, 期望 %d", rejected, overflow)
	}

	close(gate)
	wg.Wait()

	// 被拒绝的提交重试后也要能完成
	// worker 归还池子有微小延迟，提交带重试
	wg.Add(overflow)
	deadline := time.Now().Add(5 * time.Second)
	for i := 0; i < overflow; i++ {
		for {
			err := task.pool.Submit(work)
			if err == nil {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("池空闲后提交仍被拒绝: %v", err)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
	wg.Wait()

	if got := atomic.LoadInt32(&peak); got > limit {
		t.Fatalf("并发峰值 = %d, 超过池上限 %d", got, limit)
	}
	if got := atomic.LoadInt32(&done); got != limit+overflow {
		t.Fatalf("完成任务数 = %d, 期望 %d", got, limit+overflow)
	}
}

// ==================== 轮询节奏 ====================

func TestPollOutcomePacing(t *testing.T) {
	db := setupExtractionTestDB(t)
	ai := service.NewAIService(&service.AIConfig{ApiKey: "test-key"})
	ai.CacheSpecs("SNV2S/1000G", model.JSONMap{"capacity_gb": float64(1000), "bus": "NVMe"})
	task := newExtractionTask(db, ai)
	// 轮询间隔拉长，由测试直接驱动 pollOnce
	task.SetScheduling(2, 10, time.Hour)
	task.Start()
	defer task.Stop()

	ctx := context.Background()

	// 空队列：满额间隔
	if got := task.pollOnce(ctx); got != pollIdle {
		t.Fatalf("空队列 pollOnce = %v, want pollIdle", got)
	}

	// 有任务可领：很快再轮一次
	jobRepo := repository.NewJobRepository(db)
	job := &model.ExtractionJob{MPN: "SNV2S/1000G", Category: model.CategorySSD, Status: model.JobStatusPending}
	if err := jobRepo.Create(ctx, job); err != nil {
		t.Fatalf("入队失败: %v", err)
	}
	if got := task.pollOnce(ctx); got != pollBusy {
		t.Fatalf("有任务 pollOnce = %v, want pollBusy", got)
	}

	// 等在途任务跑完，再用阻塞任务占满池
	deadline := time.Now().Add(5 * time.Second)
	for task.pool.Free() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if task.pool.Free() != 2 {
		t.Fatal("在途任务未在期限内完成")
	}
	gate := make(chan struct{})
	defer close(gate)
	for i := 0; i < 2; i++ {
		if err := task.pool.Submit(func() { <-gate }); err != nil {
			t.Fatalf("占位任务提交失败: %v", err)
		}
	}
	if got := task.pollOnce(ctx); got != pollSaturated {
		t.Fatalf("池满 pollOnce = %v, want pollSaturated", got)
	}

	// 间隔排序：空队列 > 查询出错 > 池满/有任务
	idle, errDelay, busy := task.nextDelay(pollIdle), task.nextDelay(pollErr), task.nextDelay(pollBusy)
	if !(idle > errDelay && errDelay > busy) {
		t.Fatalf("轮询间隔应满足 空闲 > 出错 > 忙碌: %v, %v, %v", idle, errDelay, busy)
	}
	if task.nextDelay(pollSaturated) != busy {
		t.Fatalf("池满与忙碌应同为短间隔")
	}
}
