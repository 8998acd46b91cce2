package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hwcatalog_v1_202608/internal/controller"
	"hwcatalog_v1_202608/internal/model"
	"hwcatalog_v1_202608/internal/repository"
	"hwcatalog_v1_202608/internal/router"
	"hwcatalog_v1_202608/internal/service"
	"hwcatalog_v1_202608/internal/source"
	"hwcatalog_v1_202608/internal/task"
	"hwcatalog_v1_202608/pkg/database"
)

func main() {
	// 1. 初始化数据库
	db := initDatabase()

	// 2. 初始化依赖
	deps := initDependencies(db)

	// 3. 种子数据
	seedCatalog(deps)

	// 4. 启动后台任务
	deps.TaskManager.Start()
	defer deps.TaskManager.Stop()

	// 5. 初始化路由并启动服务
	r := gin.Default()
	router.InitRoutes(r, deps.IngestCtl, deps.JobCtl, deps.ListingCtl)
	startServer(r)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB    *gorm.DB
	Repos *Repositories

	Resolver *service.ResolverService
	Specs    *service.SpecService
	Catalog  *service.CatalogService
	Pipeline *service.PipelineService
	Storage  *service.StorageService
	AI       *service.AIService

	Registry    *source.Registry
	TaskManager *task.TaskManager

	IngestCtl  *controller.IngestController
	JobCtl     *controller.JobController
	ListingCtl *controller.ListingController
}

// Repositories 仓库集合
type Repositories struct {
	Brand    repository.BrandRepository
	Category repository.CategoryRepository
	Store    repository.StoreRepository
	Product  repository.ProductRepository
	Group    repository.GroupRepository
	Listing  repository.ListingRepository
	Job      repository.JobRepository
	Run      repository.RunRepository
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库
func initDatabase() *gorm.DB {
	dsn := getEnv("DATABASE_DSN",
		"host=localhost user=postgres password=postgres dbname=hwcatalog port=5432 sslmode=disable")
	return database.InitDB(dsn,
		// Catalog
		&model.Category{}, &model.Brand{}, &model.Store{},
		&model.Product{}, &model.ProductGroup{},
		// Listing
		&model.Listing{}, &model.PriceHistory{},
		// Queue
		&model.ExtractionJob{},
		// Bookkeeping
		&model.IngestRun{},
	)
}

// initDependencies 初始化所有依赖
func initDependencies(db *gorm.DB) *Dependencies {
	// -------- Repo 层 --------
	repos := &Repositories{
		Brand:    repository.NewBrandRepository(db),
		Category: repository.NewCategoryRepository(db),
		Store:    repository.NewStoreRepository(db),
		Product:  repository.NewProductRepository(db),
		Group:    repository.NewGroupRepository(db),
		Listing:  repository.NewListingRepository(db),
		Job:      repository.NewJobRepository(db),
		Run:      repository.NewRunRepository(db),
	}

	// -------- 存储 & AI 服务 --------
	storageSvc := initStorageService()
	aiSvc := service.NewAIService(&service.AIConfig{
		ApiKey:    getEnv("GEMINI_API_KEY", ""),
		TextModel: getEnv("GEMINI_TEXT_MODEL", ""),
	})

	// -------- 业务服务 --------
	resolver := service.NewResolverService(repos.Brand, repos.Category, repos.Store)
	specs := service.NewSpecService(aiSvc)
	catalog := service.NewCatalogService(repos.Product, repos.Listing)
	pipeline := service.NewPipelineService(resolver, specs, catalog, storageSvc, aiSvc)

	// -------- 来源注册表 --------
	registry := buildRegistry(pipeline, resolver)

	// -------- 后台任务 --------
	taskManager := task.NewTaskManager(&task.TaskManagerDeps{
		ProductRepo: repos.Product,
		GroupRepo:   repos.Group,
		ListingRepo: repos.Listing,
		JobRepo:     repos.Job,
		RunRepo:     repos.Run,
		AIService:   aiSvc,
		Registry:    registry,
	}, &task.TaskManagerConfig{
		IngestEnabled:   getEnv("INGEST_ENABLED", "true") == "true",
		GroupingEnabled: getEnv("GROUPING_ENABLED", "true") == "true",

		ExtractionEnabled:      getEnv("EXTRACTION_ENABLED", "true") == "true",
		ExtractionPoolSize:     getEnvInt("EXTRACTION_POOL_SIZE", 5),
		ExtractionBatchSize:    getEnvInt("EXTRACTION_BATCH_SIZE", 10),
		ExtractionPollInterval: time.Duration(getEnvInt("EXTRACTION_POLL_SECONDS", 5)) * time.Second,
		ExtractionMaxAttempts:  getEnvInt("EXTRACTION_MAX_ATTEMPTS", 3),
		ExtractionBackoffBase:  time.Duration(getEnvInt("EXTRACTION_BACKOFF_SECONDS", 2)) * time.Second,
	})

	// -------- Controller 层 --------
	return &Dependencies{
		DB:    db,
		Repos: repos,

		Resolver: resolver,
		Specs:    specs,
		Catalog:  catalog,
		Pipeline: pipeline,
		Storage:  storageSvc,
		AI:       aiSvc,

		Registry:    registry,
		TaskManager: taskManager,

		IngestCtl:  controller.NewIngestController(taskManager, repos.Run),
		JobCtl:     controller.NewJobController(repos.Job),
		ListingCtl: controller.NewListingController(repos.Listing, repos.Category),
	}
}

// initStorageService 初始化存储服务
func initStorageService() *service.StorageService {
	storageSvc, err := service.NewStorageService(&service.StorageConfig{
		Provider:  getEnv("STORAGE_PROVIDER", "s3"),
		Bucket:    getEnv("AWS_BUCKET", ""),
		Region:    getEnv("AWS_REGION", ""),
		AccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		CDNDomain: getEnv("AWS_CDN_DOMAIN", ""),
		BasePath:  getEnv("STORAGE_BASE_PATH", "hwcatalog"),
	})
	if err != nil {
		log.Printf("警告: 存储服务初始化失败, 图片保留外站 URL: %v", err)
		return nil
	}
	return storageSvc
}

// buildRegistry 构建来源注册表
// 站点爬虫在部署侧按接口接入：HTML 型用 NewBatchFetchStrategy，API 型用 NewDirectAPIStrategy
func buildRegistry(pipeline *service.PipelineService, resolver *service.ResolverService) *source.Registry {
	registry := source.NewRegistry()

	batchSize := getEnvInt("INGEST_BATCH_SIZE", 10)
	fetchConcurrency := getEnvInt("INGEST_FETCH_CONCURRENCY", 5)
	fetcher := source.NewFetcher(fetchConcurrency)

	for _, crawler := range source.RegisteredScrapeCrawlers() {
		registry.Register(source.NewBatchFetchStrategy(crawler, fetcher, pipeline, resolver, batchSize))
	}
	for _, crawler := range source.RegisteredAPICrawlers() {
		registry.Register(source.NewDirectAPIStrategy(crawler, pipeline, resolver))
	}

	log.Printf("已注册 %d 个采集来源", len(registry.Sources()))
	return registry
}

// ==================== 种子数据 ====================

// seedCatalog 初始化品类与店铺基础数据
func seedCatalog(deps *Dependencies) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, slug := range model.AllCategories {
		if _, err := deps.Repos.Category.GetBySlug(ctx, string(slug)); err == nil {
			continue
		}
		category := &model.Category{
			Slug: string(slug),
			Name: model.CategoryNames[slug],
		}
		if err := deps.Repos.Category.Create(ctx, category); err != nil && !repository.IsUniqueViolation(err) {
			log.Printf("警告: 品类 %s 初始化失败: %v", slug, err)
		}
	}

	for _, crawler := range source.RegisteredScrapeCrawlers() {
		seedStore(ctx, deps.Repos.Store, crawler.Info())
	}
	for _, crawler := range source.RegisteredAPICrawlers() {
		seedStore(ctx, deps.Repos.Store, crawler.Info())
	}

	log.Println("种子数据就绪")
}

func seedStore(ctx context.Context, storeRepo repository.StoreRepository, info source.Info) {
	if _, err := storeRepo.GetBySlug(ctx, info.Slug); err == nil {
		return
	}
	store := &model.Store{
		Slug: info.Slug,
		Name: info.Name,
		URL:  info.BaseURL,
	}
	if err := storeRepo.Create(ctx, store); err != nil && !repository.IsUniqueViolation(err) {
		log.Printf("警告: 店铺 %s 初始化失败: %v", info.Slug, err)
	}
}

// ==================== 服务启动 ====================

// startServer 启动服务
func startServer(r *gin.Engine) {
	port := getEnv("SERVER_PORT", "8080")

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		log.Printf("服务启动在 :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务强制关闭: %v", err)
	}

	log.Println("服务已退出")
}

// ==================== 工具函数 ====================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
