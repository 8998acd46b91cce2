package service

import (
	"context"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hwcatalog_v1_202608/internal/model"
	"hwcatalog_v1_202608/internal/repository"
)

// ==================== 测试辅助 ====================

func setupResolverTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&model.Brand{}, &model.Category{}, &model.Store{}); err != nil {
		t.Fatalf("迁移测试表失败: %v", err)
	}
	return db
}

func newTestResolver(db *gorm.DB) *ResolverService {
	return NewResolverService(
		repository.NewBrandRepository(db),
		repository.NewCategoryRepository(db),
		repository.NewStoreRepository(db),
	)
}

// ==================== 品牌解析 ====================

func TestResolveBrandIDCreatesOnce(t *testing.T) {
	db := setupResolverTestDB(t)
	resolver := newTestResolver(db)
	ctx := context.Background()

	first := resolver.ResolveBrandID(ctx, "Kingston")
	if first == 0 {
		t.Fatal("首次解析应创建品牌")
	}

	// 同名不同写法应收敛到同一行
	again := resolver.ResolveBrandID(ctx, "  KINGSTON ")
	if again != first {
		t.Fatalf("同一品牌应复用同一 ID: %d vs %d", first, again)
	}

	var count int64
	db.Model(&model.Brand{}).Count(&count)
	if count != 1 {
		t.Fatalf("品牌行数 = %d, want 1", count)
	}
}

func TestResolveBrandIDConcurrent(t *testing.T) {
	db := setupResolverTestDB(t)
	resolver := newTestResolver(db)
	ctx := context.Background()

	const workers = 10
	ids := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ids[n] = resolver.ResolveBrandID(ctx, "Corsair")
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] || ids[i] == 0 {
			t.Fatalf("并发解析结果不一致: %v", ids)
		}
	}

	var count int64
	db.Model(&model.Brand{}).Count(&count)
	if count != 1 {
		t.Fatalf("并发解析只允许创建一行, got %d", count)
	}
}

func TestResolveBrandIDEmptyName(t *testing.T) {
	db := setupResolverTestDB(t)
	resolver := newTestResolver(db)

	if id := resolver.ResolveBrandID(context.Background(), "   "); id != 0 {
		t.Fatalf("空品牌名应返回 0, got %d", id)
	}
}

// ==================== 品类解析 ====================

func TestGetCategoryIDLazyCreate(t *testing.T) {
	db := setupResolverTestDB(t)
	resolver := newTestResolver(db)
	ctx := context.Background()

	id := resolver.GetCategoryID(ctx, model.CategoryGPU)
	if id == 0 {
		t.Fatal("已知品类应惰性创建")
	}
	if again := resolver.GetCategoryID(ctx, model.CategoryGPU); again != id {
		t.Fatalf("重复解析应返回同一 ID: %d vs %d", id, again)
	}

	if unknown := resolver.GetCategoryID(ctx, model.CategorySlug("monitor")); unknown != 0 {
		t.Fatalf("未知品类应返回 0, got %d", unknown)
	}
}

// ==================== 店铺解析 ====================

func TestResolveStoreIDUnknownIsError(t *testing.T) {
	db := setupResolverTestDB(t)
	resolver := newTestResolver(db)

	if _, err := resolver.ResolveStoreID(context.Background(), "tienda-fantasma"); err == nil {
		t.Fatal("未配置的店铺应返回错误")
	}

	db.Create(&model.Store{Name: "Tienda Uno", Slug: "tienda-uno"})
	id, err := resolver.ResolveStoreID(context.Background(), "tienda-uno")
	if err != nil || id == 0 {
		t.Fatalf("已配置店铺应解析成功: id=%d err=%v", id, err)
	}
}
