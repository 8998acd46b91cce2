package task

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hwcatalog_v1_202608/internal/model"
	"hwcatalog_v1_202608/internal/repository"
)

// ==================== 测试辅助 ====================

func setupGroupingTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Brand{}, &model.Category{},
		&model.Product{}, &model.ProductGroup{},
	); err != nil {
		t.Fatalf("迁移测试表失败: %v", err)
	}
	return db
}

func newGroupingTask(db *gorm.DB) *GroupingTask {
	return NewGroupingTask(
		repository.NewProductRepository(db),
		repository.NewGroupRepository(db),
	)
}

func seedProduct(t *testing.T, db *gorm.DB, mpn string, categoryID, brandID int64) *model.Product {
	p := &model.Product{
		Name:       "Disco " + mpn,
		Slug:       fmt.Sprintf("disco-%s-%d-%d", mpn, categoryID, brandID),
		MPN:        mpn,
		CategoryID: categoryID,
		BrandID:    brandID,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("种子商品失败: %v", err)
	}
	return p
}

// ==================== 前缀启发式 ====================

func TestAreVariants(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"WD10EZEX", "WD10EZEZ", true},        // 同系不同后缀
		{"WD10EZEX", "ST1000DM010", false},    // 前缀无重叠
		{"AB123", "AB124", false},             // 太短，前缀证据不足
		{"MZ-V9P1T0BW", "MZ-V9P2T0BW", false}, // 中段差异导致前缀比例不足
	}

	for _, tc := range cases {
		if got := areVariants(tc.a, tc.b); got != tc.want {
			t.Errorf("areVariants(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

// ==================== 分组运行 ====================

func TestGroupingLinksVariants(t *testing.T) {
	db := setupGroupingTestDB(t)
	task := newGroupingTask(db)

	category := &model.Category{Slug: "hdd", Name: "Discos Duros"}
	brand := &model.Brand{Name: "Western Digital", Slug: "western-digital"}
	db.Create(category)
	db.Create(brand)

	a := seedProduct(t, db, "WD10EZEX", category.ID, brand.ID)
	b := seedProduct(t, db, "WD10EZEZ", category.ID, brand.ID)

	linked, err := task.Run(context.Background())
	if err != nil {
		t.Fatalf("分组运行失败: %v", err)
	}
	if linked != 1 {
		t.Fatalf("linked = %d, want 1", linked)
	}

	var savedA, savedB model.Product
	db.First(&savedA, a.ID)
	db.First(&savedB, b.ID)
	if savedA.GroupID == nil || savedB.GroupID == nil {
		t.Fatal("两个变体都应挂上分组")
	}
	if *savedA.GroupID != *savedB.GroupID {
		t.Fatalf("变体应共享同一分组: %d vs %d", *savedA.GroupID, *savedB.GroupID)
	}
}

func TestGroupingNeverCrossesCategories(t *testing.T) {
	db := setupGroupingTestDB(t)
	task := newGroupingTask(db)

	hdd := &model.Category{Slug: "hdd", Name: "Discos Duros"}
	ssd := &model.Category{Slug: "ssd", Name: "Discos SSD"}
	brand := &model.Brand{Name: "Western Digital", Slug: "western-digital"}
	db.Create(hdd)
	db.Create(ssd)
	db.Create(brand)

	a := seedProduct(t, db, "WD10EZEX", hdd.ID, brand.ID)
	b := seedProduct(t, db, "WD10EZEZ", ssd.ID, brand.ID)

	linked, err := task.Run(context.Background())
	if err != nil {
		t.Fatalf("分组运行失败: %v", err)
	}
	if linked != 0 {
		t.Fatalf("跨品类不应建立关联, linked = %d", linked)
	}

	var savedA, savedB model.Product
	db.First(&savedA, a.ID)
	db.First(&savedB, b.ID)
	if savedA.GroupID != nil || savedB.GroupID != nil {
		t.Fatal("跨品类商品不应挂分组")
	}
}

func TestGroupingMergeKeepsOlderGroup(t *testing.T) {
	db := setupGroupingTestDB(t)
	task := newGroupingTask(db)

	category := &model.Category{Slug: "hdd", Name: "Discos Duros"}
	brand := &model.Brand{Name: "Western Digital", Slug: "western-digital"}
	db.Create(category)
	db.Create(brand)

	older := &model.ProductGroup{Name: "WD Blue 1TB", CategorySlug: "hdd"}
	newer := &model.ProductGroup{Name: "WD Blue 1TB bis", CategorySlug: "hdd"}
	db.Create(older)
	db.Create(newer)

	a := seedProduct(t, db, "WD10EZEX", category.ID, brand.ID)
	b := seedProduct(t, db, "WD10EZEZ", category.ID, brand.ID)
	db.Model(a).Update("group_id", older.ID)
	db.Model(b).Update("group_id", newer.ID)

	if _, err := task.Run(context.Background()); err != nil {
		t.Fatalf("分组运行失败: %v", err)
	}

	var savedA, savedB model.Product
	db.First(&savedA, a.ID)
	db.First(&savedB, b.ID)
	if savedA.GroupID == nil || savedB.GroupID == nil || *savedA.GroupID != older.ID || *savedB.GroupID != older.ID {
		t.Fatal("合并后两边都应归入更早的分组")
	}

	var gone int64
	db.Model(&model.ProductGroup{}).Where("id = ?", newer.ID).Count(&gone)
	if gone != 0 {
		t.Fatal("被并入的空分组应被删除")
	}
}

// 一个更长的同前缀 MPN 排序时会插在两个真变体中间，
// 桶内必须两两比较，不能只看排序后的邻对
func TestGroupingLinksNonAdjacentVariants(t *testing.T) {
	db := setupGroupingTestDB(t)
	task := newGroupingTask(db)

	category := &model.Category{Slug: "hdd", Name: "Discos Duros"}
	brand := &model.Brand{Name: "Western Digital", Slug: "western-digital"}
	db.Create(category)
	db.Create(brand)

	a := seedProduct(t, db, "WD10EZEX", category.ID, brand.ID)
	middle := seedProduct(t, db, "WD10EZEXAAAAAAAA", category.ID, brand.ID)
	b := seedProduct(t, db, "WD10EZEZ", category.ID, brand.ID)

	linked, err := task.Run(context.Background())
	if err != nil {
		t.Fatalf("分组运行失败: %v", err)
	}
	if linked != 1 {
		t.Fatalf("linked = %d, want 1", linked)
	}

	var savedA, savedMiddle, savedB model.Product
	db.First(&savedA, a.ID)
	db.First(&savedMiddle, middle.ID)
	db.First(&savedB, b.ID)
	if savedA.GroupID == nil || savedB.GroupID == nil {
		t.Fatal("隔位变体也应挂上分组")
	}
	if *savedA.GroupID != *savedB.GroupID {
		t.Fatalf("变体应共享同一分组: %d vs %d", *savedA.GroupID, *savedB.GroupID)
	}
	// 后缀过长的 MPN 不算变体，不应被顺带分组
	if savedMiddle.GroupID != nil {
		t.Fatal("长后缀 MPN 不应入组")
	}
}
