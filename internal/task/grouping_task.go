package task

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"hwcatalog_v1_202608/internal/model"
	"hwcatalog_v1_202608/internal/repository"
)

// ==================== GroupingTask 变体分组任务 ====================

// GroupingTask 产品变体分组定时任务
// 扫描带 MPN 的产品，按 MPN 前缀启发式把同系变体挂到同一分组
type GroupingTask struct {
	productRepo repository.ProductRepository
	groupRepo   repository.GroupRepository
	cron        *cron.Cron
}

// NewGroupingTask 创建分组任务
func NewGroupingTask(productRepo repository.ProductRepository, groupRepo repository.GroupRepository) *GroupingTask {
	return &GroupingTask{
		productRepo: productRepo,
		groupRepo:   groupRepo,
		cron:        cron.New(cron.WithSeconds()),
	}
}

// Start 启动定时任务
func (t *GroupingTask) Start() {
	// 每天凌晨 4 点执行
	_, err := t.cron.AddFunc("0 0 4 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := t.Run(ctx); err != nil {
			log.Printf("[GroupingTask] 执行失败: %v", err)
		}
	})
	if err != nil {
		log.Printf("[GroupingTask] 定时任务启动失败: %v", err)
		return
	}

	t.cron.Start()
	log.Println("[GroupingTask] 已启动 (每天 04:00)")
}

// Stop 停止任务
func (t *GroupingTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	log.Println("[GroupingTask] 已停止")
}

// Run 执行一次全量分组，返回本次建立关联的产品对数
func (t *GroupingTask) Run(ctx context.Context) (int, error) {
	products, err := t.productRepo.ListWithMPN(ctx)
	if err != nil {
		return 0, fmt.Errorf("获取产品列表失败: %w", err)
	}
	log.Printf("[GroupingTask] 开始分组: %d 个带 MPN 的产品", len(products))

	// 品类 + 品牌 分桶，跨品类永不关联
	buckets := make(map[string][]*model.Product)
	for i := range products {
		p := &products[i]
		key := fmt.Sprintf("%d:%d", p.CategoryID, p.BrandID)
		buckets[key] = append(buckets[key], p)
	}

	linked := 0
	for _, bucket := range buckets {
		// 排序只为结果可复现；变体排序后不一定相邻
		// （中间可能插进一个更长的同前缀 MPN），必须两两比较
		sort.Slice(bucket, func(i, j int) bool {
			return bucket[i].MPN < bucket[j].MPN
		})
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				a, b := bucket[i], bucket[j]
				if !areVariants(a.MPN, b.MPN) {
					continue
				}
				if err := t.link(ctx, a, b); err != nil {
					log.Printf("[GroupingTask] 关联 %s/%s 失败: %v", a.MPN, b.MPN, err)
					continue
				}
				linked++
			}
		}
	}

	log.Printf("[GroupingTask] 分组完成: 关联 %d 对", linked)
	return linked, nil
}

// areVariants MPN 前缀启发式
// 两个 MPN 共享足够长的前缀且各自的差异后缀都很短时视为同系变体
func areVariants(a, b string) bool {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen <= 5 {
		return false
	}

	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	if float64(prefix)/float64(maxLen) <= 0.85 {
		return false
	}
	if len(a)-prefix > 4 || len(b)-prefix > 4 {
		return false
	}
	return true
}

// link 把一对变体挂到同一分组
// 两边都无组则新建；一边有组则另一边加入；两边组不同则并入更早的组
func (t *GroupingTask) link(ctx context.Context, a, b *model.Product) error {
	switch {
	case a.GroupID == nil && b.GroupID == nil:
		categorySlug := ""
		if a.Category != nil {
			categorySlug = a.Category.Slug
		}
		group := &model.ProductGroup{
			Name:         a.Name,
			CategorySlug: categorySlug,
		}
		if err := t.groupRepo.Create(ctx, group); err != nil {
			return err
		}
		if err := t.assign(ctx, a, group.ID); err != nil {
			return err
		}
		return t.assign(ctx, b, group.ID)

	case a.GroupID != nil && b.GroupID == nil:
		return t.assign(ctx, b, *a.GroupID)

	case a.GroupID == nil && b.GroupID != nil:
		return t.assign(ctx, a, *b.GroupID)

	case *a.GroupID != *b.GroupID:
		return t.merge(ctx, *a.GroupID, *b.GroupID, a, b)
	}
	return nil
}

func (t *GroupingTask) assign(ctx context.Context, p *model.Product, groupID int64) error {
	if err := t.productRepo.UpdateGroupID(ctx, p.ID, groupID); err != nil {
		return err
	}
	p.GroupID = &groupID
	return nil
}

// merge 合并两个分组，存活方为更早创建（ID 更小）的组
func (t *GroupingTask) merge(ctx context.Context, groupA, groupB int64, a, b *model.Product) error {
	survivor, absorbed := groupA, groupB
	if groupB < groupA {
		survivor, absorbed = groupB, groupA
	}

	if err := t.productRepo.ReassignGroup(ctx, absorbed, survivor); err != nil {
		return err
	}
	if err := t.groupRepo.Delete(ctx, absorbed); err != nil {
		log.Printf("[GroupingTask] 删除空分组 %d 失败: %v", absorbed, err)
	}
	a.GroupID = &survivor
	b.GroupID = &survivor
	return nil
}
