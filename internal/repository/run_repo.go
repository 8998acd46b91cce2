package repository

import (
	"context"

	"gorm.io/gorm"

	"hwcatalog_v1_202608/internal/model"
)

// ==================== 接口定义 ====================

// RunRepository 摄取运行记录仓储接口
type RunRepository interface {
	Create(ctx context.Context, run *model.IngestRun) error
	ListBySource(ctx context.Context, source string, limit int) ([]model.IngestRun, error)
}

// ==================== 仓储实现 ====================

type runRepo struct {
	db *gorm.DB
}

// NewRunRepository 创建运行记录仓储
func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepo{db: db}
}

func (r *runRepo) Create(ctx context.Context, run *model.IngestRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *runRepo) ListBySource(ctx context.Context, source string, limit int) ([]model.IngestRun, error) {
	var runs []model.IngestRun
	query := r.db.WithContext(ctx).Order("id DESC")
	if source != "" {
		query = query.Where("source = ?", source)
	}
	if limit <= 0 {
		limit = 20
	}
	err := query.Limit(limit).Find(&runs).Error
	return runs, err
}
