package repository

import (
	"context"

	"gorm.io/gorm"

	"hwcatalog_v1_202608/internal/model"
)

// ==================== 接口定义 ====================

// GroupRepository 变体分组仓储接口
type GroupRepository interface {
	Create(ctx context.Context, group *model.ProductGroup) error
	GetByID(ctx context.Context, id int64) (*model.ProductGroup, error)
	Delete(ctx context.Context, id int64) error
}

// ==================== 仓储实现 ====================

type groupRepo struct {
	db *gorm.DB
}

// NewGroupRepository 创建变体分组仓储
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepo{db: db}
}

func (r *groupRepo) Create(ctx context.Context, group *model.ProductGroup) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *groupRepo) GetByID(ctx context.Context, id int64) (*model.ProductGroup, error) {
	var group model.ProductGroup
	err := r.db.WithContext(ctx).First(&group, id).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.ProductGroup{}, id).Error
}
