package repository

import (
	"context"

	"gorm.io/gorm"

	"hwcatalog_v1_202608/internal/model"
)

// ==================== 接口定义 ====================

// ProductRepository 商品仓储接口
type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id int64) (*model.Product, error)
	GetByMPN(ctx context.Context, mpn string) (*model.Product, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error

	// 变体分组
	ListWithMPN(ctx context.Context) ([]model.Product, error)
	UpdateGroupID(ctx context.Context, id int64, groupID int64) error
	ReassignGroup(ctx context.Context, fromGroupID, toGroupID int64) error

	// 事务
	WithTx(tx *gorm.DB) ProductRepository
	Transaction(ctx context.Context, fn func(txRepo ProductRepository) error) error
}

// ==================== 仓储实现 ====================

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).First(&product, id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) GetByMPN(ctx context.Context, mpn string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).Where("mpn = ?", mpn).First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// ListWithMPN 加载所有带 MPN 的商品（变体分组批处理输入）
func (r *productRepo) ListWithMPN(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		Where("mpn IS NOT NULL AND mpn != ''").
		Find(&products).Error
	return products, err
}

func (r *productRepo) UpdateGroupID(ctx context.Context, id int64, groupID int64) error {
	return r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", id).
		Update("group_id", groupID).Error
}

// ReassignGroup 将一组商品整体迁移到另一分组（分组合并用）
func (r *productRepo) ReassignGroup(ctx context.Context, fromGroupID, toGroupID int64) error {
	return r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("group_id = ?", fromGroupID).
		Update("group_id", toGroupID).Error
}

func (r *productRepo) WithTx(tx *gorm.DB) ProductRepository {
	return &productRepo{db: tx}
}

func (r *productRepo) Transaction(ctx context.Context, fn func(txRepo ProductRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
