package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hwcatalog_v1_202608/internal/model"
)

// ==================== 接口定义 ====================

// ListingRepository 报价仓储接口
type ListingRepository interface {
	GetByStoreAndExternalID(ctx context.Context, storeID int64, externalID string) (*model.Listing, error)
	// Upsert 以 (store_id, external_id) 为键的真 upsert
	// 两次抓取同一 URL 可能竞争，必须走 ON CONFLICT 而非先查后插
	Upsert(ctx context.Context, listing *model.Listing) error
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error

	// 激活管理
	ListInactiveByProduct(ctx context.Context, productID int64) ([]model.Listing, error)
	ListActiveByCategory(ctx context.Context, categoryID int64, page, pageSize int) ([]model.Listing, int64, error)

	// 价格历史
	CreatePriceHistory(ctx context.Context, entry *model.PriceHistory) error
}

// ==================== 仓储实现 ====================

type listingRepo struct {
	db *gorm.DB
}

// NewListingRepository 创建报价仓储
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepo{db: db}
}

func (r *listingRepo) GetByStoreAndExternalID(ctx context.Context, storeID int64, externalID string) (*model.Listing, error) {
	var listing model.Listing
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND external_id = ?", storeID, externalID).
		First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *listingRepo) Upsert(ctx context.Context, listing *model.Listing) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "store_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"product_id", "price_cash", "price_normal",
			"stock_quantity", "is_active", "last_scraped_at", "updated_at",
		}),
	}).Create(listing).Error
}

func (r *listingRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.Listing{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *listingRepo) ListInactiveByProduct(ctx context.Context, productID int64) ([]model.Listing, error) {
	var listings []model.Listing
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND is_active = ?", productID, false).
		Find(&listings).Error
	return listings, err
}

func (r *listingRepo) ListActiveByCategory(ctx context.Context, categoryID int64, page, pageSize int) ([]model.Listing, int64, error) {
	var listings []model.Listing
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.Listing{}).
		Joins("JOIN products ON products.id = listings.product_id").
		Where("products.category_id = ? AND listings.is_active = ?", categoryID, true)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	err := query.
		Preload("Product").
		Preload("Store").
		Order("listings.price_cash ASC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&listings).Error

	return listings, total, err
}

func (r *listingRepo) CreatePriceHistory(ctx context.Context, entry *model.PriceHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
