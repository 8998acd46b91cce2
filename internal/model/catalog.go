package model

import (
	"time"
)

// ==================== 品牌 ====================

// Brand 品牌
// slug 为天然去重键：小写品牌名，非字母数字折叠为连字符
type Brand struct {
	BaseModel
	Name string `gorm:"size:100;not null" json:"name"`
	Slug string `gorm:"size:100;uniqueIndex;not null" json:"slug"`
}

func (Brand) TableName() string {
	return "brands"
}

// ==================== 店铺 ====================

// Store 来源店铺（每个爬虫来源对应一行）
type Store struct {
	BaseModel
	Name string `gorm:"size:100;not null" json:"name"`
	Slug string `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	URL  string `gorm:"size:255" json:"url"`
}

func (Store) TableName() string {
	return "stores"
}

// ==================== 商品 ====================

// Product 规范商品实体
// MPN 存在时为跨来源去重键；specs 每次重新采集都会被最新数据覆盖
type Product struct {
	BaseModel
	Name string `gorm:"size:255;not null" json:"name"`
	Slug string `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	// 非空 MPN 全局唯一，并发 upsert 靠这条约束兜底
	MPN        string      `gorm:"column:mpn;size:100;index:uniq_products_mpn,unique,where:mpn <> ''" json:"mpn"`
	CategoryID int64       `gorm:"index;not null" json:"category_id"`
	Category   *Category   `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	BrandID    int64       `gorm:"index;not null" json:"brand_id"`
	Brand      *Brand      `gorm:"foreignKey:BrandID" json:"brand,omitempty"`
	ImageURL   string      `gorm:"size:512" json:"image_url"`
	Specs      JSONMap     `gorm:"type:jsonb" json:"specs"`
	Keywords   StringSlice `gorm:"type:text" json:"keywords"`

	// 变体分组（可空，由变体分组批处理写入）
	GroupID *int64        `gorm:"index" json:"group_id"`
	Group   *ProductGroup `gorm:"foreignKey:GroupID" json:"group,omitempty"`

	Listings []Listing `gorm:"foreignKey:ProductID" json:"listings,omitempty"`
}

func (Product) TableName() string {
	return "products"
}

// ==================== 变体分组 ====================

// ProductGroup 变体簇：同型号不同后缀/区域 SKU 的商品归入同组
type ProductGroup struct {
	BaseModel
	Name         string `gorm:"size:255;not null" json:"name"`
	CategorySlug string `gorm:"size:50;index" json:"category_slug"`
}

func (ProductGroup) TableName() string {
	return "product_groups"
}

// ==================== 报价 ====================

// Listing 单个店铺对单个商品的报价
// (store_id, external_id) 唯一标识一条报价；is_active 为计算值而非输入
type Listing struct {
	BaseModel
	StoreID    int64    `gorm:"uniqueIndex:idx_store_external;not null" json:"store_id"`
	Store      *Store   `gorm:"foreignKey:StoreID" json:"store,omitempty"`
	ExternalID string   `gorm:"uniqueIndex:idx_store_external;size:512;not null" json:"external_id"`
	ProductID  int64    `gorm:"index;not null" json:"product_id"`
	Product    *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`

	PriceCash     float64 `gorm:"default:0" json:"price_cash"`
	PriceNormal   float64 `gorm:"default:0" json:"price_normal"`
	StockQuantity *int    `json:"stock_quantity"` // nil = 库存数量未知
	IsActive      bool    `gorm:"default:false;index" json:"is_active"`

	LastScrapedAt time.Time `json:"last_scraped_at"`
}

func (Listing) TableName() string {
	return "listings"
}

// ==================== 价格历史 ====================

// PriceHistory 追加式价格记录，每次成功报价 upsert 且现金价为正时写一行
type PriceHistory struct {
	ID          int64     `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ListingID   int64     `gorm:"index;not null" json:"listing_id"`
	PriceCash   float64   `gorm:"not null" json:"price_cash"`
	PriceNormal float64   `gorm:"default:0" json:"price_normal"`
	CreatedAt   time.Time `json:"created_at"`
}

func (PriceHistory) TableName() string {
	return "price_history"
}

// ==================== 摄取运行记录 ====================

// IngestRun 一次来源策略执行的统计快照
type IngestRun struct {
	BaseModel
	Source        string  `gorm:"size:50;index" json:"source"`
	Status        string  `gorm:"size:20" json:"status"` // completed, failed
	Categories    int     `gorm:"default:0" json:"categories"`
	TotalCount    int     `gorm:"default:0" json:"total_count"`
	SuccessCount  int     `gorm:"default:0" json:"success_count"`
	FailCount     int     `gorm:"default:0" json:"fail_count"`
	DurationMs    int64   `gorm:"default:0" json:"duration_ms"`
	CategoryStats JSONMap `gorm:"type:jsonb" json:"category_stats"`
	AIMetrics     JSONMap `gorm:"type:jsonb" json:"ai_metrics"`
	Error         string  `gorm:"type:text" json:"error"`
}

func (IngestRun) TableName() string {
	return "ingest_runs"
}
