package model

// ==================== 爬虫原始数据 ====================

// ScrapedProduct 爬虫原始输出
// 每次抓取产生一次，被摄取管线消费一次，从不原样落库
type ScrapedProduct struct {
	URL           string                 `json:"url" validate:"required,url"`
	Title         string                 `json:"title" validate:"required"`
	Price         float64                `json:"price" validate:"gte=0"`
	OriginalPrice float64                `json:"original_price" validate:"gte=0"`
	Stock         bool                   `json:"stock"`
	StockQuantity *int                   `json:"stock_quantity" validate:"omitempty,gte=0"`
	MPN           string                 `json:"mpn"`
	ImageURL      string                 `json:"image_url" validate:"omitempty,url"`
	Specs         map[string]interface{} `json:"specs"`
}
