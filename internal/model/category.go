package model

// ==================== 品类枚举 ====================

// CategorySlug 固定品类枚举
// 品类集合是封闭的：新品类必须同时补充校验规则与规格归一化器
type CategorySlug string

const (
	CategoryGPU         CategorySlug = "gpu"
	CategoryCPU         CategorySlug = "cpu"
	CategoryPSU         CategorySlug = "psu"
	CategoryMotherboard CategorySlug = "motherboard"
	CategoryCase        CategorySlug = "case"
	CategoryRAM         CategorySlug = "ram"
	CategoryHDD         CategorySlug = "hdd"
	CategorySSD         CategorySlug = "ssd"
	CategoryCaseFan     CategorySlug = "case_fan"
	CategoryCPUCooler   CategorySlug = "cpu_cooler"
)

// CategoryNames slug -> 展示名
var CategoryNames = map[CategorySlug]string{
	CategoryGPU:         "Tarjetas de Video",
	CategoryCPU:         "Procesadores",
	CategoryPSU:         "Fuentes de Poder",
	CategoryMotherboard: "Placas Madre",
	CategoryCase:        "Gabinetes",
	CategoryRAM:         "Memorias RAM",
	CategoryHDD:         "Discos Duros",
	CategorySSD:         "Unidades SSD",
	CategoryCaseFan:     "Ventiladores",
	CategoryCPUCooler:   "Refrigeración CPU",
}

// AllCategories 所有合法品类 slug（固定顺序，用于 "all" 扇出与错误提示）
var AllCategories = []CategorySlug{
	CategoryGPU, CategoryCPU, CategoryPSU, CategoryMotherboard, CategoryCase,
	CategoryRAM, CategoryHDD, CategorySSD, CategoryCaseFan, CategoryCPUCooler,
}

// IsValidCategory 判断 slug 是否为已知品类
func IsValidCategory(slug string) bool {
	_, ok := CategoryNames[CategorySlug(slug)]
	return ok
}

// Category 品类持久化记录
// 行在首次使用时惰性创建，slug 唯一
type Category struct {
	BaseModel
	Slug string `gorm:"size:50;uniqueIndex;not null" json:"slug"`
	Name string `gorm:"size:100;not null" json:"name"`
}

func (Category) TableName() string {
	return "categories"
}
