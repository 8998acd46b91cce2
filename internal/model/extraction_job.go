package model

// ==================== 状态常量 ====================

const (
	// 提取任务状态
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// ==================== 提取任务 ====================

// ExtractionJob 规格提取任务（队列实体）
// 由上游审核流程产生，由调度器消费；completed/failed 为终态
// 同一任务同一时刻至多被一个 worker 持有（由原子认领保证）
type ExtractionJob struct {
	BaseModel
	MPN      string       `gorm:"column:mpn;size:100;not null" json:"mpn" validate:"required"`
	Category CategorySlug `gorm:"size:50;not null" json:"category" validate:"required"`
	RawText  string       `gorm:"type:text" json:"raw_text"`
	Context  JSONMap      `gorm:"type:jsonb" json:"context"`

	Attempts  int     `gorm:"default:0" json:"attempts"`
	Status    string  `gorm:"size:20;default:pending;index" json:"status"`
	Result    JSONMap `gorm:"type:jsonb" json:"result"`
	LastError string  `gorm:"type:text" json:"last_error"`
}

func (ExtractionJob) TableName() string {
	return "extraction_jobs"
}
