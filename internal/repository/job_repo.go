package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hwcatalog_v1_202608/internal/model"
)

// ==================== 接口定义 ====================

// JobRepository 提取任务队列仓储接口
type JobRepository interface {
	Create(ctx context.Context, job *model.ExtractionJob) error
	GetByID(ctx context.Context, id int64) (*model.ExtractionJob, error)

	// ClaimPending 原子认领至多 limit 个待处理任务
	// 被认领的任务置为 processing，保证同一任务至多被一个 worker 持有
	ClaimPending(ctx context.Context, limit int) ([]model.ExtractionJob, error)

	MarkCompleted(ctx context.Context, id int64, result model.JSONMap) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	// Requeue 瞬时错误重新入队，attempts 自增
	Requeue(ctx context.Context, id int64, errMsg string) error

	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// ==================== 仓储实现 ====================

// lockingClause 行锁子句
// Postgres 下用 FOR UPDATE SKIP LOCKED 避免多实例认领同一批任务；
// sqlite（测试环境）不支持行锁，靠单连接串行化
func lockingClause(tx *gorm.DB) clause.Expression {
	if tx.Dialector.Name() == "sqlite" {
		return clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "1 = 1"}}}
	}
	return clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}
}

type jobRepo struct {
	db *gorm.DB
}

// NewJobRepository 创建提取任务仓储
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepo{db: db}
}

func (r *jobRepo) Create(ctx context.Context, job *model.ExtractionJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *jobRepo) GetByID(ctx context.Context, id int64) (*model.ExtractionJob, error) {
	var job model.ExtractionJob
	err := r.db.WithContext(ctx).First(&job, id).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) ClaimPending(ctx context.Context, limit int) ([]model.ExtractionJob, error) {
	var jobs []model.ExtractionJob

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(lockingClause(tx)).
			Where("status = ?", model.JobStatusPending).
			Order("id ASC").
			Limit(limit).
			Find(&jobs).Error; err != nil {
			return err
		}

		if len(jobs) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(jobs))
		for i := range jobs {
			ids = append(ids, jobs[i].ID)
		}

		if err := tx.Model(&model.ExtractionJob{}).
			Where("id IN ? AND status = ?", ids, model.JobStatusPending).
			Update("status", model.JobStatusProcessing).Error; err != nil {
			return err
		}

		for i := range jobs {
			jobs[i].Status = model.JobStatusProcessing
		}
		return nil
	})

	return jobs, err
}

func (r *jobRepo) MarkCompleted(ctx context.Context, id int64, result model.JSONMap) error {
	return r.db.WithContext(ctx).
		Model(&model.ExtractionJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.JobStatusCompleted,
			"result":     result,
			"last_error": "",
		}).Error
}

func (r *jobRepo) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	return r.db.WithContext(ctx).
		Model(&model.ExtractionJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.JobStatusFailed,
			"last_error": errMsg,
		}).Error
}

func (r *jobRepo) Requeue(ctx context.Context, id int64, errMsg string) error {
	return r.db.WithContext(ctx).
		Model(&model.ExtractionJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.JobStatusPending,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": errMsg,
		}).Error
}

func (r *jobRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type result struct {
		Status string
		Count  int64
	}
	var results []result

	err := r.db.WithContext(ctx).
		Model(&model.ExtractionJob{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	stats := make(map[string]int64)
	for _, row := range results {
		stats[row.Status] = row.Count
	}
	return stats, nil
}
