package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ==================== 错误分类 ====================

// IsUniqueViolation 判断是否为唯一约束冲突
// 并发写入同一 slug / (store_id, external_id) 时属于预期冲突，
// 调用方应重读复用而非报错
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	// sqlite（测试环境）
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsNotFound 判断是否为未找到
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
