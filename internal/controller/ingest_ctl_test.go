package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hwcatalog_v1_202608/internal/model"
	"hwcatalog_v1_202608/internal/repository"
	"hwcatalog_v1_202608/internal/task"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ==================== 测试辅助 ====================

func setupCtlTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Category{}, &model.ExtractionJob{}, &model.IngestRun{},
	); err != nil {
		t.Fatalf("迁移测试表失败: %v", err)
	}
	return db
}

func setupCtlRouter(db *gorm.DB) *gin.Engine {
	taskManager := task.NewTaskManager(&task.TaskManagerDeps{}, &task.TaskManagerConfig{})
	ingestCtl := NewIngestController(taskManager, repository.NewRunRepository(db))
	jobCtl := NewJobController(repository.NewJobRepository(db))

	r := gin.New()
	api := r.Group("/api")
	api.POST("/ingest/:source", ingestCtl.TriggerSource)
	api.GET("/ingest/:source/runs", ingestCtl.ListRuns)
	api.POST("/jobs", jobCtl.Create)
	api.GET("/jobs/stats", jobCtl.Stats)
	return r
}

// ==================== 采集触发 ====================

func TestTriggerSourceInvalidCategoryListsOptions(t *testing.T) {
	db := setupCtlTestDB(t)
	r := setupCtlRouter(db)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/ingest/tienda-uno?category=monitor", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("无效品类应返回 400, got %d", w.Code)
	}

	var body struct {
		Data struct {
			ValidCategories []string `json:"valid_categories"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if len(body.Data.ValidCategories) != len(model.AllCategories) {
		t.Fatalf("错误响应应列出全部合法品类, got %v", body.Data.ValidCategories)
	}
}

func TestTriggerSourceAcknowledgesImmediately(t *testing.T) {
	db := setupCtlTestDB(t)
	r := setupCtlRouter(db)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/ingest/tienda-uno?category=gpu", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("合法触发应立即返回 202, got %d", w.Code)
	}
}

// ==================== 提取任务入队 ====================

func TestCreateJobValidatesCategory(t *testing.T) {
	db := setupCtlTestDB(t)
	r := setupCtlRouter(db)

	payload, _ := json.Marshal(map[string]interface{}{
		"mpn":      "SNV2S/1000G",
		"category": "monitor",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/jobs", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("无效品类应返回 400, got %d", w.Code)
	}
}

func TestCreateJobAndStats(t *testing.T) {
	db := setupCtlTestDB(t)
	r := setupCtlRouter(db)

	payload, _ := json.Marshal(map[string]interface{}{
		"mpn":      "SNV2S/1000G",
		"category": "ssd",
		"raw_text": "SSD Kingston NV2 1TB",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/jobs", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("入队应返回 201, got %d: %s", w.Code, w.Body.String())
	}

	var jobCount int64
	db.Model(&model.ExtractionJob{}).Where("status = ?", model.JobStatusPending).Count(&jobCount)
	if jobCount != 1 {
		t.Fatalf("pending 任务数 = %d, want 1", jobCount)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/jobs/stats", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("统计查询失败: %d", w.Code)
	}
}
