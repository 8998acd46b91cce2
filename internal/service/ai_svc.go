package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"hwcatalog_v1_202608/internal/model"
)

// ==================== 配置 ====================

// AIConfig AI 服务配置
type AIConfig struct {
	ApiKey    string
	TextModel string
	// 输出 JSON 形状校验失败时的重试上限（校验错误会反馈进下一次提示词）
	MaxSchemaRetries int
}

// ==================== 服务 ====================

// AIService 规格提取服务
// 单次调用 = 一次 chat-completion，期望返回单个 JSON 对象；
// 空响应与 JSON 解析失败都按可重试的提取失败处理
type AIService struct {
	Config *AIConfig

	// mpn -> 已验证 specs 的进程内缓存
	specCache sync.Map

	// 批处理级累计指标
	callCount int64
	latencyMs int64
	cacheHits int64
}

// NewAIService 创建 AI 服务
func NewAIService(cfg *AIConfig) *AIService {
	if cfg.TextModel == "" {
		cfg.TextModel = "gemini-3-flash"
	}
	if cfg.MaxSchemaRetries <= 0 {
		cfg.MaxSchemaRetries = 3
	}

	return &AIService{
		Config: cfg,
	}
}

// ==================== 品类提示词 ====================

// categoryPromptFields 品类 -> 提示词里要求的字段说明
var categoryPromptFields = map[model.CategorySlug]string{
	model.CategoryGPU:         `"chipset" (e.g. "RTX 4070 SUPER"), "memory_gb" (number), "bus" (e.g. "PCIe 4.0 x16")`,
	model.CategoryCPU:         `"cores" (number), "threads" (number), "frequency_ghz" (number), "socket" (e.g. "AM5")`,
	model.CategoryPSU:         `"wattage" (number), "certification" (e.g. "80 PLUS GOLD"), "form_factor"`,
	model.CategoryMotherboard: `"socket", "chipset" (e.g. "B650"), "form_factor", "memory_type" (e.g. "DDR5")`,
	model.CategoryCase:        `"form_factor", "color"`,
	model.CategoryRAM:         `"capacity_gb" (number), "type" (e.g. "DDR5"), "speed_mhz" (number)`,
	model.CategoryHDD:         `"capacity_gb" (number), "rpm" (number), "bus", "form_factor"`,
	model.CategorySSD:         `"capacity_gb" (number), "bus" (e.g. "PCIe 4.0 NVMe"), "read_speed_mbs" (number), "form_factor"`,
	model.CategoryCaseFan:     `"size_mm" (number), "rpm" (number)`,
	model.CategoryCPUCooler:   `"cooling_type" ("liquid" or "air"), "radiator_mm" (number, liquid only), "socket"`,
}

// ==================== 规格提取 ====================

// ExtractForCategory 按品类提取规格
// mpn 命中缓存直接返回；否则走 LLM，形状校验失败的错误
// 会拼进下一次提示词重试，重试耗尽返回错误
func (s *AIService) ExtractForCategory(ctx context.Context, category model.CategorySlug, mpn, contextText string) (model.JSONMap, error) {
	if s.Config.ApiKey == "" {
		return nil, fmt.Errorf("Gemini API Key 未配置")
	}

	if cached, ok := s.specCache.Load(mpn); ok {
		atomic.AddInt64(&s.cacheHits, 1)
		return cached.(model.JSONMap), nil
	}

	fields, ok := categoryPromptFields[category]
	if !ok {
		return nil, fmt.Errorf("品类 %s 无提取策略", category)
	}

	basePrompt := fmt.Sprintf(`You are a PC hardware spec extraction expert. Extract the specifications of the following product.

Part Number: %s
Category: %s
Context: %s

Output a single JSON object (no markdown) with these fields when determinable:
%s

Omit fields you cannot determine. Never invent values.`, mpn, category, contextText, fields)

	var lastErr error
	prompt := basePrompt
	for attempt := 0; attempt < s.Config.MaxSchemaRetries; attempt++ {
		specs, err := s.Extract(ctx, prompt)
		if err != nil {
			return nil, err
		}

		if err := ValidateSpecSchema(category, specs); err != nil {
			// 把校验错误反馈进下一次提示词
			lastErr = err
			prompt = basePrompt + fmt.Sprintf("\n\nYour previous answer was rejected: %v. Fix the missing fields.", err)
			continue
		}

		s.CacheSpecs(mpn, specs)
		return specs, nil
	}

	return nil, fmt.Errorf("提取结果形状校验重试耗尽: %v", lastErr)
}

// Extract 单次 LLM 调用，期望返回一个 JSON 对象
func (s *AIService) Extract(ctx context.Context, prompt string) (model.JSONMap, error) {
	start := time.Now()
	defer func() {
		atomic.AddInt64(&s.callCount, 1)
		atomic.AddInt64(&s.latencyMs, time.Since(start).Milliseconds())
	}()

	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s",
		s.Config.TextModel, s.Config.ApiKey)

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]interface{}{{"text": prompt}}},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
		},
	}

	bodyBytes, _ := json.Marshal(reqBody)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Gemini API 错误 [%d]: %s", resp.StatusCode, string(respBody))
	}

	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}

	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %v", err)
	}

	if len(geminiResp.Candidates) == 0 {
		return nil, fmt.Errorf("无生成结果")
	}

	var jsonText string
	for _, candidate := range geminiResp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				jsonText = part.Text
				break
			}
		}
	}

	jsonText = strings.TrimSpace(jsonText)
	if jsonText == "" {
		return nil, fmt.Errorf("响应为空")
	}

	var specs model.JSONMap
	if err := json.Unmarshal([]byte(jsonText), &specs); err != nil {
		return nil, fmt.Errorf("解析提取结果失败: %v, raw: %s", err, jsonText)
	}

	return specs, nil
}

// ==================== 缓存与指标 ====================

// CacheSpecs 按 mpn 缓存已验证 specs
func (s *AIService) CacheSpecs(mpn string, specs model.JSONMap) {
	if mpn == "" || len(specs) == 0 {
		return
	}
	s.specCache.Store(mpn, specs)
}

// CachedSpecs 查询缓存
func (s *AIService) CachedSpecs(mpn string) (model.JSONMap, bool) {
	if cached, ok := s.specCache.Load(mpn); ok {
		return cached.(model.JSONMap), true
	}
	return nil, false
}

// AIMetrics 累计调用指标快照
type AIMetrics struct {
	Calls     int64 `json:"calls"`
	LatencyMs int64 `json:"latency_ms"`
	CacheHits int64 `json:"cache_hits"`
}

// Metrics 读取累计指标
func (s *AIService) Metrics() AIMetrics {
	return AIMetrics{
		Calls:     atomic.LoadInt64(&s.callCount),
		LatencyMs: atomic.LoadInt64(&s.latencyMs),
		CacheHits: atomic.LoadInt64(&s.cacheHits),
	}
}
