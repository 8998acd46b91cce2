package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/spf13/cast"

	"hwcatalog_v1_202608/internal/model"
)

// ==================== 原始字段取值 ====================

// pickRaw 按优先级顺序在原始属性表里找第一个命中的键
// 键表是数据而非代码：接入新来源的词汇只需扩表
// 词汇覆盖英文、西语与来源私有写法
func pickRaw(raw map[string]interface{}, keys []string) (interface{}, bool) {
	if raw == nil {
		return nil, false
	}
	// 原始键大小写/空白不可控，统一小写比较
	lowered := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		lowered[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for _, key := range keys {
		if v, ok := lowered[key]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

func pickString(raw map[string]interface{}, keys []string) string {
	if v, ok := pickRaw(raw, keys); ok {
		return strings.TrimSpace(cast.ToString(v))
	}
	return ""
}

func pickFloat(raw map[string]interface{}, keys []string) float64 {
	if v, ok := pickRaw(raw, keys); ok {
		if f := cast.ToFloat64(v); f > 0 {
			return f
		}
		// "7000 MB/s" 这类带单位字符串取前导数字
		if f := leadingNumber(cast.ToString(v)); f > 0 {
			return f
		}
	}
	return 0
}

var leadingNumberRe = regexp.MustCompile(`(\d+(?:[.,]\d+)?)`)

func leadingNumber(s string) float64 {
	m := leadingNumberRe.FindString(s)
	if m == "" {
		return 0
	}
	return cast.ToFloat64(strings.ReplaceAll(m, ",", "."))
}

// ==================== 候选键表 ====================

var (
	keysBrand     = []string{"brand", "marca", "fabricante", "manufacturer"}
	keysCapacity  = []string{"capacity", "capacidad", "capacidad de almacenamiento", "storage", "almacenamiento", "tamaño de memoria"}
	keysFrequency = []string{"frequency", "frecuencia", "frecuencia del procesador", "clock", "velocidad de reloj"}
	keysCores     = []string{"cores", "nucleos", "núcleos", "cantidad de nucleos", "core count"}
	keysThreads   = []string{"threads", "hilos", "cantidad de hilos", "thread count"}
	keysSocket    = []string{"socket", "zocalo", "zócalo", "socket del procesador"}
	keysChipset   = []string{"chipset", "gpu", "procesador grafico", "procesador gráfico", "modelo de gpu"}
	keysMemory    = []string{"memory", "memoria", "vram", "memoria de video", "video memory"}
	keysBus       = []string{"bus", "interface", "interfaz", "tipo de bus", "conexion", "conexión"}
	keysReadSpeed = []string{"read_speed", "read speed", "velocidad de lectura", "lectura secuencial", "sequential read"}
	keysRPM       = []string{"rpm", "revoluciones", "velocidad de rotacion", "velocidad de rotación", "fan speed"}
	keysWattage   = []string{"wattage", "potencia", "watts", "vatios", "power"}
	keysCert      = []string{"certification", "certificacion", "certificación", "80 plus"}
	keysFormat    = []string{"form_factor", "formato", "factor de forma", "form factor"}
	keysMemType   = []string{"type", "tipo", "tipo de memoria", "memory type", "tecnologia", "tecnología"}
	keysMemSpeed  = []string{"speed", "velocidad", "velocidad de memoria", "frecuencia de memoria"}
	keysSize      = []string{"size", "tamaño", "diametro", "diámetro", "fan size"}
	keysColor     = []string{"color", "colour"}
)

// ==================== 标题正则回退 ====================

// 结构化字段缺失时常见可从标题恢复的值：容量、转速、物理尺寸、总线、产品线
var (
	capacityRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(TB|GB)`)
	rpmRe      = regexp.MustCompile(`(?i)(\d{3,5})\s*RPM`)
	mmRe       = regexp.MustCompile(`(?i)(\d{2,3})\s*MM`)
	wattRe     = regexp.MustCompile(`(?i)(\d{3,4})\s*W(?:ATTS)?\b`)
	mhzRe      = regexp.MustCompile(`(?i)(\d{3,4})\s*MHZ`)
	ddrRe      = regexp.MustCompile(`(?i)\bDDR[2-5]X?\b`)
	nvmeRe     = regexp.MustCompile(`(?i)\bNVME\b`)
	m2Re       = regexp.MustCompile(`(?i)\bM\.2\b`)
	ghzRe      = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*GHZ`)
)

// capacityFromTitle 返回 GB 计的容量
func capacityFromTitle(title string) float64 {
	m := capacityRe.FindStringSubmatch(title)
	if m == nil {
		return 0
	}
	n := cast.ToFloat64(strings.ReplaceAll(m[1], ",", "."))
	if strings.EqualFold(m[2], "TB") {
		return n * 1000
	}
	return n
}

// pickCapacityGB 容量字段可能是纯数字（GB 计）或带单位字符串（"2TB"、"500 GB"）
// 先按单位解析，再退回数字解析，最后退回标题正则
func pickCapacityGB(raw map[string]interface{}, title string) float64 {
	if v, ok := pickRaw(raw, keysCapacity); ok {
		s := cast.ToString(v)
		if m := capacityRe.FindStringSubmatch(s); m != nil {
			n := cast.ToFloat64(strings.ReplaceAll(m[1], ",", "."))
			if strings.EqualFold(m[2], "TB") {
				return n * 1000
			}
			return n
		}
		if f := cast.ToFloat64(v); f > 0 {
			return f
		}
		if f := leadingNumber(s); f > 0 {
			return f
		}
	}
	return capacityFromTitle(title)
}

func regexNumber(re *regexp.Regexp, s string) float64 {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	return cast.ToFloat64(strings.ReplaceAll(m[1], ",", "."))
}

// ==================== 总线推断 ====================

// InferSSDBus 从顺序读速推断 PCIe 代际
// 一些来源只发布速度不发布代际；声明总线泛化为 NVMe 或未知时按固定阈值推断
func InferSSDBus(declared string, readSpeedMBs float64) string {
	normalized := strings.ToUpper(strings.TrimSpace(declared))

	// 已是具体代际的声明直接信任
	if strings.Contains(normalized, "PCIE") && strings.ContainsAny(normalized, "12345") {
		return declared
	}
	if strings.Contains(normalized, "SATA") {
		return "SATA III"
	}

	generic := normalized == "" || normalized == "NVME" || strings.Contains(normalized, "M.2")
	if !generic {
		return declared
	}

	switch {
	case readSpeedMBs >= 10000:
		return "PCIe 5.0 NVMe"
	case readSpeedMBs >= 5000:
		return "PCIe 4.0 NVMe"
	case readSpeedMBs >= 2000:
		return "PCIe 3.0 NVMe"
	case readSpeedMBs >= 600:
		return "NVMe"
	}

	if normalized == "NVME" {
		return "NVMe"
	}
	return declared
}

// ==================== 品类归一化器 ====================

// NormalizeFunc 单品类规格归一化
// raw 为多语言多来源的异构属性表，title 用于正则回退
type NormalizeFunc func(raw map[string]interface{}, title string) (model.JSONMap, error)

// specNormalizers 品类 -> 归一化器（封闭映射表，无运行期默认回退）
var specNormalizers = map[model.CategorySlug]NormalizeFunc{
	model.CategoryGPU:         normalizeGPU,
	model.CategoryCPU:         normalizeCPU,
	model.CategoryPSU:         normalizePSU,
	model.CategoryMotherboard: normalizeMotherboard,
	model.CategoryCase:        normalizeCase,
	model.CategoryRAM:         normalizeRAM,
	model.CategoryHDD:         normalizeHDD,
	model.CategorySSD:         normalizeSSD,
	model.CategoryCaseFan:     normalizeCaseFan,
	model.CategoryCPUCooler:   normalizeCPUCooler,
}

func normalizeGPU(raw map[string]interface{}, title string) (model.JSONMap, error) {
	specs := model.JSONMap{}

	if chipset := pickString(raw, keysChipset); chipset != "" {
		specs["chipset"] = chipset
	} else if line := gpuLineFromTitle(title); line != "" {
		specs["chipset"] = line
	}

	if mem := pickFloat(raw, keysMemory); mem > 0 {
		specs["memory_gb"] = mem
	} else if cap := capacityFromTitle(title); cap > 0 && cap <= 48 {
		specs["memory_gb"] = cap
	}

	if bus := pickString(raw, keysBus); bus != "" {
		specs["bus"] = bus
	}

	return specs, nil
}

var gpuLineRe = regexp.MustCompile(`(?i)\b(RTX\s?\d{4}\s?(?:TI|SUPER)?|GTX\s?\d{3,4}\s?TI?|RX\s?\d{4}\s?(?:XTX|XT|GRE)?|ARC\s?[AB]\d{3})\b`)

// gpuLineFromTitle 从标题提取显卡产品线（标题回退常见于结构化字段缺失的来源）
func gpuLineFromTitle(title string) string {
	m := gpuLineRe.FindString(title)
	return strings.ToUpper(strings.Join(strings.Fields(m), " "))
}

func normalizeCPU(raw map[string]interface{}, title string) (model.JSONMap, error) {
	specs := model.JSONMap{}

	if cores := pickFloat(raw, keysCores); cores > 0 {
		specs["cores"] = int(cores)
	}
	if threads := pickFloat(raw, keysThreads); threads > 0 {
		specs["threads"] = int(threads)
	}
	if freq := pickFloat(raw, keysFrequency); freq > 0 {
		specs["frequency_ghz"] = freq
	} else if ghz := regexNumber(ghzRe, title); ghz > 0 {
		specs["frequency_ghz"] = ghz
	}
	if socket := pickString(raw, keysSocket); socket != "" {
		specs["socket"] = strings.ToUpper(socket)
	}

	return specs, nil
}

func normalizePSU(raw map[string]interface{}, title string) (model.JSONMap, error) {
	specs := model.JSONMap{}

	if watts := pickFloat(raw, keysWattage); watts > 0 {
		specs["wattage"] = int(watts)
	} else if watts := regexNumber(wattRe, title); watts > 0 {
		specs["wattage"] = int(watts)
	}

	if cert := pickString(raw, keysCert); cert != "" {
		specs["certification"] = cert
	} else if cert := certFromTitle(title); cert != "" {
		specs["certification"] = cert
	}

	if format := pickString(raw, keysFormat); format != "" {
		specs["form_factor"] = format
	}

	return specs, nil
}

var certRe = regexp.MustCompile(`(?i)80\s*PLUS\s*(TITANIUM|PLATINUM|GOLD|SILVER|BRONZE|WHITE)?`)

func certFromTitle(title string) string {
	m := certRe.FindString(title)
	if m == "" {
		return ""
	}
	return strings.ToUpper(strings.Join(strings.Fields(m), " "))
}

func normalizeMotherboard(raw map[string]interface{}, title string) (model.JSONMap, error) {
	specs := model.JSONMap{}

	if socket := pickString(raw, keysSocket); socket != "" {
		specs["socket"] = strings.ToUpper(socket)
	}
	if chipset := pickString(raw, []string{"chipset", "modelo de chipset"}); chipset != "" {
		specs["chipset"] = strings.ToUpper(chipset)
	}
	if format := pickString(raw, keysFormat); format != "" {
		specs["form_factor"] = format
	} else if format := formFactorFromTitle(title); format != "" {
		specs["form_factor"] = format
	}
	if m := ddrRe.FindString(strings.ToUpper(title)); m != "" {
		specs["memory_type"] = m
	}

	return specs, nil
}

var formFactorRe = regexp.MustCompile(`(?i)\b(E-?ATX|MICRO\s?ATX|M-?ATX|MINI\s?ITX|ATX)\b`)

func formFactorFromTitle(title string) string {
	m := formFactorRe.FindString(title)
	return strings.ToUpper(strings.Join(strings.Fields(m), " "))
}

func normalizeCase(raw map[string]interface{}, title string) (model.JSONMap, error) {
	specs := model.JSONMap{}

	if format := pickString(raw, keysFormat); format != "" {
		specs["form_factor"] = format
	} else if format := formFactorFromTitle(title); format != "" {
		specs["form_factor"] = format
	}
	if color := pickString(raw, keysColor); color != "" {
		specs["color"] = color
	}

	return specs, nil
}

// ramRequiredKeys RAM 归一化结果必须具备的形状
// 形状不一致时大声失败：不一致的归一化不允许悄悄进目录
var ramRequiredKeys = []string{"capacity_gb", "type"}

func normalizeRAM(raw map[string]interface{}, title string) (model.JSONMap, error) {
	specs := model.JSONMap{}

	if cap := pickCapacityGB(raw, title); cap > 0 {
		specs["capacity_gb"] = cap
	}

	if memType := pickString(raw, keysMemType); ddrRe.MatchString(strings.ToUpper(memType)) {
		specs["type"] = strings.ToUpper(ddrRe.FindString(strings.ToUpper(memType)))
	} else if m := ddrRe.FindString(strings.ToUpper(title)); m != "" {
		specs["type"] = m
	}

	if speed := pickFloat(raw, keysMemSpeed); speed > 0 {
		specs["speed_mhz"] = int(speed)
	} else if mhz := regexNumber(mhzRe, title); mhz > 0 {
		specs["speed_mhz"] = int(mhz)
	}

	for _, key := range ramRequiredKeys {
		if _, ok := specs[key]; !ok {
			return nil, fmt.Errorf("normalización RAM inválida: falta %q (título %q)", key, title)
		}
	}

	return specs, nil
}

func normalizeHDD(raw map[string]interface{}, title string) (model.JSONMap, error) {
	specs := model.JSONMap{}

	if cap := pickCapacityGB(raw, title); cap > 0 {
		specs["capacity_gb"] = cap
	}

	if rpm := pickFloat(raw, keysRPM); rpm > 0 {
		specs["rpm"] = int(rpm)
	} else if rpm := regexNumber(rpmRe, title); rpm > 0 {
		specs["rpm"] = int(rpm)
	}

	if bus := pickString(raw, keysBus); bus != "" {
		specs["bus"] = bus
	} else {
		specs["bus"] = "SATA III"
	}

	if format := pickString(raw, keysFormat); format != "" {
		specs["form_factor"] = format
	}

	return specs, nil
}

func normalizeSSD(raw map[string]interface{}, title string) (model.JSONMap, error) {
	specs := model.JSONMap{}

	if cap := pickCapacityGB(raw, title); cap > 0 {
		specs["capacity_gb"] = cap
	}

	declared := pickString(raw, keysBus)
	if declared == "" {
		upper := strings.ToUpper(title)
		if nvmeRe.MatchString(upper) || m2Re.MatchString(upper) {
			declared = "NVMe"
		}
	}

	readSpeed := pickFloat(raw, keysReadSpeed)
	if readSpeed > 0 {
		specs["read_speed_mbs"] = readSpeed
	}

	if bus := InferSSDBus(declared, readSpeed); bus != "" {
		specs["bus"] = bus
	}

	if m2Re.MatchString(strings.ToUpper(title)) {
		specs["form_factor"] = "M.2"
	} else if format := pickString(raw, keysFormat); format != "" {
		specs["form_factor"] = format
	}

	return specs, nil
}

func normalizeCaseFan(raw map[string]interface{}, title string) (model.JSONMap, error) {
	specs := model.JSONMap{}

	if size := pickFloat(raw, keysSize); size > 0 {
		specs["size_mm"] = int(size)
	} else if mm := regexNumber(mmRe, title); mm > 0 {
		specs["size_mm"] = int(mm)
	}

	if rpm := pickFloat(raw, keysRPM); rpm > 0 {
		specs["rpm"] = int(rpm)
	} else if rpm := regexNumber(rpmRe, title); rpm > 0 {
		specs["rpm"] = int(rpm)
	}

	return specs, nil
}

func normalizeCPUCooler(raw map[string]interface{}, title string) (model.JSONMap, error) {
	specs := model.JSONMap{}

	upper := strings.ToUpper(title)
	if containsAny(upper, liquidCoolingTerms) {
		specs["cooling_type"] = "liquid"
		if mm := regexNumber(mmRe, title); mm > 0 {
			specs["radiator_mm"] = int(mm)
		}
	} else {
		specs["cooling_type"] = "air"
	}

	if socket := pickString(raw, keysSocket); socket != "" {
		specs["socket"] = strings.ToUpper(socket)
	}

	return specs, nil
}

// ==================== 目录级规格校验 ====================

// catalogSpecKeys 品类 -> 目录级建议形状（至少应出现的键）
// 管线里是建议性告警而非门禁；调度器后处理里作为激活门禁
var catalogSpecKeys = map[model.CategorySlug][]string{
	model.CategoryGPU:         {"chipset"},
	model.CategoryCPU:         {"cores", "socket"},
	model.CategoryPSU:         {"wattage"},
	model.CategoryMotherboard: {"socket"},
	model.CategoryRAM:         {"capacity_gb", "type"},
	model.CategoryHDD:         {"capacity_gb"},
	model.CategorySSD:         {"capacity_gb", "bus"},
	model.CategoryCaseFan:     {"size_mm"},
	model.CategoryCPUCooler:   {"cooling_type"},
}

// ValidateSpecSchema 对归一化结果做目录级形状校验
func ValidateSpecSchema(category model.CategorySlug, specs model.JSONMap) error {
	required, ok := catalogSpecKeys[category]
	if !ok {
		return nil
	}
	if len(specs) == 0 {
		return fmt.Errorf("specs vacíos para %s", category)
	}
	var missing []string
	for _, key := range required {
		if v, present := specs[key]; !present || v == nil || cast.ToString(v) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("specs de %s incompletos: faltan %s", category, strings.Join(missing, ", "))
	}
	return nil
}

// ==================== SpecService ====================

// SpecService 规格归一化入口
// MPN 已知时优先走 AI 提取；AI 路径为空时退回确定性归一化器
type SpecService struct {
	ai *AIService
}

// NewSpecService 创建规格服务
func NewSpecService(ai *AIService) *SpecService {
	return &SpecService{ai: ai}
}

// ExtractBrand 从原始属性表取品牌名，缺省 "Generic"
func ExtractBrand(raw map[string]interface{}) string {
	if brand := pickString(raw, keysBrand); brand != "" {
		return brand
	}
	return "Generic"
}

// NormalizeFor 带 AI 路径的归一化
// MPN 存在时先尝试 AI 提取；AI 返回空或报错则退回确定性归一化器
func (s *SpecService) NormalizeFor(ctx context.Context, category model.CategorySlug, mpn string, raw map[string]interface{}, title string) (model.JSONMap, error) {
	if mpn != "" && s.ai != nil {
		specs, err := s.ai.ExtractForCategory(ctx, category, mpn, title)
		if err != nil {
			log.Printf("[Spec] AI 提取失败 mpn=%s: %v，退回确定性归一化", mpn, err)
		} else if len(specs) > 0 {
			return specs, nil
		}
	}
	return s.Normalize(category, raw, title)
}

// Normalize 归一化一条原始规格
// 返回的 map 为品类规范形状；错误只在归一化器自校验失败时返回
func (s *SpecService) Normalize(category model.CategorySlug, raw map[string]interface{}, title string) (model.JSONMap, error) {
	normalizer, ok := specNormalizers[category]
	if !ok {
		// 未知品类：保留原始键值，不强加形状
		specs := model.JSONMap{}
		for k, v := range raw {
			specs[strings.ToLower(k)] = v
		}
		return specs, nil
	}
	return normalizer(raw, title)
}
