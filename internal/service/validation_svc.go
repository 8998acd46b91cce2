package service

import (
	"fmt"
	"regexp"
	"strings"

	"hwcatalog_v1_202608/internal/model"
	"hwcatalog_v1_202608/pkg/utils"
)

// ==================== 校验结果 ====================

// ValidationResult 品类校验结果
type ValidationResult struct {
	Valid  bool
	Reason string
}

func rejected(format string, args ...interface{}) ValidationResult {
	return ValidationResult{Valid: false, Reason: fmt.Sprintf(format, args...)}
}

// ==================== 全局拒绝列表 ====================

// globalRejectTerms 任何品类都不收录的标题片段（大写比较）
var globalRejectTerms = []string{
	"OPEN BOX",
	"OPENBOX",
	"REFURBISHED",
	"REACONDICIONADO",
	"SEGUNDA MANO",
	"THERMAL PAD",
	"PAD TERMICO",
	"PASTA TERMICA",
	"KIT DE ACCESORIOS",
	"KIT ACCESORIOS",
	"REPUESTO",
}

// ==================== 品类规则 ====================

// categoryRule 单品类规则集
// 按固定顺序求值，第一条不通过的规则决定拒绝原因：
// invalidTerms -> requiredTerms -> excludeIfContains -> customCheck
type categoryRule struct {
	// 包含任意一项即拒绝
	invalidTerms []string
	// 至少包含一项才通过
	requiredTerms []string
	// 跨品类误分类拦截：包含任意一项即拒绝
	excludeIfContains []string
	// 品类特有布尔逻辑，返回 (通过, 拒绝原因)
	customCheck func(upper string) (bool, string)
}

// liquidCoolingTerms / airCoolingTerms CPU 散热词汇表
var (
	liquidCoolingTerms = []string{"LIQUID", "AIO", "WATER", "REFRIGERACION LIQUIDA", "REFRIGERACIÓN LÍQUIDA", "WATERCOOLING"}
	airCoolingTerms    = []string{"AIR COOLER", "COOLER", "DISIPADOR", "HEATSINK", "VENTILADOR CPU", "TOWER COOLER"}
)

// categoryRules 品类 -> 规则
// 没有规则条目的品类总是通过
var categoryRules = map[model.CategorySlug]categoryRule{
	model.CategoryGPU: {
		invalidTerms:      []string{"SOPORTE", "BRACKET", "RISER", "CABLE"},
		requiredTerms:     []string{"GEFORCE", "RADEON", "RTX", "GTX", "RX ", "ARC", "TARJETA DE VIDEO", "GRAPHICS"},
		excludeIfContains: []string{"MOTHERBOARD", "PLACA MADRE"},
	},
	model.CategoryCPU: {
		invalidTerms:      []string{"SOPORTE", "CABLE"},
		excludeIfContains: []string{"MOTHERBOARD", "PLACA MADRE", "MAINBOARD", "PLACA BASE"},
	},
	model.CategoryPSU: {
		invalidTerms:      []string{"CABLE", "EXTENSION", "EXTENSIÓN"},
		requiredTerms:     []string{"FUENTE", "PSU", "POWER SUPPLY"},
		excludeIfContains: []string{"GABINETE"},
	},
	model.CategoryMotherboard: {
		invalidTerms:  []string{"SOPORTE", "CABLE"},
		requiredTerms: []string{"PLACA MADRE", "MOTHERBOARD", "MAINBOARD", "PLACA BASE"},
	},
	model.CategoryCase: {
		invalidTerms:      []string{"SOPORTE", "BRACKET", "VIDRIO REPUESTO"},
		requiredTerms:     []string{"GABINETE", "CASE", "TORRE", "TOWER"},
		excludeIfContains: []string{"FUENTE DE PODER SOLA"},
	},
	model.CategoryRAM: {
		invalidTerms:  []string{"SOPORTE"},
		requiredTerms: []string{"DDR", "DIMM", "SODIMM", "MEMORIA RAM"},
	},
	model.CategoryHDD: {
		invalidTerms:      []string{"CARCASA", "ENCLOSURE", "CABLE"},
		requiredTerms:     []string{"HDD", "DISCO DURO", "DISCO RIGIDO", "DISCO RÍGIDO"},
		excludeIfContains: []string{"SSD", "ESTADO SOLIDO", "ESTADO SÓLIDO"},
	},
	model.CategorySSD: {
		invalidTerms:      []string{"CARCASA", "ENCLOSURE", "CABLE"},
		requiredTerms:     []string{"SSD", "NVME", "M.2", "ESTADO SOLIDO", "ESTADO SÓLIDO"},
		excludeIfContains: []string{"DISCO DURO MECANICO"},
	},
	model.CategoryCaseFan: {
		customCheck: func(upper string) (bool, string) {
			if !containsAny(upper, []string{"FAN", "VENTILADOR"}) {
				return false, "no menciona ventilador"
			}
			// 一体式水冷/CPU 散热不属于机箱风扇
			if containsAny(upper, []string{"CPU COOLER", "COOLER CPU", "AIO", "LIQUID", "REFRIGERACION LIQUIDA", "REFRIGERACIÓN LÍQUIDA"}) {
				return false, "es refrigeración de CPU, no ventilador de gabinete"
			}
			return true, ""
		},
	},
	model.CategoryCPUCooler: {
		customCheck: func(upper string) (bool, string) {
			if containsAny(upper, liquidCoolingTerms) || containsAny(upper, airCoolingTerms) {
				return true, ""
			}
			return false, "no coincide con vocabulario de refrigeración líquida ni por aire"
		},
	},
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func firstMatch(haystack string, needles []string) (string, bool) {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return n, true
		}
	}
	return "", false
}

// ==================== 品类校验 ====================

// ValidateCategory 校验标题是否属于目标品类
// 纯函数，无 I/O；拒绝是预期业务结果，不是错误
func ValidateCategory(title string, category model.CategorySlug) ValidationResult {
	upper := strings.ToUpper(title)

	if term, ok := firstMatch(upper, globalRejectTerms); ok {
		return rejected("término descartado globalmente: %q", term)
	}

	rule, ok := categoryRules[category]
	if !ok {
		return ValidationResult{Valid: true}
	}

	if term, ok := firstMatch(upper, rule.invalidTerms); ok {
		return rejected("término inválido para %s: %q", category, term)
	}

	if len(rule.requiredTerms) > 0 && !containsAny(upper, rule.requiredTerms) {
		return rejected("no contiene ningún término requerido de %s", category)
	}

	if term, ok := firstMatch(upper, rule.excludeIfContains); ok {
		return rejected("posible mala categorización (%s contiene %q)", category, term)
	}

	if rule.customCheck != nil {
		if passed, reason := rule.customCheck(upper); !passed {
			return rejected("%s", reason)
		}
	}

	return ValidationResult{Valid: true}
}

// ==================== SEO 标题构造 ====================

// BuildSEOTitle 构造确定性 SEO 标题
// 先从自由文本标题中剔除 MPN（转义后大小写不敏感匹配），
// 折叠空白、去尾部标点，MPN 存在时以固定后缀 [MPN] 追加。
// 这样同一 MPN 在不同来源的花式写法都会收敛到同一标题
func BuildSEOTitle(title, mpn string) string {
	base := title
	if mpn != "" {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(mpn))
		if err == nil {
			base = re.ReplaceAllString(base, " ")
		}
	}

	base = utils.CollapseWhitespace(base)
	base = utils.TrimTrailingPunct(base)

	if mpn != "" {
		return fmt.Sprintf("%s [%s]", base, mpn)
	}
	return base
}
