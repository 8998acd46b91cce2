package service

import (
	"testing"

	"hwcatalog_v1_202608/internal/model"
)

// ==================== 品类校验 ====================

func TestValidateCategoryGlobalRejects(t *testing.T) {
	cases := []struct {
		title    string
		category model.CategorySlug
	}{
		{"TARJETA DE VIDEO RTX 4070 OPEN BOX", model.CategoryGPU},
		{"PROCESADOR INTEL I5 12400F REACONDICIONADO", model.CategoryCPU},
		{"THERMAL PAD 100X100MM", model.CategoryGPU},
		{"KIT DE ACCESORIOS PARA GABINETE", model.CategoryCase},
	}

	for _, tc := range cases {
		result := ValidateCategory(tc.title, tc.category)
		if result.Valid {
			t.Errorf("标题 %q 应被全局规则拒绝", tc.title)
		}
		if result.Reason == "" {
			t.Errorf("标题 %q 拒绝时必须给出原因", tc.title)
		}
	}
}

func TestValidateCategoryCPURejectsMotherboard(t *testing.T) {
	// 主板标题常带芯片组型号，不能漏进 CPU 品类
	result := ValidateCategory("PLACA MADRE ASUS B650 PLUS", model.CategoryCPU)
	if result.Valid {
		t.Fatal("主板标题不应通过 CPU 品类校验")
	}
}

func TestValidateCategoryAcceptsValidTitles(t *testing.T) {
	cases := []struct {
		title    string
		category model.CategorySlug
	}{
		{"TARJETA DE VIDEO MSI RTX 4070 SUPER 12GB", model.CategoryGPU},
		{"PROCESADOR AMD RYZEN 7 7800X3D", model.CategoryCPU},
		{"FUENTE DE PODER CORSAIR RM850E 850W 80 PLUS GOLD", model.CategoryPSU},
		{"VENTILADOR LIAN LI UNI FAN SL120", model.CategoryCaseFan},
	}

	for _, tc := range cases {
		result := ValidateCategory(tc.title, tc.category)
		if !result.Valid {
			t.Errorf("标题 %q 应通过 %s 品类校验, 原因: %s", tc.title, tc.category, result.Reason)
		}
	}
}

func TestValidateCategoryCaseFanExcludesLiquidCooling(t *testing.T) {
	result := ValidateCategory("REFRIGERACION LIQUIDA CORSAIR H100I 240MM", model.CategoryCaseFan)
	if result.Valid {
		t.Fatal("水冷排不应落入机箱风扇品类")
	}
}

func TestValidateCategoryCaseRejectsSoporte(t *testing.T) {
	result := ValidateCategory("SOPORTE VERTICAL PARA GABINETE", model.CategoryCase)
	if result.Valid {
		t.Fatal("配件支架不应落入机箱品类")
	}
}

func TestValidateCategoryDeterministic(t *testing.T) {
	title := "GABINETE COOLER MASTER NR200P"
	first := ValidateCategory(title, model.CategoryCase)
	for i := 0; i < 10; i++ {
		again := ValidateCategory(title, model.CategoryCase)
		if again != first {
			t.Fatal("同一输入的校验结果必须恒定")
		}
	}
}

// ==================== SEO 标题 ====================

func TestBuildSEOTitleStripsAndAppendsMPN(t *testing.T) {
	got := BuildSEOTitle("SSD Kingston NV2 1TB snv2s/1000g nuevo.", "SNV2S/1000G")
	want := "SSD Kingston NV2 1TB nuevo [SNV2S/1000G]"
	if got != want {
		t.Fatalf("SEO 标题不符: got %q, want %q", got, want)
	}
}

func TestBuildSEOTitleWithoutMPN(t *testing.T) {
	got := BuildSEOTitle("Gabinete NZXT H510   Flow,", "")
	want := "Gabinete NZXT H510 Flow"
	if got != want {
		t.Fatalf("无 MPN 时只做清洗: got %q, want %q", got, want)
	}
}

func TestBuildSEOTitleIdempotentAcrossSources(t *testing.T) {
	// 不同来源对同一 MPN 的大小写各异，产出标题必须一致收敛
	a := BuildSEOTitle("Disco WD Blue 1TB WD10EZEX", "WD10EZEX")
	b := BuildSEOTitle("Disco WD Blue 1TB wd10ezex", "WD10EZEX")
	if a != b {
		t.Fatalf("同一 MPN 不同大小写应产出相同标题: %q vs %q", a, b)
	}
}
