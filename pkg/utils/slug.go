package utils

import (
	"regexp"
	"strings"
)

var (
	nonAlnumRe      = regexp.MustCompile(`[^a-z0-9]+`)
	multiHyphenRe   = regexp.MustCompile(`-{2,}`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	trailingPunctRe = regexp.MustCompile(`[\s\-_,.;:|]+$`)
)

// Slugify 生成 slug：小写，非字母数字折叠为连字符
// 品牌/品类/商品的天然去重键都由此派生
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonAlnumRe.ReplaceAllString(s, "-")
	s = multiHyphenRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// CollapseWhitespace 折叠连续空白为单个空格
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// TrimTrailingPunct 去除结尾的悬挂标点
func TrimTrailingPunct(s string) string {
	return trailingPunctRe.ReplaceAllString(s, "")
}
