// Package binding 实现标注模板中的 ${name} 插值。
package binding

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]*)\}`)

// Values 是模板可以引用的字段。
type Values map[string]any

// Interpolate 将 ${name} 替换为 values 中的值，name 两侧空白被忽略。
// 未知字段保留原样。
func Interpolate(text string, values Values) string {
	if len(values) == 0 || !strings.Contains(text, "${") {
		return text
	}
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-1])
		if v, ok := values[name]; ok {
			return fmt.Sprint(v)
		}
		return match
	})
}

// Fields 返回模板引用的字段名，去重并保持出现顺序。
func Fields(text string) []string {
	var out []string
	for _, m := range exprPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// Validate 检查模板只引用 allowed 中的字段。
func Validate(text string, allowed ...string) error {
	for _, name := range Fields(text) {
		if !slices.Contains(allowed, name) {
			return fmt.Errorf("template %q references unknown field %q", text, name)
		}
	}
	return nil
}
