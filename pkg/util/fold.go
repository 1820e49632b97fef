package util

import (
	"strings"

	"golang.org/x/text/cases"
)

// FoldName 返回用于大小写不敏感比较的名称形式
// cases.Caser 非并发安全，每次调用新建
func FoldName(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// ContainsFold 大小写不敏感的子串匹配，空 needle 总是匹配
func ContainsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	c := cases.Fold()
	return strings.Contains(c.String(haystack), c.String(needle))
}
