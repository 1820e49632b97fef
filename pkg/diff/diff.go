// Package diff 生成冲突预览用的行级差异
package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op 差异片段类型
type Op string

const (
	OpEqual  Op = "equal"
	OpInsert Op = "insert"
	OpDelete Op = "delete"
)

// Segment 一段差异
type Segment struct {
	Op   Op     `json:"op"`
	Text string `json:"text"`
}

// Lines 计算 from 到 to 的行级差异
// 使用 diffmatchpatch 的行模式
func Lines(from, to string) []Segment {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(from, to)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	out := make([]Segment, 0, len(diffs))
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		var op Op
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = OpInsert
		case diffmatchpatch.DiffDelete:
			op = OpDelete
		default:
			op = OpEqual
		}
		out = append(out, Segment{Op: op, Text: d.Text})
	}
	return out
}

// Unified 以 "+ " / "- " / "  " 前缀输出差异文本，供命令行展示
func Unified(from, to string) string {
	var b strings.Builder
	for _, seg := range Lines(from, to) {
		prefix := "  "
		switch seg.Op {
		case OpInsert:
			prefix = "+ "
		case OpDelete:
			prefix = "- "
		}
		for _, line := range strings.SplitAfter(seg.Text, "\n") {
			if line == "" {
				continue
			}
			b.WriteString(prefix)
			b.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// Changed 两个文本是否存在差异
func Changed(from, to string) bool {
	return from != to
}
