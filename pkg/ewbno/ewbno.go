// Package ewbno normalizes e-way bill numbers.
//
// The canonical form is 12 digits; the display form groups them 4-4-4.
package ewbno

import "strings"

// Length 规范 EWB 号长度
const Length = 12

// Clean 去除所有非数字字符
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Valid 清洗后是否为 12 位数字
func Valid(s string) bool {
	return len(Clean(s)) == Length
}

// Format 输出 XXXX-XXXX-XXXX 展示格式，非 12 位输入原样返回
func Format(s string) string {
	c := Clean(s)
	if len(c) != Length {
		return s
	}
	return c[:4] + "-" + c[4:8] + "-" + c[8:]
}
