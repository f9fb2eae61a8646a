package domain

import "strings"

// Code 是作品的唯一主键（同时也是缓存文件名 {code}.json 的主体）。
//
// 约束：Code 来自文件名，不做大小写/分隔符的“聪明”改写；
// 只拒绝会破坏缓存文件名的输入（空串、路径分隔符、相对路径片段）。
type Code string

// ParseCode 校验一个 CODE 字符串是否可以安全地作为缓存键。
func ParseCode(s string) (Code, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == ".." {
		return "", false
	}
	if strings.ContainsAny(s, `/\`) || strings.ContainsRune(s, 0) {
		return "", false
	}
	return Code(s), true
}

// SameCode 判断两个 CODE 是否指向同一作品（忽略大小写与首尾空白）。
func SameCode(a, b Code) bool {
	return strings.EqualFold(strings.TrimSpace(string(a)), strings.TrimSpace(string(b)))
}
