// Package store 是缓存层：影片记录（{cache}/movies/{code}.json）与演员记录（{cache}/actors/{id}.nfo）。
//
// 约束：
// - 每个实体最多一个缓存文件；文件整体原子替换写入
// - 读取失败（I/O/解析）记录日志并视为不存在，由下一次刮削覆盖
// - 单进程单写者；并发批处理由上层的文件锁拒绝
package store

import (
	"errors"
	"strings"
)

const (
	moviesDir = "movies"
	actorsDir = "actors"
)

var (
	// ErrNotFound 表示显式操作（patch/delete）的目标记录不存在。
	ErrNotFound = errors.New("store: record not found")
	// ErrInvalidKey 表示 code/id 不能安全地作为文件名。
	ErrInvalidKey = errors.New("store: invalid key")
)

// safeKey 拒绝会逃逸出缓存目录的文件名主体。
func safeKey(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == ".." {
		return "", false
	}
	if strings.ContainsAny(s, `/\`) || strings.ContainsRune(s, 0) {
		return "", false
	}
	return s, true
}
