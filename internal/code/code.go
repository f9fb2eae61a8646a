// Package code 从视频文件名推导作品 CODE。
package code

import (
	"path/filepath"
	"strings"

	"github.com/John-Robertt/avmeta/internal/domain"
)

// UnmatchedError 表示文件名推导不出可用的 CODE。
type UnmatchedError struct {
	Name string
}

func (e *UnmatchedError) Error() string {
	return "无法从文件名解析出 CODE：" + e.Name
}

// FromFilename 取文件名（去掉扩展名）中第一个空白之前的部分作为 CODE。
//
// 例如 "ABP-123 uncensored.mp4" -> "ABP-123"，"ABP-123.mkv" -> "ABP-123"。
// 不做大小写与分隔符改写；无法作为缓存键的结果返回 *UnmatchedError。
func FromFilename(name string) (domain.Code, error) {
	base := filepath.Base(strings.TrimSpace(name))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if i := strings.IndexFunc(base, isSpace); i >= 0 {
		base = base[:i]
	}
	c, ok := domain.ParseCode(base)
	if !ok {
		return "", &UnmatchedError{Name: name}
	}
	return c, nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '　'
}
