// Package fsx 封装缓存与媒体库用到的文件操作：原子写、带回滚的批量移动。
package fsx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// 测试替换它来模拟 EXDEV。
var renameFunc = os.Rename

// PathTypeConflictError 表示路径已被另一种类型占用（例如期望目录但实际是文件）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

// CrossDeviceError 表示 rename 跨越了文件系统。不做 copy+delete 兜底。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘移动失败（EXDEV）：%q -> %q；媒体库与视频需位于同一文件系统：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Rename 同 os.Rename，EXDEV 标记为 *CrossDeviceError。
func Rename(src, dst string) error {
	err := renameFunc(src, dst)
	if err != nil && isEXDEV(err) {
		return &CrossDeviceError{Src: src, Dst: dst, Err: err}
	}
	return err
}

// WriteMode 决定目标已存在时的行为。
type WriteMode int

const (
	// Replace 覆盖已有文件：缓存记录、名称索引。
	Replace WriteMode = iota
	// Create 目标已存在时返回 os.ErrExist：媒体库 sidecar（nfo/fanart/poster）。
	Create
)

// WriteAtomic 经同目录临时文件 + rename 写入 dir/name，目录不存在时创建。
func WriteAtomic(dir, name string, data []byte, mode WriteMode) error {
	dir = filepath.Clean(dir)
	dst := filepath.Join(dir, name)
	if mode == Create {
		if err := checkAbsent(dst); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	// 前缀 '.' 让扫描与媒体服务器都忽略半成品。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	renamed := false
	defer func() {
		_ = tmp.Close()
		if !renamed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := Rename(tmpName, dst); err != nil {
		return err
	}
	renamed = true
	syncDir(dir)
	return nil
}

// WriteJSON 以两空格缩进写入 v（结尾带换行，便于手工编辑与 diff）。
func WriteJSON(dir, name string, v any, mode WriteMode) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return WriteAtomic(dir, name, append(b, '\n'), mode)
}

func checkAbsent(path string) error {
	fi, err := os.Lstat(path)
	switch {
	case err == nil && fi.IsDir():
		return &PathTypeConflictError{Path: path, Want: "file", Got: "dir"}
	case err == nil && !fi.Mode().IsRegular():
		return &PathTypeConflictError{Path: path, Want: "regular file", Got: fi.Mode().Type().String()}
	case err == nil:
		return os.ErrExist
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return err
	}
}

// EnsureDir 创建目录；路径已被文件占用时返回 *PathTypeConflictError。
func EnsureDir(dir string) error {
	fi, err := os.Stat(dir)
	if err == nil {
		if fi.IsDir() {
			return nil
		}
		return &PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// ReadFileIfExists 读取文件；不存在时 ok=false 且 err=nil。
func ReadFileIfExists(path string) ([]byte, bool, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// RemoveIfExists 删除文件；不存在视为成功，返回是否真的删除了。
func RemoveIfExists(path string) (bool, error) {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func syncDir(dir string) {
	// Windows 不支持对目录 Sync。
	if runtime.GOOS == "windows" {
		return
	}
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = f.Sync()
	_ = f.Close()
}
