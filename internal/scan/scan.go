package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/avmeta/internal/code"
	"github.com/John-Robertt/avmeta/internal/domain"
)

// VideoExts 是被视为视频文件的扩展名（小写）。
var VideoExts = []string{".mp4", ".mkv", ".avi", ".wmv", ".mov", ".ts", ".m4v"}

// ScanVideos 列出 root 目录下（不递归）的视频文件，并为每个文件推导 CODE。
//
// 规则：
// - 只看 root 的直接子项；子目录（包括 cache/）一律忽略
// - 以 "." 开头的隐藏文件忽略
// - 推导不出 CODE 的文件仍然返回，Code 为空，由调用方决定如何报告
//
// 注意：扫描阶段只做 stat（DirEntry.Info），不读文件内容。
func ScanVideos(root string) ([]domain.VideoFile, error) {
	root, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	files := make([]domain.VideoFile, 0, len(entries))
	for _, d := range entries {
		name := d.Name()
		if d.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if !isVideoExt(ext) {
			continue
		}
		info, err := d.Info()
		if err != nil {
			return nil, err
		}
		if !info.Mode().IsRegular() {
			continue
		}
		c, _ := code.FromFilename(name)
		files = append(files, domain.VideoFile{
			AbsPath: filepath.Join(root, name),
			Name:    name,
			Ext:     ext,
			Code:    c,
			Size:    info.Size(),
			ModUnix: info.ModTime().Unix(),
		})
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// UniqueCodes 按首次出现顺序对 CODE 去重（大小写不敏感）。
// 返回去重后的 CODE 及其对应的第一个视频文件名。
func UniqueCodes(files []domain.VideoFile) ([]domain.Code, map[domain.Code]string) {
	seen := make(map[string]struct{}, len(files))
	codes := make([]domain.Code, 0, len(files))
	video := make(map[domain.Code]string, len(files))
	for _, f := range files {
		if f.Code == "" {
			continue
		}
		k := strings.ToUpper(string(f.Code))
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		codes = append(codes, f.Code)
		video[f.Code] = f.Name
	}
	return codes, video
}

func isVideoExt(ext string) bool {
	for _, e := range VideoExts {
		if ext == e {
			return true
		}
	}
	return false
}
