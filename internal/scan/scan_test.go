package scan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScanVideos_NonRecursive(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, "cache", "x.mp4"))
	touch(t, filepath.Join(root, "sub", "CAWD-895.mp4"))
	touch(t, filepath.Join(root, "CAWD-895 4k.mp4"))
	touch(t, filepath.Join(root, "ignore.txt"))
	touch(t, filepath.Join(root, ".hidden.mp4"))

	got, err := ScanVideos(root)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 1 {
		t.Fatalf("期望 1 个视频文件，实际 %d：%+v", len(got), got)
	}
	if got[0].Name != "CAWD-895 4k.mp4" || got[0].Code != "CAWD-895" {
		t.Fatalf("期望 CAWD-895，实际 %+v", got[0])
	}
	if !filepath.IsAbs(got[0].AbsPath) {
		t.Fatalf("AbsPath 应为绝对路径：%q", got[0].AbsPath)
	}
}

func TestScanVideos_ExtCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "X-1.MP4"))

	got, err := ScanVideos(root)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 1 {
		t.Fatalf("期望 1 个视频文件，实际 %d", len(got))
	}
	if got[0].Ext != ".mp4" {
		t.Fatalf("期望 ext=.mp4，实际=%q", got[0].Ext)
	}
}

func TestUniqueCodes_FirstSeenCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "ABC-123 cd1.mp4"))
	touch(t, filepath.Join(root, "ABC-123 cd2.mp4"))
	touch(t, filepath.Join(root, "abc-123.mkv"))
	touch(t, filepath.Join(root, "XYZ-001.mp4"))

	files, err := ScanVideos(root)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	codes, video := UniqueCodes(files)
	if len(codes) != 2 || codes[0] != "ABC-123" || codes[1] != "XYZ-001" {
		t.Fatalf("期望 [ABC-123 XYZ-001]，实际 %v", codes)
	}
	if video["ABC-123"] != "ABC-123 cd1.mp4" {
		t.Fatalf("期望第一个文件，实际 %q", video["ABC-123"])
	}
}

func TestScanVideos_MissingRoot(t *testing.T) {
	if _, err := ScanVideos(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("期望目录不存在时报错")
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
