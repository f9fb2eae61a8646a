package code

import (
	"errors"
	"testing"

	"github.com/John-Robertt/avmeta/internal/domain"
)

func TestFromFilename(t *testing.T) {
	cases := []struct {
		in   string
		want domain.Code
	}{
		{"ABP-123.mp4", "ABP-123"},
		{"ABP-123 uncensored.mp4", "ABP-123"},
		{"abp-123　中文字幕.mkv", "abp-123"},
		{"FC2-PPV-1234567.avi", "FC2-PPV-1234567"},
		{"/lib/SSIS-001 part1.MP4", "SSIS-001"},
		{"noext", "noext"},
	}
	for _, c := range cases {
		got, err := FromFilename(c.in)
		if err != nil {
			t.Fatalf("%q 不期望错误：%v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("%q 期望 %q，实际 %q", c.in, c.want, got)
		}
	}
}

func TestFromFilename_Unmatched(t *testing.T) {
	for _, in := range []string{"", ".mp4", " leading-space.mp4"} {
		_, err := FromFilename(in)
		var ue *UnmatchedError
		if in == " leading-space.mp4" {
			// 首尾空白先被去掉，仍可解析。
			if err != nil {
				t.Fatalf("%q 不期望错误：%v", in, err)
			}
			continue
		}
		if !errors.As(err, &ue) {
			t.Fatalf("%q 期望 UnmatchedError，实际 %v", in, err)
		}
	}
}
