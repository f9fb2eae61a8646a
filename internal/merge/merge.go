// Package merge 实现两种互不混用的合并策略：
//
//   - 优先级合并（首次刮削、没有本地基线）：每个字段取优先级顺序中第一个给出非空值的来源
//   - 本地优先合并（已有缓存/用户编辑过的记录 + 新刮削结果）：本地非空字段永远胜出
//
// 两者都是纯函数；“空”的定义：字符串 trim 后为空、数值为 0、切片长度为 0。
package merge

import (
	"sort"
	"strings"
)

// orderSources 返回参与合并的来源名顺序：先按 priority，再把 priority 未列出的来源按名称排序追加。
// 结果与输入数组顺序无关；同名来源只保留第一次出现。
func orderSources(present []string, priority []string) []string {
	have := make(map[string]struct{}, len(present))
	for _, p := range present {
		have[p] = struct{}{}
	}

	out := make([]string, 0, len(have))
	used := make(map[string]struct{}, len(have))
	for _, p := range priority {
		p = strings.ToLower(strings.TrimSpace(p))
		if _, ok := have[p]; !ok {
			continue
		}
		if _, ok := used[p]; ok {
			continue
		}
		used[p] = struct{}{}
		out = append(out, p)
	}

	rest := make([]string, 0, len(have)-len(out))
	for p := range have {
		if _, ok := used[p]; !ok {
			rest = append(rest, p)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func emptyString(s string) bool { return strings.TrimSpace(s) == "" }

// union 合并多个字符串列表：去空白、按首次出现去重（大小写敏感，别名常以大小写区分书写习惯）。
func union(lists ...[]string) []string {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	if n == 0 {
		return nil
	}
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for _, l := range lists {
		for _, s := range l {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
