// Package slug 把自由文本名称转换为稳定的、可作为文件名的 canonical ID。
package slug

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var lower = cases.Lower(language.Und)

// Make 生成名称的 slug：
// - 全角/兼容字符先做 NFKC，再去掉变音符号（é -> e）
// - 小写
// - 只保留 ASCII 字母与数字；空白、'-'、'_' 视为分隔符；CJK/假名/符号直接丢弃
// - 连续分隔符折叠为单个 '-'，去掉首尾 '-'
//
// Make 是纯函数：既用于生成新 ID，也用于在索引缺失时探测缓存文件，
// 因此任何改动都等同于一次数据迁移。
func Make(name string) string {
	s := fold(name)

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-', r == '_':
			pendingSep = true
		default:
			// 其它字符（CJK、标点、符号）丢弃，但不打断当前词。
		}
	}
	return b.String()
}

// ID 返回用于落盘的 canonical ID：优先 Make(name)；
// 名称完全由 CJK/符号组成时 Make 为空，此时退化为 "n-" + 名称摘要（同样稳定）。
func ID(name string) string {
	if s := Make(name); s != "" {
		return s
	}
	key := strings.TrimSpace(fold(name))
	if key == "" {
		return ""
	}
	sum := sha1.Sum([]byte(key))
	return "n-" + hex.EncodeToString(sum[:5])
}

// Invert 交换名称的首尾两段（"Mao Hamasaki" -> "Hamasaki Mao"）。
// 只有一段时返回空串：调用方据此判断“没有可用的倒序变体”。
func Invert(name string) string {
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return ""
	}
	parts[0], parts[len(parts)-1] = parts[len(parts)-1], parts[0]
	return strings.Join(parts, " ")
}

func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return lower.String(out)
}
