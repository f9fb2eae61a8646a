package javbus

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/avmeta/internal/domain"
)

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}

func findInfoValueAny(doc *goquery.Document, headers []string) string {
	set := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		if h = normHeader(h); h != "" {
			set[h] = struct{}{}
		}
	}
	if len(set) == 0 {
		return ""
	}

	var out string
	doc.Find("div.movie div.info p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rawHeader := normSpace(s.Find("span.header").First().Text())
		if _, ok := set[normHeader(rawHeader)]; !ok {
			return true
		}
		// 该 <p> 内除了 header，还可能包含 <a>（如厂牌），或纯文本（日期/长度）。
		if a := strings.TrimSpace(s.Find("a").First().Text()); a != "" {
			out = a
			return false
		}
		out = strings.TrimSpace(strings.TrimPrefix(normSpace(s.Text()), rawHeader))
		return false
	})
	return out
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

func normHeader(s string) string {
	s = normSpace(s)
	s = strings.TrimSuffix(s, ":")
	s = strings.TrimSuffix(s, "：")
	return strings.TrimSpace(s)
}

func normList(in []string) []string {
	m := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := m[s]; ok {
			continue
		}
		m[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// parseKeywordTags 从 keywords 中剔除已知的 code/studio/series，剩下的视为标签集合。
// keywords 通常形如：CODE,Studio,Series,Tag1,Tag2,...
func parseKeywordTags(doc *goquery.Document, code domain.Code, studio, series string) []string {
	content, ok := doc.Find("meta[name='keywords']").First().Attr("content")
	if !ok || strings.TrimSpace(content) == "" {
		return nil
	}
	out := make([]string, 0, 16)
	for _, p := range strings.Split(content, ",") {
		s := strings.TrimSpace(p)
		if s == "" || strings.EqualFold(s, string(code)) {
			continue
		}
		if (studio != "" && s == studio) || (series != "" && s == series) {
			continue
		}
		out = append(out, s)
	}
	return normList(out)
}

// firstInt 提取第一段连续数字（“155分鐘”“88cm”）。
func firstInt(s string) int {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			break
		}
	}
	if b.Len() == 0 {
		return 0
	}
	n, _ := strconv.Atoi(b.String())
	return n
}

func yearFromRelease(release string) int {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(release))
	if err != nil {
		return 0
	}
	return t.Year()
}
