package javdb

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/avmeta/internal/domain"
	"github.com/John-Robertt/avmeta/internal/session"
	"github.com/John-Robertt/avmeta/internal/source"
)

// ScrapeActor：{base}/search?q=<name>&f=actor -> /actors/{id}。
// 搜索结果中没有同名（含别名）演员时返回 (nil, nil)。
func (s Source) ScrapeActor(ctx context.Context, sess *session.Session, name string) (*domain.ActorRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	base := s.baseURL()
	searchURL := base + "/search?q=" + url.QueryEscape(name) + "&f=actor"
	p, err := source.Get(ctx, sess, session.Request{URL: searchURL})
	if errors.Is(err, source.ErrPageNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &source.Error{Source: "javdb", Stage: "fetch", Err: err}
	}
	href, err := FindActorHref(p.Body, name)
	if err != nil {
		return nil, &source.Error{Source: "javdb", Stage: "parse", Err: err}
	}
	if href == "" {
		return nil, nil
	}

	pageURL := resolveURL(base+"/", href)
	p, err = source.Get(ctx, sess, session.Request{URL: pageURL})
	if errors.Is(err, source.ErrPageNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &source.Error{Source: "javdb", Stage: "fetch", Err: err}
	}
	rec, err := ParseActor(p.Body, pageURL)
	if err != nil {
		return nil, &source.Error{Source: "javdb", Stage: "parse", Err: err}
	}
	return &rec, nil
}

// FindActorHref 在演员搜索结果中找到名称（或 title 里的任一别名）与 name 一致的条目。
func FindActorHref(html []byte, name string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", err
	}
	want := strings.ToLower(normSpace(name))

	var href string
	doc.Find("#actors .actor-box a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		names := splitNames(a.AttrOr("title", ""))
		names = append(names, normSpace(a.Find("strong").First().Text()))
		for _, n := range names {
			if strings.ToLower(n) == want {
				href = strings.TrimSpace(a.AttrOr("href", ""))
				return false
			}
		}
		return true
	})
	return href, nil
}

var bgURL = regexp.MustCompile(`url\(\s*['"]?([^'")]+)['"]?\s*\)`)

// ParseActor 解析演员页。
//
// 页面标题形如 “三上悠亜, Yua Mikami, 鬼頭桃菜”：第一个为 name，第二个为 altName，其余进入 otherNames。
func ParseActor(html []byte, pageURL string) (domain.ActorRecord, error) {
	if len(html) == 0 {
		return domain.ActorRecord{}, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return domain.ActorRecord{}, err
	}

	names := splitNames(doc.Find("span.actor-section-name").First().Text())
	if len(names) == 0 {
		return domain.ActorRecord{}, errors.New("未找到演员名（疑似非演员页）")
	}
	rec := domain.ActorRecord{Name: names[0], Sources: []string{"javdb"}}
	if len(names) > 1 {
		rec.AltName = names[1]
	}
	if len(names) > 2 {
		rec.OtherNames = append([]string(nil), names[2:]...)
	}

	if style, ok := doc.Find(".actor-avatar .avatar").First().Attr("style"); ok {
		if m := bgURL.FindStringSubmatch(style); len(m) == 2 {
			rec.ThumbURL = resolveURL(pageURL, m[1])
		}
	}
	return rec, nil
}

func splitNames(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '，' || r == '、' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = normSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
