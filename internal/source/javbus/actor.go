package javbus

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/avmeta/internal/domain"
	"github.com/John-Robertt/avmeta/internal/session"
	"github.com/John-Robertt/avmeta/internal/source"
)

// ScrapeActor 搜索女优（/searchstar/{name}），再进入 /star/{id} 解析资料。
// 搜索无结果或结果中没有同名者时返回 (nil, nil)。
func (s Source) ScrapeActor(ctx context.Context, sess *session.Session, name string) (*domain.ActorRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	searchURL := s.baseURL() + "/searchstar/" + url.PathEscape(name)
	p, err := source.Get(ctx, sess, session.Request{URL: searchURL})
	if errors.Is(err, source.ErrPageNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &source.Error{Source: "javbus", Stage: "fetch", Err: err}
	}
	href, err := FindStarHref(p.Body, name)
	if err != nil {
		return nil, &source.Error{Source: "javbus", Stage: "parse", Err: err}
	}
	if href == "" {
		return nil, nil
	}

	starURL := resolveURL(searchURL, href)
	p, err = source.Get(ctx, sess, session.Request{URL: starURL})
	if errors.Is(err, source.ErrPageNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &source.Error{Source: "javbus", Stage: "fetch", Err: err}
	}
	rec, err := ParseStar(p.Body, starURL)
	if err != nil {
		return nil, &source.Error{Source: "javbus", Stage: "parse", Err: err}
	}
	return &rec, nil
}

// FindStarHref 在搜索结果中找到与 name 同名（忽略大小写/空白）的演员链接。
// 只有一个结果时直接采用；否则要求同名。没有命中返回空串。
func FindStarHref(html []byte, name string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", err
	}
	want := strings.ToLower(normSpace(name))

	boxes := doc.Find("a.avatar-box")
	var href string
	boxes.EachWithBreak(func(_ int, a *goquery.Selection) bool {
		got := strings.ToLower(normSpace(a.Find("span").First().Text()))
		if got == "" {
			got = strings.ToLower(normSpace(a.Find("img").First().AttrOr("title", "")))
		}
		if got != want {
			return true
		}
		href = strings.TrimSpace(a.AttrOr("href", ""))
		return false
	})
	if href == "" && boxes.Length() == 1 {
		href = strings.TrimSpace(boxes.First().AttrOr("href", ""))
	}
	return href, nil
}

// ParseStar 解析演员页（/star/{id}）。
func ParseStar(html []byte, pageURL string) (domain.ActorRecord, error) {
	if len(html) == 0 {
		return domain.ActorRecord{}, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return domain.ActorRecord{}, err
	}

	box := doc.Find("div.avatar-box").First()
	name := normSpace(box.Find("span.pb10").First().Text())
	if name == "" {
		name = normSpace(box.Find("img").First().AttrOr("title", ""))
	}
	if name == "" {
		return domain.ActorRecord{}, errors.New("未找到演员名（疑似非演员页）")
	}

	rec := domain.ActorRecord{Name: name, Sources: []string{"javbus"}}
	if src, ok := box.Find("div.photo-frame img").First().Attr("src"); ok && !strings.Contains(src, "nowprinting") {
		rec.ThumbURL = resolveURL(pageURL, src)
	}

	box.Find("div.photo-info p").Each(func(_ int, p *goquery.Selection) {
		k, v, ok := splitKV(normSpace(p.Text()))
		if !ok {
			return
		}
		switch k {
		case "生日", "Birthday", "生年月日":
			rec.Birthdate = v
		case "身高", "Height", "身長":
			rec.Height = firstInt(v)
		case "胸圍", "胸围", "Bust", "バスト":
			rec.Bust = firstInt(v)
		case "腰圍", "腰围", "Waist", "ウエスト":
			rec.Waist = firstInt(v)
		case "臀圍", "臀围", "Hips", "ヒップ":
			rec.Hips = firstInt(v)
		}
	})
	return rec, nil
}

func splitKV(s string) (string, string, bool) {
	i := strings.IndexAny(s, ":：")
	if i < 0 {
		return "", "", false
	}
	k := strings.TrimSpace(s[:i])
	_, size := utf8.DecodeRuneInString(s[i:])
	v := strings.TrimSpace(s[i+size:])
	if k == "" || v == "" {
		return "", "", false
	}
	return k, v, true
}
