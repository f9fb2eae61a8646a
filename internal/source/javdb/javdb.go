// Package javdb 实现 JavDB 的影片与演员抓取/解析。
//
// 约束：
// - JavDB 需要先搜索再进入详情页（不能直接拼详情 URL）
// - Parse* 是纯函数（依赖输入 html + pageURL）
package javdb

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/avmeta/internal/domain"
	"github.com/John-Robertt/avmeta/internal/session"
	"github.com/John-Robertt/avmeta/internal/source"
)

const defaultBaseURL = "https://javdb.com"

// Source 同时实现 source.MovieSource 与 source.ActorSource。
type Source struct {
	// BaseURL 允许指定 JavDB 的可用域名（例如镜像站），用于绕过区域不可达。
	// 为空时使用默认的 https://javdb.com。
	BaseURL string
}

func (Source) Name() string { return "javdb" }

func (s Source) baseURL() string {
	u := strings.TrimSpace(s.BaseURL)
	if u == "" {
		return defaultBaseURL
	}
	return strings.TrimRight(u, "/")
}

// ScrapeMovies 对每个番号：{base}/search?q=<CODE>&f=all -> 详情页。
// 搜索结果中没有同番号条目时该番号无数据。
func (s Source) ScrapeMovies(ctx context.Context, sess *session.Session, codes []domain.Code) ([]domain.MovieRecord, error) {
	base := s.baseURL()
	out := make([]domain.MovieRecord, 0, len(codes))
	for _, code := range codes {
		if code == "" {
			continue
		}
		searchURL := base + "/search?q=" + url.QueryEscape(string(code)) + "&f=all"
		p, err := source.Get(ctx, sess, session.Request{URL: searchURL})
		if errors.Is(err, source.ErrPageNotFound) {
			continue
		}
		if err != nil {
			return nil, &source.Error{Source: "javdb", Stage: "fetch", Err: err}
		}
		href, err := FindDetailHref(p.Body, code)
		if err != nil {
			return nil, &source.Error{Source: "javdb", Stage: "parse", Err: err}
		}
		if href == "" {
			continue
		}

		pageURL := resolveURL(base+"/", href)
		p, err = source.Get(ctx, sess, session.Request{URL: pageURL})
		if errors.Is(err, source.ErrPageNotFound) {
			continue
		}
		if err != nil {
			return nil, &source.Error{Source: "javdb", Stage: "fetch", Err: err}
		}
		rec, err := ParseMovie(code, p.Body, pageURL)
		if err != nil {
			return nil, &source.Error{Source: "javdb", Stage: "parse", Err: err}
		}
		out = append(out, rec)
	}
	return out, nil
}

// FindDetailHref 在搜索结果中找到番号完全一致（忽略大小写）的详情页链接；没有时返回空串。
func FindDetailHref(searchHTML []byte, code domain.Code) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(searchHTML))
	if err != nil {
		return "", err
	}
	want := strings.ToUpper(strings.TrimSpace(string(code)))

	var href string
	doc.Find("div.movie-list div.item a.box").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		got := strings.ToUpper(strings.TrimSpace(s.Find("div.video-title strong").First().Text()))
		if got != want {
			return true
		}
		href = strings.TrimSpace(s.AttrOr("href", ""))
		return false
	})
	return href, nil
}

// ParseMovie 把详情页 HTML 解析为部分 MovieRecord。
func ParseMovie(code domain.Code, html []byte, pageURL string) (domain.MovieRecord, error) {
	if code == "" {
		return domain.MovieRecord{}, errors.New("code 不能为空")
	}
	if len(html) == 0 {
		return domain.MovieRecord{}, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return domain.MovieRecord{}, err
	}

	// 标题可能显示中文翻译（current-title），同时提供隐藏的 origin-title。
	// 优先原标题；goquery 不执行 CSS，display:none 的文本仍可读。
	origin := normSpace(doc.Find("h2.title span.origin-title").First().Text())
	current := normSpace(doc.Find("h2.title strong.current-title").First().Text())
	title := origin
	if title == "" {
		title = current
	}
	if title == "" {
		return domain.MovieRecord{}, errors.New("标题为空（疑似非详情页内容）")
	}

	rec := domain.MovieRecord{Code: code, Title: title, Website: strings.TrimSpace(pageURL)}
	if origin != "" && current != "" && current != origin {
		rec.OriginalTitle = origin
		rec.Title = current
	}

	var genres []string
	doc.Find("nav.movie-panel-info .panel-block").Each(func(_ int, s *goquery.Selection) {
		value := s.Find("span.value")
		switch normHeader(s.Find("strong").First().Text()) {
		case "番號", "番号", "ID":
			rec.ContentID = normSpace(value.First().Text())
		case "日期", "Date", "Released Date":
			rec.ReleaseDate = strings.TrimSpace(value.First().Text())
		case "時長", "时长", "Length", "Duration":
			rec.Runtime = firstInt(value.First().Text())
		case "導演", "导演", "Director":
			rec.Director = strings.TrimSpace(value.Find("a").First().Text())
		case "片商", "Maker", "Studio", "Manufacturer":
			rec.Studio = strings.TrimSpace(value.Find("a").First().Text())
		case "發行", "发行", "Publisher", "Label":
			rec.Label = strings.TrimSpace(value.Find("a").First().Text())
		case "系列", "Series":
			rec.Series = strings.TrimSpace(value.Find("a").First().Text())
		case "演員", "演员", "Actor", "Actors", "Actress", "Cast":
			value.Find("a").Each(func(_ int, a *goquery.Selection) {
				// 只保留女优（男优后面跟 strong.symbol.male）。
				if a.Next().Is("strong.symbol.male") {
					return
				}
				if n := strings.TrimSpace(a.Text()); n != "" {
					rec.Actors = append(rec.Actors, domain.ActorRef{Name: n})
				}
			})
		case "類別", "类别", "Tag", "Tags", "Genre", "Genres", "Category", "Categories":
			value.Find("a").Each(func(_ int, a *goquery.Selection) {
				genres = append(genres, strings.TrimSpace(a.Text()))
			})
		}
	})
	rec.Year = yearFromRelease(rec.ReleaseDate)
	rec.Genres = normList(genres)
	rec.Tags = rec.Genres

	if href, ok := doc.Find(".column-video-cover a[data-fancybox='gallery']").First().Attr("href"); ok {
		rec.CoverURL = resolveURL(pageURL, href)
	}
	if rec.CoverURL == "" {
		if src, ok := doc.Find(".column-video-cover img.video-cover").First().Attr("src"); ok {
			rec.CoverURL = resolveURL(pageURL, src)
		}
	}
	// fanart 直接复用 cover，poster 由 fanart 右半边裁切得到。
	rec.FanartURL = rec.CoverURL

	if src, ok := doc.Find("video#preview-video source").First().Attr("src"); ok {
		rec.TrailerURL = resolveURL(pageURL, src)
	}
	var samples []string
	doc.Find(".preview-images a.tile-item").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok && !strings.HasPrefix(href, "#") {
			samples = append(samples, resolveURL(pageURL, href))
		}
	})
	rec.SampleImages = normList(samples)
	return rec, nil
}
