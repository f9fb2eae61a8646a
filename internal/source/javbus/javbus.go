// Package javbus 实现 JavBus 的影片详情与演员页面抓取/解析。
package javbus

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

const defaultBaseURL = "https://www.javbus.com"

// Source 同时实现 source.MovieSource 与 source.ActorSource。
//
// 约束：
// - 抓取只通过会话进行（共享 cookie 与请求额度）
// - Parse* 是纯函数：相同输入 => 相同输出
type Source struct {
	// BaseURL 为空时使用 https://www.javbus.com。
	BaseURL string
}

func (Source) Name() string { return "javbus" }

func (s Source) baseURL() string {
	u := strings.TrimSpace(s.BaseURL)
	if u == "" {
		return defaultBaseURL
	}
	return strings.TrimRight(u, "/")
}

// ScrapeMovies 逐个进入详情页：{base}/{CODE}。404 视为该番号无数据。
func (s Source) ScrapeMovies(ctx context.Context, sess *session.Session, codes []domain.Code) ([]domain.MovieRecord, error) {
	out := make([]domain.MovieRecord, 0, len(codes))
	for _, code := range codes {
		if code == "" {
			continue
		}
		pageURL := s.baseURL() + "/" + url.PathEscape(string(code))
		html, err := s.fetchDetail(ctx, sess, pageURL)
		if errors.Is(err, source.ErrPageNotFound) {
			continue
		}
		if err != nil {
			return nil, &source.Error{Source: "javbus", Stage: "fetch", Err: err}
		}
		rec, err := ParseMovie(code, html, pageURL)
		if err != nil {
			return nil, &source.Error{Source: "javbus", Stage: "parse", Err: err}
		}
		out = append(out, rec)
	}
	return out, nil
}

// fetchDetail 禁用重定向读取详情页。
//
// 未通过成年确认时站点会 302 到 /doc/driver-verify，但 302 的 body 常常仍是完整详情页；
// 只有 body 本身是验证页时才视为被拦截。
func (s Source) fetchDetail(ctx context.Context, sess *session.Session, pageURL string) ([]byte, error) {
	p, err := source.Get(ctx, sess, session.Request{URL: pageURL, NoRedirect: true})
	if err != nil {
		return nil, err
	}
	if p.StatusCode >= 300 && p.StatusCode < 400 {
		if strings.Contains(p.Location, "/doc/driver-verify") &&
			(bytes.Contains(p.Body, []byte(`id="ageVerify"`)) || bytes.Contains(p.Body, []byte("/doc/driver-verify"))) {
			return nil, &source.BlockedError{URL: p.Location, Reason: "driver-verify"}
		}
	}
	if len(p.Body) == 0 {
		return nil, errors.New("empty response body")
	}
	return p.Body, nil
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

	// 先校验“是不是详情页”：识别码必须存在且匹配（避免把验证页/拦截页当成成功解析）。
	id := strings.TrimSpace(findInfoValueAny(doc, []string{"識別碼", "识别码", "ID"}))
	if id == "" {
		return domain.MovieRecord{}, errors.New("未找到識別碼（疑似返回了验证页/非详情页内容）")
	}
	if !strings.EqualFold(id, string(code)) {
		return domain.MovieRecord{}, errors.New("識別碼不匹配（疑似跳转/返回了其它页面）")
	}

	title := normSpace(doc.Find("h3").First().Text())
	if title == "" {
		return domain.MovieRecord{}, errors.New("标题为空（疑似返回了验证页/非详情页内容）")
	}
	if len(title) >= len(code) && strings.EqualFold(title[:len(code)], string(code)) {
		title = strings.TrimSpace(title[len(code):])
	}

	release := findInfoValueAny(doc, []string{"發行日期", "发行日期", "Release Date", "発売日"})
	runtimeM := firstInt(findInfoValueAny(doc, []string{"長度", "长度", "Length", "時長", "时长", "Duration"}))

	maker := findInfoValueAny(doc, []string{"製作商", "制作商", "Studio", "Maker", "Manufacturer"})
	label := findInfoValueAny(doc, []string{"發行商", "发行商", "Label", "Publisher"})
	// “發行商”更像对外的厂牌标识；缺失时再回退“製作商”。
	studio := label
	if studio == "" {
		studio = maker
	}
	series := findInfoValueAny(doc, []string{"系列", "Series"})
	director := findInfoValueAny(doc, []string{"導演", "导演", "Director"})

	var actors []domain.ActorRef
	seen := map[string]struct{}{}
	doc.Find("div.star-name").Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.Find("a").First().Text())
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		ref := domain.ActorRef{Name: name}
		if src, ok := s.Closest("li").Find("img").First().Attr("src"); ok && !strings.Contains(src, "nowprinting") {
			ref.Thumb = resolveURL(pageURL, src)
		}
		actors = append(actors, ref)
	})

	genres := parseKeywordTags(doc, code, studio, series)
	if len(genres) == 0 {
		// 兜底：keywords 缺失时回退从 /genre/ 链接提取（可能包含噪音标签）。
		doc.Find("span.genre a").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			if strings.Contains(href, "/genre/") {
				genres = append(genres, strings.TrimSpace(s.Text()))
			}
		})
	}
	genres = normList(genres)

	coverURL := ""
	if href, ok := doc.Find("a.bigImage").First().Attr("href"); ok {
		coverURL = resolveURL(pageURL, href)
	}
	if coverURL == "" {
		if src, ok := doc.Find("div.screencap img").First().Attr("src"); ok {
			coverURL = resolveURL(pageURL, src)
		}
	}

	var samples []string
	doc.Find("#sample-waterfall a.sample-box").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			samples = append(samples, resolveURL(pageURL, href))
		}
	})
	samples = normList(samples)

	// fanart 采用背景大图（优先 cover），poster 由 fanart 右半边裁切得到。
	fanartURL := coverURL
	if fanartURL == "" && len(samples) > 0 {
		fanartURL = samples[0]
	}

	return domain.MovieRecord{
		Code:         code,
		Title:        title,
		ReleaseDate:  release,
		Year:         yearFromRelease(release),
		Runtime:      runtimeM,
		Studio:       studio,
		Label:        label,
		Series:       series,
		Director:     director,
		Genres:       genres,
		Tags:         genres,
		Actors:       actors,
		CoverURL:     coverURL,
		FanartURL:    fanartURL,
		SampleImages: samples,
		Website:      strings.TrimSpace(pageURL),
	}, nil
}
