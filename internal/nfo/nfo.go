// Package nfo 提供演员缓存（{id}.nfo）的编解码，以及导出到媒体库时的 movie NFO 编码。
package nfo

import (
	"encoding/xml"
	"strings"

	"github.com/John-Robertt/avmeta/internal/domain"
)

const (
	// DefaultCountry / DefaultMPAA 不对外暴露配置；保持最小但够用。
	DefaultCountry = "JP"
	DefaultMPAA    = "R18+"
)

// 约定：输出带 standalone="yes" 的 XML 头，便于与常见刮削器产物兼容。
const header = `<?xml version="1.0" encoding="UTF-8" standalone="yes" ?>` + "\n"

type movie struct {
	XMLName xml.Name `xml:"movie"`

	Title         string `xml:"title"`
	OriginalTitle string `xml:"originaltitle,omitempty"`
	SortTitle     string `xml:"sorttitle"`
	Num           string `xml:"num"`
	Plot          string `xml:"plot,omitempty"`

	Studio   string `xml:"studio,omitempty"`
	Label    string `xml:"label,omitempty"`
	Set      string `xml:"set,omitempty"`
	Director string `xml:"director,omitempty"`

	Release   string `xml:"release,omitempty"`
	Premiered string `xml:"premiered,omitempty"`
	Year      int    `xml:"year,omitempty"`
	Runtime   int    `xml:"runtime,omitempty"`

	MPAA    string `xml:"mpaa,omitempty"`
	Country string `xml:"country,omitempty"`

	Poster string `xml:"poster,omitempty"`
	Thumb  string `xml:"thumb,omitempty"`
	Fanart string `xml:"fanart,omitempty"`

	Actors []movieActor `xml:"actor,omitempty"`
	Tags   []string     `xml:"tag,omitempty"`
	Genres []string     `xml:"genre,omitempty"`

	Cover   string `xml:"cover,omitempty"`
	Trailer string `xml:"trailer,omitempty"`
	Website string `xml:"website,omitempty"`
}

type movieActor struct {
	Name    string `xml:"name"`
	AltName string `xml:"altname,omitempty"`
	Role    string `xml:"role,omitempty"`
	Thumb   string `xml:"thumb,omitempty"`
}

// EncodeMovie 把 MovieRecord 转成 Kodi/Jellyfin/Emby 可读取的 NFO（XML）。
//
// 规则：
// - 字段缺失允许为空；但输出结构尽量稳定（去空白、去重、保持输入顺序）
// - title 为空时回退到 CODE（避免生成空 title）
// - poster/fanart 固定指向同目录下的 poster.jpg/fanart.jpg（由 library 包生成）
func EncodeMovie(m domain.MovieRecord) ([]byte, error) {
	code := strings.TrimSpace(string(m.Code))
	title := strings.TrimSpace(m.Title)
	if title == "" {
		title = code
	} else if code != "" && !strings.HasPrefix(title, code) {
		// 约定：title 以 CODE 开头（更利于媒体库识别与展示）。
		title = code + " " + title
	}

	doc := movie{
		Title:         title,
		OriginalTitle: strings.TrimSpace(m.OriginalTitle),
		SortTitle:     code,
		Num:           code,
		Plot:          strings.TrimSpace(m.Plot),

		Studio:   strings.TrimSpace(m.Studio),
		Label:    strings.TrimSpace(m.Label),
		Set:      strings.TrimSpace(m.Series),
		Director: strings.TrimSpace(m.Director),

		Release:   strings.TrimSpace(m.ReleaseDate),
		Premiered: strings.TrimSpace(m.ReleaseDate),
		Year:      m.Year,
		Runtime:   m.Runtime,

		MPAA:    DefaultMPAA,
		Country: DefaultCountry,

		Poster: "poster.jpg",
		Thumb:  "poster.jpg",
		Fanart: "fanart.jpg",

		Tags:   normList(m.Tags),
		Genres: normList(m.Genres),

		Cover:   strings.TrimSpace(m.CoverURL),
		Trailer: strings.TrimSpace(m.TrailerURL),
		Website: strings.TrimSpace(m.Website),
	}

	seen := make(map[string]struct{}, len(m.Actors))
	for _, a := range m.Actors {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		role := strings.TrimSpace(a.Role)
		if role == "" {
			role = name
		}
		doc.Actors = append(doc.Actors, movieActor{
			Name:    name,
			AltName: strings.TrimSpace(a.AltName),
			Role:    role,
			Thumb:   strings.TrimSpace(a.Thumb),
		})
	}

	b, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(header), b...), nil
}

func normList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
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
