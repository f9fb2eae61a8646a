package domain

import (
	"strings"
	"time"
)

// MovieRecord 是一部作品合并后的元数据。
//
// 约束：
// - Code 是唯一主键；来源返回的部分记录也必须携带 Code
// - 字段缺失允许为空；“空”的判定见 merge 包
type MovieRecord struct {
	Code      Code   `json:"code"`
	ContentID string `json:"contentId,omitempty"`

	Title         string `json:"title,omitempty"`
	OriginalTitle string `json:"originalTitle,omitempty"`
	Plot          string `json:"plot,omitempty"`

	ReleaseDate string `json:"releaseDate,omitempty"` // ISO date, e.g. "2025-11-27"
	Year        int    `json:"year,omitempty"`
	Runtime     int    `json:"runtime,omitempty"` // 分钟
	Studio      string `json:"studio,omitempty"`
	Label       string `json:"label,omitempty"`
	Series      string `json:"series,omitempty"`
	Director    string `json:"director,omitempty"`

	Genres []string   `json:"genres,omitempty"`
	Tags   []string   `json:"tags,omitempty"`
	Actors []ActorRef `json:"actors,omitempty"`

	CoverURL     string   `json:"coverUrl,omitempty"`
	PosterURL    string   `json:"posterUrl,omitempty"`
	FanartURL    string   `json:"fanartUrl,omitempty"`
	TrailerURL   string   `json:"trailerUrl,omitempty"`
	SampleImages []string `json:"sampleImages,omitempty"`
	Website      string   `json:"website,omitempty"`

	Provenance Provenance `json:"provenance"`
}

// Provenance 记录每个字段最终来自哪个来源，以及对应的本地视频文件。
type Provenance struct {
	FieldSources map[string]string `json:"fieldSources,omitempty"`
	VideoFile    string            `json:"videoFile,omitempty"`
}

// ActorRef 是 MovieRecord 内嵌的演员轻量视图（非权威；权威数据在 ActorRecord）。
type ActorRef struct {
	Name    string `json:"name"`
	AltName string `json:"altName,omitempty"`
	Role    string `json:"role,omitempty"`
	Thumb   string `json:"thumb,omitempty"`

	// 以下字段由演员批处理后的回填（reconcile）写入。
	Birthdate string `json:"birthdate,omitempty"`
	Height    int    `json:"height,omitempty"`
	Bust      int    `json:"bust,omitempty"`
	Waist     int    `json:"waist,omitempty"`
	Hips      int    `json:"hips,omitempty"`
}

// MovieEnvelope 是 {code}.json 的落盘结构。
type MovieEnvelope struct {
	ScrapedAt time.Time   `json:"scrapedAt"`
	Sources   []string    `json:"sources"`
	VideoFile string      `json:"videoFile"`
	Data      MovieRecord `json:"data"`
}

// ActorNames 返回 cast 中去空白、去重后的演员名（保持顺序）。
func (m MovieRecord) ActorNames() []string {
	seen := make(map[string]struct{}, len(m.Actors))
	out := make([]string, 0, len(m.Actors))
	for _, a := range m.Actors {
		n := strings.TrimSpace(a.Name)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
