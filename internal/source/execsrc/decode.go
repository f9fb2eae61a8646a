package execsrc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/John-Robertt/avmeta/internal/domain"
)

// 子进程往往由脚本语言编写：数字可能是字符串（"160cm"），列表可能是逗号分隔的字符串。
// 这里先解成 map，再用 cast 宽松地取值。

func decodeMovies(b []byte) ([]domain.MovieRecord, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil, nil
	}
	var raw []map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("stdout 不是 JSON 数组：%w", err)
	}
	out := make([]domain.MovieRecord, 0, len(raw))
	for _, m := range raw {
		if m == nil {
			continue
		}
		out = append(out, movieFromMap(m))
	}
	return out, nil
}

func decodeActor(b []byte) (*domain.ActorRecord, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("stdout 不是 JSON 对象：%w", err)
	}
	if m == nil {
		return nil, nil
	}
	rec := domain.ActorRecord{
		Name:       str(m, "name"),
		AltName:    str(m, "altName", "alt_name"),
		OtherNames: strList(m, "otherNames", "other_names", "aliases"),
		Birthdate:  str(m, "birthdate", "birthday"),
		Height:     num(m, "height"),
		Bust:       num(m, "bust"),
		Waist:      num(m, "waist"),
		Hips:       num(m, "hips"),
		ThumbURL:   str(m, "thumbUrl", "thumb_url", "thumb"),
	}
	if rec.Name == "" {
		return nil, nil
	}
	return &rec, nil
}

func movieFromMap(m map[string]any) domain.MovieRecord {
	rec := domain.MovieRecord{
		Code:          domain.Code(str(m, "code")),
		ContentID:     str(m, "contentId", "content_id"),
		Title:         str(m, "title"),
		OriginalTitle: str(m, "originalTitle", "original_title"),
		Plot:          str(m, "plot", "outline"),
		ReleaseDate:   str(m, "releaseDate", "release_date", "release"),
		Year:          num(m, "year"),
		Runtime:       num(m, "runtime"),
		Studio:        str(m, "studio"),
		Label:         str(m, "label"),
		Series:        str(m, "series"),
		Director:      str(m, "director"),
		Genres:        strList(m, "genres"),
		Tags:          strList(m, "tags"),
		CoverURL:      str(m, "coverUrl", "cover_url", "cover"),
		PosterURL:     str(m, "posterUrl", "poster_url", "poster"),
		FanartURL:     str(m, "fanartUrl", "fanart_url", "fanart"),
		TrailerURL:    str(m, "trailerUrl", "trailer_url", "trailer"),
		SampleImages:  strList(m, "sampleImages", "sample_images"),
		Website:       str(m, "website"),
	}
	if rec.Year == 0 && len(rec.ReleaseDate) >= 4 {
		rec.Year = leadingInt(rec.ReleaseDate)
	}
	rec.Actors = actorRefs(m["actors"])
	return rec
}

func lookup(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func str(m map[string]any, keys ...string) string {
	v, ok := lookup(m, keys...)
	if !ok {
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}

// num 接受数字、数字字符串以及 "160cm" 这类带单位的字符串。
func num(m map[string]any, keys ...string) int {
	v, ok := lookup(m, keys...)
	if !ok {
		return 0
	}
	if n, err := cast.ToIntE(v); err == nil {
		return n
	}
	return leadingInt(cast.ToString(v))
}

func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}

// strList 接受字符串数组或逗号分隔的字符串。
func strList(m map[string]any, keys ...string) []string {
	v, ok := lookup(m, keys...)
	if !ok {
		return nil
	}
	var items []string
	if s, isStr := v.(string); isStr {
		items = strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '，' })
	} else {
		items = cast.ToStringSlice(v)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// actorRefs 接受字符串数组（只有名字）或对象数组。
func actorRefs(v any) []domain.ActorRef {
	items, ok := v.([]any)
	if !ok {
		if s, isStr := v.(string); isStr {
			items = nil
			for _, n := range strings.Split(s, ",") {
				items = append(items, n)
			}
		} else {
			return nil
		}
	}
	out := make([]domain.ActorRef, 0, len(items))
	for _, it := range items {
		switch x := it.(type) {
		case string:
			if n := strings.TrimSpace(x); n != "" {
				out = append(out, domain.ActorRef{Name: n})
			}
		case map[string]any:
			ref := domain.ActorRef{
				Name:    str(x, "name"),
				AltName: str(x, "altName", "alt_name"),
				Role:    str(x, "role"),
				Thumb:   str(x, "thumb", "thumbUrl"),
			}
			if ref.Name != "" {
				out = append(out, ref)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
