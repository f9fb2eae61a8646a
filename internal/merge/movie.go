package merge

import (
	"strings"

	"github.com/John-Robertt/avmeta/internal/domain"
)

// MovieInput 是一个来源对某番号的一次成功刮削结果（部分记录）。
type MovieInput struct {
	Source string
	Record domain.MovieRecord
}

type movieField struct {
	name  string
	empty func(m *domain.MovieRecord) bool
	copy  func(dst, src *domain.MovieRecord)
}

func strField(name string, get func(m *domain.MovieRecord) *string) movieField {
	return movieField{
		name:  name,
		empty: func(m *domain.MovieRecord) bool { return emptyString(*get(m)) },
		copy:  func(d, s *domain.MovieRecord) { *get(d) = strings.TrimSpace(*get(s)) },
	}
}

func intField(name string, get func(m *domain.MovieRecord) *int) movieField {
	return movieField{
		name:  name,
		empty: func(m *domain.MovieRecord) bool { return *get(m) == 0 },
		copy:  func(d, s *domain.MovieRecord) { *get(d) = *get(s) },
	}
}

// 列表字段整体取自胜出来源，不做跨来源拼接。
func listField(name string, get func(m *domain.MovieRecord) *[]string) movieField {
	return movieField{
		name:  name,
		empty: func(m *domain.MovieRecord) bool { return len(*get(m)) == 0 },
		copy:  func(d, s *domain.MovieRecord) { *get(d) = cloneStrings(*get(s)) },
	}
}

var movieFields = []movieField{
	strField("contentId", func(m *domain.MovieRecord) *string { return &m.ContentID }),
	strField("title", func(m *domain.MovieRecord) *string { return &m.Title }),
	strField("originalTitle", func(m *domain.MovieRecord) *string { return &m.OriginalTitle }),
	strField("plot", func(m *domain.MovieRecord) *string { return &m.Plot }),
	strField("releaseDate", func(m *domain.MovieRecord) *string { return &m.ReleaseDate }),
	intField("year", func(m *domain.MovieRecord) *int { return &m.Year }),
	intField("runtime", func(m *domain.MovieRecord) *int { return &m.Runtime }),
	strField("studio", func(m *domain.MovieRecord) *string { return &m.Studio }),
	strField("label", func(m *domain.MovieRecord) *string { return &m.Label }),
	strField("series", func(m *domain.MovieRecord) *string { return &m.Series }),
	strField("director", func(m *domain.MovieRecord) *string { return &m.Director }),
	listField("genres", func(m *domain.MovieRecord) *[]string { return &m.Genres }),
	listField("tags", func(m *domain.MovieRecord) *[]string { return &m.Tags }),
	{
		name:  "actors",
		empty: func(m *domain.MovieRecord) bool { return len(m.Actors) == 0 },
		copy: func(d, s *domain.MovieRecord) {
			d.Actors = append([]domain.ActorRef(nil), s.Actors...)
		},
	},
	strField("coverUrl", func(m *domain.MovieRecord) *string { return &m.CoverURL }),
	strField("posterUrl", func(m *domain.MovieRecord) *string { return &m.PosterURL }),
	strField("fanartUrl", func(m *domain.MovieRecord) *string { return &m.FanartURL }),
	strField("trailerUrl", func(m *domain.MovieRecord) *string { return &m.TrailerURL }),
	listField("sampleImages", func(m *domain.MovieRecord) *[]string { return &m.SampleImages }),
	strField("website", func(m *domain.MovieRecord) *string { return &m.Website }),
}

// MovieFieldNames 返回可在 field_priority 中配置的字段名（稳定顺序）。
func MovieFieldNames() []string {
	out := make([]string, 0, len(movieFields))
	for _, f := range movieFields {
		out = append(out, f.name)
	}
	return out
}

// IsMovieField 判断 name 是否为可合并的影片字段名。
func IsMovieField(name string) bool {
	for _, f := range movieFields {
		if f.name == name {
			return true
		}
	}
	return false
}

// Movies 按字段优先级合并同一番号的多个部分记录。
//
// 规则：
//   - 每个字段的来源顺序为 overrides[field]（若配置）否则 order；覆盖未列出的来源按 order 排在其后，
//     order 也未列出的按名称排在最后
//   - 第一个给出非空值的来源胜出；列表字段（genres/tags/actors/sampleImages）整体取自胜出来源
//   - Provenance.FieldSources 记录每个字段的胜出来源
//
// 返回合并后的记录与按 order 排列的“至少贡献一个字段”的来源列表。
// inputs 为空时返回只带 code 的记录与 nil。
func Movies(code domain.Code, inputs []MovieInput, order []string, overrides map[string][]string) (domain.MovieRecord, []string) {
	out := domain.MovieRecord{Code: code}

	bySource := make(map[string]*domain.MovieRecord, len(inputs))
	names := make([]string, 0, len(inputs))
	for i := range inputs {
		name := strings.ToLower(strings.TrimSpace(inputs[i].Source))
		if _, ok := bySource[name]; ok {
			continue
		}
		bySource[name] = &inputs[i].Record
		names = append(names, name)
	}
	if len(names) == 0 {
		return out, nil
	}

	baseOrder := orderSources(names, order)
	winners := make(map[string]string, len(movieFields))
	contributed := make(map[string]bool, len(names))

	for _, f := range movieFields {
		fieldOrder := baseOrder
		if ov := overrides[f.name]; len(ov) > 0 {
			fieldOrder = orderSources(names, append(append([]string(nil), ov...), baseOrder...))
		}
		for _, src := range fieldOrder {
			r := bySource[src]
			if f.empty(r) {
				continue
			}
			f.copy(&out, r)
			winners[f.name] = src
			contributed[src] = true
			break
		}
	}

	if len(winners) > 0 {
		out.Provenance.FieldSources = winners
	}

	var sources []string
	for _, src := range baseOrder {
		if contributed[src] {
			sources = append(sources, src)
		}
	}
	return out, sources
}
