package merge

import (
	"reflect"
	"testing"

	"github.com/John-Robertt/avmeta/internal/domain"
)

func TestMovies_PerFieldPriorityAndProvenance(t *testing.T) {
	in := []MovieInput{
		{Source: "javdb", Record: domain.MovieRecord{Code: "ABC-123", Title: "DB 标题", Runtime: 120, Genres: []string{"g1", "g2"}}},
		{Source: "javbus", Record: domain.MovieRecord{Code: "ABC-123", Title: "BUS 标题", Studio: "S1", Genres: []string{"g3"}}},
	}
	overrides := map[string][]string{"title": {"javdb"}}

	got, sources := Movies("ABC-123", in, []string{"javbus", "javdb"}, overrides)

	if got.Code != "ABC-123" {
		t.Fatalf("期望 code=ABC-123，实际 %q", got.Code)
	}
	if got.Title != "DB 标题" {
		t.Fatalf("title 应按字段覆盖顺序取 javdb，实际 %q", got.Title)
	}
	if got.Studio != "S1" || got.Runtime != 120 {
		t.Fatalf("空字段应回退到下一个来源：%+v", got)
	}
	if !reflect.DeepEqual(got.Genres, []string{"g3"}) {
		t.Fatalf("列表字段应整体取自胜出来源，实际 %v", got.Genres)
	}
	wantFS := map[string]string{"title": "javdb", "runtime": "javdb", "studio": "javbus", "genres": "javbus"}
	if !reflect.DeepEqual(got.Provenance.FieldSources, wantFS) {
		t.Fatalf("fieldSources 不符合预期：%v", got.Provenance.FieldSources)
	}
	if !reflect.DeepEqual(sources, []string{"javbus", "javdb"}) {
		t.Fatalf("期望 sources=[javbus javdb]，实际 %v", sources)
	}
}

func TestMovies_OverrideFallsBackToGlobalOrder(t *testing.T) {
	in := []MovieInput{
		{Source: "javbus", Record: domain.MovieRecord{Title: "BUS"}},
		{Source: "exec1", Record: domain.MovieRecord{Title: "EXEC"}},
		{Source: "javdb", Record: domain.MovieRecord{Studio: "DB"}},
	}
	// 全局顺序与名称顺序不同：exec1 按名称会排在 javbus 前面。
	got, _ := Movies("X-1", in, []string{"javbus", "exec1", "javdb"}, map[string][]string{"title": {"javdb"}})

	if got.Title != "BUS" || got.Provenance.FieldSources["title"] != "javbus" {
		t.Fatalf("覆盖来源为空时应按全局顺序回退到 javbus，实际 %q (%s)", got.Title, got.Provenance.FieldSources["title"])
	}
}

func TestMovies_IndependentOfInputOrder(t *testing.T) {
	a := MovieInput{Source: "a", Record: domain.MovieRecord{Title: "A", Plot: "pa"}}
	b := MovieInput{Source: "b", Record: domain.MovieRecord{Title: "B", Series: "sb"}}
	c := MovieInput{Source: "c", Record: domain.MovieRecord{Director: "dc", Plot: "pc"}}

	order := []string{"b", "a"}
	x, xs := Movies("X-1", []MovieInput{a, b, c}, order, nil)
	y, ys := Movies("X-1", []MovieInput{c, b, a}, order, nil)

	if !reflect.DeepEqual(x, y) || !reflect.DeepEqual(xs, ys) {
		t.Fatalf("结果依赖输入顺序：\n%+v %v\n%+v %v", x, xs, y, ys)
	}
	if x.Title != "B" || x.Plot != "pa" || x.Director != "dc" {
		t.Fatalf("合并结果不符合预期：%+v", x)
	}
}

func TestMovies_EmptyInputsReturnsStub(t *testing.T) {
	got, sources := Movies("X-1", nil, []string{"a"}, nil)
	if got.Code != "X-1" || got.Title != "" || got.Provenance.FieldSources != nil {
		t.Fatalf("期望只带 code 的记录，实际 %+v", got)
	}
	if sources != nil {
		t.Fatalf("期望 sources=nil，实际 %v", sources)
	}
}

func TestMovieFieldNames(t *testing.T) {
	names := MovieFieldNames()
	if len(names) == 0 || !IsMovieField("title") || IsMovieField("code") {
		t.Fatalf("字段表不符合预期：%v", names)
	}
}
