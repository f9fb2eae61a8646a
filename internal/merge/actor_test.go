package merge

import (
	"reflect"
	"testing"
	"time"

	"github.com/John-Robertt/avmeta/internal/domain"
)

func TestActorAcrossSources_FirstNonEmptyByPriority(t *testing.T) {
	a := ActorInput{Source: "a", Record: domain.ActorRecord{Name: "Mao Hamasaki", Height: 165}}
	b := ActorInput{Source: "b", Record: domain.ActorRecord{Name: "Hamasaki Mao", Height: 160, Bust: 88}}

	got := ActorAcrossSources([]ActorInput{a, b}, []string{"a", "b"})
	if got.Name != "Mao Hamasaki" || got.Height != 165 || got.Bust != 88 {
		t.Fatalf("合并结果不符合预期：%+v", got)
	}
	if !reflect.DeepEqual(got.Sources, []string{"a", "b"}) {
		t.Fatalf("期望 sources=[a b]，实际 %v", got.Sources)
	}
}

func TestActorAcrossSources_IndependentOfInputOrder(t *testing.T) {
	in := []ActorInput{
		{Source: "javdb", Record: domain.ActorRecord{Name: "X", Birthdate: "1990-01-01", OtherNames: []string{"x1"}}},
		{Source: "javbus", Record: domain.ActorRecord{Name: "Y", Height: 150, OtherNames: []string{"x2"}}},
		{Source: "zzz", Record: domain.ActorRecord{Name: "Z", Hips: 90}},
	}
	priority := []string{"javbus", "javdb"}

	first := ActorAcrossSources(in, priority)
	reversed := []ActorInput{in[2], in[1], in[0]}
	second := ActorAcrossSources(reversed, priority)

	if first.Name != "Y" {
		t.Fatalf("期望 name 来自 javbus，实际 %q", first.Name)
	}
	if first.Name != second.Name || first.Birthdate != second.Birthdate || first.Hips != second.Hips ||
		!reflect.DeepEqual(first.Sources, second.Sources) {
		t.Fatalf("结果依赖输入顺序：%+v vs %+v", first, second)
	}
	if !reflect.DeepEqual(first.Sources, []string{"javbus", "javdb", "zzz"}) {
		t.Fatalf("未列出的来源应排在最后：%v", first.Sources)
	}
	if len(first.OtherNames) != 2 {
		t.Fatalf("期望 otherNames 取并集，实际 %v", first.OtherNames)
	}
}

func TestActorAcrossSources_NonContributingSourceNotInProvenance(t *testing.T) {
	in := []ActorInput{
		{Source: "a", Record: domain.ActorRecord{Name: "X", Height: 150}},
		{Source: "b", Record: domain.ActorRecord{Name: "Y", Height: 160}},
	}
	got := ActorAcrossSources(in, []string{"a", "b"})
	if !reflect.DeepEqual(got.Sources, []string{"a"}) {
		t.Fatalf("期望只有 a 贡献字段，实际 %v", got.Sources)
	}
}

func TestActorLocalWins_EmptyScrapedIsIdentity(t *testing.T) {
	local := domain.ActorRecord{
		ID:         "mao-hamasaki",
		Name:       "Mao Hamasaki",
		AltName:    "浜崎真緒",
		OtherNames: []string{"Hamasaki Mao"},
		Height:     150,
		ThumbLocal: "mao.jpg",
		Thumb:      "/actors/thumbs/mao.jpg",
		Sources:    []string{"javbus"},
		LastUpdate: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	got := ActorLocalWins(local, domain.ActorRecord{})
	if !reflect.DeepEqual(got, local) {
		t.Fatalf("期望原样返回本地记录\n期望 %+v\n实际 %+v", local, got)
	}
}

func TestActorLocalWins_LocalNonEmptyWins(t *testing.T) {
	local := domain.ActorRecord{ID: "x", Name: "Local", Height: 150}
	scraped := domain.ActorRecord{Name: "Remote", Height: 160, Bust: 88, OtherNames: []string{"R"}, Sources: []string{"javdb"}}

	got := ActorLocalWins(local, scraped)
	if got.Name != "Local" || got.Height != 150 {
		t.Fatalf("本地非空字段应胜出：%+v", got)
	}
	if got.Bust != 88 {
		t.Fatalf("本地空字段应回退到刮削值：%+v", got)
	}
	if got.ID != "x" {
		t.Fatalf("期望保留本地 ID，实际 %q", got.ID)
	}
	if !reflect.DeepEqual(got.OtherNames, []string{"R"}) || !reflect.DeepEqual(got.Sources, []string{"javdb"}) {
		t.Fatalf("otherNames/sources 应取并集：%+v", got)
	}
}

func TestActorLocalWins_ManualUploadPinsThumb(t *testing.T) {
	local := domain.ActorRecord{Name: "X", ThumbLocal: "x.jpg"}
	scraped := domain.ActorRecord{Name: "X", ThumbURL: "https://img/x.jpg", Thumb: "https://img/x.jpg"}

	got := ActorLocalWins(local, scraped)
	if got.ThumbURL != "" || got.Thumb != "" {
		t.Fatalf("手动上传头像时不应引入远端 thumb：%+v", got)
	}
	if ResolveThumb(got) != LocalThumbPrefix+"x.jpg" {
		t.Fatalf("期望解析为本地头像，实际 %q", ResolveThumb(got))
	}
}

func TestResolveThumb(t *testing.T) {
	cases := []struct {
		name string
		in   domain.ActorRecord
		want string
	}{
		{"thumbUrl 优先", domain.ActorRecord{ThumbURL: "https://a/1.jpg", Thumb: "https://b/2.jpg", ThumbLocal: "3.jpg"}, "https://a/1.jpg"},
		{"远端 thumb", domain.ActorRecord{Thumb: "https://b/2.jpg", ThumbLocal: "3.jpg"}, "https://b/2.jpg"},
		{"本地上传", domain.ActorRecord{Thumb: "/actors/thumbs/old.jpg", ThumbLocal: "3.jpg"}, "/actors/thumbs/3.jpg"},
		{"都没有", domain.ActorRecord{Thumb: "/actors/thumbs/old.jpg"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveThumb(tc.in); got != tc.want {
				t.Fatalf("期望 %q，实际 %q", tc.want, got)
			}
		})
	}
}

func TestActorComplete(t *testing.T) {
	full := domain.ActorRecord{
		Name: "X", AltName: "エックス", Birthdate: "1990-01-01",
		Height: 160, Bust: 88, Waist: 58, Hips: 86, Thumb: "https://img/x.jpg",
	}
	if !ActorComplete(full) {
		t.Fatalf("期望完整，缺失：%v", MissingActorFields(full))
	}

	knockouts := []struct {
		field string
		clear func(*domain.ActorRecord)
	}{
		{"name", func(a *domain.ActorRecord) { a.Name = " " }},
		{"altName", func(a *domain.ActorRecord) { a.AltName = "" }},
		{"birthdate", func(a *domain.ActorRecord) { a.Birthdate = "" }},
		{"height", func(a *domain.ActorRecord) { a.Height = 0 }},
		{"bust", func(a *domain.ActorRecord) { a.Bust = 0 }},
		{"waist", func(a *domain.ActorRecord) { a.Waist = 0 }},
		{"hips", func(a *domain.ActorRecord) { a.Hips = 0 }},
		{"thumb", func(a *domain.ActorRecord) { a.Thumb = "" }},
	}
	for _, k := range knockouts {
		t.Run(k.field, func(t *testing.T) {
			missing := full
			k.clear(&missing)
			if ActorComplete(missing) {
				t.Fatalf("缺少 %s 时不应判定为完整", k.field)
			}
			if got := MissingActorFields(missing); !reflect.DeepEqual(got, []string{k.field}) {
				t.Fatalf("期望缺失 [%s]，实际 %v", k.field, got)
			}
		})
	}

	// 已完整的记录再与任意结果做本地优先合并，仍然完整且字段不变。
	again := ActorLocalWins(full, domain.ActorRecord{Name: "Other", Height: 170})
	if !ActorComplete(again) || again.Height != 160 || again.Name != "X" {
		t.Fatalf("完整记录合并后应保持不变：%+v", again)
	}
}
