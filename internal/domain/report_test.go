package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestBatchReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	r := BatchReport{
		Mode:       ModeMovies,
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Items: []ItemResult{
			{Key: "B-02", Status: StatusCached},
			{Key: "", Status: StatusFailed},
			{Key: "A-01", Status: StatusScraped},
			{Key: "C-03", Status: StatusFailed},
		},
	}

	r.Finalize()

	if r.Items[0].Key != "A-01" || r.Items[1].Key != "B-02" || r.Items[2].Key != "C-03" || r.Items[3].Key != "" {
		t.Fatalf("items 排序不符合契约：%+v", r.Items)
	}
	want := BatchSummary{Total: 4, Scraped: 1, Cached: 1, Failed: 2}
	if r.Summary != want {
		t.Fatalf("summary 统计不正确：got=%+v want=%+v", r.Summary, want)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte(`"started_at":"2026-02-09T02:00:00Z"`)) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
	if !bytes.Contains(b, []byte(`"sources":[]`)) {
		t.Fatalf("nil sources 应输出为 []：%s", string(b))
	}
}

func TestActorRecord_NameVariants(t *testing.T) {
	a := ActorRecord{
		Name:       " Mao Hamasaki ",
		AltName:    "浜崎真緒，はまさき まお, ",
		OtherNames: []string{"", "Hamasaki Mao"},
	}
	got := a.NameVariants()
	want := []string{"Mao Hamasaki", "浜崎真緒", "はまさき まお", "Hamasaki Mao"}
	if len(got) != len(want) {
		t.Fatalf("期望 %v，实际 %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("期望 %v，实际 %v", want, got)
		}
	}
}

func TestParseCode_RejectsPathLike(t *testing.T) {
	for _, s := range []string{"", " ", "..", "a/b", `a\b`} {
		if _, ok := ParseCode(s); ok {
			t.Fatalf("期望拒绝 %q", s)
		}
	}
	if c, ok := ParseCode(" abp-123 "); !ok || c != "abp-123" {
		t.Fatalf("期望 abp-123，实际 %q ok=%v", c, ok)
	}
}
