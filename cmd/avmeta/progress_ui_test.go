package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/avmeta/internal/config"
	"github.com/John-Robertt/avmeta/internal/domain"
)

func TestFormatFallbackNote(t *testing.T) {
	res := domain.ItemResult{
		Status: domain.StatusScraped,
		Attempts: []domain.SourceAttempt{
			{Source: "javbus", Kind: "failed", Reason: "HTTP 403"},
			{Source: "javdb", Kind: "ok"},
		},
	}
	got := formatFallbackNote(res)
	if !strings.Contains(got, "javbus") || !strings.Contains(got, "HTTP 403") {
		t.Fatalf("期望包含失败来源与原因，实际 %q", got)
	}
	if formatFallbackNote(domain.ItemResult{Attempts: []domain.SourceAttempt{{Source: "javbus", Kind: "ok"}}}) != "" {
		t.Fatalf("没有失败来源时期望空串")
	}
}

func TestFormatAttemptChain(t *testing.T) {
	attempts := []domain.SourceAttempt{
		{Source: "javbus", Query: "Mao Hamasaki", Kind: "not_found"},
		{Source: "javbus", Query: "Hamasaki Mao", Kind: "ok"},
		{Source: "javdb", Kind: "failed", Reason: "timeout"},
	}
	if got, want := formatAttemptChain(attempts, 2), "javbus:not_found(Mao Hamasaki);javbus:ok(Hamasaki Mao)"; got != want {
		t.Fatalf("期望 %q，实际 %q", want, got)
	}
	if got := formatAttemptChain(attempts, -1); !strings.HasSuffix(got, "javdb:failed:timeout") {
		t.Fatalf("max=-1 应输出全部尝试，实际 %q", got)
	}
}

func TestProgressUI_PhasesAndItems(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf, config.EffectiveConfig{
		CacheDir:     "/lib/cache",
		MovieSources: []string{"javbus", "javdb"},
		ScrapeCast:   true,
	})

	p.OnStart(domain.ModeMovies, "/lib")
	p.OnPhaseDone("scan", map[string]any{"files": 3, "codes": 2, "unmatched": 1}, time.Second)
	p.OnPhaseDone("plan", map[string]any{"cached": 1, "submitted": 1}, 0)
	p.OnItemDone(1, 1, "AAA-001", domain.ItemResult{Key: "AAA-001", Status: domain.StatusScraped, Sources: []string{"javbus"}}, time.Second)
	p.OnPhaseDone("exec", map[string]any{"cast": 2}, time.Second)

	out := buf.String()
	for _, want := range []string{
		"avmeta movies",
		"sources: javbus -> javdb",
		"扫描: files=3 codes=2 unmatched=1",
		"规划: cached=1 submitted=1",
		"[1/1] AAA-001 OK sources=javbus",
		"cast=2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
	if p.tickerStarted {
		t.Fatalf("最后一个条目完成后 ticker 应已停止")
	}
}

func TestFormatProxy(t *testing.T) {
	if got := formatProxy(""); got != "off" {
		t.Fatalf("期望 off，实际 %q", got)
	}
	if got := formatProxy("http://user:pw@127.0.0.1:8080"); got != "on (http://127.0.0.1:8080, auth=on)" {
		t.Fatalf("不应泄露凭据，实际 %q", got)
	}
}
