package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/avmeta/internal/config"
	"github.com/John-Robertt/avmeta/internal/domain"
	"github.com/John-Robertt/avmeta/internal/index"
	"github.com/John-Robertt/avmeta/internal/store"
)

type cliEnv struct {
	lib    string
	cfg    string
	movies *store.MovieStore
	actors *store.ActorStore
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	lib := t.TempDir()
	cfg := filepath.Join(t.TempDir(), config.JSONName)
	b, _ := json.Marshal(map[string]any{"library_path": lib, "item_delay_ms": 0})
	if err := os.WriteFile(cfg, b, 0o644); err != nil {
		t.Fatalf("写入配置失败：%v", err)
	}
	cache := filepath.Join(lib, "cache")
	return cliEnv{lib: lib, cfg: cfg, movies: store.NewMovieStore(cache, nil), actors: store.NewActorStore(cache, nil)}
}

// run 在进程内执行一次命令；stdout/stderr 都是 buffer（非 TTY）。
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLI_Movies_StdoutOnlyBatchReportJSON(t *testing.T) {
	env := newCLIEnv(t)
	if err := os.WriteFile(filepath.Join(env.lib, "AAA-001.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatalf("写入视频失败：%v", err)
	}
	// 已缓存 => 不会触发真实来源抓取。
	if err := env.movies.Save(domain.MovieEnvelope{Data: domain.MovieRecord{Code: "AAA-001", Title: "t"}}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	stdout, stderr, err := run(t, "", "--config", env.cfg, "movies")
	if err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s", err, stderr)
	}
	var rr domain.BatchReport
	if err := json.Unmarshal([]byte(stdout), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 BatchReport JSON：%v\nstdout=%q", err, stdout)
	}
	if rr.Summary != (domain.BatchSummary{Total: 1, Cached: 1}) || rr.RunID == "" {
		t.Fatalf("报告不符合预期：%+v", rr)
	}
	if strings.Contains(stdout, "配置（生效）") || strings.Contains(stdout, "进度:") {
		t.Fatalf("stdout 不应包含进度/配置输出：%q", stdout)
	}
	if !strings.Contains(stderr, "完成（movies）：total=1") {
		t.Fatalf("stderr 缺少完成摘要：%q", stderr)
	}
}

func TestCLI_ConfigErrorIsReported(t *testing.T) {
	stdout, _, err := run(t, "", "--config", filepath.Join(t.TempDir(), "missing.json"), "actors")
	if !errors.Is(err, errReported) {
		t.Fatalf("期望 errReported，实际 %v", err)
	}
	var rr domain.BatchReport
	if err := json.Unmarshal([]byte(stdout), &rr); err != nil {
		t.Fatalf("stdout 不是合法 JSON：%v", err)
	}
	if len(rr.Items) != 1 || rr.Items[0].ErrorCode != config.ErrCodeNotFound {
		t.Fatalf("期望一条 config_not_found 条目，实际 %+v", rr.Items)
	}
}

func TestCLI_MovieRejectsInvalidCode(t *testing.T) {
	env := newCLIEnv(t)
	if _, _, err := run(t, "", "--config", env.cfg, "movie", "a/b"); err == nil {
		t.Fatalf("期望无效 CODE 报错")
	}
}

func TestCLI_PatchFromStdin(t *testing.T) {
	env := newCLIEnv(t)
	if err := env.movies.Save(domain.MovieEnvelope{Data: domain.MovieRecord{Code: "AAA-001", Title: "old"}}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	stdout, stderr, err := run(t, `{"title":"new"}`, "--config", env.cfg, "patch", "AAA-001", "-")
	if err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s", err, stderr)
	}
	var got domain.MovieEnvelope
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("stdout 不是合法 JSON：%v", err)
	}
	if got.Data.Title != "new" || got.Data.Provenance.FieldSources["title"] != store.ManualSource {
		t.Fatalf("patch 结果不符合预期：%+v", got.Data)
	}

	if _, _, err := run(t, `{"code":"BBB-002"}`, "--config", env.cfg, "patch", "AAA-001", "-"); err == nil {
		t.Fatalf("期望修改 code 报错")
	}
}

func TestCLI_ActorShowRebuildRemove(t *testing.T) {
	env := newCLIEnv(t)
	saved, err := env.actors.Save(domain.ActorRecord{Name: "Yua Mikami", AltName: "三上悠亜", Height: 159})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	stdout, stderr, err := run(t, "", "--config", env.cfg, "actor", "show", "mikami yua")
	if err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s", err, stderr)
	}
	var view actorView
	if err := json.Unmarshal([]byte(stdout), &view); err != nil {
		t.Fatalf("stdout 不是合法 JSON：%v", err)
	}
	if view.Record.ID != saved.ID || view.Complete || len(view.Missing) == 0 {
		t.Fatalf("show 结果不符合预期：%+v", view)
	}

	stdout, _, err = run(t, "", "--config", env.cfg, "index", "rebuild")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	var stats index.RebuildStats
	if err := json.Unmarshal([]byte(stdout), &stats); err != nil || stats.Processed != 1 || stats.Unique != 1 {
		t.Fatalf("重建统计不符合预期：%+v err=%v", stats, err)
	}

	if _, _, err := run(t, "", "--config", env.cfg, "actor", "rm", saved.ID); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, _, err := run(t, "", "--config", env.cfg, "actor", "show", "Yua Mikami"); err == nil {
		t.Fatalf("删除后期望找不到演员")
	}
}

func TestRenderItems(t *testing.T) {
	out := renderItems([]domain.ItemResult{
		{Key: "AAA-001", Status: domain.StatusScraped, Sources: []string{"javbus", "javdb"}},
		{Status: domain.StatusFailed, ErrorCode: domain.ErrCodeInvalidCode, ErrorMsg: "x"},
	})
	for _, want := range []string{"AAA-001", "javbus,javdb", "<unmatched>", "invalid_code: x"} {
		if !strings.Contains(out, want) {
			t.Fatalf("表格缺少 %q：\n%s", want, out)
		}
	}
}
