package execsrc

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"testing"
	"time"

	"github.com/John-Robertt/avmeta/internal/confirm"
	"github.com/John-Robertt/avmeta/internal/domain"
	"github.com/John-Robertt/avmeta/internal/session"
	"github.com/John-Robertt/avmeta/internal/source"
)

func requireSh(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("需要 sh")
	}
	return sh
}

func script(sh, body string) []string { return []string{sh, "-c", body, "stub"} }

type recordingConfirmer struct {
	answer bool
	got    []confirm.Request
}

func (r *recordingConfirmer) Confirm(_ context.Context, req confirm.Request) (bool, error) {
	r.got = append(r.got, req)
	return r.answer, nil
}

func TestNew_Validates(t *testing.T) {
	if _, err := New(Config{Name: "x", Entity: "tv", Command: []string{"a"}}, nil, nil); err == nil {
		t.Fatalf("未知 entity 应报错")
	}
	if _, err := New(Config{Name: "x", Entity: "movie"}, nil, nil); err == nil {
		t.Fatalf("空命令应报错")
	}
	if _, err := New(Config{Entity: "movie", Command: []string{"a"}}, nil, nil); err == nil {
		t.Fatalf("空名称应报错")
	}
}

func TestScrapeMovies_LooseJSON(t *testing.T) {
	sh := requireSh(t)
	body := `echo "diag: start $1" >&2
printf '[{"code":"%s","title":" T ","year":"2021","runtime":"150分","genres":"a, b","actors":["X",{"name":"Y","role":"r"}]}]' "$1"`
	src, err := New(Config{Name: "Local", Entity: "movie", Command: script(sh, body)}, nil, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	recs, err := src.ScrapeMovies(context.Background(), nil, []domain.Code{"ABC-123"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("期望 1 条记录，实际 %d", len(recs))
	}
	r := recs[0]
	if r.Code != "ABC-123" || r.Title != "T" || r.Year != 2021 || r.Runtime != 150 {
		t.Fatalf("宽松解码不符合预期：%+v", r)
	}
	if !reflect.DeepEqual(r.Genres, []string{"a", "b"}) {
		t.Fatalf("逗号分隔的列表应被拆分，实际 %v", r.Genres)
	}
	if !reflect.DeepEqual(r.Actors, []domain.ActorRef{{Name: "X"}, {Name: "Y", Role: "r"}}) {
		t.Fatalf("演员解码不符合预期：%+v", r.Actors)
	}
	if src.Name() != "local" {
		t.Fatalf("名称应规范为小写，实际 %q", src.Name())
	}
}

func TestScrapeActor_ConfirmPromptRoundTrip(t *testing.T) {
	sh := requireSh(t)
	body := `echo "@@CONFIRM 需要登录，继续？" >&2
read ans
if [ "$ans" = "y" ]; then
  echo '{"name":"'"$1"'","height":"160cm","bust":88,"thumb":"https://img/x.jpg"}'
else
  echo null
fi`
	c := &recordingConfirmer{answer: true}
	src, err := New(Config{Name: "helper", Entity: "actor", Command: script(sh, body)}, c, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	rec, err := src.ScrapeActor(context.Background(), nil, "Mao Hamasaki")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if rec == nil || rec.Name != "Mao Hamasaki" || rec.Height != 160 || rec.Bust != 88 || rec.ThumbURL != "https://img/x.jpg" {
		t.Fatalf("演员解码不符合预期：%+v", rec)
	}
	if !reflect.DeepEqual(rec.Sources, []string{"helper"}) {
		t.Fatalf("sources 应为来源名，实际 %v", rec.Sources)
	}
	if len(c.got) != 1 || c.got[0].Message != "需要登录，继续？" || c.got[0].Subject != "Mao Hamasaki" {
		t.Fatalf("确认请求不符合预期：%+v", c.got)
	}

	c.answer = false
	rec, err = src.ScrapeActor(context.Background(), nil, "Mao Hamasaki")
	if err != nil || rec != nil {
		t.Fatalf("拒绝后子进程输出 null，应返回 (nil, nil)，实际 %+v err=%v", rec, err)
	}
}

func TestScrape_FailuresAndLimit(t *testing.T) {
	sh := requireSh(t)

	fail, _ := New(Config{Name: "f", Entity: "movie", Command: script(sh, `echo "boom" >&2; exit 3`)}, nil, nil)
	_, err := fail.ScrapeMovies(context.Background(), nil, []domain.Code{"A-1"})
	var se *source.Error
	if !errors.As(err, &se) || se.Stage != "exec" {
		t.Fatalf("非零退出应为 exec 阶段错误，实际 %v", err)
	}

	bad, _ := New(Config{Name: "b", Entity: "movie", Command: script(sh, `echo "{not json"`)}, nil, nil)
	if _, err := bad.ScrapeMovies(context.Background(), nil, []domain.Code{"A-1"}); !errors.As(err, &se) || se.Stage != "decode" {
		t.Fatalf("非法 JSON 应为 decode 阶段错误，实际 %v", err)
	}

	lim, _ := New(Config{Name: "l", Entity: "actor", Command: script(sh, `echo "@@LIMIT" >&2; exit 1`)}, nil, nil)
	if _, err := lim.ScrapeActor(context.Background(), nil, "X"); !session.IsLimit(err) {
		t.Fatalf("@@LIMIT 应转换为 LimitError，实际 %v", err)
	}

	slow, _ := New(Config{Name: "s", Entity: "movie", Command: script(sh, `sleep 5`)}, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := slow.ScrapeMovies(ctx, nil, []domain.Code{"A-1"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("超时应返回 ctx 错误，实际 %v", err)
	}
}
