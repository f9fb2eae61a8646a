package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/John-Robertt/avmeta/internal/domain"
	"github.com/John-Robertt/avmeta/internal/session"
)

type stubMovie struct {
	name string
	recs []domain.MovieRecord
	err  error
}

func (s stubMovie) Name() string { return s.name }
func (s stubMovie) ScrapeMovies(context.Context, *session.Session, []domain.Code) ([]domain.MovieRecord, error) {
	return s.recs, s.err
}

type stubActor struct {
	name  string
	rec   *domain.ActorRecord
	err   error
	delay time.Duration
	panic bool
}

func (s stubActor) Name() string { return s.name }
func (s stubActor) ScrapeActor(ctx context.Context, _ *session.Session, _ string) (*domain.ActorRecord, error) {
	if s.panic {
		panic("boom")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.rec, s.err
}

func TestRunner_MoviesFiltersByCode(t *testing.T) {
	r := NewRunner(time.Second, nil)
	src := stubMovie{name: "JavBus", recs: []domain.MovieRecord{
		{Code: "abc-123", Title: "hit"},
		{Code: "XYZ-999", Title: "other"},
		{Title: "no code"},
	}}

	res := r.Movies(context.Background(), src, nil, []domain.Code{"ABC-123"})
	if res.Kind != OK || res.Source != "javbus" {
		t.Fatalf("期望 OK/javbus，实际 %v/%s", res.Kind, res.Source)
	}
	if len(res.Value) != 1 || res.Value[0].Title != "hit" {
		t.Fatalf("应只保留番号匹配的记录，实际 %+v", res.Value)
	}
}

func TestRunner_MoviesEmptyAndError(t *testing.T) {
	r := NewRunner(time.Second, nil)

	res := r.Movies(context.Background(), stubMovie{name: "a", recs: []domain.MovieRecord{{Code: "OTHER-1"}}}, nil, []domain.Code{"ABC-123"})
	if res.Kind != NotFound {
		t.Fatalf("过滤后为空应为 NotFound，实际 %v", res.Kind)
	}

	res = r.Movies(context.Background(), stubMovie{name: "a", err: errors.New("exit 1")}, nil, []domain.Code{"ABC-123"})
	if res.Kind != Failed || res.Reason == nil {
		t.Fatalf("出错应为 Failed，实际 %v %v", res.Kind, res.Reason)
	}
	var se *Error
	if !errors.As(res.Reason, &se) || se.Source != "a" {
		t.Fatalf("Reason 应包装为 *Error，实际 %T %v", res.Reason, res.Reason)
	}
}

type slowMovie struct{}

func (slowMovie) Name() string { return "slow" }
func (slowMovie) ScrapeMovies(ctx context.Context, _ *session.Session, _ []domain.Code) ([]domain.MovieRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunner_MoviesTimeoutIsNotFound(t *testing.T) {
	r := NewRunner(30*time.Millisecond, nil)
	res := r.Movies(context.Background(), slowMovie{}, nil, []domain.Code{"ABC-123"})
	if res.Kind != NotFound || !errors.Is(res.Reason, ErrTimeout) {
		t.Fatalf("超时应等同于无数据，实际 %v %v", res.Kind, res.Reason)
	}

	// 外层 ctx 被取消不是超时。
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res = r.Movies(ctx, slowMovie{}, nil, []domain.Code{"ABC-123"})
	if res.Kind != Failed {
		t.Fatalf("外层取消应为 Failed，实际 %v", res.Kind)
	}
}

func TestRunner_ActorOutcomes(t *testing.T) {
	r := NewRunner(50*time.Millisecond, nil)
	ctx := context.Background()

	ok := r.Actor(ctx, stubActor{name: "s", rec: &domain.ActorRecord{Name: "X"}}, nil, "X")
	if ok.Kind != OK || ok.Value.Name != "X" {
		t.Fatalf("期望 OK，实际 %+v", ok)
	}

	nf := r.Actor(ctx, stubActor{name: "s"}, nil, "X")
	if nf.Kind != NotFound {
		t.Fatalf("nil 结果应为 NotFound，实际 %v", nf.Kind)
	}

	timeout := r.Actor(ctx, stubActor{name: "s", rec: &domain.ActorRecord{Name: "X"}, delay: time.Second}, nil, "X")
	if timeout.Kind != NotFound || !errors.Is(timeout.Reason, ErrTimeout) {
		t.Fatalf("超时应等同于无数据，实际 %v %v", timeout.Kind, timeout.Reason)
	}

	failed := r.Actor(ctx, stubActor{name: "s", err: errors.New("parse")}, nil, "X")
	if failed.Kind != Failed {
		t.Fatalf("出错应为 Failed，实际 %v", failed.Kind)
	}

	panicked := r.Actor(ctx, stubActor{name: "s", panic: true}, nil, "X")
	if panicked.Kind != Failed {
		t.Fatalf("panic 应归为 Failed，实际 %v", panicked.Kind)
	}
}

func TestResult_Limited(t *testing.T) {
	r := NewRunner(time.Second, nil)
	res := r.Actor(context.Background(), stubActor{name: "s", err: &session.LimitError{Limit: 1}}, nil, "X")
	if !res.Limited() {
		t.Fatalf("会话额度用尽应可被识别：%v", res.Reason)
	}
}
