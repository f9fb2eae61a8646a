package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/avmeta/internal/domain"
	"github.com/John-Robertt/avmeta/internal/session"
)

// DefaultTimeout 是单个来源调用的默认超时。
const DefaultTimeout = 30 * time.Second

// Runner 在超时约束下调用来源，并把一切结果归一为 Result。
type Runner struct {
	timeout time.Duration
	log     *zap.Logger
}

func NewRunner(timeout time.Duration, log *zap.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{timeout: timeout, log: log.Named("runner")}
}

// Movies 调用影片来源并只保留番号匹配的记录。
//
// 结果：超时或过滤后为空 -> NotFound；出错 -> Failed；否则 OK（Value 为匹配的记录）。
// 超时通过 ctx 传给来源（子进程会被杀掉），与 Actor 一样按“无数据”处理。
func (r *Runner) Movies(ctx context.Context, src MovieSource, sess *session.Session, codes []domain.Code) Result[[]domain.MovieRecord] {
	name := normName(src.Name())
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	recs, err := safeMovies(callCtx, src, sess, codes)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		r.log.Info("movie source timed out", zap.String("source", name), zap.Duration("timeout", r.timeout))
		return Result[[]domain.MovieRecord]{Kind: NotFound, Source: name, Reason: ErrTimeout}
	}
	if err != nil {
		r.log.Warn("movie source failed", zap.String("source", name), zap.Error(err))
		return Result[[]domain.MovieRecord]{Kind: Failed, Source: name, Reason: wrap(name, err)}
	}

	kept := make([]domain.MovieRecord, 0, len(recs))
	for _, rec := range recs {
		if matchCode(rec.Code, codes) {
			kept = append(kept, rec)
		}
	}
	if dropped := len(recs) - len(kept); dropped > 0 {
		r.log.Debug("dropped records with unrequested code", zap.String("source", name), zap.Int("dropped", dropped))
	}
	if len(kept) == 0 {
		return Result[[]domain.MovieRecord]{Kind: NotFound, Source: name}
	}
	return Result[[]domain.MovieRecord]{Kind: OK, Source: name, Value: kept}
}

// Actor 以“调用 vs 计时器”竞速的方式调用演员来源。
//
// 结果：超时或 nil -> NotFound；出错 -> Failed；否则 OK。
// 超时后来源 goroutine 的 ctx 被取消，其迟到的结果被丢弃。
func (r *Runner) Actor(ctx context.Context, src ActorSource, sess *session.Session, name string) Result[domain.ActorRecord] {
	srcName := normName(src.Name())
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		rec *domain.ActorRecord
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- outcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		rec, err := src.ScrapeActor(callCtx, sess, name)
		ch <- outcome{rec: rec, err: err}
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case o := <-ch:
		switch {
		case o.err != nil:
			r.log.Warn("actor source failed", zap.String("source", srcName), zap.String("name", name), zap.Error(o.err))
			return Result[domain.ActorRecord]{Kind: Failed, Source: srcName, Reason: wrap(srcName, o.err)}
		case o.rec == nil:
			return Result[domain.ActorRecord]{Kind: NotFound, Source: srcName}
		default:
			return Result[domain.ActorRecord]{Kind: OK, Source: srcName, Value: *o.rec}
		}
	case <-timer.C:
		r.log.Info("actor source timed out", zap.String("source", srcName), zap.String("name", name), zap.Duration("timeout", r.timeout))
		return Result[domain.ActorRecord]{Kind: NotFound, Source: srcName, Reason: ErrTimeout}
	case <-ctx.Done():
		return Result[domain.ActorRecord]{Kind: Failed, Source: srcName, Reason: ctx.Err()}
	}
}

func safeMovies(ctx context.Context, src MovieSource, sess *session.Session, codes []domain.Code) (recs []domain.MovieRecord, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return src.ScrapeMovies(ctx, sess, codes)
}

func matchCode(c domain.Code, codes []domain.Code) bool {
	if strings.TrimSpace(string(c)) == "" {
		return false
	}
	for _, want := range codes {
		if domain.SameCode(c, want) {
			return true
		}
	}
	return false
}

func wrap(name string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Source: name, Stage: "scrape", Err: err}
}
