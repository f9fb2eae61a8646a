// Package coord 编排单个条目（一部影片或一个演员）的多来源刮削：
// 逐个来源调用 -> 记录尝试 -> 合并 -> 落盘。
//
// 协调器独占一个 session：第一次使用时 Open，批处理结束时 Close。
// 会话额度用尽时重置会话并对同一来源重试一次。
package coord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/avmeta/internal/confirm"
	"github.com/John-Robertt/avmeta/internal/domain"
	"github.com/John-Robertt/avmeta/internal/session"
	"github.com/John-Robertt/avmeta/internal/source"
)

// ErrAborted 表示用户在交互确认中拒绝继续；对整个批处理是终止性的。
var ErrAborted = errors.New("coord: 用户中止")

// Options 是两种协调器共享的依赖。
type Options struct {
	Runner  *source.Runner
	Session *session.Session
	// Confirmer 为 nil 表示非交互：来源失败直接进入下一个来源。
	Confirmer confirm.Confirmer
	Log       *zap.Logger
	Now       func() time.Time
}

type base struct {
	runner    *source.Runner
	sess      *session.Session
	confirmer confirm.Confirmer
	log       *zap.Logger
	now       func() time.Time
}

func newBase(opts Options, name string) base {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	runner := opts.Runner
	if runner == nil {
		runner = source.NewRunner(0, log)
	}
	sess := opts.Session
	if sess == nil {
		sess = session.New(session.Options{Log: log})
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return base{runner: runner, sess: sess, confirmer: opts.Confirmer, log: log.Named(name), now: now}
}

// Close 关闭协调器持有的会话。可重复调用；之后再次使用会重新打开。
func (b *base) Close() { b.sess.Close() }

// Session 返回协调器持有的会话（批处理用于汇报操作次数）。
func (b *base) Session() *session.Session { return b.sess }

func (b *base) open() error {
	if err := b.sess.Open(); err != nil {
		return fmt.Errorf("打开会话失败：%w", err)
	}
	return nil
}

// withLimitRetry 执行一次来源调用；若结果是额度用尽，则重置会话后再试一次。
func withLimitRetry[T any](b *base, call func() source.Result[T]) source.Result[T] {
	res := call()
	if !res.Limited() {
		return res
	}
	b.log.Info("session limit reached, resetting", zap.String("source", res.Source), zap.Int("ops", b.sess.Ops()))
	if err := b.sess.Reset(); err != nil {
		b.log.Warn("session reset failed", zap.Error(err))
		return res
	}
	return call()
}

// onFailure 在交互模式下询问是否继续。拒绝 -> ErrAborted；ctx 取消 -> ctx.Err()。
func (b *base) onFailure(ctx context.Context, subject string, res source.Result[struct{}]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.confirmer == nil {
		return nil
	}
	ok, err := b.confirmer.Confirm(ctx, confirm.Request{
		Kind:    confirm.KindSourceFailed,
		Source:  res.Source,
		Subject: subject,
		Message: fmt.Sprintf("来源 %s 失败：%v；继续下一个来源？", res.Source, res.Reason),
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrAborted
	}
	return nil
}

func attemptOf[T any](res source.Result[T], query string) domain.SourceAttempt {
	a := domain.SourceAttempt{Source: res.Source, Query: query, Kind: res.Kind.String()}
	if res.Reason != nil {
		a.Reason = res.Reason.Error()
	}
	return a
}

func failure[T any](res source.Result[T]) source.Result[struct{}] {
	return source.Result[struct{}]{Kind: res.Kind, Source: res.Source, Reason: res.Reason}
}

// noDataItem 根据尝试记录给出失败条目的错误码。
func noDataItem(item *domain.ItemResult) {
	item.Status = domain.StatusFailed
	item.ErrorCode = domain.ErrCodeNoData
	item.ErrorMsg = "所有来源都没有返回数据"
	for _, a := range item.Attempts {
		if a.Kind == source.Failed.String() {
			item.ErrorCode = domain.ErrCodeSourceError
			item.ErrorMsg = "所有来源都没有返回数据（至少一个来源出错）"
			return
		}
	}
}
