// Package source 定义来源契约与统一的结果形态。
//
// 协调器只看 Result：OK（有数据）、NotFound（没有数据，包括超时）、Failed（出错）。
// 来源适配器把“站点变化”限制在各自子包内部；网络策略由 session/httpx 统一提供。
package source

import (
	"context"
	"strings"

	"github.com/John-Robertt/avmeta/internal/domain"
	"github.com/John-Robertt/avmeta/internal/session"
)

// Kind 是来源调用结果的三态。
type Kind int

const (
	OK Kind = iota
	NotFound
	Failed
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case NotFound:
		return "not_found"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result 是一次来源调用的带标签结果。Kind=OK 时 Value 有效；Kind=Failed 时 Reason 非空。
type Result[T any] struct {
	Kind   Kind
	Source string
	Value  T
	Reason error
}

// Limited 判断失败原因是否为会话额度用尽。
func (r Result[T]) Limited() bool {
	return r.Kind == Failed && session.IsLimit(r.Reason)
}

// MovieSource 按番号批量刮削影片。
//
// 约束：
// - 返回的每条记录必须带 Code；与请求不匹配的记录会被 Runner 丢弃
// - 没有数据时返回空切片与 nil error
type MovieSource interface {
	Name() string
	ScrapeMovies(ctx context.Context, sess *session.Session, codes []domain.Code) ([]domain.MovieRecord, error)
}

// ActorSource 按名称刮削演员。没有数据时返回 (nil, nil)。
type ActorSource interface {
	Name() string
	ScrapeActor(ctx context.Context, sess *session.Session, name string) (*domain.ActorRecord, error)
}

func normName(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
