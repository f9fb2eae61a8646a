package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/John-Robertt/avmeta/internal/session"
)

// ErrPageNotFound 表示站点明确返回 404；适配器据此返回“无数据”而不是失败。
var ErrPageNotFound = errors.New("page not found")

// ErrTimeout 是超时结果的说明（超时按 NotFound 处理，Reason 仅用于报告）。
var ErrTimeout = errors.New("source timed out")

// Error 是来源阶段的可追溯错误。
type Error struct {
	Source string // 小写来源名
	Stage  string // "fetch" / "parse" / "exec" / "decode" / "scrape"
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source=%s stage=%s: %v", e.Source, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatusError 表示站点返回了不可用的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d location=%s", e.StatusCode, loc)
}

// BlockedError 表示请求被站点引导到了“验证/拦截”页面。
// 不尝试绕过：按失败处理，由协调器继续下一个来源。
type BlockedError struct {
	URL    string
	Reason string // 例如 "driver-verify"
}

func (e *BlockedError) Error() string {
	if e == nil || strings.TrimSpace(e.Reason) == "" {
		return "blocked"
	}
	return "blocked: " + strings.TrimSpace(e.Reason)
}

// Get 通过会话抓取页面，并把会话/HTTP 层面的异常统一为错误：
//   - 会话额度用尽 -> *session.LimitError
//   - 404 -> ErrPageNotFound
//   - 其它非 2xx（NoRedirect 请求的 3xx 除外）-> *HTTPStatusError
func Get(ctx context.Context, sess *session.Session, req session.Request) (session.Page, error) {
	if sess == nil {
		return session.Page{}, errors.New("session 不能为空")
	}
	p, err := sess.Fetch(ctx, req)
	if err != nil {
		return p, err
	}
	if p.Status == session.PageLimited {
		return p, &session.LimitError{Limit: sess.Limit(), URL: p.URL}
	}
	switch {
	case p.StatusCode == 404:
		return p, ErrPageNotFound
	case p.StatusCode >= 200 && p.StatusCode < 300:
		return p, nil
	case req.NoRedirect && p.StatusCode >= 300 && p.StatusCode < 400:
		return p, nil
	default:
		return p, &HTTPStatusError{URL: p.URL, StatusCode: p.StatusCode, Location: p.Location}
	}
}
