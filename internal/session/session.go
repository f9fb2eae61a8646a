// Package session 提供一次刮削会话：共享 cookie、复用连接，并显式统计请求次数。
//
// 会话由协调器持有（Open -> Fetch... -> Close），同一协调器内的来源顺序执行、共用同一个会话。
// 达到请求上限不是错误：Fetch 返回 Status=PageLimited 的页面，由调用方转换为 *LimitError。
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/John-Robertt/avmeta/internal/infra/httpx"
)

// maxBody 限制单个页面读取的字节数（详情页通常 < 1MiB）。
const maxBody = 8 << 20

// ErrClosed 表示在未 Open（或已 Close）的会话上调用 Fetch。
var ErrClosed = errors.New("session: not open")

type Options struct {
	ProxyURL string
	// Limit 是单个会话允许的最大请求数；0 表示不限。
	Limit int
	Log   *zap.Logger
}

// PageStatus 区分“拿到了页面”和“会话额度用尽、请求未发出”。
type PageStatus int

const (
	PageOK PageStatus = iota
	PageLimited
)

// Request 描述一次抓取。
type Request struct {
	URL string
	// NoRedirect=true 时不跟随 3xx，直接返回 3xx 响应（含 body 与 Location）。
	NoRedirect bool
	Header     http.Header
}

// Page 是一次抓取的结果。Status=PageLimited 时其余字段只有 URL 有意义。
type Page struct {
	Status     PageStatus
	URL        string // 请求 URL
	FinalURL   string // 跟随重定向后的最终 URL
	StatusCode int
	Location   string
	Body       []byte
}

// LimitError 表示会话请求额度已用尽；协调器据此重置会话并重试一次。
type LimitError struct {
	Limit int
	URL   string
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("session limit reached (%d requests): %s", e.Limit, e.URL)
}

// IsLimit 判断 err 链上是否存在 *LimitError。
func IsLimit(err error) bool {
	var le *LimitError
	return errors.As(err, &le)
}

// Session 是显式的抓取会话。零值不可用，请使用 New。
type Session struct {
	opts Options
	log  *zap.Logger

	mu     sync.Mutex
	follow *http.Client
	direct *http.Client
	ops    int
}

func New(opts Options) *Session {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Limit < 0 {
		opts.Limit = 0
	}
	return &Session{opts: opts, log: log.Named("session")}
}

// Open 创建 cookie jar 与 client；已打开时直接返回。
func (s *Session) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked()
}

func (s *Session) openLocked() error {
	if s.follow != nil {
		return nil
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	ua := httpx.PickUserAgent()
	follow, err := httpx.NewSessionClient(httpx.SessionOptions{ProxyURL: s.opts.ProxyURL, Jar: jar, FollowRedirects: true, UserAgent: ua})
	if err != nil {
		return err
	}
	direct, err := httpx.NewSessionClient(httpx.SessionOptions{ProxyURL: s.opts.ProxyURL, Jar: jar, UserAgent: ua})
	if err != nil {
		return err
	}
	s.follow, s.direct = follow, direct
	s.ops = 0
	s.log.Debug("session opened", zap.Int("limit", s.opts.Limit))
	return nil
}

// IsOpen 报告会话是否处于打开状态。
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.follow != nil
}

// Close 释放连接并丢弃 cookie；可重复调用。
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.follow == nil {
		return
	}
	s.follow.CloseIdleConnections()
	s.direct.CloseIdleConnections()
	s.log.Debug("session closed", zap.Int("ops", s.ops))
	s.follow, s.direct = nil, nil
}

// Reset 关闭并重新打开会话：新 cookie jar，请求计数清零。
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	s.log.Info("session reset")
	return s.openLocked()
}

// Ops 返回当前会话已发出的请求数。
func (s *Session) Ops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops
}

// Limit 返回会话请求上限（0 = 不限）。
func (s *Session) Limit() int { return s.opts.Limit }

// Fetch 发出一次 GET 并读取完整 body。
//
// 约束：
// - 非 2xx 不视为错误：状态码原样放在 Page 里，由来源适配器按站点语义判断
// - 额度用尽时不发请求，返回 Status=PageLimited
func (s *Session) Fetch(ctx context.Context, r Request) (Page, error) {
	u := strings.TrimSpace(r.URL)
	if u == "" {
		return Page{}, errors.New("session: url 不能为空")
	}

	s.mu.Lock()
	if s.follow == nil {
		s.mu.Unlock()
		return Page{URL: u}, ErrClosed
	}
	if s.opts.Limit > 0 && s.ops >= s.opts.Limit {
		s.mu.Unlock()
		return Page{Status: PageLimited, URL: u}, nil
	}
	s.ops++
	c := s.follow
	if r.NoRedirect {
		c = s.direct
	}
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Page{URL: u}, err
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.Do(req)
	if err != nil {
		return Page{URL: u}, err
	}
	defer resp.Body.Close()

	// 先读 body：3xx 的 body 有时就是完整详情页。
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Page{URL: u, StatusCode: resp.StatusCode}, err
	}

	p := Page{
		Status:     PageOK,
		URL:        u,
		FinalURL:   u,
		StatusCode: resp.StatusCode,
		Location:   strings.TrimSpace(resp.Header.Get("Location")),
		Body:       b,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		p.FinalURL = resp.Request.URL.String()
	}
	s.log.Debug("fetch", zap.String("url", u), zap.Int("status", resp.StatusCode), zap.Int("bytes", len(b)))
	return p, nil
}
