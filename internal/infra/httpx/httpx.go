// Package httpx 构造刮削会话与图片下载使用的 http.Client。
//
// 来源适配器只负责定位页面与解析 HTML，UA、代理、重试策略集中在这里。
package httpx

import (
	"errors"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout  = 20 * time.Second
	defaultRetryMax = 2
	defaultBackoff  = 500 * time.Millisecond
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
}

// PickUserAgent 从内置列表随机取一个 UA。
func PickUserAgent() string { return userAgents[rand.Intn(len(userAgents))] }

// Transport 给请求补上固定 UA，并对可重放请求做有界重试。
//
// 重试条件：网络错误，或 502/503/504。其它状态码原样返回，交给来源按 404/403 等语义处理。
type Transport struct {
	Base      http.RoundTripper
	UserAgent string
	// RetryMax 不含首次尝试：2 表示最多 3 次。
	RetryMax int
	Backoff  time.Duration
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Base == nil {
		return nil, errors.New("httpx: nil base transport")
	}
	limit := t.RetryMax
	if limit < 0 || req.Body != nil || (req.Method != http.MethodGet && req.Method != http.MethodHead) {
		limit = 0
	}

	for attempt := 0; ; attempt++ {
		r := req.Clone(req.Context())
		if r.Header.Get("User-Agent") == "" && t.UserAgent != "" {
			r.Header.Set("User-Agent", t.UserAgent)
		}
		resp, err := t.Base.RoundTrip(r)
		if attempt >= limit || !retryable(resp, err) || req.Context().Err() != nil {
			return resp, err
		}
		if resp != nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()
		}

		wait := time.NewTimer(t.Backoff * time.Duration(attempt+1))
		select {
		case <-req.Context().Done():
			wait.Stop()
			return nil, req.Context().Err()
		case <-wait.C:
		}
	}
}

func retryable(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// SessionOptions 描述一个刮削会话的 client。
type SessionOptions struct {
	ProxyURL string
	Jar      http.CookieJar
	// FollowRedirects=false 时不跟随 3xx，由调用方读取 Location（搜索命中直接重定向到详情页）。
	FollowRedirects bool
	// UserAgent 为空时随机取一个。同一会话的多个 client 应传同一个值（站点把 cookie 与 UA 绑定）。
	UserAgent string
}

// NewSessionClient 构造会话专用 client。proxyURL 非空时走代理并禁用 keep-alive。
func NewSessionClient(opts SessionOptions) (*http.Client, error) {
	ua := opts.UserAgent
	if ua == "" {
		ua = PickUserAgent()
	}
	c, err := newClient(strings.TrimSpace(opts.ProxyURL), ua)
	if err != nil {
		return nil, err
	}
	c.Jar = opts.Jar
	if !opts.FollowRedirects {
		c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	}
	return c, nil
}

// NewImageClient 构造 fanart 下载使用的 client：imageProxy=false 时直连（忽略 proxyURL）。
func NewImageClient(proxyURL string, imageProxy bool) (*http.Client, error) {
	if !imageProxy {
		return newClient("", PickUserAgent())
	}
	proxyURL = strings.TrimSpace(proxyURL)
	if proxyURL == "" {
		return nil, errors.New("image_proxy=true 但 proxy.url 为空")
	}
	return newClient(proxyURL, PickUserAgent())
}

func newClient(proxyURL, ua string) (*http.Client, error) {
	base := &http.Transport{
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		base.Proxy = http.ProxyURL(u)
		// 代理池按连接轮换出口。
		base.DisableKeepAlives = true
	}
	return &http.Client{
		Transport: &Transport{
			Base:      base,
			UserAgent: ua,
			RetryMax:  defaultRetryMax,
			Backoff:   defaultBackoff,
		},
		Timeout: defaultTimeout,
	}, nil
}
