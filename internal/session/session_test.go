package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "42"})
			w.WriteHeader(http.StatusOK)
		case "/whoami":
			c, err := r.Cookie("sid")
			if err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(c.Value))
		case "/jump":
			http.Redirect(w, r, "/whoami", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSession_FetchRequiresOpen(t *testing.T) {
	s := New(Options{})
	if _, err := s.Fetch(context.Background(), Request{URL: "http://127.0.0.1/"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("期望 ErrClosed，实际 %v", err)
	}
}

func TestSession_SharesCookiesAndCountsOps(t *testing.T) {
	srv := newServer(t)
	s := New(Options{})
	if err := s.Open(); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if _, err := s.Fetch(ctx, Request{URL: srv.URL + "/login"}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	p, err := s.Fetch(ctx, Request{URL: srv.URL + "/whoami"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if p.StatusCode != http.StatusOK || string(p.Body) != "42" {
		t.Fatalf("期望同一会话共享 cookie，实际 status=%d body=%q", p.StatusCode, string(p.Body))
	}
	if s.Ops() != 2 {
		t.Fatalf("期望 ops=2，实际 %d", s.Ops())
	}
}

func TestSession_NoRedirectKeepsLocation(t *testing.T) {
	srv := newServer(t)
	s := New(Options{})
	if err := s.Open(); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer s.Close()

	p, err := s.Fetch(context.Background(), Request{URL: srv.URL + "/jump", NoRedirect: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if p.StatusCode != http.StatusFound || p.Location != "/whoami" {
		t.Fatalf("期望 302 + Location，实际 %d %q", p.StatusCode, p.Location)
	}

	p, err = s.Fetch(context.Background(), Request{URL: srv.URL + "/jump"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if p.FinalURL != srv.URL+"/whoami" {
		t.Fatalf("期望跟随重定向，FinalURL=%q", p.FinalURL)
	}
}

func TestSession_LimitIsTypedResultAndResetRestoresBudget(t *testing.T) {
	srv := newServer(t)
	s := New(Options{Limit: 1})
	if err := s.Open(); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if p, err := s.Fetch(ctx, Request{URL: srv.URL + "/login"}); err != nil || p.Status != PageOK {
		t.Fatalf("首个请求应成功：status=%v err=%v", p.Status, err)
	}
	p, err := s.Fetch(ctx, Request{URL: srv.URL + "/whoami"})
	if err != nil {
		t.Fatalf("额度用尽不应返回 error：%v", err)
	}
	if p.Status != PageLimited {
		t.Fatalf("期望 PageLimited，实际 %v", p.Status)
	}
	if s.Ops() != 1 {
		t.Fatalf("额度用尽时不应计数，实际 ops=%d", s.Ops())
	}

	if err := s.Reset(); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	p, err = s.Fetch(ctx, Request{URL: srv.URL + "/whoami"})
	if err != nil || p.Status != PageOK {
		t.Fatalf("重置后应恢复额度：status=%v err=%v", p.Status, err)
	}
	if p.StatusCode != http.StatusUnauthorized {
		t.Fatalf("重置后 cookie 应被丢弃，实际 status=%d", p.StatusCode)
	}
}

func TestIsLimit(t *testing.T) {
	err := errors.Join(errors.New("x"), &LimitError{Limit: 3, URL: "u"})
	if !IsLimit(err) {
		t.Fatalf("期望识别 LimitError")
	}
	if IsLimit(errors.New("x")) {
		t.Fatalf("普通错误不应识别为 LimitError")
	}
}
