package main

import (
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/avmeta/internal/batch"
	"github.com/John-Robertt/avmeta/internal/config"
	"github.com/John-Robertt/avmeta/internal/domain"
	"github.com/John-Robertt/avmeta/internal/source"
)

var _ batch.Observer = (*progressUI)(nil)

// progressUI 是交互终端的进度输出。
//
// 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出；
// 长时间没有条目完成时定期输出一行 keepalive。
type progressUI struct {
	w   io.Writer
	eff config.EffectiveConfig

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total  int
	done   int
	ok     int
	fail   int
	cached int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer, eff config.EffectiveConfig) *progressUI {
	return &progressUI{
		w:                  w,
		eff:                eff,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(mode, path string) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	eff := p.eff
	fmt.Fprintf(p.w, "[%s] avmeta %s\n", now.Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  path: %s\n", path)
	fmt.Fprintf(p.w, "  cache: %s\n", eff.CacheDir)
	if mode == domain.ModeMovies {
		fmt.Fprintf(p.w, "  sources: %s\n", sourceChain(eff.MovieSources))
		fmt.Fprintf(p.w, "  scrape_cast: %s\n", onOff(eff.ScrapeCast))
	} else {
		fmt.Fprintf(p.w, "  sources: %s\n", sourceChain(eff.ActorSources))
	}
	fmt.Fprintf(p.w, "  interactive: %s\n", onOff(eff.Interactive))
	fmt.Fprintf(p.w, "  item_delay: %s\n", eff.ItemDelay)
	if eff.SessionLimit > 0 {
		fmt.Fprintf(p.w, "  session_limit: %d\n", eff.SessionLimit)
	}
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	if strings.TrimSpace(eff.JavDBBaseURL) != "" {
		fmt.Fprintf(p.w, "  javdb_base_url: %s\n", truncate(eff.JavDBBaseURL, 120))
	}
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "scan":
		fmt.Fprintf(p.w, "扫描: files=%d codes=%d unmatched=%d (%s)\n",
			intField(fields, "files"), intField(fields, "codes"), intField(fields, "unmatched"), formatShortDuration(dur),
		)
	case "plan":
		p.total = intField(fields, "submitted")
		fmt.Fprintf(p.w, "规划: cached=%d submitted=%d (%s)\n\n",
			intField(fields, "cached"), p.total, formatShortDuration(dur),
		)
		p.startTickerIfNeededLocked()
	case "collect":
		p.total = intField(fields, "names")
		fmt.Fprintf(p.w, "收集: movies=%d names=%d (%s)\n\n",
			intField(fields, "movies"), p.total, formatShortDuration(dur),
		)
		p.startTickerIfNeededLocked()
	case "exec":
		p.stopTickerLocked()
		if cast := intField(fields, "cast"); cast > 0 {
			fmt.Fprintf(p.w, "执行: 完成 (cast=%d, %s)\n", cast, formatShortDuration(dur))
		} else {
			fmt.Fprintf(p.w, "执行: 完成 (%s)\n", formatShortDuration(dur))
		}
	case "reconcile":
		fmt.Fprintf(p.w, "回填: movies=%d updated=%d failed=%d (%s)\n",
			intField(fields, "movies"), intField(fields, "updated"), intField(fields, "failed"), formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemDone(idx, total int, key string, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total

	status := strings.ToUpper(res.Status)
	switch res.Status {
	case domain.StatusScraped:
		p.ok++
		status = "OK"
	case domain.StatusCached:
		p.cached++
		status = "CACHED"
	case domain.StatusFailed:
		p.fail++
		status = "FAIL"
	}

	switch res.Status {
	case domain.StatusFailed:
		chain := formatAttemptChain(res.Attempts, 2)
		if chain != "" {
			chain = " attempts=" + chain
		}
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s: %s%s (%s)\n",
			idx, total, key, status, res.ErrorCode, truncate(res.ErrorMsg, 160), chain, formatShortDuration(dur),
		)
	case domain.StatusCached:
		fmt.Fprintf(p.w, "[%d/%d] %s %s (%s)\n", idx, total, key, status, formatShortDuration(dur))
	default:
		note := formatFallbackNote(res)
		if !res.Complete && res.ID != "" {
			note += " incomplete"
		}
		fmt.Fprintf(p.w, "[%d/%d] %s %s sources=%s%s (%s)\n",
			idx, total, key, status, strings.Join(res.Sources, ","), note, formatShortDuration(dur),
		)
	}

	p.lastPrinted = time.Now()
	if idx >= total {
		p.stopTickerLocked()
	} else {
		p.startTickerIfNeededLocked()
	}
}

func (p *progressUI) startTickerIfNeededLocked() {
	if p.tickerStarted || p.total <= 0 || p.done >= p.total {
		return
	}
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}
	stop := p.stopCh

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d cached=%d fail=%d elapsed=%s\n",
						p.done, p.total, p.ok, p.cached, p.fail, formatElapsed(time.Since(p.startedAt)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func (p *progressUI) stopTickerLocked() {
	if !p.tickerStarted {
		return
	}
	close(p.stopCh)
	p.tickerStarted = false
}

// emitLocations 在结束后提示产物位置，不影响 stdout JSON。
func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "movies: %s\n", filepath.Join(eff.CacheDir, "movies"))
	fmt.Fprintf(w, "actors: %s\n", filepath.Join(eff.CacheDir, "actors"))
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func sourceChain(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, " -> ")
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

// formatFallbackNote 只展示首个失败来源的原因（否则会变成噪音）。
func formatFallbackNote(res domain.ItemResult) string {
	for _, a := range res.Attempts {
		if a.Kind != source.Failed.String() {
			continue
		}
		msg := strings.TrimSpace(a.Reason)
		if msg == "" {
			return " fallback(" + a.Source + ")"
		}
		return " fallback(" + a.Source + " " + truncate(msg, 90) + ")"
	}
	return ""
}

func formatAttemptChain(attempts []domain.SourceAttempt, max int) string {
	if len(attempts) == 0 || max == 0 {
		return ""
	}
	if max < 0 {
		max = len(attempts)
	}
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		s := strings.TrimSpace(a.Source) + ":" + strings.TrimSpace(a.Kind)
		if q := strings.TrimSpace(a.Query); q != "" {
			s += "(" + q + ")"
		}
		if r := strings.TrimSpace(a.Reason); r != "" {
			s += ":" + truncate(r, 80)
		}
		parts = append(parts, s)
		if len(parts) >= max {
			break
		}
	}
	return strings.Join(parts, ";")
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	default:
		return 0
	}
}
