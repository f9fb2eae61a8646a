package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	ModeMovies = "movies"
	ModeActors = "actors"
)

const (
	StatusScraped = "scraped"
	StatusCached  = "cached"
	StatusFailed  = "failed"
)

const (
	ErrCodeNoData      = "no_data"
	ErrCodeSourceError = "source_failed"
	ErrCodeIOFailed    = "io_failed"
	ErrCodeAborted     = "aborted"
	ErrCodeInvalidCode = "invalid_code"
)

// BatchReport 是批处理对外稳定输出（stdout JSON）的结构。
type BatchReport struct {
	RunID string `json:"run_id"`
	Mode  string `json:"mode"`
	Path  string `json:"path"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary   BatchSummary `json:"summary"`
	Items     []ItemResult `json:"items"`
	Reconcile *Reconcile   `json:"reconcile,omitempty"`

	// Aborted 表示用户在交互确认中选择了停止；已完成的条目仍然已落盘。
	Aborted bool `json:"aborted,omitempty"`
}

// BatchSummary 即 {total, scraped/updated, cached, failed}。
// failed 非零只做报告，不让整个批处理失败。
type BatchSummary struct {
	Total   int `json:"total"`
	Scraped int `json:"scraped"`
	Cached  int `json:"cached"`
	Failed  int `json:"failed"`
}

// ItemResult 是单个工作条目（CODE 或演员名）的处理结果。
type ItemResult struct {
	Key      string          `json:"key"`
	ID       string          `json:"id,omitempty"` // 演员模式：最终落盘的 slug
	Status   string          `json:"status"`
	Sources  []string        `json:"sources"`
	Attempts []SourceAttempt `json:"attempts"`

	Complete  bool   `json:"complete,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// SourceAttempt 记录一次来源调用（用于解释为什么缺字段/为什么提前停止）。
type SourceAttempt struct {
	Source string `json:"source"`
	Query  string `json:"query,omitempty"`
	Kind   string `json:"kind"` // "ok" / "not_found" / "failed"
	Reason string `json:"reason,omitempty"`
}

// Reconcile 统计演员批处理后对 movie 缓存的回填结果。
type Reconcile struct {
	Movies  int `json:"movies"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) items 稳定排序：按 key 字典序；key=="" 的条目排在最后
// 3) summary 由 items 计算得出
func (r *BatchReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Key
		b := r.Items[j].Key
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	s := BatchSummary{Total: len(r.Items)}
	for _, it := range r.Items {
		switch it.Status {
		case StatusScraped:
			s.Scraped++
		case StatusCached:
			s.Cached++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// MarshalJSON 保证 nil 切片输出为 []（下游脚本不必判空）。
func (r BatchReport) MarshalJSON() ([]byte, error) {
	type Alias BatchReport
	a := Alias(r)
	if a.Items == nil {
		a.Items = []ItemResult{}
	}
	for i := range a.Items {
		if a.Items[i].Sources == nil {
			a.Items[i].Sources = []string{}
		}
		if a.Items[i].Attempts == nil {
			a.Items[i].Attempts = []SourceAttempt{}
		}
	}
	return json.Marshal(a)
}
