package batch

import (
	"time"

	"github.com/John-Robertt/avmeta/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从批处理流程中解耦出来。
//
// 约束：
// - batch 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）
// - 事件按顺序在批处理 goroutine 上发出；实现若另起 goroutine 需自行加锁
type Observer interface {
	// OnStart 在批处理开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(mode, path string)
	// OnPhaseDone 在阶段结束时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemDone 在某个条目（CODE 或演员名）处理完成时调用。
	OnItemDone(idx, total int, key string, res domain.ItemResult, dur time.Duration)
}

type nopObserver struct{}

func (nopObserver) OnStart(string, string)                                       {}
func (nopObserver) OnPhaseDone(string, map[string]any, time.Duration)            {}
func (nopObserver) OnItemDone(int, int, string, domain.ItemResult, time.Duration) {}
