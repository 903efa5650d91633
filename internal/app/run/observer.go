package run

import (
	"time"

	"github.com/John-Robertt/autopdf/internal/config"
	"github.com/John-Robertt/autopdf/internal/domain"
)

// Observer 用于把“状态/阶段/日志/进度”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：事件来自执行 goroutine，渲染通常在另一个 goroutine。
// - 传递的值都是不可变快照，实现可以直接转发到别的 goroutine。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用（早于前置检查）。
	OnStart(eff config.EffectiveConfig)
	// OnState 在每次状态迁移后调用。
	OnState(s domain.State)
	// OnPhaseDone 在阶段结束时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnLog 是一行面向人的日志。
	OnLog(e domain.LogEntry)
	// OnProgress 在每处理完一个文档、以及每次状态迁移时调用。
	OnProgress(p domain.Progress)
}

type nopObserver struct{}

func (nopObserver) OnStart(config.EffectiveConfig) {}
func (nopObserver) OnState(domain.State) {}
func (nopObserver) OnPhaseDone(string, map[string]any, time.Duration) {}
func (nopObserver) OnLog(domain.LogEntry) {}
func (nopObserver) OnProgress(domain.Progress) {}
