package domain

import "path/filepath"

// RenameKind 标记一次重命名尝试的结果类别；每次尝试恰好一个。
type RenameKind string

const (
	RenameSuccess    RenameKind = "success"
	RenameNoOp       RenameKind = "noop"
	RenameConflict   RenameKind = "conflict"
	RenameNeedsInput RenameKind = "needs_input"
	RenameFailure    RenameKind = "failure"
	// RenameSkipped 只出现在手动输入阶段：用户显式取消，不会自动重试。
	RenameSkipped RenameKind = "skipped"
)

// RenameOutcome 是 RenameEngine 的带标签结果。
//
// 字段按 Kind 取用：
// - success：OldName/NewName（Planned=true 表示 dry-run 只规划未执行）
// - noop：OldName（已是正确名字）
// - conflict：NewName 为期望的目标名
// - needs_input：OldName/SuggestedRoot/Dir，需要外部提供 root 后二次处理
// - failure：Reason
type RenameOutcome struct {
	Kind RenameKind
	Path string // 源文件绝对路径
	Code FolderCode

	OldName string
	NewName string

	SuggestedRoot string
	Dir           string // 所在目录的绝对路径（所有 Kind 都会填写）

	Reason  string
	Planned bool
}

// NewPath 返回成功/冲突时的目标绝对路径；其它情况返回原路径。
func (o RenameOutcome) NewPath() string {
	if o.NewName == "" || o.Dir == "" {
		return o.Path
	}
	return filepath.Join(o.Dir, o.NewName)
}
