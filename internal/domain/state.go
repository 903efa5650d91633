package domain

// State 是一次批处理的状态机状态。
//
//	Idle → CountingFiles → (RenamingPass) → ProcessingPass → (Publishing) → Completed
//
// Failed 是吸收态：任何活动状态遇到不可恢复错误都会进入。
type State string

const (
	StateIdle       State = "idle"
	StateCounting   State = "counting_files"
	StateRenaming   State = "renaming_pass"
	StateProcessing State = "processing_pass"
	StatePublishing State = "publishing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

var transitions = map[State][]State{
	StateIdle:       {StateCounting, StateFailed},
	StateCounting:   {StateRenaming, StateProcessing, StateFailed},
	StateRenaming:   {StateProcessing, StateFailed},
	StateProcessing: {StatePublishing, StateCompleted, StateFailed},
	StatePublishing: {StateCompleted, StateFailed},
}

// CanTransition 报告 from → to 是否是合法迁移。终态（Completed/Failed）不允许再迁移。
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal 报告是否为终态。
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}
