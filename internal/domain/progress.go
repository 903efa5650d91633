package domain

// Level 是日志行的级别；CLI 依此渲染前缀标记。
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
	LevelSkip    Level = "skip"
)

// Marker 返回该级别对应的行首标记。
func (l Level) Marker() string {
	switch l {
	case LevelSuccess:
		return "✓"
	case LevelWarn:
		return "⚠"
	case LevelError:
		return "✗"
	case LevelSkip:
		return "⊗"
	default:
		return "·"
	}
}

// LogEntry 是一行面向人的日志（不可变值，可安全跨 goroutine 传递）。
type LogEntry struct {
	Level Level
	Msg   string
}

// Progress 是推送给交互界面的进度快照（不可变值）。
//
// Total 只是扫描阶段的估计分母，不参与执行判断。
type Progress struct {
	Processed   int
	Total       int
	LastMessage string
}

// Fraction 返回 [0,1] 区间的完成比例；Total 为 0 时返回 0。
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Processed) / float64(p.Total)
	if f > 1 {
		return 1
	}
	return f
}
