package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusProcessed  = "processed"
	StatusCopied     = "copied"
	StatusRenamed    = "renamed"
	StatusPlanned    = "planned"
	StatusUnchanged  = "unchanged"
	StatusSkipped    = "skipped"
	StatusExcluded   = "excluded"
	StatusFailed     = "failed"
	StatusConflict   = "conflict"
	StatusNeedsInput = "needs_input"
	StatusPublished  = "published"
)

const (
	ActionRename  = "rename"
	ActionProcess = "process"
	ActionCopy    = "copy"
	ActionExclude = "exclude"
	ActionPublish = "publish"
)

const (
	ErrCodeTargetConflict  = "target_conflict"
	ErrCodeNeedsInput      = "needs_input"
	ErrCodeRenameCancelled = "rename_cancelled"
	ErrCodeRenameFailed    = "rename_failed"
	ErrCodeCopyFailed      = "copy_failed"
	ErrCodePathConflict    = "path_conflict"
	ErrCodeOpenFailed      = "open_failed"
	ErrCodeStampFailed     = "stamp_failed"
	ErrCodeExportFailed    = "export_failed"
	ErrCodePublishFailed   = "publish_failed"
	ErrCodeIOFailed        = "io_failed"
	ErrCodeEngineLost      = "engine_lost"
	ErrCodeFatal           = "fatal"
)

// RunReport 是对外稳定输出（--report 文件 / 非 TTY 下的 stdout JSON）的结构。
type RunReport struct {
	Sources     []string `json:"sources"`
	Destination string   `json:"destination"`
	DryRun      bool     `json:"dry_run"`
	State       State    `json:"state"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Total 是计数阶段得到的估计分母（仅用于进度展示）。
	Total int `json:"total"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Processed  int `json:"processed"`
	Copied     int `json:"copied"`
	Renamed    int `json:"renamed"`
	Planned    int `json:"planned"`
	Unchanged  int `json:"unchanged"`
	Skipped    int `json:"skipped"`
	Excluded   int `json:"excluded"`
	Failed     int `json:"failed"`
	Conflicts  int `json:"conflicts"`
	NeedsInput int `json:"needs_input"`
	Published  int `json:"published"`
}

// ItemResult 是单个文件在单个动作（rename/process/copy/exclude/publish）上的结果。
// 同一文件可以同时出现 rename 与 process 两条。
type ItemResult struct {
	Source string `json:"source"`
	Path   string `json:"path"` // 相对 Source 的路径
	Action string `json:"action"`
	Status string `json:"status"`

	Dst     string   `json:"dst"`
	Outputs []string `json:"outputs"`

	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

var actionOrder = map[string]int{
	ActionRename:  0,
	ActionExclude: 1,
	ActionProcess: 2,
	ActionCopy:    3,
	ActionPublish: 4,
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) items 稳定排序：source → path → action（rename 在前）；source=="" 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a, b := r.Items[i], r.Items[j]
		if (a.Source == "") != (b.Source == "") {
			return b.Source == ""
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return actionOrder[a.Action] < actionOrder[b.Action]
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusProcessed:
			s.Processed++
		case StatusCopied:
			s.Copied++
		case StatusRenamed:
			s.Renamed++
		case StatusPlanned:
			s.Planned++
		case StatusUnchanged:
			s.Unchanged++
		case StatusSkipped:
			s.Skipped++
		case StatusExcluded:
			s.Excluded++
		case StatusFailed:
			s.Failed++
		case StatusConflict:
			s.Conflicts++
		case StatusNeedsInput:
			s.NeedsInput++
		case StatusPublished:
			s.Published++
		}
	}
	r.Summary = s
}

// MarshalJSON 保证 nil 切片输出为 []，避免下游区分 null 与空数组。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	a := Alias(r)
	if a.Sources == nil {
		a.Sources = []string{}
	}
	a.Items = append([]ItemResult{}, a.Items...)
	for i := range a.Items {
		if a.Items[i].Outputs == nil {
			a.Items[i].Outputs = []string{}
		}
	}
	return json.Marshal(a)
}
