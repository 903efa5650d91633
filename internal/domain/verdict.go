package domain

// Verdict 是单个文件的分类结论；各文件独立计算，互不依赖。
type Verdict string

const (
	// VerdictProcess：目标 Word 扩展名，且未命中“排除处理”。
	VerdictProcess Verdict = "process"
	// VerdictSkipProcess：目标 Word 扩展名，但命中“排除处理”；是否复制由复制规则决定。
	VerdictSkipProcess Verdict = "skip_process"
	// VerdictAttachment：非目标扩展名（附件）；是否复制由复制规则决定。
	VerdictAttachment Verdict = "attachment"
)

// Decision 是分类器的完整输出：Verdict + 复制资格。
type Decision struct {
	Verdict Verdict
	// Copy 表示该文件应交给复制协作方（仅对 VerdictSkipProcess / VerdictAttachment 有意义）。
	Copy bool
	// CopyExcluded 表示命中了“排除复制”（用于日志区分“被排除”与“复制开关关闭”）。
	CopyExcluded bool
}
