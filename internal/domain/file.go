package domain

// SourceFile 描述遍历时遇到的一个文件（只做 stat，不读内容）。
//
// 不变量：
// - AbsPath 必须是 clean + absolute
// - RelPath 相对于 SourceRoot（不含 SourceRoot 自身的目录名）
type SourceFile struct {
	SourceRoot string
	AbsPath    string
	RelPath    string
	Name       string // 含扩展名
	Ext        string // 小写，例如 ".docx"；无扩展名时为空
	Folder     string // 所在目录的 base name，用于推导 FolderCode
}
