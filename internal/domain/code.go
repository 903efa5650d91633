package domain

import "strings"

// FolderCode 是从目录名推导出的短标识（例如 "CAL-05" 或 "01 - Introducción"），会写进页眉并参与重命名。
//
// 约束：只在遍历到该目录时现算，不跨遍历步骤缓存。
type FolderCode string

// SpacedDelim / CompactDelim 是两种互斥的命名约定分隔符；带空格的约定优先判断。
const (
	SpacedDelim  = " - "
	CompactDelim = "-"
)

// Spaced 报告该 code 是否属于带空格约定（决定拼接新文件名时的分隔符）。
func (c FolderCode) Spaced() bool {
	return strings.Contains(string(c), SpacedDelim)
}

// Separator 返回与该 code 约定一致的分隔符。
func (c FolderCode) Separator() string {
	if c.Spaced() {
		return SpacedDelim
	}
	return CompactDelim
}
