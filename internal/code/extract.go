package code

import (
	"strings"

	"github.com/John-Robertt/autopdf/internal/domain"
)

// FolderCode 从目录 base name 推导 FolderCode。
//
// 规则（互斥，按顺序）：
// 1) 含 " - "：取前两段，以 " - " 重新拼接（"01 - Introducción - Parte 1" → "01 - Introducción"）
// 2) 含 "-"：取前两段，以 "-" 重新拼接（"CAL-05-Patata" → "CAL-05"；只有一个 "-" 时等于自身）
// 3) 都不含：原样返回
//
// 永不失败：兜底是名字本身。
func FolderCode(name string) domain.FolderCode {
	if strings.Contains(name, domain.SpacedDelim) {
		parts := strings.Split(name, domain.SpacedDelim)
		if len(parts) >= 2 {
			return domain.FolderCode(parts[0] + domain.SpacedDelim + parts[1])
		}
	} else if strings.Contains(name, domain.CompactDelim) {
		parts := strings.Split(name, domain.CompactDelim)
		if len(parts) >= 2 {
			return domain.FolderCode(parts[0] + domain.CompactDelim + parts[1])
		}
	}
	return domain.FolderCode(name)
}
