package code

import (
	"strings"

	"github.com/John-Robertt/autopdf/internal/domain"
)

// SplitExt 在最后一个 "." 处切分文件名；ext 含点，无点时为空。
func SplitExt(filename string) (base, ext string) {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return filename, ""
	}
	return filename[:i], filename[i:]
}

// ExtractRoot 从文件名中剥离已有的前导 code，返回有意义的剩余部分（root）。
//
// - 带空格约定：去扩展名后按 " - " 切分，至少 3 段时 root = 第 3 段起重新以 " - " 拼接
// - 紧凑约定：从左到右数 "-"，root = 第 2 个 "-" 之后的全部内容（非空才算）
//
// 要求“第 2 个”分隔符，是因为 code 本身（如 "CAL-05"）已经带了一个。
// found=false 不是错误：调用方应转入手动输入。
func ExtractRoot(filename string) (root string, found bool) {
	base, _ := SplitExt(filename)

	if parts := strings.Split(base, domain.SpacedDelim); len(parts) >= 3 {
		root = strings.Join(parts[2:], domain.SpacedDelim)
		if root != "" {
			return root, true
		}
	}

	seen := 0
	for i := 0; i < len(base); i++ {
		if base[i] != '-' {
			continue
		}
		seen++
		if seen == 2 {
			if rest := base[i+1:]; rest != "" {
				return rest, true
			}
			break
		}
	}
	return "", false
}
