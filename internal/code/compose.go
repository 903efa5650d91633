package code

import "github.com/John-Robertt/autopdf/internal/domain"

// Compose 用 code + root + ext 拼出新文件名；分隔符只由 code 的约定决定，与 root 内容无关。
func Compose(c domain.FolderCode, root, ext string) string {
	return string(c) + c.Separator() + root + ext
}
