package scan

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/autopdf/internal/domain"
	"github.com/John-Robertt/autopdf/internal/exclude"
)

// Folder 是遍历中的一个目录（含其直接子文件）。
//
// Err 非空表示该目录读取失败：Files 为空，且不会再深入其子目录。
type Folder struct {
	SourceRoot string
	AbsPath    string
	RelPath    string // 相对 SourceRoot；根目录为 "."
	Name       string // base name，用于推导 FolderCode
	Files      []domain.SourceFile
	Err        error
}

// Walk 自顶向下遍历 root：先回调当前目录，再按目录项顺序进入子目录。
//
// 规则：
// - 子目录名命中 prune 时整棵子树跳过（root 自身不受 prune 影响）
// - 目录项顺序即 os.ReadDir 返回的顺序（按名字排序，稳定可复现）
// - 回调返回非 nil 错误时立即终止遍历并原样返回该错误
// - 回调里对当前目录文件的重命名不影响遍历：子目录列表在回调前已读取
//
// 注意：只做 stat（DirEntry），不读文件内容。
func Walk(root string, prune exclude.Set, visit func(Folder) error) error {
	root = filepath.Clean(root)
	return walkDir(root, root, prune, visit)
}

func walkDir(root, dir string, prune exclude.Set, visit func(Folder) error) error {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		rel = dir
	}
	f := Folder{
		SourceRoot: root,
		AbsPath:    dir,
		RelPath:    rel,
		Name:       filepath.Base(dir),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		f.Err = err
		return visit(f)
	}

	subdirs := make([]string, 0, 8)
	f.Files = make([]domain.SourceFile, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			if prune.Match(name) {
				continue
			}
			subdirs = append(subdirs, filepath.Join(dir, name))
			continue
		}
		f.Files = append(f.Files, newSourceFile(root, dir, f.Name, name))
	}

	if err := visit(f); err != nil {
		return err
	}
	for _, sd := range subdirs {
		if err := walkDir(root, sd, prune, visit); err != nil {
			return err
		}
	}
	return nil
}

func newSourceFile(root, dir, folder, name string) domain.SourceFile {
	abs := filepath.Join(dir, name)
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		rel = name
	}
	return domain.SourceFile{
		SourceRoot: root,
		AbsPath:    abs,
		RelPath:    rel,
		Name:       name,
		Ext:        strings.ToLower(filepath.Ext(name)),
		Folder:     folder,
	}
}

// Refresh 在重命名之后重建 SourceFile（名字变了，其余派生字段随之更新）。
func Refresh(f domain.SourceFile, newName string) domain.SourceFile {
	return newSourceFile(f.SourceRoot, filepath.Dir(f.AbsPath), f.Folder, newName)
}

// HasExt 报告 name 的扩展名（大小写不敏感）是否在 exts 中。exts 形如 ".docx"。
func HasExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// Count 统计所有 roots 下“会被处理”的文档数量：扩展名在白名单中且未命中 excludeProcess。
// 目录名命中 excludeProcess 的子树整体跳过；不存在/不可读的目录直接略过。
//
// 该数字只作为进度分母，不参与执行判断。
func Count(roots []string, exts []string, excludeProcess exclude.Set) int {
	total := 0
	for _, root := range roots {
		_ = Walk(root, excludeProcess, func(f Folder) error {
			for _, sf := range f.Files {
				if HasExt(sf.Name, exts) && !excludeProcess.Match(sf.Name) {
					total++
				}
			}
			return nil
		})
	}
	return total
}
