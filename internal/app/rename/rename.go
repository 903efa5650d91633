// Package rename 让文件名带上所在目录的代码：<code><sep><root><ext>。
//
// 两阶段：自动阶段能从文件名提取 root 的直接处理；提取不到的返回 NeedsInput，
// 由调用方在整轮遍历之后通过 Resolve 交给用户补 root。
package rename

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/autopdf/internal/code"
	"github.com/John-Robertt/autopdf/internal/domain"
	"github.com/John-Robertt/autopdf/internal/infra/fsx"
	"github.com/John-Robertt/autopdf/internal/prompt"
)

// Engine 执行（或规划）单文件重命名。零值不可用，使用 New。
type Engine struct {
	rename func(src, dst string) error
}

func New() *Engine {
	return &Engine{rename: fsx.Rename}
}

// Plan 计算 path 在 code 下的目标名，但不改动文件系统。成功时 Planned=true。
func (e *Engine) Plan(path string, c domain.FolderCode) domain.RenameOutcome {
	return e.run(path, c, false)
}

// Rename 计算目标名并执行重命名。
func (e *Engine) Rename(path string, c domain.FolderCode) domain.RenameOutcome {
	return e.run(path, c, true)
}

// ApplyRoot 用外部给出的 root 完成一个 NeedsInput 结果；与自动阶段走同样的 NoOp/Conflict 检查。
// apply=false 时只规划。
//
// 约束：root 只能是文件名的一部分；带路径分隔符、"." 或 ".." 的 root 记为 Skipped，文件不动。
func (e *Engine) ApplyRoot(o domain.RenameOutcome, root string, apply bool) domain.RenameOutcome {
	root = strings.TrimSpace(root)
	if err := checkRoot(root); err != nil {
		return skipped(o, err.Error())
	}
	_, ext := code.SplitExt(o.OldName)
	return e.finish(o.Path, o.Dir, o.OldName, o.Code, code.Compose(o.Code, root, ext), apply)
}

func checkRoot(root string) error {
	switch {
	case root == "":
		return errors.New("root 为空")
	case root == "." || root == "..":
		return fmt.Errorf("root %q 无效", root)
	case strings.ContainsAny(root, `/\`+"\x00"):
		return fmt.Errorf("root %q 不能包含路径分隔符", root)
	}
	return nil
}

func (e *Engine) run(path string, c domain.FolderCode, apply bool) domain.RenameOutcome {
	path = filepath.Clean(path)
	dir, name := filepath.Dir(path), filepath.Base(path)

	root, found := code.ExtractRoot(name)
	if !found {
		base, _ := code.SplitExt(name)
		return domain.RenameOutcome{
			Kind:          domain.RenameNeedsInput,
			Path:          path,
			Code:          c,
			OldName:       name,
			SuggestedRoot: base,
			Dir:           dir,
		}
	}
	_, ext := code.SplitExt(name)
	return e.finish(path, dir, name, c, code.Compose(c, root, ext), apply)
}

func (e *Engine) finish(path, dir, oldName string, c domain.FolderCode, newName string, apply bool) domain.RenameOutcome {
	out := domain.RenameOutcome{Path: path, Code: c, OldName: oldName, NewName: newName, Dir: dir}

	if newName == oldName {
		out.Kind = domain.RenameNoOp
		out.NewName = ""
		return out
	}

	target := filepath.Join(dir, newName)
	if ti, err := os.Stat(target); err == nil {
		// 大小写不同但指向同一文件（大小写不敏感文件系统）：允许改名。
		si, serr := os.Stat(path)
		if serr != nil || !os.SameFile(si, ti) {
			out.Kind = domain.RenameConflict
			return out
		}
	} else if !os.IsNotExist(err) {
		out.Kind = domain.RenameFailure
		out.Reason = err.Error()
		return out
	}

	if !apply {
		out.Kind = domain.RenameSuccess
		out.Planned = true
		return out
	}
	if err := e.rename(path, target); err != nil {
		out.Kind = domain.RenameFailure
		out.Reason = err.Error()
		return out
	}
	out.Kind = domain.RenameSuccess
	return out
}

// Resolve 依次为 queue 中的 NeedsInput 结果向用户索取 root。
//
// - 给出非空 root：ApplyRoot（apply 决定是否真正执行）
// - 取消：记为 Skipped，不再重试
// - prompter 返回错误（例如上下文结束）：当前及剩余项都记为 Skipped，错误原样返回
//
// 返回值与 queue 一一对应。
func (e *Engine) Resolve(ctx context.Context, queue []domain.RenameOutcome, p prompt.Prompter, apply bool) ([]domain.RenameOutcome, error) {
	out := make([]domain.RenameOutcome, 0, len(queue))
	for i, o := range queue {
		root, ok, err := p.RequestRoot(ctx, prompt.Request{
			FileName:      o.OldName,
			SuggestedRoot: o.SuggestedRoot,
			Folder:        filepath.Base(o.Dir),
			Code:          o.Code,
		})
		if err != nil {
			for _, rest := range queue[i:] {
				out = append(out, skipped(rest, fmt.Sprintf("手动输入中断：%v", err)))
			}
			return out, err
		}
		if !ok {
			out = append(out, skipped(o, "用户取消"))
			continue
		}
		out = append(out, e.ApplyRoot(o, root, apply))
	}
	return out, nil
}

func skipped(o domain.RenameOutcome, reason string) domain.RenameOutcome {
	o.Kind = domain.RenameSkipped
	o.Reason = reason
	return o
}
