package planner

import (
	"path/filepath"

	"github.com/John-Robertt/autopdf/internal/code"
	"github.com/John-Robertt/autopdf/internal/domain"
	"github.com/John-Robertt/autopdf/internal/exclude"
	"github.com/John-Robertt/autopdf/internal/scan"
)

// Policy 是分类所需的全部输入（批处理开始时一次性解析好，执行期间只读）。
type Policy struct {
	Extensions      []string // 白名单，形如 ".docx"
	ExcludeProcess  exclude.Set
	ExcludeCopy     exclude.Set
	CopyAttachments bool
}

// Classify 决定单个文件的去向（首个命中的规则生效）：
//
//  1. 白名单扩展名 + 命中排除处理 → VerdictSkipProcess，按复制规则决定是否复制
//  2. 白名单扩展名 + 未命中排除处理 → VerdictProcess
//  3. 其它 → VerdictAttachment，按复制规则决定是否复制
//
// 复制规则：CopyAttachments 打开且未命中排除复制。
func Classify(name string, p Policy) domain.Decision {
	if scan.HasExt(name, p.Extensions) {
		if !p.ExcludeProcess.Match(name) {
			return domain.Decision{Verdict: domain.VerdictProcess}
		}
		return withCopy(domain.VerdictSkipProcess, name, p)
	}
	return withCopy(domain.VerdictAttachment, name, p)
}

func withCopy(v domain.Verdict, name string, p Policy) domain.Decision {
	excluded := p.ExcludeCopy.Match(name)
	return domain.Decision{
		Verdict:      v,
		Copy:         p.CopyAttachments && !excluded,
		CopyExcluded: excluded,
	}
}

// DestPath 计算文件在目标树中的完整路径。
//
// - respectStructure：<destRoot>/<sourceRoot 的目录名>/<relPath>
// - 否则扁平：<destRoot>/<文件名>（不同来源目录的同名文件互相覆盖，后写者胜）
func DestPath(destRoot, sourceRoot, relPath string, respectStructure bool) string {
	if respectStructure {
		return filepath.Join(destRoot, filepath.Base(filepath.Clean(sourceRoot)), relPath)
	}
	return filepath.Join(destRoot, filepath.Base(relPath))
}

// ExportNames 返回处理后产物的文件名：Word 副本（<base><suffix><ext>）与 PDF（<base>.pdf）。
func ExportNames(filename, suffix string) (native, pdf string) {
	base, ext := code.SplitExt(filename)
	return base + suffix + ext, base + ".pdf"
}
