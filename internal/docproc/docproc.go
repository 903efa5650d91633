// Package docproc 定义文档引擎的协作契约：打开文档、加页眉页脚、导出副本。
//
// 引擎在一次批处理中只获取一次（Available 检查），结束时 Quit 恰好一次。
package docproc

import (
	"errors"
	"fmt"

	"github.com/John-Robertt/autopdf/internal/domain"
)

// Format 是导出格式。
type Format int

const (
	// FormatNative 保持源文件格式（.docx 仍是 .docx，.docm 保留宏）。
	FormatNative Format = iota
	FormatPDF
)

func (f Format) String() string {
	if f == FormatPDF {
		return "pdf"
	}
	return "native"
}

type HeaderOptions struct {
	AddLogo       bool
	AddFolderCode bool
	AddLine       bool
	LogoPath      string
}

type FooterOptions struct {
	AddLine       bool
	AddAuthor     bool
	AddPageNumber bool
	Author        string
}

var (
	// ErrEngineLost 表示运行中失去了引擎（进程退出、可执行文件消失等）。致命，终止整批。
	ErrEngineLost = errors.New("文档引擎已丢失")
	// ErrUnavailable 表示引擎在开始前就不可用（前置条件失败）。
	ErrUnavailable = errors.New("文档引擎不可用")
)

type Engine interface {
	Name() string
	Available() error
	Open(path string) (Document, error)
	Quit() error
}

// Document 是一个已打开的文档。Close(discard=true) 丢弃对源文件的改动（源文件永不被修改）。
type Document interface {
	ApplyHeader(code domain.FolderCode, opts HeaderOptions) error
	ApplyFooter(opts FooterOptions) error
	Export(target string, format Format) error
	Close(discard bool) error
}

// Stage 标记单文档处理失败在哪一步。
type Stage string

const (
	StageOpen   Stage = "open"
	StageStamp  Stage = "stamp"
	StageExport Stage = "export"
)

// StageError 包装单文档处理失败，Stage 决定报告里的错误码。
type StageError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %q：%v", e.Stage, e.Path, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ErrCode 返回 err 对应的报告错误码。
func ErrCode(err error) string {
	if errors.Is(err, ErrEngineLost) {
		return domain.ErrCodeEngineLost
	}
	var se *StageError
	if errors.As(err, &se) {
		switch se.Stage {
		case StageOpen:
			return domain.ErrCodeOpenFailed
		case StageStamp:
			return domain.ErrCodeStampFailed
		case StageExport:
			return domain.ErrCodeExportFailed
		}
	}
	return domain.ErrCodeIOFailed
}

// Target 是一次导出：目标完整路径 + 格式。
type Target struct {
	Path   string
	Format Format
}

// Stamp 对单个文档执行完整流程：打开 → 页眉 → 页脚 → 依次导出 → 丢弃改动关闭。
//
// 任一步失败都会关闭文档后返回 *StageError（ErrEngineLost 原样保留在错误链上）。
// 返回成功写出的目标路径。
func Stamp(eng Engine, src string, code domain.FolderCode, h HeaderOptions, f FooterOptions, targets []Target) (written []string, err error) {
	doc, err := eng.Open(src)
	if err != nil {
		return nil, &StageError{Stage: StageOpen, Path: src, Err: err}
	}
	defer func() {
		if cerr := doc.Close(true); cerr != nil && err == nil {
			err = &StageError{Stage: StageExport, Path: src, Err: cerr}
		}
	}()

	if err := doc.ApplyHeader(code, h); err != nil {
		return nil, &StageError{Stage: StageStamp, Path: src, Err: err}
	}
	if err := doc.ApplyFooter(f); err != nil {
		return nil, &StageError{Stage: StageStamp, Path: src, Err: err}
	}
	for _, t := range targets {
		if err := doc.Export(t.Path, t.Format); err != nil {
			return written, &StageError{Stage: StageExport, Path: t.Path, Err: err}
		}
		written = append(written, t.Path)
	}
	return written, nil
}
