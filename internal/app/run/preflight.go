package run

import (
	"errors"
	"fmt"
	"os"

	"github.com/John-Robertt/autopdf/internal/config"
	"github.com/John-Robertt/autopdf/internal/docproc"
	"github.com/John-Robertt/autopdf/internal/infra/imgx"
)

const (
	PreNoExtensions      = "no_extensions"
	PreNoSources         = "no_sources"
	PreSourceMissing     = "source_missing"
	PreInvalidDest       = "invalid_destination"
	PreEngineUnavailable = "engine_unavailable"
	PreLogoRequired      = "logo_required"
	PreLogoInvalid       = "logo_invalid"
	PreAuthorRequired    = "author_required"
)

// PreconditionError 表示批处理开始前的检查失败；批处理不会开始。
type PreconditionError struct {
	Code string
	Path string
	Err  error
}

func (e *PreconditionError) Error() string {
	var msg string
	switch e.Code {
	case PreNoExtensions:
		msg = "没有选择任何要处理的扩展名"
	case PreNoSources:
		msg = "没有源目录"
	case PreSourceMissing:
		msg = fmt.Sprintf("源目录不存在或不是目录：%q", e.Path)
	case PreInvalidDest:
		msg = fmt.Sprintf("目标目录无效：%q", e.Path)
	case PreEngineUnavailable:
		msg = "文档引擎不可用"
	case PreLogoRequired:
		msg = fmt.Sprintf("启用了 logo 但没有可用的 logo 文件：%q", e.Path)
	case PreLogoInvalid:
		msg = fmt.Sprintf("logo 不是可识别的图片：%q", e.Path)
	case PreAuthorRequired:
		msg = "启用了作者页脚但 author 为空"
	default:
		msg = e.Code
	}
	if e.Err != nil {
		return fmt.Sprintf("%s：%s：%v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s：%s", e.Code, msg)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// PreconditionCode 从 error 中提取前置检查错误码；不是 *PreconditionError 时返回空串。
func PreconditionCode(err error) string {
	var e *PreconditionError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Preflight 按固定顺序做前置检查，返回第一个失败。最后一步才检查（并获取）引擎。
func Preflight(eff config.EffectiveConfig, eng docproc.Engine) error {
	if len(eff.Extensions) == 0 {
		return &PreconditionError{Code: PreNoExtensions}
	}
	if len(eff.Sources) == 0 {
		return &PreconditionError{Code: PreNoSources}
	}
	for _, s := range eff.Sources {
		fi, err := os.Stat(s)
		if err != nil {
			return &PreconditionError{Code: PreSourceMissing, Path: s, Err: err}
		}
		if !fi.IsDir() {
			return &PreconditionError{Code: PreSourceMissing, Path: s}
		}
	}

	if eff.Destination == "" {
		return &PreconditionError{Code: PreInvalidDest}
	}
	fi, err := os.Stat(eff.Destination)
	if err != nil {
		return &PreconditionError{Code: PreInvalidDest, Path: eff.Destination, Err: err}
	}
	if !fi.IsDir() {
		return &PreconditionError{Code: PreInvalidDest, Path: eff.Destination}
	}

	if eff.Header.Logo {
		if eff.LogoPath == "" {
			return &PreconditionError{Code: PreLogoRequired}
		}
		if _, err := imgx.ProbeLogo(eff.LogoPath); err != nil {
			if errors.Is(err, imgx.ErrInvalidImage) {
				return &PreconditionError{Code: PreLogoInvalid, Path: eff.LogoPath, Err: err}
			}
			return &PreconditionError{Code: PreLogoRequired, Path: eff.LogoPath, Err: err}
		}
	}
	if eff.Footer.Author && eff.Author == "" {
		return &PreconditionError{Code: PreAuthorRequired}
	}

	if eng == nil {
		return &PreconditionError{Code: PreEngineUnavailable}
	}
	if err := eng.Available(); err != nil {
		return &PreconditionError{Code: PreEngineUnavailable, Err: err}
	}
	return nil
}
