package run

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/John-Robertt/autopdf/internal/app/planner"
	"github.com/John-Robertt/autopdf/internal/app/rename"
	"github.com/John-Robertt/autopdf/internal/code"
	"github.com/John-Robertt/autopdf/internal/config"
	"github.com/John-Robertt/autopdf/internal/docproc"
	"github.com/John-Robertt/autopdf/internal/domain"
	"github.com/John-Robertt/autopdf/internal/infra/fsx"
	"github.com/John-Robertt/autopdf/internal/prompt"
	"github.com/John-Robertt/autopdf/internal/scan"
)

// Publisher 把目标目录发布到外部存储（可选）。
type Publisher interface {
	Publish(ctx context.Context, localRoot string) (int, error)
	Target() string
}

// Deps 是一次 run 的外部协作者。Engine 必填；其余为 nil 时使用默认值或跳过对应步骤。
type Deps struct {
	Engine    docproc.Engine
	Prompter  prompt.Prompter                     // nil：手动输入请求一律视为取消
	Publisher Publisher                           // nil：不发布
	Copy      func(src, dst string) (bool, error) // nil：fsx.CopyFile
}

// Execute 执行一次 run（dry-run/apply），并返回对外稳定的 RunReport。
// 单文件失败降级为 item 级失败；只有引擎丢失、意外 panic 等才会让整批进入 Failed。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, deps, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出状态/日志/进度（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) domain.RunReport {
	if obs == nil {
		obs = nopObserver{}
	}
	if deps.Prompter == nil {
		deps.Prompter = prompt.Decline{}
	}
	if deps.Copy == nil {
		deps.Copy = fsx.CopyFile
	}

	obs.OnStart(eff)

	r := &runner{
		ctx:     ctx,
		eff:     eff,
		deps:    deps,
		obs:     obs,
		renamer: rename.New(),
		policy: planner.Policy{
			Extensions:      eff.Extensions,
			ExcludeProcess:  eff.ExcludeProcess,
			ExcludeCopy:     eff.ExcludeCopy,
			CopyAttachments: eff.CopyAttachments,
		},
		header: docproc.HeaderOptions{
			AddLogo:       eff.Header.Logo,
			AddFolderCode: eff.Header.FolderCode,
			AddLine:       eff.Header.Line,
			LogoPath:      eff.LogoPath,
		},
		footer: docproc.FooterOptions{
			AddLine:       eff.Footer.Line,
			AddAuthor:     eff.Footer.Author,
			AddPageNumber: eff.Footer.PageNumber,
			Author:        eff.Author,
		},
		state:   domain.StateIdle,
		planned: map[string]string{},
		rr: domain.RunReport{
			Sources:     append([]string(nil), eff.Sources...),
			Destination: eff.Destination,
			DryRun:      !eff.Apply,
			State:       domain.StateIdle,
			StartedAt:   time.Now().UTC(),
			Items:       make([]domain.ItemResult, 0, 128),
		},
	}

	if err := Preflight(eff, deps.Engine); err != nil {
		r.logf(domain.LevelError, "无法开始：%v", err)
		r.rr.Items = append(r.rr.Items, domain.ItemResult{
			Action:    domain.ActionProcess,
			Status:    domain.StatusFailed,
			ErrorCode: PreconditionCode(err),
			ErrorMsg:  err.Error(),
		})
		return r.finish()
	}

	// 引擎已获取：无论成功、失败还是 panic，都恰好释放一次。
	defer func() {
		if err := deps.Engine.Quit(); err != nil {
			r.logf(domain.LevelWarn, "关闭文档引擎失败：%v", err)
		}
	}()
	r.logf(domain.LevelInfo, "文档引擎：%s", deps.Engine.Name())

	if err := r.loop(); err != nil {
		r.fail(err)
		return r.finish()
	}
	if eff.Apply {
		r.logf(domain.LevelSuccess, "完成：处理 %d 个文档", r.progress.Processed)
	} else {
		r.logf(domain.LevelSuccess, "完成（dry-run）：规划 %d 个文档", r.progress.Processed)
	}
	if err := r.transition(domain.StateCompleted); err != nil {
		r.fail(err)
	}
	return r.finish()
}

type runner struct {
	ctx  context.Context
	eff  config.EffectiveConfig
	deps Deps
	obs  Observer

	renamer *rename.Engine
	policy  planner.Policy
	header  docproc.HeaderOptions
	footer  docproc.FooterOptions

	state    domain.State
	progress domain.Progress
	rr       domain.RunReport

	// planned 记录 dry-run 中规划的重命名（源绝对路径 → 新名字），处理阶段按新名字规划输出。
	planned map[string]string
}

func (r *runner) finish() domain.RunReport {
	r.rr.State = r.state
	r.rr.FinishedAt = time.Now().UTC()
	r.rr.Finalize()
	return r.rr
}

// loop 依次走完各状态；返回的 error 都是致命错误。panic 被转成 error。
func (r *runner) loop() (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("意外错误：%v\n%s", p, debug.Stack())
		}
	}()

	if err := r.transition(domain.StateCounting); err != nil {
		return err
	}
	t0 := time.Now()
	total := scan.Count(r.eff.Sources, r.eff.Extensions, r.eff.ExcludeProcess)
	r.rr.Total = total
	r.progress.Total = total
	r.obs.OnPhaseDone("count", map[string]any{"total": total}, time.Since(t0))

	if r.eff.AutoRename {
		if err := r.transition(domain.StateRenaming); err != nil {
			return err
		}
		if err := r.renamingPass(); err != nil {
			return err
		}
	}

	if err := r.transition(domain.StateProcessing); err != nil {
		return err
	}
	if err := r.processingPass(); err != nil {
		return err
	}

	if r.deps.Publisher != nil && r.eff.Apply {
		if err := r.transition(domain.StatePublishing); err != nil {
			return err
		}
		r.publish()
	}
	return nil
}

// transition 只接受合法迁移；非法迁移是编程错误，返回 error 由调用方转为 Failed。
func (r *runner) transition(to domain.State) error {
	if !domain.CanTransition(r.state, to) {
		return fmt.Errorf("非法状态迁移：%s -> %s", r.state, to)
	}
	r.state = to
	r.rr.State = to
	r.obs.OnState(to)
	r.emit(string(to))
	return nil
}

func (r *runner) fail(err error) {
	ec := domain.ErrCodeFatal
	if errors.Is(err, docproc.ErrEngineLost) {
		ec = domain.ErrCodeEngineLost
	}
	r.logf(domain.LevelError, "批处理中止：%v", err)
	r.rr.Items = append(r.rr.Items, domain.ItemResult{
		Action:    domain.ActionProcess,
		Status:    domain.StatusFailed,
		ErrorCode: ec,
		ErrorMsg:  err.Error(),
	})
	if r.state.Terminal() {
		return
	}
	r.state = domain.StateFailed
	r.rr.State = domain.StateFailed
	r.obs.OnState(domain.StateFailed)
	r.emit(string(domain.StateFailed))
}

func (r *runner) logf(level domain.Level, format string, args ...any) {
	r.obs.OnLog(domain.LogEntry{Level: level, Msg: fmt.Sprintf(format, args...)})
}

func (r *runner) emit(msg string) {
	r.progress.LastMessage = msg
	r.obs.OnProgress(r.progress)
}

// ---- RenamingPass ----

type pendingRename struct {
	file    domain.SourceFile
	outcome domain.RenameOutcome
}

func (r *runner) renamingPass() error {
	t0 := time.Now()
	var queue []pendingRename

	for _, src := range r.eff.Sources {
		err := scan.Walk(src, r.eff.ExcludeCopy, func(f scan.Folder) error {
			if err := r.ctx.Err(); err != nil {
				return err
			}
			if f.Err != nil {
				r.folderFailed(f, domain.ActionRename)
				return nil
			}
			c := code.FolderCode(f.Name)
			for _, sf := range f.Files {
				if r.eff.ExcludeCopy.Match(sf.Name) {
					continue
				}
				var o domain.RenameOutcome
				if r.eff.Apply {
					o = r.renamer.Rename(sf.AbsPath, c)
				} else {
					o = r.renamer.Plan(sf.AbsPath, c)
				}
				if o.Kind == domain.RenameNeedsInput {
					queue = append(queue, pendingRename{file: sf, outcome: o})
					continue
				}
				if o.Kind == domain.RenameSuccess && o.Planned {
					r.planned[sf.AbsPath] = o.NewName
				}
				r.recordRename(sf, o)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	// dry-run 不向用户索取输入：只报告哪些文件会需要输入。
	if !r.eff.Apply {
		for _, p := range queue {
			r.recordRename(p.file, p.outcome)
		}
		r.obs.OnPhaseDone("rename", map[string]any{"needs_input": len(queue)}, time.Since(t0))
		return nil
	}

	outcomes := make([]domain.RenameOutcome, len(queue))
	for i := range queue {
		outcomes[i] = queue[i].outcome
	}
	if len(queue) > 0 {
		r.logf(domain.LevelInfo, "%d 个文件需要手动输入 root", len(queue))
	}
	resolved, err := r.renamer.Resolve(r.ctx, outcomes, r.deps.Prompter, true)
	for i, o := range resolved {
		r.recordRename(queue[i].file, o)
	}
	r.obs.OnPhaseDone("rename", map[string]any{"manual": len(queue)}, time.Since(t0))
	return err
}

func (r *runner) recordRename(sf domain.SourceFile, o domain.RenameOutcome) {
	it := domain.ItemResult{Source: sf.SourceRoot, Path: sf.RelPath, Action: domain.ActionRename}
	if o.NewName != "" {
		it.Dst = filepath.Join(filepath.Dir(sf.RelPath), o.NewName)
	}

	switch o.Kind {
	case domain.RenameSuccess:
		if o.Planned {
			it.Status = domain.StatusPlanned
			r.logf(domain.LevelInfo, "将重命名：%s → %s", o.OldName, o.NewName)
		} else {
			it.Status = domain.StatusRenamed
			r.logf(domain.LevelSuccess, "重命名：%s → %s", o.OldName, o.NewName)
		}
	case domain.RenameNoOp:
		it.Status = domain.StatusUnchanged
	case domain.RenameConflict:
		it.Status = domain.StatusConflict
		it.ErrorCode = domain.ErrCodeTargetConflict
		it.ErrorMsg = fmt.Sprintf("目标已存在：%s", o.NewName)
		r.logf(domain.LevelWarn, "跳过重命名 %s：目标 %s 已存在", o.OldName, o.NewName)
	case domain.RenameNeedsInput:
		it.Status = domain.StatusNeedsInput
		it.ErrorCode = domain.ErrCodeNeedsInput
		it.ErrorMsg = "无法从文件名提取 root，需要手动输入"
		r.logf(domain.LevelWarn, "需要手动输入 root：%s", o.OldName)
	case domain.RenameSkipped:
		it.Status = domain.StatusSkipped
		it.ErrorCode = domain.ErrCodeRenameCancelled
		it.ErrorMsg = o.Reason
		r.logf(domain.LevelSkip, "未重命名 %s：%s", o.OldName, o.Reason)
	default:
		it.Status = domain.StatusFailed
		it.ErrorCode = domain.ErrCodeRenameFailed
		it.ErrorMsg = o.Reason
		r.logf(domain.LevelError, "重命名失败 %s：%s", o.OldName, o.Reason)
	}
	r.rr.Items = append(r.rr.Items, it)
}

// ---- ProcessingPass ----

func (r *runner) processingPass() error {
	t0 := time.Now()
	for _, src := range r.eff.Sources {
		err := scan.Walk(src, r.eff.ExcludeProcess, func(f scan.Folder) error {
			if err := r.ctx.Err(); err != nil {
				return err
			}
			if f.Err != nil {
				r.folderFailed(f, domain.ActionProcess)
				return nil
			}
			c := code.FolderCode(f.Name)
			for _, sf := range f.Files {
				if err := r.dispatch(r.asPlanned(sf), c); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	r.obs.OnPhaseDone("process", map[string]any{
		"processed": r.progress.Processed,
		"total":     r.progress.Total,
	}, time.Since(t0))
	return nil
}

// asPlanned 把 dry-run 中已规划重命名的文件换成新名字；apply 时文件已经真的改名，原样返回。
func (r *runner) asPlanned(sf domain.SourceFile) domain.SourceFile {
	if name, ok := r.planned[sf.AbsPath]; ok {
		return scan.Refresh(sf, name)
	}
	return sf
}

func (r *runner) dispatch(sf domain.SourceFile, c domain.FolderCode) error {
	d := planner.Classify(sf.Name, r.policy)
	dst := planner.DestPath(r.eff.Destination, sf.SourceRoot, sf.RelPath, r.eff.RespectStructure)

	switch d.Verdict {
	case domain.VerdictProcess:
		return r.process(sf, c, dst)
	case domain.VerdictSkipProcess:
		r.rr.Items = append(r.rr.Items, domain.ItemResult{
			Source: sf.SourceRoot, Path: sf.RelPath, Action: domain.ActionExclude, Status: domain.StatusExcluded,
		})
		r.logf(domain.LevelSkip, "排除处理：%s", sf.Name)
	}

	switch {
	case d.Copy:
		r.copy(sf, dst)
	case d.CopyExcluded:
		r.rr.Items = append(r.rr.Items, domain.ItemResult{
			Source: sf.SourceRoot, Path: sf.RelPath, Action: domain.ActionCopy, Status: domain.StatusExcluded,
		})
		r.logf(domain.LevelSkip, "排除复制：%s", sf.Name)
	}
	return nil
}

// process 处理单个文档；只有 ErrEngineLost 会作为致命错误返回。
func (r *runner) process(sf domain.SourceFile, c domain.FolderCode, dst string) error {
	it := domain.ItemResult{Source: sf.SourceRoot, Path: sf.RelPath, Action: domain.ActionProcess, Dst: filepath.Dir(dst)}

	dir := filepath.Dir(dst)
	native, pdf := planner.ExportNames(sf.Name, r.eff.CopySuffix)
	var targets []docproc.Target
	if r.eff.SaveModified {
		targets = append(targets, docproc.Target{Path: filepath.Join(dir, native), Format: docproc.FormatNative})
	}
	if r.eff.CopyAsPDF {
		targets = append(targets, docproc.Target{Path: filepath.Join(dir, pdf), Format: docproc.FormatPDF})
	}

	if len(targets) == 0 {
		it.Status = domain.StatusSkipped
		it.ErrorMsg = "没有启用任何输出（save_modified/copy_as_pdf）"
		r.rr.Items = append(r.rr.Items, it)
		r.logf(domain.LevelSkip, "未处理 %s：没有启用任何输出", sf.Name)
		return nil
	}

	if !r.eff.Apply {
		it.Status = domain.StatusPlanned
		for _, t := range targets {
			it.Outputs = append(it.Outputs, t.Path)
		}
		r.rr.Items = append(r.rr.Items, it)
		r.progress.Processed++
		r.emit(sf.Name)
		return nil
	}

	r.logf(domain.LevelInfo, "处理：%s", sf.Name)
	written, err := docproc.Stamp(r.deps.Engine, sf.AbsPath, c, r.header, r.footer, targets)
	it.Outputs = written
	if err != nil {
		it.Status = domain.StatusFailed
		it.ErrorCode = docproc.ErrCode(err)
		it.ErrorMsg = err.Error()
		r.rr.Items = append(r.rr.Items, it)
		if errors.Is(err, docproc.ErrEngineLost) {
			return err
		}
		r.logf(domain.LevelError, "处理失败 %s：%v", sf.Name, err)
		return nil
	}

	it.Status = domain.StatusProcessed
	r.rr.Items = append(r.rr.Items, it)
	r.progress.Processed++
	r.logf(domain.LevelSuccess, "已处理：%s", sf.Name)
	r.emit(sf.Name)
	return nil
}

func (r *runner) copy(sf domain.SourceFile, dst string) {
	it := domain.ItemResult{Source: sf.SourceRoot, Path: sf.RelPath, Action: domain.ActionCopy, Dst: dst}
	if !r.eff.Apply {
		it.Status = domain.StatusPlanned
		r.rr.Items = append(r.rr.Items, it)
		return
	}

	ok, err := r.deps.Copy(sf.AbsPath, dst)
	switch {
	case err != nil:
		it.Status = domain.StatusFailed
		it.ErrorCode = domain.ErrCodeCopyFailed
		if fsx.IsPathTypeConflict(err) {
			it.ErrorCode = domain.ErrCodePathConflict
		}
		it.ErrorMsg = err.Error()
		r.logf(domain.LevelError, "复制失败 %s：%v", sf.Name, err)
	case !ok:
		it.Status = domain.StatusSkipped
		it.ErrorMsg = "源与目标是同一文件"
		r.logf(domain.LevelSkip, "未复制 %s：源与目标是同一文件", sf.Name)
	default:
		it.Status = domain.StatusCopied
		r.logf(domain.LevelSuccess, "已复制：%s", sf.Name)
	}
	r.rr.Items = append(r.rr.Items, it)
}

func (r *runner) folderFailed(f scan.Folder, action string) {
	r.rr.Items = append(r.rr.Items, domain.ItemResult{
		Source:    f.SourceRoot,
		Path:      f.RelPath,
		Action:    action,
		Status:    domain.StatusFailed,
		ErrorCode: domain.ErrCodeIOFailed,
		ErrorMsg:  f.Err.Error(),
	})
	r.logf(domain.LevelError, "无法读取目录 %s：%v", f.AbsPath, f.Err)
}

// ---- Publishing ----

func (r *runner) publish() {
	t0 := time.Now()
	target := r.deps.Publisher.Target()
	r.logf(domain.LevelInfo, "发布到 %s", target)

	n, err := r.deps.Publisher.Publish(r.ctx, r.eff.Destination)
	it := domain.ItemResult{Action: domain.ActionPublish, Path: target, Dst: target, Status: domain.StatusPublished}
	if err != nil {
		it.Status = domain.StatusFailed
		it.ErrorCode = domain.ErrCodePublishFailed
		it.ErrorMsg = err.Error()
		r.logf(domain.LevelError, "发布失败（已上传 %d 个文件）：%v", n, err)
	} else {
		r.logf(domain.LevelSuccess, "已发布 %d 个文件", n)
	}
	r.rr.Items = append(r.rr.Items, it)
	r.obs.OnPhaseDone("publish", map[string]any{"uploaded": n}, time.Since(t0))
}
