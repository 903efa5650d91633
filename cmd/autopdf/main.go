package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/autopdf/internal/app/run"
	"github.com/John-Robertt/autopdf/internal/config"
	"github.com/John-Robertt/autopdf/internal/docproc"
	"github.com/John-Robertt/autopdf/internal/docproc/docxengine"
	"github.com/John-Robertt/autopdf/internal/domain"
	"github.com/John-Robertt/autopdf/internal/infra/fsx"
	"github.com/John-Robertt/autopdf/internal/infra/objstore"
	"github.com/John-Robertt/autopdf/internal/prompt"
)

// streams 收拢进程的标准输入输出以及它们是否连着终端，测试里可以整体替换。
type streams struct {
	in     io.Reader
	out    io.Writer
	err    io.Writer
	inTTY  bool
	outTTY bool
	errTTY bool
}

func osStreams() streams {
	return streams{
		in:     os.Stdin,
		out:    os.Stdout,
		err:    os.Stderr,
		inTTY:  isTTY(os.Stdin),
		outTTY: isTTY(os.Stdout),
		errTTY: isTTY(os.Stderr),
	}
}

type runOptions struct {
	configPath string
	sources    []string
	dest       string
	apply      bool
	rename     bool
	noTUI      bool
	report     string

	destSet   bool
	applySet  bool
	renameSet bool
}

// app 是一次 CLI 调用的上下文；newEngine 可在测试中替换为不依赖 soffice 的实现。
type app struct {
	io        streams
	newEngine func(eff config.EffectiveConfig) docproc.Engine
	exitCode  int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], osStreams())
	stop()
	os.Exit(code)
}

// execute 返回进程退出码：0 成功；1 有失败条目或批处理失败；2 参数错误。
func execute(ctx context.Context, args []string, s streams) int {
	a := &app{io: s, newEngine: defaultEngine}
	return a.execute(ctx, args)
}

func (a *app) execute(ctx context.Context, args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(a.io.out)
	root.SetErr(a.io.err)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(a.io.err, "参数错误：%v\n", err)
		return 2
	}
	return a.exitCode
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "autopdf",
		Short:         "为 Word 文档批量加页眉页脚，并导出到目标目录",
		SilenceErrors: true,
	}

	var opts runOptions
	runCmd := &cobra.Command{
		Use:   "run [source...]",
		Short: "运行批处理（默认 dry-run）",
		Long: `扫描源目录，按文件夹代码（可选）重命名文档，然后给 Word 文档加页眉页脚，
另存到目标目录（原格式和/或 PDF），其余附件按原结构复制。

未指定 source 时使用配置文件里的 sources；配置文件默认是当前目录的 autopdf.yaml。`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			opts.sources = args
			opts.destSet = f.Changed("dest")
			opts.applySet = f.Changed("apply")
			opts.renameSet = f.Changed("rename")
			a.exitCode = a.run(cmd.Context(), opts)
			return nil
		},
	}
	f := runCmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "配置文件路径（默认 ./autopdf.yaml，不存在则全用默认值）")
	f.StringVar(&opts.dest, "dest", "", "目标目录（覆盖 user.destination）")
	f.BoolVar(&opts.apply, "apply", false, "真正写入（默认 dry-run）；--apply=false 可覆盖配置中的 apply: true")
	f.BoolVar(&opts.rename, "rename", false, "处理前先按文件夹代码重命名源文件（覆盖 copy_options.auto_rename）")
	f.BoolVar(&opts.noTUI, "no-tui", false, "交互终端下也使用逐行输出而不是全屏界面")
	f.StringVar(&opts.report, "report", "", "把 RunReport JSON 额外写入该文件")

	root.AddCommand(runCmd)
	return root
}

func (a *app) run(ctx context.Context, opts runOptions) int {
	s := a.io

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(s.err, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		ConfigPath: opts.configPath,
		Sources:    opts.sources,
		Dest:       opts.dest,
		DestSet:    opts.destSet,
		Apply:      opts.apply,
		ApplySet:   opts.applySet,
		Rename:     opts.rename,
		RenameSet:  opts.renameSet,
	})
	if err != nil {
		rr := reportForConfigError(opts, err)
		a.finishReport(rr, opts.report)
		return 1
	}

	deps := run.Deps{Engine: a.newEngine(eff)}
	if eff.Publish.Enabled() {
		pub, err := objstore.New(eff.Publish)
		if err != nil {
			fmt.Fprintf(s.err, "初始化发布目标失败：%v\n", err)
			return 1
		}
		deps.Publisher = pub
	}

	var rr domain.RunReport
	switch {
	case s.errTTY && !opts.noTUI:
		rr = runWithTUI(ctx, eff, deps, s.err)
	case s.errTTY:
		// 逐行模式：手动输入走 stdin（stdin 不是终端时直接视为取消）。
		if s.inTTY {
			deps.Prompter = &prompt.Line{In: s.in, Out: s.err}
		}
		ui := newProgressUI(s.err)
		rr = run.ExecuteWithObserver(ctx, eff, deps, ui)
		ui.Close()
	default:
		deps.Prompter = prompt.Decline{}
		rr = run.Execute(ctx, eff, deps)
	}

	if !a.finishReport(rr, opts.report) {
		return 1
	}
	if s.errTTY {
		emitLocations(s.err, eff, opts.report)
	}
	return exitCode(rr)
}

// finishReport 先落盘 --report（如有），再输出到终端；落盘失败返回 false。
func (a *app) finishReport(rr domain.RunReport, reportPath string) bool {
	ok := true
	if reportPath != "" {
		if err := writeReportFile(reportPath, rr); err != nil {
			fmt.Fprintf(a.io.err, "写入 report 失败：%v\n", err)
			ok = false
		}
	}
	emitReport(a.io, rr)
	return ok
}

func exitCode(rr domain.RunReport) int {
	if rr.State == domain.StateCompleted && rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

func defaultEngine(eff config.EffectiveConfig) docproc.Engine {
	return docxengine.New(docxengine.Options{
		Soffice: eff.Soffice,
		NeedPDF: eff.CopyAsPDF,
		Timeout: eff.ConvertTimeout,
	})
}

func summaryLine(rr domain.RunReport) string {
	sm := rr.Summary
	return fmt.Sprintf("完成（%s）：processed=%d copied=%d renamed=%d planned=%d skipped=%d failed=%d conflicts=%d needs_input=%d",
		rr.State, sm.Processed, sm.Copied, sm.Renamed, sm.Planned, sm.Skipped, sm.Failed, sm.Conflicts, sm.NeedsInput,
	)
}

func emitReport(s streams, rr domain.RunReport) {
	if s.outTTY {
		fmt.Fprintln(s.out, summaryLine(rr))
		for _, it := range rr.Items {
			if it.Status != domain.StatusFailed && it.Status != domain.StatusConflict {
				continue
			}
			key := it.Path
			if it.Source != "" {
				key = filepath.Join(it.Source, it.Path)
			}
			if key == "" {
				key = "<batch>"
			}
			code := it.ErrorCode
			if code == "" {
				code = it.Status
			}
			fmt.Fprintf(s.err, "%s %s: %s\n", key, code, it.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（摘要走 stderr）。
	enc := json.NewEncoder(s.out)
	_ = enc.Encode(rr)
	fmt.Fprintln(s.err, summaryLine(rr))
}

func reportForConfigError(opts runOptions, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Sources:    append([]string(nil), opts.sources...),
		DryRun:     !(opts.applySet && opts.apply),
		State:      domain.StateIdle,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Action:    domain.ActionProcess,
			Status:    domain.StatusFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(filepath.Dir(abs), filepath.Base(abs), b)
}

func emitLocations(w io.Writer, eff config.EffectiveConfig, reportPath string) {
	fmt.Fprintf(w, "dest: %s\n", eff.Destination)
	if reportPath != "" {
		fmt.Fprintf(w, "report: %s\n", reportPath)
	}
}

func isTTY(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
