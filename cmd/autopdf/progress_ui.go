package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/muesli/reflow/truncate"

	"github.com/John-Robertt/autopdf/internal/app/run"
	"github.com/John-Robertt/autopdf/internal/config"
	"github.com/John-Robertt/autopdf/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是逐行输出的交互终端进度（--no-tui）。
//
// 约束：
// - 只写 stderr，不污染 stdout 的 JSON 输出契约
// - keepalive：处理阶段长时间没有新行时，定期输出一行进度
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time
	progress    domain.Progress

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "dry-run"
	modeHint := " (不重命名/不写入/不上传)"
	if eff.Apply {
		mode = "apply"
		modeHint = ""
	}

	fmt.Fprintf(p.w, "[%s] autopdf run (%s)\n", now.Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	} else {
		fmt.Fprintln(p.w, "  config: (默认值)")
	}
	for _, s := range eff.Sources {
		fmt.Fprintf(p.w, "  source: %s\n", s)
	}
	fmt.Fprintf(p.w, "  dest: %s\n", eff.Destination)
	fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
	fmt.Fprintf(p.w, "  extensions: %s\n", strings.Join(eff.Extensions, ","))
	fmt.Fprintf(p.w, "  header: logo=%s folder_code=%s line=%s\n",
		onOff(eff.Header.Logo), onOff(eff.Header.FolderCode), onOff(eff.Header.Line))
	fmt.Fprintf(p.w, "  footer: line=%s author=%s page_number=%s\n",
		onOff(eff.Footer.Line), onOff(eff.Footer.Author), onOff(eff.Footer.PageNumber))
	fmt.Fprintf(p.w, "  outputs: native=%s pdf=%s attachments=%s structure=%s\n",
		onOff(eff.SaveModified), onOff(eff.CopyAsPDF), onOff(eff.CopyAttachments), onOff(eff.RespectStructure))
	fmt.Fprintf(p.w, "  auto_rename: %s\n", onOff(eff.AutoRename))
	fmt.Fprintf(p.w, "  exclusions: no_process=%s no_copy=%s\n",
		formatTokens(eff.ExcludeProcess.Tokens()), formatTokens(eff.ExcludeCopy.Tokens()))
	if eff.Publish.Enabled() {
		fmt.Fprintf(p.w, "  publish: %s/%s\n", eff.Publish.Endpoint, eff.Publish.Bucket)
	}
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnState(s domain.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case s == domain.StateProcessing && !p.tickerStarted:
		p.startTickerLocked()
	case s.Terminal():
		p.stopTickerLocked()
	}
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "count":
		fmt.Fprintf(p.w, "计数: documents=%d (%s)\n", intField(fields, "total"), formatShortDuration(dur))
	case "rename":
		if _, ok := fields["needs_input"]; ok {
			fmt.Fprintf(p.w, "重命名: needs_input=%d (%s)\n", intField(fields, "needs_input"), formatShortDuration(dur))
		} else {
			fmt.Fprintf(p.w, "重命名: manual=%d (%s)\n", intField(fields, "manual"), formatShortDuration(dur))
		}
	case "process":
		fmt.Fprintf(p.w, "处理: done=%d/%d (%s)\n",
			intField(fields, "processed"), intField(fields, "total"), formatShortDuration(dur))
	case "publish":
		fmt.Fprintf(p.w, "发布: uploaded=%d (%s)\n", intField(fields, "uploaded"), formatShortDuration(dur))
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnLog(e domain.LogEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "%s %s\n", e.Level.Marker(), clip(e.Msg, 200))
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnProgress(pr domain.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = pr
}

// Close 停止 keepalive；可重复调用。
func (p *progressUI) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTickerLocked()
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}
	stop := p.stopCh

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if time.Since(p.lastPrinted) > threshold {
					fmt.Fprintln(p.w, p.keepaliveLineLocked())
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func (p *progressUI) stopTickerLocked() {
	if !p.tickerStarted {
		return
	}
	close(p.stopCh)
	p.tickerStarted = false
}

func (p *progressUI) keepaliveLineLocked() string {
	return fmt.Sprintf("进度: done=%d/%d current=%s elapsed=%s",
		p.progress.Processed, p.progress.Total, clip(p.progress.LastMessage, 80), formatElapsed(time.Since(p.startedAt)),
	)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatTokens(xs []string) string {
	if len(xs) == 0 {
		return "-"
	}
	return strings.Join(xs, ",")
}

// clip 按显示宽度截断（CJK 算两列），超长时以 "..." 结尾。
func clip(s string, width uint) string {
	return truncate.StringWithTail(strings.TrimSpace(s), width, "...")
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		return int(x)
	default:
		return 0
	}
}
