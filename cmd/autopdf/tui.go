package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/John-Robertt/autopdf/internal/app/run"
	"github.com/John-Robertt/autopdf/internal/config"
	"github.com/John-Robertt/autopdf/internal/domain"
	"github.com/John-Robertt/autopdf/internal/prompt"
)

// 日志区最多保留的行数。
const tuiMaxLogs = 500

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#BD93F9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#50FA7B"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F1FA8C"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
	skipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BE9FD"))
	promptStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FFB86C")).
			Padding(0, 1)
)

// ---- 消息 ----

type logMsg domain.LogEntry
type progressMsg domain.Progress
type stateMsg domain.State
type promptMsg struct{ p *prompt.Pending }
type doneMsg struct{}

// waitForPrompt 阻塞等待下一个手动输入请求；收到后由 Update 重新挂起。
func waitForPrompt(reqs <-chan *prompt.Pending) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-reqs
		if !ok {
			return nil
		}
		return promptMsg{p: p}
	}
}

// ---- Observer：把 run 的事件转成 tea.Msg ----

type sender interface {
	Send(msg tea.Msg)
}

type tuiObserver struct {
	p sender
}

var _ run.Observer = tuiObserver{}

func (o tuiObserver) OnStart(config.EffectiveConfig) {}
func (o tuiObserver) OnState(s domain.State)         { o.p.Send(stateMsg(s)) }
func (o tuiObserver) OnLog(e domain.LogEntry)        { o.p.Send(logMsg(e)) }
func (o tuiObserver) OnProgress(p domain.Progress)   { o.p.Send(progressMsg(p)) }

func (o tuiObserver) OnPhaseDone(name string, _ map[string]any, dur time.Duration) {
	o.p.Send(logMsg{Level: domain.LevelInfo, Msg: fmt.Sprintf("阶段 %s 结束 (%s)", name, formatShortDuration(dur))})
}

// ---- Model ----

type tuiModel struct {
	title   string
	reqs    <-chan *prompt.Pending
	cancel  context.CancelFunc
	started time.Time

	bar   progress.Model
	input textinput.Model

	state    domain.State
	prog     domain.Progress
	logs     []domain.LogEntry
	pending  *prompt.Pending
	stopping bool
	done     bool

	width  int
	height int
}

func newTUIModel(eff config.EffectiveConfig, reqs <-chan *prompt.Pending, cancel context.CancelFunc) *tuiModel {
	mode := "dry-run"
	if eff.Apply {
		mode = "apply"
	}
	in := textinput.New()
	in.Prompt = "root> "
	in.Placeholder = "输入 root；留空或 Esc 取消"
	in.CharLimit = 255

	return &tuiModel{
		title:   fmt.Sprintf("autopdf (%s) → %s", mode, eff.Destination),
		reqs:    reqs,
		cancel:  cancel,
		started: time.Now(),
		bar:     progress.New(progress.WithDefaultGradient()),
		input:   in,
		state:   domain.StateIdle,
		width:   80,
		height:  24,
	}
}

func (m *tuiModel) Init() tea.Cmd {
	return waitForPrompt(m.reqs)
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.bar.Width = max(10, msg.Width-24)
		m.input.Width = max(10, msg.Width-12)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case logMsg:
		m.logs = append(m.logs, domain.LogEntry(msg))
		if len(m.logs) > tuiMaxLogs {
			m.logs = m.logs[len(m.logs)-tuiMaxLogs:]
		}
		return m, nil

	case progressMsg:
		m.prog = domain.Progress(msg)
		return m, nil

	case stateMsg:
		m.state = domain.State(msg)
		return m, nil

	case promptMsg:
		m.pending = msg.p
		m.input.SetValue(msg.p.SuggestedRoot)
		m.input.CursorEnd()
		return m, tea.Batch(m.input.Focus(), textinput.Blink)

	case doneMsg:
		m.done = true
		if m.pending != nil {
			m.pending.Cancel()
			m.pending = nil
		}
		return m, tea.Quit
	}

	if m.pending != nil {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *tuiModel) handleKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if k.Type == tea.KeyCtrlC {
		// 请求停止：当前文件夹结束后批处理进入 Failed，随后 doneMsg 退出界面。
		m.stopping = true
		if m.pending != nil {
			m.pending.Cancel()
			m.pending = nil
			m.input.Blur()
		}
		if m.cancel != nil {
			m.cancel()
		}
		return m, nil
	}

	if m.pending == nil {
		return m, nil
	}

	switch k.Type {
	case tea.KeyEnter:
		v := strings.TrimSpace(m.input.Value())
		m.pending.Answer(v)
		if v == "" {
			m.logs = append(m.logs, domain.LogEntry{Level: domain.LevelSkip, Msg: "已取消：" + m.pending.FileName})
		}
		return m, m.resolvePrompt()
	case tea.KeyEsc:
		m.pending.Cancel()
		m.logs = append(m.logs, domain.LogEntry{Level: domain.LevelSkip, Msg: "已取消：" + m.pending.FileName})
		return m, m.resolvePrompt()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(k)
	return m, cmd
}

func (m *tuiModel) resolvePrompt() tea.Cmd {
	m.pending = nil
	m.input.Blur()
	m.input.SetValue("")
	return waitForPrompt(m.reqs)
}

func (m *tuiModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(clip(m.title, uint(max(20, m.width-2)))))
	b.WriteString("\n")
	status := string(m.state)
	if m.stopping && !m.state.Terminal() {
		status += "（正在停止…）"
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("状态: %s  用时: %s", status, formatElapsed(time.Since(m.started)))))
	b.WriteString("\n\n")

	b.WriteString(m.bar.ViewAs(m.prog.Fraction()))
	b.WriteString(fmt.Sprintf("  %d/%d\n", m.prog.Processed, m.prog.Total))
	if m.prog.LastMessage != "" {
		b.WriteString(dimStyle.Render(clip(m.prog.LastMessage, uint(max(20, m.width-2)))))
	}
	b.WriteString("\n\n")

	for _, e := range m.visibleLogs() {
		b.WriteString(renderLog(e, m.width))
		b.WriteString("\n")
	}

	if m.pending != nil {
		b.WriteString("\n")
		b.WriteString(promptStyle.Render(m.promptView()))
		b.WriteString("\n")
	} else if !m.done {
		b.WriteString(dimStyle.Render("Ctrl+C 停止"))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *tuiModel) promptView() string {
	p := m.pending
	return strings.Join([]string{
		warnStyle.Render("无法从文件名里识别 root，请手动输入"),
		"文件: " + p.FileName,
		fmt.Sprintf("文件夹: %s  代码: %s", p.Folder, p.Code),
		m.input.View(),
		dimStyle.Render("Enter 确认 · Esc 取消"),
	}, "\n")
}

// visibleLogs 返回能放进剩余高度的最近几行。
func (m *tuiModel) visibleLogs() []domain.LogEntry {
	reserved := 8
	if m.pending != nil {
		reserved += 8
	}
	n := m.height - reserved
	if n < 3 {
		n = 3
	}
	if len(m.logs) <= n {
		return m.logs
	}
	return m.logs[len(m.logs)-n:]
}

func renderLog(e domain.LogEntry, width int) string {
	marker := e.Level.Marker()
	switch e.Level {
	case domain.LevelSuccess:
		marker = successStyle.Render(marker)
	case domain.LevelWarn:
		marker = warnStyle.Render(marker)
	case domain.LevelError:
		marker = errorStyle.Render(marker)
	case domain.LevelSkip:
		marker = skipStyle.Render(marker)
	default:
		marker = dimStyle.Render(marker)
	}
	return marker + " " + clip(e.Msg, uint(max(20, width-3)))
}

// runWithTUI 在后台 goroutine 执行批处理，前台运行全屏界面并代答手动输入请求。
func runWithTUI(ctx context.Context, eff config.EffectiveConfig, deps run.Deps, w io.Writer) domain.RunReport {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	broker := prompt.NewBroker()
	deps.Prompter = broker

	m := newTUIModel(eff, broker.Requests(), cancel)
	p := tea.NewProgram(m, tea.WithOutput(w), tea.WithAltScreen())

	resCh := make(chan domain.RunReport, 1)
	go func() {
		rr := run.ExecuteWithObserver(ctx, eff, deps, tuiObserver{p: p})
		resCh <- rr
		p.Send(doneMsg{})
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(w, "界面异常退出：%v\n", err)
	}
	// 界面已退出：不会再有人回答手动输入，取消后等待批处理收尾。
	cancel()
	rr := <-resCh

	for _, e := range tailErrors(m.logs, 20) {
		fmt.Fprintf(w, "%s %s\n", e.Level.Marker(), e.Msg)
	}
	return rr
}

// tailErrors 返回最近的 n 条错误/警告日志，界面关闭后留在终端里。
func tailErrors(logs []domain.LogEntry, n int) []domain.LogEntry {
	var out []domain.LogEntry
	for _, e := range logs {
		if e.Level == domain.LevelError || e.Level == domain.LevelWarn {
			out = append(out, e)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}
