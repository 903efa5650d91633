// Package prompt 提供“向用户索取文件 root”的几种实现。
//
// 约束：工作 goroutine 只通过 Prompter 发起请求并阻塞等待；
// 真正与终端交互的一方（TUI 事件循环或行式读取）在别的 goroutine 里应答。
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/John-Robertt/autopdf/internal/domain"
)

// Request 描述一次手动输入请求。
type Request struct {
	FileName      string // 当前完整文件名（含扩展名）
	SuggestedRoot string // 预填值：去掉扩展名的文件名
	Folder        string // 所在目录名
	Code          domain.FolderCode
}

// Prompter 向用户索取 root。
//
// ok=false 表示用户取消（或给出空值）；err 只在上下文结束等非交互性失败时返回。
type Prompter interface {
	RequestRoot(ctx context.Context, req Request) (root string, ok bool, err error)
}

// Decline 是非交互环境下的 Prompter：所有请求都视为取消。
type Decline struct{}

func (Decline) RequestRoot(context.Context, Request) (string, bool, error) {
	return "", false, nil
}

// Line 是行式 Prompter：向 Out 打印提示，从 In 读取一行。
// 空行视为取消；EOF 之后的所有请求也都视为取消。
type Line struct {
	In  io.Reader
	Out io.Writer

	mu  sync.Mutex
	sc  *bufio.Scanner
	eof bool
}

func (l *Line) RequestRoot(ctx context.Context, req Request) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.eof {
		return "", false, nil
	}
	if l.sc == nil {
		l.sc = bufio.NewScanner(l.In)
	}

	fmt.Fprintf(l.Out, "文件 %q 无法识别 root（目录 %q，代码 %q）\n", req.FileName, req.Folder, string(req.Code))
	fmt.Fprintf(l.Out, "请输入 root（回车取消，建议：%s）> ", req.SuggestedRoot)

	if !l.sc.Scan() {
		l.eof = true
		fmt.Fprintln(l.Out)
		return "", false, l.sc.Err()
	}
	root := strings.TrimSpace(l.sc.Text())
	if root == "" {
		return "", false, nil
	}
	return root, true, nil
}
