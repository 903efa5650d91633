package prompt

import (
	"context"
	"strings"
)

type reply struct {
	root string
	ok   bool
}

// Pending 是一次已投递、等待应答的请求。Answer/Cancel 只有第一次调用生效。
type Pending struct {
	Request

	reply chan reply
}

// Answer 以 root 应答；去掉首尾空白后为空等价于 Cancel。
func (p *Pending) Answer(root string) {
	root = strings.TrimSpace(root)
	p.send(reply{root: root, ok: root != ""})
}

// Cancel 以“取消”应答。
func (p *Pending) Cancel() { p.send(reply{}) }

func (p *Pending) send(r reply) {
	select {
	case p.reply <- r:
	default:
	}
}

// Broker 把工作 goroutine 的请求转交给 UI goroutine。
//
// 工作方：RequestRoot 投递 *Pending 并阻塞等待应答。
// UI 方：从 Requests() 取出 *Pending，交互后调用 Answer/Cancel。
type Broker struct {
	reqs chan *Pending
}

func NewBroker() *Broker {
	return &Broker{reqs: make(chan *Pending)}
}

// Requests 返回待应答请求的通道。
func (b *Broker) Requests() <-chan *Pending { return b.reqs }

func (b *Broker) RequestRoot(ctx context.Context, req Request) (string, bool, error) {
	p := &Pending{Request: req, reply: make(chan reply, 1)}

	select {
	case b.reqs <- p:
	case <-ctx.Done():
		return "", false, ctx.Err()
	}

	select {
	case r := <-p.reply:
		return r.root, r.ok, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}
