package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
)

func base(t *testing.T, tr *Transport) *http.Transport {
	t.Helper()
	b, ok := tr.Base.(*http.Transport)
	if !ok {
		t.Fatalf("期望 *http.Transport，实际 %T", tr.Base)
	}
	return b
}

func TestNewTransport_ProxyDisablesKeepAlive(t *testing.T) {
	tr, err := NewTransport("http://127.0.0.1:8080")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b := base(t, tr)
	req, _ := http.NewRequest(http.MethodGet, "http://minio.local/b", nil)
	u, err := b.Proxy(req)
	if err != nil || u == nil || u.Host != "127.0.0.1:8080" {
		t.Fatalf("代理地址不对：%v %v", u, err)
	}
	if !b.DisableKeepAlives || !tr.DisableKeepAlives {
		t.Fatalf("代理模式应禁用 keep-alive")
	}
}

func TestNewTransport_NoProxyKeepsKeepAlive(t *testing.T) {
	tr, err := NewTransport("  ")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if base(t, tr).DisableKeepAlives || tr.DisableKeepAlives {
		t.Fatalf("不期望禁用 keep-alive")
	}
	if tr.RetryMax != defaultRetryMax {
		t.Fatalf("RetryMax=%d", tr.RetryMax)
	}
}

func TestNewTransport_InvalidProxyURL(t *testing.T) {
	for _, raw := range []string{"http://[::1", "127.0.0.1:8080"} {
		if _, err := NewTransport(raw); err == nil {
			t.Fatalf("期望 %q 报错，但得到 nil", raw)
		}
	}
}

type flakyRT struct {
	calls  int
	fail   int
	closed []bool
}

func (f *flakyRT) RoundTrip(r *http.Request) (*http.Response, error) {
	f.calls++
	f.closed = append(f.closed, r.Close)
	if f.calls <= f.fail {
		return nil, errors.New("connection reset")
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

func TestRoundTrip_RetriesGetUntilSuccess(t *testing.T) {
	rt := &flakyRT{fail: 2}
	tr := &Transport{Base: rt, RetryMax: 2, DisableKeepAlives: true}

	req, _ := http.NewRequest(http.MethodGet, "http://minio.local/b?location=", nil)
	resp, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatalf("第三次尝试应成功：%v", err)
	}
	resp.Body.Close()
	if rt.calls != 3 {
		t.Fatalf("期望 3 次尝试，实际 %d", rt.calls)
	}
	for i, c := range rt.closed {
		if !c {
			t.Fatalf("第 %d 次请求没有设置 Close", i+1)
		}
	}
	if req.Close {
		t.Fatalf("不应修改调用方的 request")
	}
}

func TestRoundTrip_NoRetryForBody(t *testing.T) {
	rt := &flakyRT{fail: 1}
	tr := &Transport{Base: rt, RetryMax: 2}

	req, _ := http.NewRequest(http.MethodPut, "http://minio.local/b/k", strings.NewReader("data"))
	if _, err := tr.RoundTrip(req); err == nil {
		t.Fatalf("期望错误")
	}
	if rt.calls != 1 {
		t.Fatalf("带 body 的请求不应重试，实际 %d 次", rt.calls)
	}
}

func TestRoundTrip_StopsWhenContextCancelled(t *testing.T) {
	rt := &flakyRT{fail: 5}
	tr := &Transport{Base: rt, RetryMax: 3}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodHead, "http://minio.local/b", nil)
	if _, err := tr.RoundTrip(req); err == nil {
		t.Fatalf("期望错误")
	}
	if rt.calls != 1 {
		t.Fatalf("ctx 取消后不应重试，实际 %d 次", rt.calls)
	}
}
