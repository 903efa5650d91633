package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultRetryMax = 2

// Transport 把“代理 + keep-alive 策略 + 有界重试”固化为发布客户端的统一网络策略。
//
// 对象存储 SDK 只负责签名与分片，不关心这些细节。
type Transport struct {
	// Base 通常是 NewTransport 构造的 *http.Transport。
	Base http.RoundTripper

	// RetryMax 表示最大重试次数（不含首次尝试）。例如 2 表示最多 3 次尝试。
	RetryMax int

	// DisableKeepAlives 决定是否对 Request 设置 Close=true。
	// 真正禁用 keep-alive 依赖 Base.DisableKeepAlives。
	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// 只对“可重放”的请求做重试：GET/HEAD 且无 body（上传由 SDK 自己重试）。
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 {
		max = 0
	}
	if !canRetry {
		max = 0
	}

	var lastErr error
	for attempt := 0; attempt <= max; attempt++ {
		r := req
		if max > 0 || t.DisableKeepAlives {
			r = req.Clone(req.Context())
		}
		if t.DisableKeepAlives {
			r.Close = true
		}

		resp, err := t.Base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			// ctx 已取消：不再重试。
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// NewTransport 构造发布用的 RoundTripper。
//
// 规则：
// - proxyURL 为空：走环境变量代理（HTTPS_PROXY 等），保持 keep-alive
// - proxyURL 非空：必须走该代理，且禁用 keep-alive（每请求新连接）
// - GET/HEAD 有界重试
func NewTransport(proxyURL string) (*Transport, error) {
	proxyURL = strings.TrimSpace(proxyURL)
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConnsPerHost:   4,
	}

	disableKeepAlives := false
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("proxy 必须是完整 URL（例如 http://127.0.0.1:8080）")
		}
		base.Proxy = http.ProxyURL(u)
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	return &Transport{
		Base:              base,
		RetryMax:          defaultRetryMax,
		DisableKeepAlives: disableKeepAlives,
	}, nil
}
