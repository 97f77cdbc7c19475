package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// RedirectTransport 把请求改写到测试服务器，并记录请求行
type RedirectTransport struct {
	target *url.URL

	mu    sync.Mutex
	calls []string
}

// Calls 返回已发送请求的 "METHOD /path" 列表
func (t *RedirectTransport) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

// RoundTrip 实现 http.RoundTripper
func (t *RedirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	t.calls = append(t.calls, req.Method+" "+req.URL.Path)
	t.mu.Unlock()

	out := req.Clone(req.Context())
	out.URL.Scheme = t.target.Scheme
	out.URL.Host = t.target.Host
	out.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(out)
}

// NewTestClient 返回请求全部发往 ts 的客户端，配置里的地址可以保持真实值
func NewTestClient(ts *httptest.Server) *http.Client {
	c, _ := NewRecordingClient(ts)
	return c
}

// NewRecordingClient 同 NewTestClient，额外返回 transport 以便检查请求
func NewRecordingClient(ts *httptest.Server) (*http.Client, *RedirectTransport) {
	u, _ := url.Parse(ts.URL)
	tr := &RedirectTransport{target: u}
	return &http.Client{Timeout: 5 * time.Second, Transport: tr}, tr
}
