// Package http 封装对 Alertmanager、Nautobot、Loki 等 REST 依赖的访问。
package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/log"
	"github.com/pkg/errors"
)

const defaultTimeout = 30 * time.Second

// Config HTTP 客户端配置。
type Config struct {
	BaseURL            string
	Timeout            time.Duration
	Headers            map[string]string // 每次请求都会携带的 Header
	InsecureSkipVerify bool
}

// Client JSON REST 客户端。
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
	logger     *log.Log
	getAuth    func() string // 每次请求时取最新 Authorization，token 轮换后无需重建客户端
}

// NewClient 创建 HTTP 客户端实例。getAuth 允许为 nil。
func NewClient(cfg Config, getAuth func() string) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	transport := &http.Transport{}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		headers: cfg.Headers,
		getAuth: getAuth,
	}
}

// WithLogger 为客户端绑定实例级 logger，开启后每次请求记录 Debug 日志。
func (c *Client) WithLogger(logger *log.Log) *Client {
	c.logger = logger
	return c
}

// Request 通用请求结构。
type Request struct {
	Method  string
	Path    string            // 相对于 BaseURL 的路径
	Headers map[string]string // 与默认 Header 合并，同名覆盖
	Body    interface{}       // 非 nil 时序列化为 JSON
}

// Response 通用响应结构。
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Do 执行 HTTP 请求并读完响应体。
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	url := c.baseURL + req.Path

	var bodyReader io.Reader
	var requestBody []byte
	if req.Body != nil {
		var err error
		requestBody, err = json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrap(err, "序列化请求体失败")
		}
		bodyReader = bytes.NewReader(requestBody)
	}

	// 请求、响应与耗时统一在 defer 中记录
	var statusCode int
	var respBody []byte
	defer func(start time.Time) {
		if c.logger == nil {
			return
		}
		c.logger.Debugw("HTTP",
			"method", req.Method,
			"url", url,
			"request_body", string(requestBody),
			"status_code", statusCode,
			"response_body", string(respBody),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}(time.Now())

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
	if err != nil {
		return nil, errors.Wrap(err, "创建请求失败")
	}

	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.getAuth != nil {
		if auth := c.getAuth(); auth != "" {
			httpReq.Header.Set("Authorization", auth)
		}
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "请求失败")
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	respBody, err = io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "读取响应失败")
	}
	statusCode = httpResp.StatusCode

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
	}, nil
}

func (c *Client) Get(ctx context.Context, path string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Headers: headers})
}

func (c *Client) Post(ctx context.Context, path string, body interface{}, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, Headers: headers})
}

func (c *Client) Patch(ctx context.Context, path string, body interface{}, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body, Headers: headers})
}

func (c *Client) Delete(ctx context.Context, path string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path, Headers: headers})
}

// DecodeJSON 将响应体解析为 JSON。
func (r *Response) DecodeJSON(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrap(err, "解析 JSON 失败")
	}
	return nil
}

// IsSuccess 检查响应是否成功（2xx）。
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Error 非 2xx 时返回带状态码和响应体的错误。
func (r *Response) Error() error {
	if r.IsSuccess() {
		return nil
	}
	return errors.Errorf("请求失败，状态码: %d, 响应: %s", r.StatusCode, string(r.Body))
}
