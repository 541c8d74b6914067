// Package loki 把工作流动作作为日志行推送到 Loki，
// 供排障时在时间线上对照"谁在什么时候动了哪条链路"。
package loki

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/domain"
	httpclient "devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/http"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/log"
)

const pushPath = "/loki/api/v1/push"

// Config Loki 客户端配置。
type Config struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration
}

// Client 基于通用 HTTP 客户端实现 core.AnnotationSink。
// Enabled 为 false 时所有推送都是空操作。
type Client struct {
	http    *httpclient.Client
	enabled bool
}

func NewClient(cfg Config) *Client {
	return &Client{
		http: httpclient.NewClient(httpclient.Config{
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}, nil).WithLogger(log.Logger),
		enabled: cfg.Enabled,
	}
}

// pushRequest Loki push API 请求体。
type pushRequest struct {
	Streams []pushStream `json:"streams"`
}

type pushStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

// PushAnnotation 推送一条工作流动作标注。
// 时间戳使用纳秒级 epoch 字符串，这是 push API 的要求。
func (c *Client) PushAnnotation(ctx context.Context, record domain.WorkflowRecord) error {
	if !c.enabled {
		return nil
	}

	line, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "序列化标注失败")
	}

	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	labels := map[string]string{
		"source":    "itops-link-remediation",
		"workflow":  string(record.Workflow),
		"phase":     string(record.Phase),
		"device":    record.Device,
		"interface": record.Interface,
	}
	if record.AlertName != "" {
		labels["alertname"] = record.AlertName
	}

	body := pushRequest{
		Streams: []pushStream{{
			Stream: labels,
			Values: [][2]string{{strconv.FormatInt(ts.UnixNano(), 10), string(line)}},
		}},
	}

	resp, err := c.http.Post(ctx, pushPath, body, nil)
	if err != nil {
		return errors.Wrap(err, "推送标注失败")
	}
	return resp.Error()
}

var _ core.AnnotationSink = (*Client)(nil)
