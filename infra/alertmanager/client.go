// Package alertmanager 封装 Alertmanager v2 API：
// 活跃告警查询、静默的创建/删除/批量清理、等待告警消散。
package alertmanager

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/domain"
	httpclient "devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/http"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/log"
)

const (
	alertsPath   = "/api/v2/alerts"
	silencesPath = "/api/v2/silences"
	silencePath  = "/api/v2/silence"

	createdBy = "itops-link-remediation"
)

// Config Alertmanager 客户端配置。
type Config struct {
	BaseURL            string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Client 基于通用 HTTP 客户端实现 core.AlertBackend。
type Client struct {
	http *httpclient.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		http: httpclient.NewClient(httpclient.Config{
			BaseURL:            cfg.BaseURL,
			Timeout:            cfg.Timeout,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}, nil).WithLogger(log.Logger),
	}
}

// amAlert 仅解析需要的字段。
type amAlert struct {
	Fingerprint string            `json:"fingerprint"`
	Labels      map[string]string `json:"labels"`
	Status      struct {
		State string `json:"state"`
	} `json:"status"`
}

// amMatcher 是静默规则的标签匹配器。
type amMatcher struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	IsRegex bool   `json:"isRegex"`
}

// amSilence 静默规则的创建请求/查询响应。
type amSilence struct {
	ID       string      `json:"id,omitempty"`
	Matchers []amMatcher `json:"matchers"`
	StartsAt string      `json:"startsAt"`
	EndsAt   string      `json:"endsAt"`
	CreateBy string      `json:"createdBy"`
	Comment  string      `json:"comment"`
	Status   *struct {
		State string `json:"state"`
	} `json:"status,omitempty"`
}

// IsActive 查询指定链路上的告警当前是否仍活跃。
// 过滤器带上 device/interface 标签，避免其他链路的同名告警串扰判定。
func (c *Client) IsActive(ctx context.Context, link domain.LinkRef, alertName string) (bool, error) {
	if alertName == "" {
		return false, errors.New("alertName 不能为空")
	}

	query := url.Values{}
	query.Add("filter", fmt.Sprintf(`alertname=%q`, alertName))
	query.Add("filter", fmt.Sprintf(`device=%q`, link.Device))
	query.Add("filter", fmt.Sprintf(`interface=%q`, link.Interface))
	query.Set("active", "true")
	path := alertsPath + "?" + query.Encode()

	resp, err := c.http.Get(ctx, path, nil)
	if err != nil {
		return false, errors.Wrap(err, "查询活跃告警失败")
	}
	if err := resp.Error(); err != nil {
		return false, err
	}

	var alerts []amAlert
	if err := resp.DecodeJSON(&alerts); err != nil {
		return false, err
	}
	return len(alerts) > 0, nil
}

// CreateSilence 创建静默并返回后端分配的静默 ID。
func (c *Client) CreateSilence(ctx context.Context, silence domain.Silence) (string, error) {
	if silence.AlertName == "" {
		return "", errors.New("alertname 不能为空")
	}

	body := amSilence{
		Matchers: []amMatcher{
			{Name: "alertname", Value: silence.AlertName},
			{Name: "device", Value: silence.Device},
			{Name: "interface", Value: silence.Interface},
		},
		StartsAt: silence.StartsAt,
		EndsAt:   silence.EndsAt,
		CreateBy: createdBy,
		Comment:  fmt.Sprintf("链路 %s/%s 隔离期间抑制告警", silence.Device, silence.Interface),
	}

	resp, err := c.http.Post(ctx, silencesPath, body, nil)
	if err != nil {
		return "", errors.Wrap(err, "创建静默失败")
	}
	if err := resp.Error(); err != nil {
		return "", err
	}

	var result struct {
		SilenceID string `json:"silenceID"`
	}
	if err := resp.DecodeJSON(&result); err != nil {
		return "", err
	}
	if result.SilenceID == "" {
		return "", errors.New("告警后端未返回静默 ID")
	}
	return result.SilenceID, nil
}

// DeleteSilence 删除指定静默。404 视为已不存在，不算错误。
func (c *Client) DeleteSilence(ctx context.Context, silenceID string) error {
	if silenceID == "" {
		return errors.New("silenceID 不能为空")
	}

	resp, err := c.http.Delete(ctx, silencePath+"/"+url.PathEscape(silenceID), nil)
	if err != nil {
		return errors.Wrap(err, "删除静默失败")
	}
	if resp.StatusCode == 404 {
		log.Debugf("静默 %s 已不存在，跳过删除", silenceID)
		return nil
	}
	return resp.Error()
}

// ExpireMatching 删除所有匹配链路与告警名的未过期静默，返回删除数量。
// 用于恢复工作流兜底清理隔离期间遗留的静默。
func (c *Client) ExpireMatching(ctx context.Context, link domain.LinkRef, alertName string) (int, error) {
	resp, err := c.http.Get(ctx, silencesPath, nil)
	if err != nil {
		return 0, errors.Wrap(err, "查询静默列表失败")
	}
	if err := resp.Error(); err != nil {
		return 0, err
	}

	var silences []amSilence
	if err := resp.DecodeJSON(&silences); err != nil {
		return 0, err
	}

	deleted := 0
	for _, s := range silences {
		if s.Status != nil && s.Status.State == "expired" {
			continue
		}
		if !matchesLink(s.Matchers, link, alertName) {
			continue
		}
		if err := c.DeleteSilence(ctx, s.ID); err != nil {
			log.Warnf("删除遗留静默 %s 失败: %v", s.ID, err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// matchesLink 判断静默的匹配器是否覆盖指定链路与告警名。
func matchesLink(matchers []amMatcher, link domain.LinkRef, alertName string) bool {
	values := make(map[string]string, len(matchers))
	for _, m := range matchers {
		values[m.Name] = m.Value
	}
	return values["alertname"] == alertName &&
		values["device"] == link.Device &&
		values["interface"] == link.Interface
}

// WaitUntilInactive 轮询等待指定链路上的告警消散。
// 在 timeout 内消散返回 true；超时返回 false；两者都不是错误。
// 单次查询失败按仍活跃处理并继续轮询，避免后端抖动导致工作流误判。
func (c *Client) WaitUntilInactive(ctx context.Context, link domain.LinkRef, alertName string, timeout, poll time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		active, err := c.IsActive(ctx, link, alertName)
		if err != nil {
			log.Warnf("查询告警 %s 活跃状态失败: %v，继续等待", alertName, err)
		} else if !active {
			return true, nil
		}

		if time.Now().After(deadline) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, errors.Wrap(ctx.Err(), "等待告警消散被取消")
		case <-ticker.C:
		}
	}
}

var _ core.AlertBackend = (*Client)(nil)
