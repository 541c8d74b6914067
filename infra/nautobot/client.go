// Package nautobot 封装资产库（Nautobot）的接口状态读写与设备地址查询。
// 接口记录 ID 通过 Redis 缓存，避免每次变更都先走一次列表查询。
package nautobot

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/cache"
	httpclient "devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/http"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/log"
)

const (
	interfacesPath = "/api/dcim/interfaces/"
	graphqlPath    = "/api/graphql/"

	ifaceIDCachePrefix = "itops:nautobot:iface:"
	defaultCacheTTL    = 12 * time.Hour
)

// Nautobot 中接口状态对象的名称。
var sotStatusNames = map[domain.SotStatus]string{
	domain.SotStatusQuarantined: "Quarantined",
	domain.SotStatusActive:      "Active",
}

// Config Nautobot 客户端配置。
type Config struct {
	BaseURL            string
	Token              string
	Timeout            time.Duration
	InsecureSkipVerify bool
	CacheTTL           time.Duration
}

// Client 基于通用 HTTP 客户端实现 core.SourceOfTruth。
type Client struct {
	http     *httpclient.Client
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewClient 创建 Nautobot 客户端。cache 可为 nil，此时每次都实时查询接口 ID。
func NewClient(cfg Config, c cache.Cache) *Client {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	token := cfg.Token
	return &Client{
		http: httpclient.NewClient(httpclient.Config{
			BaseURL:            cfg.BaseURL,
			Timeout:            cfg.Timeout,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}, func() string {
			return "Token " + token
		}).WithLogger(log.Logger),
		cache:    c,
		cacheTTL: ttl,
	}
}

// SetInterfaceStatus 把接口状态置为 quarantined/active。
func (c *Client) SetInterfaceStatus(ctx context.Context, link domain.LinkRef, status domain.SotStatus) error {
	statusName, ok := sotStatusNames[status]
	if !ok {
		return errors.Errorf("未知的接口状态: %s", status)
	}

	id, err := c.lookupInterfaceID(ctx, link)
	if err != nil {
		return err
	}

	resp, err := c.http.Patch(ctx, interfacesPath+id+"/", map[string]any{
		"status": map[string]any{"name": statusName},
	}, nil)
	if err != nil {
		return errors.Wrapf(err, "更新接口 %s 状态失败", link)
	}
	return resp.Error()
}

// lookupInterfaceID 查询接口记录 ID，优先走缓存。
func (c *Client) lookupInterfaceID(ctx context.Context, link domain.LinkRef) (string, error) {
	cacheKey := ifaceIDCachePrefix + link.Key()

	if c.cache != nil {
		id, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil && id != "":
			return id, nil
		case err != nil && !errors.Is(err, cache.ErrMiss):
			// 缓存故障降级为实时查询
			log.Debugf("读取接口 ID 缓存失败: %v", err)
		}
	}

	path := fmt.Sprintf("%s?device=%s&name=%s",
		interfacesPath, url.QueryEscape(link.Device), url.QueryEscape(link.Interface))
	resp, err := c.http.Get(ctx, path, nil)
	if err != nil {
		return "", errors.Wrapf(err, "查询接口 %s 失败", link)
	}
	if err := resp.Error(); err != nil {
		return "", err
	}

	var result struct {
		Count   int `json:"count"`
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := resp.DecodeJSON(&result); err != nil {
		return "", err
	}
	if len(result.Results) == 0 {
		return "", errors.Errorf("资产库中不存在接口 %s", link)
	}

	id := result.Results[0].ID
	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, id, c.cacheTTL); err != nil {
			log.Warnf("缓存接口 ID 失败: %v", err)
		}
	}
	return id, nil
}

// DevicePrimaryIP 查询设备管理地址：先查资产库主 IP，查不到再回落 DNS。
func (c *Client) DevicePrimaryIP(ctx context.Context, device string) (string, error) {
	if device == "" {
		return "", errors.New("device 不能为空")
	}

	ip, err := c.queryPrimaryIP(ctx, device)
	if err == nil && ip != "" {
		return ip, nil
	}
	if err != nil {
		log.Warnf("资产库查询设备 %s 主 IP 失败: %v，回落 DNS", device, err)
	}

	addrs, dnsErr := net.DefaultResolver.LookupHost(ctx, device)
	if dnsErr != nil || len(addrs) == 0 {
		return "", errors.Errorf("无法解析设备 %s 的管理地址（资产库与 DNS 均未命中）", device)
	}
	return addrs[0], nil
}

// queryPrimaryIP 通过 GraphQL 查询设备的 primary_ip4 地址。
func (c *Client) queryPrimaryIP(ctx context.Context, device string) (string, error) {
	query := fmt.Sprintf(`query { devices(name: %q) { primary_ip4 { address } } }`, device)

	resp, err := c.http.Post(ctx, graphqlPath, map[string]any{"query": query}, nil)
	if err != nil {
		return "", errors.Wrap(err, "GraphQL 查询失败")
	}
	if err := resp.Error(); err != nil {
		return "", err
	}

	var result struct {
		Data struct {
			Devices []struct {
				PrimaryIP4 *struct {
					Address string `json:"address"`
				} `json:"primary_ip4"`
			} `json:"devices"`
		} `json:"data"`
	}
	if err := resp.DecodeJSON(&result); err != nil {
		return "", err
	}

	for _, d := range result.Data.Devices {
		if d.PrimaryIP4 == nil || d.PrimaryIP4.Address == "" {
			continue
		}
		// 地址带掩码（如 "10.0.0.1/24"），去掉掩码部分
		addr := d.PrimaryIP4.Address
		if i := strings.Index(addr, "/"); i > 0 {
			addr = addr[:i]
		}
		return addr, nil
	}
	return "", nil
}

var _ core.SourceOfTruth = (*Client)(nil)
