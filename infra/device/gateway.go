// Package device 通过 SSH 接入网络设备，向上层提供会话抽象。
// 地址解析由调用方注入（资产库主 IP 优先，DNS 兜底），本包只管连接与执行。
package device

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/log"
)

const (
	defaultSSHPort        = 22
	defaultConnectTimeout = 10 * time.Second
	defaultCommandTimeout = 30 * time.Second
)

// Config 设备 SSH 接入配置。
type Config struct {
	Username       string
	Password       string
	Port           int
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
}

// Resolver 把设备名解析成管理地址。
type Resolver func(ctx context.Context, device string) (string, error)

// Gateway 基于 SSH 实现 core.DeviceGateway。
type Gateway struct {
	cfg     Config
	resolve Resolver
}

func NewGateway(cfg Config, resolve Resolver) *Gateway {
	if cfg.Port <= 0 {
		cfg.Port = defaultSSHPort
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	return &Gateway{cfg: cfg, resolve: resolve}
}

// Connect 解析设备地址并建立 SSH 会话。
func (g *Gateway) Connect(ctx context.Context, device string) (core.DeviceSession, error) {
	if device == "" {
		return nil, errors.New("device 不能为空")
	}
	if g.resolve == nil {
		return nil, errors.New("地址解析器未注入")
	}

	host, err := g.resolve(ctx, device)
	if err != nil {
		return nil, errors.Wrapf(err, "解析设备 %s 地址失败", device)
	}

	sshCfg := &ssh.ClientConfig{
		User: g.cfg.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(g.cfg.Password),
		},
		// 网络设备的主机密钥由带外流程管理，这里不做校验
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         g.cfg.ConnectTimeout,
	}

	addr := fmt.Sprintf("%s:%d", host, g.cfg.Port)

	// 手动建立 TCP 连接以受 context 控制，再在其上做 SSH 握手
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "连接设备 %s (%s) 失败", device, addr)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(g.cfg.ConnectTimeout)
	}
	_ = conn.SetDeadline(deadline)

	cConn, chans, reqs, err := ssh.NewClientConn(conn, addr, sshCfg)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "设备 %s SSH 握手失败", device)
	}

	// 握手完成后清掉 deadline，交由每条命令自己的超时控制
	_ = conn.SetDeadline(time.Time{})

	log.Debugf("设备 %s SSH 会话已建立: %s", device, addr)

	return &sshSession{
		device:         device,
		client:         ssh.NewClient(cConn, chans, reqs),
		commandTimeout: g.cfg.CommandTimeout,
	}, nil
}

var _ core.DeviceGateway = (*Gateway)(nil)
