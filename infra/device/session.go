package device

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/log"
)

// sshSession 实现 core.DeviceSession。
// 每条命令使用独立的 SSH channel，底层 TCP 连接复用。
type sshSession struct {
	device         string
	client         *ssh.Client
	commandTimeout time.Duration
}

type execResult struct {
	output []byte
	err    error
}

// Run 执行单条查询命令并返回原始输出。
func (s *sshSession) Run(ctx context.Context, cmd string) (string, error) {
	if s.client == nil {
		return "", errors.New("ssh 会话未建立")
	}

	defer func(start time.Time) {
		log.Debugw("Device",
			"device", s.device,
			"cmd", cmd,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}(time.Now())

	sess, err := s.client.NewSession()
	if err != nil {
		return "", errors.Wrapf(err, "设备 %s 打开会话失败", s.device)
	}
	defer func() {
		_ = sess.Close()
	}()

	ch := make(chan execResult, 1)
	go func() {
		out, runErr := sess.CombinedOutput(cmd)
		ch <- execResult{output: out, err: runErr}
	}()

	select {
	case <-ctx.Done():
		_ = sess.Close()
		return "", errors.Wrapf(ctx.Err(), "设备 %s 命令被取消", s.device)
	case <-time.After(s.commandTimeout):
		_ = sess.Close()
		return "", errors.Errorf("设备 %s 命令超时: %s", s.device, cmd)
	case r := <-ch:
		if r.err != nil {
			return "", errors.Wrapf(r.err, "设备 %s 命令执行失败: %s", s.device, cmd)
		}
		return string(r.output), nil
	}
}

// RunJSON 执行查询命令并将 JSON 输出解析到 v。
func (s *sshSession) RunJSON(ctx context.Context, cmd string, v interface{}) error {
	out, err := s.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(out), v); err != nil {
		return errors.Wrapf(err, "设备 %s 命令输出不是合法 JSON: %s", s.device, cmd)
	}
	return nil
}

// Configure 在配置模式下按顺序执行一组变更命令。
// 进入/退出配置模式由本方法负责，调用方只提供变更语句。
func (s *sshSession) Configure(ctx context.Context, cmds []string) error {
	if len(cmds) == 0 {
		return nil
	}
	_, err := s.Run(ctx, configScript(cmds))
	return err
}

// configScript 把变更命令包装成完整的配置模式脚本。
func configScript(cmds []string) string {
	script := make([]string, 0, len(cmds)+2)
	script = append(script, "configure terminal")
	script = append(script, cmds...)
	script = append(script, "end")
	return strings.Join(script, "\n")
}

func (s *sshSession) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
