package discovery

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/log"
)

const (
	showNeighborsCmd     = "show lldp neighbors"
	showNeighborsJSONCmd = "show lldp neighbors | json"
)

// Discoverer 在时间预算内轮询 LLDP 邻居表查找对端。
type Discoverer struct {
	Budget time.Duration // 发现总时限
	Poll   time.Duration // 重试间隔
}

func NewDiscoverer(budget, poll time.Duration) *Discoverer {
	return &Discoverer{Budget: budget, Poll: poll}
}

// Discover 查找指定接口的 LLDP 对端。
// 预算内未发现对端返回 (nil, nil)：链路抖动时邻居表可能暂时为空，
// 这是正常情况而非错误。
func (d *Discoverer) Discover(ctx context.Context, sess core.DeviceSession, link domain.LinkRef) (*domain.PeerLink, error) {
	deadline := time.Now().Add(d.Budget)

	for {
		neighbors, err := d.fetchNeighbors(ctx, sess)
		if err != nil {
			log.Warnf("查询链路 %s 的邻居表失败: %v", link, err)
		} else if peer := findPeer(neighbors, link.Interface); peer != nil {
			return peer, nil
		}

		if time.Now().After(deadline) {
			log.Infof("链路 %s 在预算内未发现 LLDP 对端", link)
			return nil, nil
		}

		timer := time.NewTimer(d.Poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Wrap(ctx.Err(), "对端发现被取消")
		case <-timer.C:
		}
	}
}

// fetchNeighbors 读取邻居表：优先结构化输出，失败后回落文本解析。
func (d *Discoverer) fetchNeighbors(ctx context.Context, sess core.DeviceSession) ([]neighbor, error) {
	var structured lldpNeighborsJSON
	if err := sess.RunJSON(ctx, showNeighborsJSONCmd, &structured); err == nil {
		return structured.toNeighbors(), nil
	}

	output, err := sess.Run(ctx, showNeighborsCmd)
	if err != nil {
		return nil, err
	}
	return parseNeighborsTable(output), nil
}
