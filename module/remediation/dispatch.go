package remediation

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/log"
)

// maxConcurrentLinks 单个告警组内并发处理的链路数上限。
const maxConcurrentLinks = 8

// handleMessage 处理一条告警事件消息：
// firing 触发隔离，resolved 触发恢复，组内按链路去重后并发分发。
func (s *Service) handleMessage(ctx context.Context, msg core.KafkaMessage) error {
	var group domain.AlertGroup
	if err := json.Unmarshal(msg.Value, &group); err != nil {
		// 消息格式错误没有重试价值，记日志后吞掉
		log.Errorf("告警事件反序列化失败 offset=%d: %v", msg.Offset, err)
		return nil
	}
	return s.HandleAlertGroup(ctx, group)
}

// HandleAlertGroup 处理一个告警组。
func (s *Service) HandleAlertGroup(ctx context.Context, group domain.AlertGroup) error {
	alertName := group.AlertName()
	if alertName == "" {
		log.Warnf("告警组缺少 alertname 标签，跳过 groupKey=%s", group.GroupKey)
		return nil
	}

	links := group.Links()
	if len(links) == 0 {
		log.Warnf("告警组 %s 中没有可用的链路标签，跳过", alertName)
		return nil
	}

	log.Infow("收到告警组",
		"alertname", alertName,
		"status", group.Status,
		"links", len(links),
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentLinks)

	for _, link := range links {
		link := link
		eg.Go(func() error {
			var err error
			switch group.Status {
			case domain.AlertStatusFiring:
				_, err = s.QuarantineLink(egCtx, link, alertName)
			case domain.AlertStatusResolved:
				_, err = s.RestoreLink(egCtx, link, alertName)
			default:
				log.Warnf("告警组状态未知: %s，跳过链路 %s", group.Status, link)
				return nil
			}
			if err != nil {
				// 单条链路失败不影响组内其他链路，审计记录已落
				log.Errorf("链路 %s 工作流执行失败: %v", link, err)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return errors.Wrap(err, "告警组分发失败")
	}
	return nil
}
