package remediation

import (
	"context"

	"github.com/pkg/errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/module/linkstate"
)

// RestoreLink 对单条链路执行恢复工作流。
//
// 只恢复哨兵描述标记过的接口：管理性关闭但描述不匹配的接口
// 视为人工操作，本系统不碰。
func (s *Service) RestoreLink(ctx context.Context, link domain.LinkRef, alertName string) (domain.WorkflowRecord, error) {
	run := newWorkflowRun(s.idGen.NextID(), domain.WorkflowRestore, link, alertName)
	run.alertStatus = string(domain.AlertStatusResolved)

	unlock := s.locks.acquire(link.Key())
	defer unlock()

	log.Infow("开始恢复工作流", "run_id", run.runID, "link", link.String(), "alertname", alertName)
	s.annotate(ctx, run)

	sess, err := s.connectDevice(ctx, link.Device)
	if err != nil {
		return s.abort(ctx, run, errors.Wrap(err, "连接设备失败"))
	}
	defer func() {
		_ = sess.Close()
	}()

	state, err := linkstate.ReadState(ctx, sess, link.Interface)
	if err != nil {
		return s.abort(ctx, run, err)
	}

	switch {
	case linkstate.IsQuarantined(state):
		// 本系统隔离的接口，执行恢复
	case state.AdminDown:
		// 管理性关闭但描述不是本系统哨兵，判定为人工关闭
		log.Warnf("run_id=%d 链路 %s 为人工关闭状态，跳过恢复", run.runID, link.String())
		return s.skip(ctx, run, domain.OutcomeSkippedNotOurs, "接口为管理性关闭但非本系统隔离")
	case linkstate.HasSentinel(state.Description):
		// 接口已启用但哨兵描述残留，走恢复流程清理描述
	default:
		log.Infow("链路已处于恢复态，跳过", "run_id", run.runID, "link", link.String())
		return s.skip(ctx, run, domain.OutcomeSkippedAlready, "链路已恢复")
	}

	// 启用接口并清空哨兵描述
	if err := s.deviceRetry().Do(ctx, func() error {
		return linkstate.Restore(ctx, sess, link.Interface)
	}); err != nil {
		return s.abort(ctx, run, errors.Wrap(err, "下发恢复配置失败"))
	}

	// 资产库状态回写
	if err := s.sotRetry().Do(ctx, func() error {
		return s.sot.SetInterfaceStatus(ctx, link, domain.SotStatusActive)
	}); err != nil {
		return s.abort(ctx, run, errors.Wrap(err, "接口已恢复但资产库状态更新失败"))
	}
	run.sotStatus = domain.SotStatusActive

	// 清理隔离期间遗留的静默，尽力而为
	var note string
	if count, expireErr := s.alerts.ExpireMatching(ctx, link, alertName); expireErr != nil {
		log.Warnf("run_id=%d 清理遗留静默失败: %v", run.runID, expireErr)
		note = "清理遗留静默失败"
	} else if count > 0 {
		log.Infow("清理遗留静默", "run_id", run.runID, "count", count)
	}

	run.finish(domain.PhaseEnd, domain.OutcomeComplete, note)
	rec := s.finishRecord(ctx, run)
	log.Infow("恢复工作流完成", "run_id", run.runID, "link", link.String(), "outcome", rec.Outcome)
	return rec, nil
}
