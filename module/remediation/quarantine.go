package remediation

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/module/linkstate"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/utils/timex"
)

// QuarantineLink 对单条链路执行隔离工作流。
//
// 阶段顺序：幂等检查 -> 新鲜度检查 -> 对端发现 -> 本端隔离 ->
// 资产库更新 -> 创建静默 -> 等待告警消散 -> 清理静默。
// 任何跳过或失败路径都会产出审计记录。
func (s *Service) QuarantineLink(ctx context.Context, link domain.LinkRef, alertName string) (domain.WorkflowRecord, error) {
	run := newWorkflowRun(s.idGen.NextID(), domain.WorkflowQuarantine, link, alertName)
	run.alertStatus = string(domain.AlertStatusFiring)

	// 同链路互斥：重复告警只会排队，不会并发改同一接口。
	// 等待告警消散阶段不再触碰设备与链路状态，锁在进入该阶段前提前释放。
	unlock := s.locks.acquire(link.Key())
	locked := true
	defer func() {
		if locked {
			unlock()
		}
	}()

	log.Infow("开始隔离工作流", "run_id", run.runID, "link", link.String(), "alertname", alertName)
	s.annotate(ctx, run)

	policy := s.policy()

	sess, err := s.connectDevice(ctx, link.Device)
	if err != nil {
		return s.abort(ctx, run, errors.Wrap(err, "连接设备失败"))
	}
	sessClosed := false
	closeSession := func() {
		if !sessClosed {
			sessClosed = true
			_ = sess.Close()
		}
	}
	defer closeSession()

	// 幂等检查：已是本系统隔离态则零变更退出
	state, err := linkstate.ReadState(ctx, sess, link.Interface)
	if err != nil {
		return s.abort(ctx, run, err)
	}
	if linkstate.IsQuarantined(state) {
		log.Infow("链路已处于隔离态，跳过", "run_id", run.runID, "link", link.String())
		return s.skip(ctx, run, domain.OutcomeSkippedAlready, "链路已被本系统隔离")
	}

	// 新鲜度检查：告警已消散则不再动手
	if !policy.FreshnessDisabled {
		active, checkErr := s.alerts.IsActive(ctx, link, alertName)
		if checkErr != nil {
			log.Warnf("run_id=%d 活跃性复核失败: %v，按告警仍活跃继续", run.runID, checkErr)
		} else if !active {
			log.Infow("告警已消散，跳过隔离", "run_id", run.runID, "link", link.String())
			return s.skip(ctx, run, domain.OutcomeSkippedStale, "告警在执行前已消散")
		}
	}

	// 对端发现：结果仅进审计记录，不参与变更
	peer, err := s.discoverer().Discover(ctx, sess, link)
	if err != nil {
		return s.abort(ctx, run, err)
	}
	run.peer = peer
	if peer != nil {
		log.Infow("发现链路对端", "run_id", run.runID, "peer", peer.PeerDevice+"/"+peer.PeerInterface)
	}

	// 本端隔离：关闭接口并写入哨兵描述
	if err := s.deviceRetry().Do(ctx, func() error {
		return linkstate.Quarantine(ctx, sess, link.Interface)
	}); err != nil {
		return s.abort(ctx, run, errors.Wrap(err, "下发隔离配置失败"))
	}

	// 设备变更已完成，后续阶段只访问告警后端与资产库，尽早归还设备会话
	closeSession()

	// 资产库状态更新
	if err := s.sotRetry().Do(ctx, func() error {
		return s.sot.SetInterfaceStatus(ctx, link, domain.SotStatusQuarantined)
	}); err != nil {
		return s.abort(ctx, run, errors.Wrap(err, "接口已隔离但资产库状态更新失败"))
	}
	run.sotStatus = domain.SotStatusQuarantined

	// 创建静默，压制隔离期间的重复告警
	now := time.Now()
	silence := domain.Silence{
		Device:    link.Device,
		Interface: link.Interface,
		AlertName: alertName,
		StartsAt:  timex.FormatRFC3339UTC(now),
		EndsAt:    timex.FormatRFC3339UTC(now.Add(policy.SilenceDuration)),
	}
	if err := s.alertsRetry().Do(ctx, func() error {
		id, createErr := s.alerts.CreateSilence(ctx, silence)
		if createErr != nil {
			return createErr
		}
		run.silenceID = id
		return nil
	}); err != nil {
		return s.abort(ctx, run, errors.Wrap(err, "创建静默失败"))
	}

	// 等待阶段只轮询告警后端，不持锁睡眠，同链路的恢复事件无需等轮询结束
	locked = false
	unlock()

	var note string

	// 等待告警消散
	resolved, err := s.alerts.WaitUntilInactive(ctx, link, alertName, policy.WaitTimeout, policy.WaitPoll)
	if err != nil {
		return s.abort(ctx, run, err)
	}
	if resolved {
		if run.silenceID != "" {
			if delErr := s.alerts.DeleteSilence(ctx, run.silenceID); delErr != nil {
				log.Warnf("run_id=%d 删除静默 %s 失败: %v", run.runID, run.silenceID, delErr)
			}
		}
	} else {
		log.Warnf("run_id=%d 告警 %s 在 %v 内未消散，静默保留到自然过期", run.runID, alertName, policy.WaitTimeout)
		note = "等待告警消散超时"
	}

	run.finish(domain.PhaseEnd, domain.OutcomeComplete, note)
	rec := s.finishRecord(ctx, run)
	log.Infow("隔离工作流完成", "run_id", run.runID, "link", link.String(), "outcome", rec.Outcome)
	return rec, nil
}

// connectDevice 按设备重试策略建立设备会话。
func (s *Service) connectDevice(ctx context.Context, device string) (core.DeviceSession, error) {
	var sess core.DeviceSession
	err := s.deviceRetry().Do(ctx, func() error {
		var connErr error
		sess, connErr = s.gateway.Connect(ctx, device)
		return connErr
	})
	return sess, err
}

// annotate 推送运行中标注，尽力而为。
func (s *Service) annotate(ctx context.Context, run *workflowRun) {
	if s.annotations == nil {
		return
	}
	if err := s.annotations.PushAnnotation(ctx, run.snapshot(time.Now().Local())); err != nil {
		log.Debugf("推送阶段标注失败 run_id=%d: %v", run.runID, err)
	}
}

// skip 以跳过终态结束运行。
func (s *Service) skip(ctx context.Context, run *workflowRun, outcome domain.WorkflowOutcome, note string) (domain.WorkflowRecord, error) {
	run.finish(domain.PhaseSkip, outcome, note)
	return s.finishRecord(ctx, run), nil
}

// abort 以失败终态结束运行并返回错误。
func (s *Service) abort(ctx context.Context, run *workflowRun, err error) (domain.WorkflowRecord, error) {
	log.Errorf("run_id=%d 工作流 %s 终止: %v", run.runID, run.workflow, err)
	run.finish(domain.PhaseError, domain.OutcomeAborted, err.Error())
	return s.finishRecord(ctx, run), err
}

// finishRecord 落审计记录并返回快照。
func (s *Service) finishRecord(ctx context.Context, run *workflowRun) domain.WorkflowRecord {
	s.record(ctx, run)
	return run.snapshot(time.Now().Local())
}
