package remediation

import (
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/domain"
)

// workflowRun 是一次工作流运行的可变状态，结束时固化成审计记录。
type workflowRun struct {
	runID     uint64
	workflow  domain.Workflow
	link      domain.LinkRef
	alertName string

	phase       domain.WorkflowPhase
	outcome     domain.WorkflowOutcome
	alertStatus string
	peer        *domain.PeerLink
	silenceID   string
	sotStatus   domain.SotStatus
	note        string
}

func newWorkflowRun(runID uint64, workflow domain.Workflow, link domain.LinkRef, alertName string) *workflowRun {
	return &workflowRun{
		runID:     runID,
		workflow:  workflow,
		link:      link,
		alertName: alertName,
		phase:     domain.PhaseStart,
	}
}

// finish 固化终态。
func (r *workflowRun) finish(phase domain.WorkflowPhase, outcome domain.WorkflowOutcome, note string) {
	r.phase = phase
	r.outcome = outcome
	r.note = note
}

// snapshot 产出当前状态的审计记录。
func (r *workflowRun) snapshot(ts time.Time) domain.WorkflowRecord {
	rec := domain.WorkflowRecord{
		RunID:       r.runID,
		Workflow:    r.workflow,
		Phase:       r.phase,
		Outcome:     r.outcome,
		Device:      r.link.Device,
		Interface:   r.link.Interface,
		AlertName:   r.alertName,
		AlertStatus: r.alertStatus,
		SilenceID:   r.silenceID,
		SotStatus:   r.sotStatus,
		Note:        r.note,
		Timestamp:   ts,
	}
	if r.peer != nil {
		rec.PeerDevice = r.peer.PeerDevice
		rec.PeerInterface = r.peer.PeerInterface
	}
	return rec
}
