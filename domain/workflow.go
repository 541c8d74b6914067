package domain

import (
	"time"
)

// Workflow 工作流名称。
type Workflow string

const (
	WorkflowQuarantine Workflow = "quarantine"
	WorkflowRestore    Workflow = "restore"
)

// WorkflowOutcome 一次工作流运行的终态。
type WorkflowOutcome string

const (
	// OutcomeComplete 工作流正常走完全部阶段。
	OutcomeComplete WorkflowOutcome = "complete"
	// OutcomeSkippedAlready 幂等检查命中：链路已处于本系统隔离状态，未执行任何变更。
	OutcomeSkippedAlready WorkflowOutcome = "skipped_already"
	// OutcomeSkippedStale 新鲜度检查未通过：告警已不再活跃，放弃执行。
	OutcomeSkippedStale WorkflowOutcome = "skipped_stale"
	// OutcomeSkippedNotOurs 恢复时链路未被本系统隔离，按无操作跳过。
	OutcomeSkippedNotOurs WorkflowOutcome = "skipped_not_ours"
	// OutcomeAborted 某一步重试耗尽后的终止失败。
	OutcomeAborted WorkflowOutcome = "aborted"
)

// WorkflowPhase 审计记录中的阶段标签。
type WorkflowPhase string

const (
	PhaseStart WorkflowPhase = "start"
	PhaseEnd   WorkflowPhase = "end"
	PhaseSkip  WorkflowPhase = "skip"
	PhaseError WorkflowPhase = "error"
)

// SotStatus 资产库（Source of Truth）中接口状态字段的取值。
type SotStatus string

const (
	SotStatusQuarantined SotStatus = "quarantined"
	SotStatusActive      SotStatus = "active"
)

// WorkflowRecord 是一次工作流运行的结构化摘要，用于审计。
// 每次运行结束（含跳过与失败）都会产生一条记录，写入审计索引与日志汇聚端。
type WorkflowRecord struct {
	RunID         uint64          `json:"run_id"`                   // 运行 ID
	Workflow      Workflow        `json:"workflow"`                 // quarantine | restore
	Phase         WorkflowPhase   `json:"phase"`                    // start | end | skip | error
	Outcome       WorkflowOutcome `json:"outcome"`                  // 终态
	Device        string          `json:"device"`                   // 设备名
	Interface     string          `json:"interface"`                // 规整后的接口名
	AlertName     string          `json:"alertname"`                // 触发告警名
	AlertStatus   string          `json:"alert_status"`             // firing | resolved
	PeerDevice    string          `json:"peer_device,omitempty"`    // 对端设备（发现成功时）
	PeerInterface string          `json:"peer_interface,omitempty"` // 对端接口（发现成功时）
	SilenceID     string          `json:"silence_id,omitempty"`     // 本次创建的静默 ID
	SotStatus     SotStatus       `json:"sot_status,omitempty"`     // 运行结束时资产库状态
	Note          string          `json:"note,omitempty"`           // 自由文本说明
	Timestamp     time.Time       `json:"timestamp"`                // 记录时间
}
