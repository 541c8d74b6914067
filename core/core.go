package core

import (
	"context"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/domain"
)

// KafkaProducer 生产 Kafka 消息。
type KafkaProducer interface {
	PublishAlertEvent(ctx context.Context, key string, value []byte) error
	Close() error
}

// KafkaConsumer 顺序消费告警事件 topic。
type KafkaConsumer interface {
	ConsumeAlertEvents(ctx context.Context, handler func(ctx context.Context, msg KafkaMessage) error) error
	Close() error
}

// KafkaMessage 表示消费到的 Kafka 消息。
type KafkaMessage struct {
	Key       string
	Value     []byte
	Partition int32
	Offset    int64
	Timestamp time.Time
}

// WorkflowRecordRepository 管理 itops_link_workflow_run 索引。
type WorkflowRecordRepository interface {
	Upsert(ctx context.Context, record domain.WorkflowRecord) error
	QueryByIDs(ctx context.Context, ids []uint64) ([]domain.WorkflowRecord, error)
	QueryByLink(ctx context.Context, link domain.LinkRef, size int) ([]domain.WorkflowRecord, error)
}

type RepositoryFactory interface {
	WorkflowRuns() WorkflowRecordRepository
}

// DeviceSession 表示到单台网络设备的已建立会话。
// 同一会话内的命令按提交顺序执行。
type DeviceSession interface {
	// Run 执行单条查询命令并返回原始输出。
	Run(ctx context.Context, cmd string) (string, error)
	// RunJSON 执行查询命令并将 JSON 输出解析到 v。
	RunJSON(ctx context.Context, cmd string, v interface{}) error
	// Configure 在配置模式下按顺序执行一组变更命令。
	// 一组命令要么全部下发，要么在首个失败处停止并返回错误。
	Configure(ctx context.Context, cmds []string) error
	Close() error
}

// DeviceGateway 按设备名建立设备会话，内部完成地址解析与登录。
type DeviceGateway interface {
	Connect(ctx context.Context, device string) (DeviceSession, error)
}

// AlertBackend 封装告警后端（Alertmanager v2 API）。
type AlertBackend interface {
	// IsActive 查询指定链路上的告警当前是否仍活跃。
	// 查询按 (alertname, device, interface) 过滤，不同链路的同名告警互不影响。
	IsActive(ctx context.Context, link domain.LinkRef, alertName string) (bool, error)
	// CreateSilence 创建静默并返回静默 ID。
	CreateSilence(ctx context.Context, silence domain.Silence) (string, error)
	// DeleteSilence 删除指定静默。删除不存在的静默不算错误。
	DeleteSilence(ctx context.Context, silenceID string) error
	// ExpireMatching 删除所有匹配链路与告警名的静默，返回删除数量。
	ExpireMatching(ctx context.Context, link domain.LinkRef, alertName string) (int, error)
	// WaitUntilInactive 轮询等待指定链路上的告警消散；在 timeout 内消散返回 true，超时返回 false。
	WaitUntilInactive(ctx context.Context, link domain.LinkRef, alertName string, timeout, poll time.Duration) (bool, error)
}

// SourceOfTruth 封装资产库（Nautobot）中接口状态的读写。
type SourceOfTruth interface {
	// SetInterfaceStatus 把接口状态置为 quarantined/active。
	SetInterfaceStatus(ctx context.Context, link domain.LinkRef, status domain.SotStatus) error
	// DevicePrimaryIP 查询设备管理地址，查不到时返回空串与错误。
	DevicePrimaryIP(ctx context.Context, device string) (string, error)
}

// AnnotationSink 把工作流动作推送到日志汇聚端（Loki），尽力而为。
type AnnotationSink interface {
	PushAnnotation(ctx context.Context, record domain.WorkflowRecord) error
}

// Remediator 是 API 的下游处理器，执行隔离/恢复工作流。
type Remediator interface {
	// QuarantineLink 对单条链路执行隔离工作流，返回本次运行的审计记录。
	QuarantineLink(ctx context.Context, link domain.LinkRef, alertName string) (domain.WorkflowRecord, error)
	// RestoreLink 对单条链路执行恢复工作流，返回本次运行的审计记录。
	RestoreLink(ctx context.Context, link domain.LinkRef, alertName string) (domain.WorkflowRecord, error)
}
