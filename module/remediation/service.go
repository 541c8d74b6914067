// Package remediation 实现链路隔离/恢复的编排：
// 消费告警事件，按链路互斥地执行工作流，并产出审计记录。
package remediation

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/config"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/kafka"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/module/discovery"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/utils/idgen"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/utils/retry"
)

// Service 链路修复服务。
type Service struct {
	cfgManager *config.ConfigManager

	gateway     core.DeviceGateway
	alerts      core.AlertBackend
	sot         core.SourceOfTruth
	annotations core.AnnotationSink
	runs        core.WorkflowRecordRepository

	kafkaConsumer core.KafkaConsumer

	idGen *idgen.Generator
	locks *linkLocks
}

// New 初始化链路修复服务。
func New(
	cfgManager *config.ConfigManager,
	repoFactory core.RepositoryFactory,
	gateway core.DeviceGateway,
	alerts core.AlertBackend,
	sot core.SourceOfTruth,
	annotations core.AnnotationSink,
) (*Service, error) {
	cfg := cfgManager.GetConfig()

	// 创建告警事件流的 Kafka Consumer
	kafkaConsumer, err := kafka.NewConsumer(kafka.Config{
		Brokers: []string{fmt.Sprintf("%s:%d", cfg.DepServices.MQ.MQHost, cfg.DepServices.MQ.MQPort)},
		SASL: &kafka.SASLConfig{
			Enabled:  true,
			Username: cfg.DepServices.MQ.Auth.Username,
			Password: cfg.DepServices.MQ.Auth.Password,
		},
		Topic:   cfg.Kafka.AlertEvents.Topic,
		GroupID: cfg.Kafka.AlertEvents.ConsumerGroup,
	})
	if err != nil {
		return nil, errors.Wrap(err, "创建kafka消费者失败")
	}

	return &Service{
		cfgManager:    cfgManager,
		gateway:       gateway,
		alerts:        alerts,
		sot:           sot,
		annotations:   annotations,
		runs:          repoFactory.WorkflowRuns(),
		kafkaConsumer: kafkaConsumer,
		idGen:         idgen.New(),
		locks:         newLinkLocks(),
	}, nil
}

// Start 启动告警事件消费，阻塞直到 ctx 取消。
func (s *Service) Start(ctx context.Context) error {
	log.Info("链路修复服务启动，开始消费告警事件")
	return s.kafkaConsumer.ConsumeAlertEvents(ctx, s.handleMessage)
}

// Close 关闭服务持有的资源。
func (s *Service) Close() error {
	if s.kafkaConsumer != nil {
		if err := s.kafkaConsumer.Close(); err != nil {
			return errors.Wrap(err, "close kafkaConsumer")
		}
	}
	return nil
}

// policy 返回当前生效的工作流策略。
func (s *Service) policy() config.RemediationPolicy {
	return s.cfgManager.GetConfig().AppConfig.Remediation
}

// discoverer 按当前策略构造对端发现器。
func (s *Service) discoverer() *discovery.Discoverer {
	p := s.policy()
	return discovery.NewDiscoverer(p.DiscoveryBudget, p.DiscoveryPoll)
}

// 各外部依赖的重试策略。

func (s *Service) deviceRetry() retry.Policy {
	c := s.cfgManager.GetConfig().AppConfig.Retry.Device
	return retry.Policy{MaxAttempts: c.MaxAttempts, Backoff: c.Backoff}
}

func (s *Service) sotRetry() retry.Policy {
	c := s.cfgManager.GetConfig().AppConfig.Retry.Nautobot
	return retry.Policy{MaxAttempts: c.MaxAttempts, Backoff: c.Backoff}
}

func (s *Service) alertsRetry() retry.Policy {
	c := s.cfgManager.GetConfig().AppConfig.Retry.Alertmanager
	return retry.Policy{MaxAttempts: c.MaxAttempts, Backoff: c.Backoff}
}

// record 落一条审计记录：OpenSearch 必达（失败记错误日志），Loki 尽力而为。
func (s *Service) record(ctx context.Context, r *workflowRun) {
	rec := r.snapshot(time.Now().Local())

	if s.runs != nil {
		if err := s.runs.Upsert(ctx, rec); err != nil {
			log.Errorf("写入工作流审计记录失败 run_id=%d: %v", rec.RunID, err)
		}
	}
	if s.annotations != nil {
		if err := s.annotations.PushAnnotation(ctx, rec); err != nil {
			log.Warnf("推送工作流标注失败 run_id=%d: %v", rec.RunID, err)
		}
	}
}

var _ core.Remediator = (*Service)(nil)
