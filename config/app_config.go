package config

import (
	"time"
)

// ========== 远程配置服务 ==========

// AppConfigServiceConfig 远程配置服务配置
type AppConfigServiceConfig struct {
	Endpoint        string        `yaml:"endpoint"`         // 远程配置接口地址
	RefreshInterval time.Duration `yaml:"refresh_interval"` // 刷新间隔
	Enabled         bool          `yaml:"enabled"`          // 是否启用远程配置
}

// ========== 本地业务配置 ==========

// AppConfig 本地业务配置（config.yaml 格式），
// 收拢隔离/恢复工作流的全部策略窗口，运维可在不重启服务的情况下调整。
type AppConfig struct {
	Remediation RemediationPolicy `yaml:"remediation" json:"remediation"`
	Retry       RetryPolicyConfig `yaml:"retry" json:"retry"`
}

// RemediationPolicy 隔离/恢复工作流策略
type RemediationPolicy struct {
	SilenceDuration  time.Duration `yaml:"silence_duration" json:"silence_duration"`   // 抑制窗口时长（隔离后压制对端告警）
	WaitTimeout      time.Duration `yaml:"wait_timeout" json:"wait_timeout"`           // 等待告警消散的总时限
	WaitPoll         time.Duration `yaml:"wait_poll" json:"wait_poll"`                 // 等待告警消散的轮询间隔
	DiscoveryBudget  time.Duration `yaml:"discovery_budget" json:"discovery_budget"`   // 对端发现总时限
	DiscoveryPoll    time.Duration `yaml:"discovery_poll" json:"discovery_poll"`       // 对端发现重试间隔
	// 活跃性复核默认开启；取零值即开启，配置文件漏写该字段不会静默跳过复核
	FreshnessDisabled bool `yaml:"freshness_disabled" json:"freshness_disabled"` // 是否跳过动手前的告警活跃性复核
}

// RetryPolicyConfig 外部依赖的重试开关（次数 + 退避）
type RetryPolicyConfig struct {
	Device       RetryConfig `yaml:"device" json:"device"`             // 设备命令
	Nautobot     RetryConfig `yaml:"nautobot" json:"nautobot"`         // 配置源读写
	Alertmanager RetryConfig `yaml:"alertmanager" json:"alertmanager"` // 告警后端查询/静默
}

// RetryConfig 单个依赖的重试配置
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"` // 总尝试次数（含首次）
	Backoff     time.Duration `yaml:"backoff" json:"backoff"`           // 重试间隔
}

// ========== 远程 API 响应结构（运维管理面返回格式）==========

// RemoteAppConfig 远程业务配置（管理面 API 返回格式）
type RemoteAppConfig struct {
	RemediationPolicy RemoteRemediationPolicy `json:"remediation_policy"`
}

// RemoteRemediationPolicy 远程下发的工作流策略（全部为秒）
type RemoteRemediationPolicy struct {
	SilenceSeconds         int  `json:"silence_seconds"`          // 抑制窗口时长
	WaitTimeoutSeconds     int  `json:"wait_timeout_seconds"`     // 等待消散总时限
	WaitPollSeconds        int  `json:"wait_poll_seconds"`        // 等待消散轮询间隔
	DiscoveryBudgetSeconds int  `json:"discovery_budget_seconds"` // 对端发现总时限
	DiscoveryPollSeconds   int  `json:"discovery_poll_seconds"`   // 对端发现重试间隔
	FreshnessDisabled      bool `json:"freshness_disabled"`       // 是否跳过活跃性复核
}

// 远程字段缺失或非法时回落的默认窗口
const (
	defaultSilenceSeconds         = 20 * 60
	defaultWaitTimeoutSeconds     = 120
	defaultWaitPollSeconds        = 5
	defaultDiscoveryBudgetSeconds = 10
	defaultDiscoveryPollSeconds   = 2
)

func secondsOrDefault(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

// ToAppConfig 将远程配置转换为本地配置格式
func (r *RemoteAppConfig) ToAppConfig() *AppConfig {
	p := r.RemediationPolicy

	return &AppConfig{
		Remediation: RemediationPolicy{
			SilenceDuration:  secondsOrDefault(p.SilenceSeconds, defaultSilenceSeconds),
			WaitTimeout:      secondsOrDefault(p.WaitTimeoutSeconds, defaultWaitTimeoutSeconds),
			WaitPoll:         secondsOrDefault(p.WaitPollSeconds, defaultWaitPollSeconds),
			DiscoveryBudget:  secondsOrDefault(p.DiscoveryBudgetSeconds, defaultDiscoveryBudgetSeconds),
			DiscoveryPoll:    secondsOrDefault(p.DiscoveryPollSeconds, defaultDiscoveryPollSeconds),
			FreshnessDisabled: p.FreshnessDisabled,
		},
		Retry: defaultRetryPolicy(),
	}
}

func defaultRetryPolicy() RetryPolicyConfig {
	return RetryPolicyConfig{
		Device:       RetryConfig{MaxAttempts: 2, Backoff: 2 * time.Second},
		Nautobot:     RetryConfig{MaxAttempts: 3, Backoff: 1 * time.Second},
		Alertmanager: RetryConfig{MaxAttempts: 3, Backoff: 1 * time.Second},
	}
}
