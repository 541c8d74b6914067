package remediation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/config"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/utils/idgen"
)

// 接口状态输出样本

const showOutputUp = `Ethernet2 is up, line protocol is up (connected)
  Hardware is Ethernet, address is 001c.7300.0010
  Description: uplink to r2
  MTU 9214 bytes, BW 10000000 kbit`

const showOutputQuarantined = `Ethernet2 is administratively down, line protocol is down (disabled)
  Hardware is Ethernet, address is 001c.7300.0010
  Description: QUARANTINED_BY_ITOPS
  MTU 9214 bytes, BW 10000000 kbit`

const showOutputManualDown = `Ethernet2 is administratively down, line protocol is down (disabled)
  Hardware is Ethernet, address is 001c.7300.0010
  Description: reserved for maintenance
  MTU 9214 bytes, BW 10000000 kbit`

const showOutputRestored = `Ethernet2 is up, line protocol is up (connected)
  Hardware is Ethernet, address is 001c.7300.0010
  MTU 9214 bytes, BW 10000000 kbit`

const lldpJSONWithPeer = `{"lldpNeighbors":[{"port":"Ethernet2","neighborDevice":"r2.example.com","neighborPort":"Ethernet3"}]}`

// fakeSession 内存设备会话：Configure 会联动更新 show 输出，
// 模拟变更后再次读取看到的新状态。
type fakeSession struct {
	mu         sync.Mutex
	show       string
	lldpJSON   string // 为空时 RunJSON 返回错误
	runErr     error
	configErr  error
	runCmds    []string
	configured [][]string
	closed     bool
}

func (f *fakeSession) Run(ctx context.Context, cmd string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runCmds = append(f.runCmds, cmd)
	if f.runErr != nil {
		return "", f.runErr
	}
	if strings.HasPrefix(cmd, "show interfaces") {
		return f.show, nil
	}
	return "", nil
}

func (f *fakeSession) RunJSON(ctx context.Context, cmd string, v interface{}) error {
	f.mu.Lock()
	payload := f.lldpJSON
	f.mu.Unlock()
	if payload == "" {
		return errors.New("structured output unavailable")
	}
	return json.Unmarshal([]byte(payload), v)
}

func (f *fakeSession) Configure(ctx context.Context, cmds []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.configErr != nil {
		return f.configErr
	}
	f.configured = append(f.configured, cmds)
	for _, cmd := range cmds {
		switch cmd {
		case "shutdown":
			f.show = showOutputQuarantined
		case "no shutdown":
			f.show = showOutputRestored
		}
	}
	return nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSession) configureCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.configured)
}

func (f *fakeSession) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeGateway 共享同一份 fakeSession 状态，并统计并发在用的会话数。
type fakeGateway struct {
	mu       sync.Mutex
	sessions map[string]*fakeSession
	connErr  error
	connects int

	inFlight  int
	maxActive int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: make(map[string]*fakeSession)}
}

func (g *fakeGateway) withSession(device string, sess *fakeSession) *fakeGateway {
	g.sessions[device] = sess
	return g
}

func (g *fakeGateway) Connect(ctx context.Context, device string) (core.DeviceSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connects++
	if g.connErr != nil {
		return nil, g.connErr
	}
	sess, ok := g.sessions[device]
	if !ok {
		return nil, errors.Errorf("unknown device %s", device)
	}
	g.inFlight++
	if g.inFlight > g.maxActive {
		g.maxActive = g.inFlight
	}
	return &trackedSession{fakeSession: sess, gateway: g}, nil
}

func (g *fakeGateway) activeNow() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

func (g *fakeGateway) release() {
	g.mu.Lock()
	g.inFlight--
	g.mu.Unlock()
}

// trackedSession 在 Close 时向 gateway 归还占用计数。
type trackedSession struct {
	*fakeSession
	gateway *fakeGateway
	once    sync.Once
}

func (t *trackedSession) Close() error {
	t.once.Do(t.gateway.release)
	return t.fakeSession.Close()
}

// fakeAlerts 内存告警后端，活跃状态可按链路区分。
type fakeAlerts struct {
	mu sync.Mutex

	active       bool
	activeByLink map[string]bool // key: LinkRef.Key()；未配置的链路回落 active
	activeErr    error
	queriedLinks []domain.LinkRef

	createErr  error
	silenceSeq int
	created    []domain.Silence

	deleted   []string
	deleteErr error

	waitResolved bool
	waitErr      error
	waitDelay    time.Duration
	waitEntered  chan struct{} // 非 nil 时在进入等待阶段时关闭

	expireCount int
	expireErr   error
	expireCalls int
}

func (f *fakeAlerts) IsActive(ctx context.Context, link domain.LinkRef, alertName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queriedLinks = append(f.queriedLinks, link)
	if f.activeErr != nil {
		return false, f.activeErr
	}
	if active, ok := f.activeByLink[link.Key()]; ok {
		return active, nil
	}
	return f.active, nil
}

func (f *fakeAlerts) CreateSilence(ctx context.Context, silence domain.Silence) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.silenceSeq++
	silence.ID = fmt.Sprintf("sil-%d", f.silenceSeq)
	f.created = append(f.created, silence)
	return silence.ID, nil
}

func (f *fakeAlerts) DeleteSilence(ctx context.Context, silenceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, silenceID)
	return nil
}

func (f *fakeAlerts) ExpireMatching(ctx context.Context, link domain.LinkRef, alertName string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expireCalls++
	return f.expireCount, f.expireErr
}

func (f *fakeAlerts) WaitUntilInactive(ctx context.Context, link domain.LinkRef, alertName string, timeout, poll time.Duration) (bool, error) {
	f.mu.Lock()
	delay := f.waitDelay
	resolved := f.waitResolved
	err := f.waitErr
	if f.waitEntered != nil {
		close(f.waitEntered)
		f.waitEntered = nil
	}
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(delay):
		}
	}
	return resolved, err
}

// fakeSot 内存资产库。
type fakeSot struct {
	mu       sync.Mutex
	statuses []domain.SotStatus
	err      error
}

func (f *fakeSot) SetInterfaceStatus(ctx context.Context, link domain.LinkRef, status domain.SotStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeSot) DevicePrimaryIP(ctx context.Context, device string) (string, error) {
	return "192.0.2.10", nil
}

// fakeRuns 内存审计仓库。
type fakeRuns struct {
	mu      sync.Mutex
	records []domain.WorkflowRecord
	err     error
}

func (f *fakeRuns) Upsert(ctx context.Context, record domain.WorkflowRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeRuns) QueryByIDs(ctx context.Context, ids []uint64) ([]domain.WorkflowRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.WorkflowRecord(nil), f.records...), nil
}

func (f *fakeRuns) QueryByLink(ctx context.Context, link domain.LinkRef, size int) ([]domain.WorkflowRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.WorkflowRecord(nil), f.records...), nil
}

func (f *fakeRuns) last() domain.WorkflowRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.records) == 0 {
		return domain.WorkflowRecord{}
	}
	return f.records[len(f.records)-1]
}

// fakeAnnotations 内存标注端。
type fakeAnnotations struct {
	mu      sync.Mutex
	records []domain.WorkflowRecord
	err     error
}

func (f *fakeAnnotations) PushAnnotation(ctx context.Context, record domain.WorkflowRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

// testPolicy 用毫秒级窗口加速测试。
func testPolicy() config.RemediationPolicy {
	return config.RemediationPolicy{
		SilenceDuration: 20 * time.Minute,
		WaitTimeout:     200 * time.Millisecond,
		WaitPoll:        20 * time.Millisecond,
		DiscoveryBudget: 50 * time.Millisecond,
		DiscoveryPoll:   10 * time.Millisecond,
	}
}

func newTestService(
	gateway core.DeviceGateway,
	alerts core.AlertBackend,
	sot core.SourceOfTruth,
	runs core.WorkflowRecordRepository,
	annotations core.AnnotationSink,
) *Service {
	cfg := &config.Config{
		AppConfig: config.AppConfig{
			Remediation: testPolicy(),
			Retry: config.RetryPolicyConfig{
				Device:       config.RetryConfig{MaxAttempts: 2, Backoff: time.Millisecond},
				Nautobot:     config.RetryConfig{MaxAttempts: 2, Backoff: time.Millisecond},
				Alertmanager: config.RetryConfig{MaxAttempts: 2, Backoff: time.Millisecond},
			},
		},
	}
	return &Service{
		cfgManager:  config.NewTestConfigManager(cfg),
		gateway:     gateway,
		alerts:      alerts,
		sot:         sot,
		annotations: annotations,
		runs:        runs,
		idGen:       idgen.New(),
		locks:       newLinkLocks(),
	}
}
