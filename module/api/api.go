// Package api 提供 HTTP 入口：Alertmanager webhook 接收、
// 审计记录查询与手工触发的隔离/恢复。
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/config"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/kafka"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/utils/slice"
)

// Server 提供 HTTP 入口。
// webhook 进来的告警组只做校验后写入 Kafka，由消费端执行工作流；
// 手工触发接口绕过队列直接调用 Remediator。
type Server struct {
	cfg           *config.Config
	kafkaProducer core.KafkaProducer
	runs          core.WorkflowRecordRepository
	remediator    core.Remediator
	router        *gin.Engine
	httpServer    *http.Server
}

func New(cfg *config.Config, repoFactory core.RepositoryFactory, remediator core.Remediator) (*Server, error) {
	kafkaProducer, err := kafka.NewProducer(kafka.Config{
		Brokers: []string{fmt.Sprintf("%s:%d", cfg.DepServices.MQ.MQHost, cfg.DepServices.MQ.MQPort)},
		SASL: &kafka.SASLConfig{
			Enabled:  true,
			Username: cfg.DepServices.MQ.Auth.Username,
			Password: cfg.DepServices.MQ.Auth.Password,
		},
		Topic: cfg.Kafka.AlertEvents.Topic,
	})
	if err != nil {
		return nil, errors.Wrap(err, "初始化 Kafka Producer 失败")
	}

	return &Server{
		cfg:           cfg,
		kafkaProducer: kafkaProducer,
		runs:          repoFactory.WorkflowRuns(),
		remediator:    remediator,
	}, nil
}

// buildRouter 注册 /v1 接口。
func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	// 第一层：/api/itops-link-remediation
	api := engine.Group("/api/itops-link-remediation")

	// 第二层：v1 版本
	v1 := api.Group("/v1")
	{
		v1.POST("/webhook", s.postWebhook)
		v1.GET("/runs/info/:run_ids", s.queryRuns)
		v1.GET("/links/:device/:interface/runs", s.queryLinkRuns)
		v1.POST("/links/quarantine", s.quarantineLink)
		v1.POST("/links/restore", s.restoreLink)
	}

	return engine
}

// Start 启动 HTTP Server，阻塞直到 ctx 取消。
func (s *Server) Start(ctx context.Context) error {
	engine := s.buildRouter()

	addr := fmt.Sprintf(":%d", s.cfg.API.Port)
	httpSrv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	s.router = engine
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Stop 优雅关闭 HTTP 服务。
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// postWebhook 接收 Alertmanager webhook 推送的告警组。
// 校验通过后原样写入 Kafka，按 groupKey 分区保证同组顺序。
func (s *Server) postWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 10<<20) // 限制 10MB
	defer func() {
		if c.Request.Body != nil {
			_ = c.Request.Body.Close()
		}
	}()

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取请求失败"})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体不能为空"})
		return
	}

	log.Debugf("收到Webhook发送数据，内容:%s", string(body))

	var group domain.AlertGroup
	if err := json.Unmarshal(body, &group); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("告警组格式错误: %v", err)})
		return
	}
	if group.AlertName() == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "告警组缺少 alertname 标签"})
		return
	}
	if group.Status != domain.AlertStatusFiring && group.Status != domain.AlertStatusResolved {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("不支持的告警组状态: %s", group.Status)})
		return
	}

	key := group.GroupKey
	if key == "" {
		key = fmt.Sprintf("%d", time.Now().UnixNano())
	}

	if err := s.kafkaProducer.PublishAlertEvent(c.Request.Context(), key, body); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("写入 Kafka 失败: %v", err)})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "key": key, "links": len(group.Links())})
}

func (s *Server) queryRuns(c *gin.Context) {
	runIDsParam := c.Param("run_ids")
	if len(runIDsParam) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run_ids 参数必填"})
		return
	}

	runIDs := slice.SplitToUint64s(runIDsParam)
	if len(runIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run_ids 参数格式错误"})
		return
	}

	items, err := s.runs.QueryByIDs(c.Request.Context(), runIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// queryLinkRuns 查询单条链路的历史运行记录，按时间倒序。
func (s *Server) queryLinkRuns(c *gin.Context) {
	device := c.Param("device")
	iface := c.Param("interface")
	if device == "" || iface == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device 与 interface 参数必填"})
		return
	}

	size := cast.ToInt(c.DefaultQuery("limit", "50"))
	if size <= 0 || size > 1000 {
		size = 50
	}

	link := domain.NewLinkRef(device, iface)
	items, err := s.runs.QueryByLink(c.Request.Context(), link, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"link": link, "items": items})
}

type linkActionRequest struct {
	Device    string `json:"device" binding:"required"`
	Interface string `json:"interface" binding:"required"`
	AlertName string `json:"alertname"`
}

func (r linkActionRequest) link() domain.LinkRef {
	return domain.NewLinkRef(r.Device, r.Interface)
}

func (r linkActionRequest) alertName() string {
	if r.AlertName != "" {
		return r.AlertName
	}
	return domain.AlertNamePeerInterfaceFlapping
}

// quarantineLink 手工触发隔离，同步执行并返回审计记录。
func (s *Server) quarantineLink(c *gin.Context) {
	if s.remediator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "remediator 未配置"})
		return
	}

	var req linkActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("请求参数验证失败: %v", err)})
		return
	}

	rec, err := s.remediator.QuarantineLink(c.Request.Context(), req.link(), req.alertName())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "run": rec})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": rec})
}

// restoreLink 手工触发恢复，同步执行并返回审计记录。
func (s *Server) restoreLink(c *gin.Context) {
	if s.remediator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "remediator 未配置"})
		return
	}

	var req linkActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("请求参数验证失败: %v", err)})
		return
	}

	rec, err := s.remediator.RestoreLink(c.Request.Context(), req.link(), req.alertName())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "run": rec})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": rec})
}
