package app

import (
	"context"
	stderr "errors"
	"fmt"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/config"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/alertmanager"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/cache"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/device"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/loki"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/nautobot"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/opensearch"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/module/api"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/module/remediation"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// App 负责模块装配。
type App struct {
	API         *api.Server
	Remediation *remediation.Service
}

func New(cfgManager *config.ConfigManager) (*App, error) {
	cfg := cfgManager.GetConfig()

	osClient, err := opensearch.NewClient(opensearch.OpenSearchConfig{
		Hosts:              []string{fmt.Sprintf("%s:%d", cfg.DepServices.OpenSearch.Host, cfg.DepServices.OpenSearch.Port)},
		Username:           cfg.DepServices.OpenSearch.User,
		Password:           cfg.DepServices.OpenSearch.Password,
		Timeout:            time.Second * 10,
		InsecureSkipVerify: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "初始化 OpenSearch 失败")
	}

	repoFactory := opensearch.NewRepositoryFactory(osClient)

	// Redis 缓存用于 Nautobot 接口记录 ID 的查询加速，不可用时降级为实时查询
	var redisCache cache.Cache
	redisCache, err = cache.NewRedisCache(cache.RedisConfig{
		MasterName: cfg.DepServices.Redis.ConnectInfo.MasterGroupName,
		SentinelAddrs: []string{
			fmt.Sprintf("%s:%d", cfg.DepServices.Redis.ConnectInfo.SentinelHost, cfg.DepServices.Redis.ConnectInfo.SentinelPort),
		},
		SentinelUsername: cfg.DepServices.Redis.ConnectInfo.SentinelUsername,
		SentinelPassword: cfg.DepServices.Redis.ConnectInfo.SentinelPassword,

		Username: cfg.DepServices.Redis.ConnectInfo.Username,
		Password: cfg.DepServices.Redis.ConnectInfo.Password,
	})
	if err != nil {
		log.Warnf("初始化 Redis 缓存失败: %v，Nautobot 查询将不走缓存", err)
		redisCache = nil
	}

	alertBackend := alertmanager.NewClient(alertmanager.Config{
		BaseURL:            cfg.Alertmanager.BaseURL,
		Timeout:            cfg.Alertmanager.Timeout,
		InsecureSkipVerify: cfg.Alertmanager.InsecureSkipVerify,
	})

	sot := nautobot.NewClient(nautobot.Config{
		BaseURL:            cfg.Nautobot.BaseURL,
		Token:              cfg.Nautobot.Token,
		Timeout:            cfg.Nautobot.Timeout,
		InsecureSkipVerify: cfg.Nautobot.InsecureSkipVerify,
		CacheTTL:           cfg.Nautobot.CacheTTL,
	}, redisCache)

	annotations := loki.NewClient(loki.Config{
		Enabled: cfg.Loki.Enabled,
		BaseURL: cfg.Loki.BaseURL,
		Timeout: cfg.Loki.Timeout,
	})

	// 设备地址解析：资产库主 IP 优先，查不到时网关内部回落 DNS
	gateway := device.NewGateway(device.Config{
		Username:       cfg.Device.SSH.Username,
		Password:       cfg.Device.SSH.Password,
		Port:           cfg.Device.SSH.Port,
		ConnectTimeout: cfg.Device.SSH.ConnectTimeout,
		CommandTimeout: cfg.Device.SSH.CommandTimeout,
	}, sot.DevicePrimaryIP)

	// 模块装配（使用 Kafka 进行消息传递）
	remediationSvc, err := remediation.New(cfgManager, repoFactory, gateway, alertBackend, sot, annotations)
	if err != nil {
		return nil, errors.Wrap(err, "初始化 RemediationService 失败")
	}

	apiServer, err := api.New(cfg, repoFactory, remediationSvc)
	if err != nil {
		return nil, errors.Wrap(err, "初始化 Api 失败")
	}

	return &App{
		API:         apiServer,
		Remediation: remediationSvc,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context 不能为空")
	}

	eg, egCtx := errgroup.WithContext(ctx)

	if a.Remediation != nil {
		eg.Go(func() error {
			if err := a.Remediation.Start(egCtx); err != nil && !errors.Is(err, context.Canceled) {
				return errors.Wrap(err, "remediation 启动失败")
			}
			return nil
		})
	}

	if a.API != nil {
		eg.Go(func() error {
			if err := a.API.Start(egCtx); err != nil && !errors.Is(err, context.Canceled) {
				return errors.Wrap(err, "api 启动失败")
			}
			return nil
		})
	}

	log.Info("应用已启动，等待退出信号")
	return eg.Wait()
}

// Close 统一关闭持有的连接资源，需由上层在取消上下文后调用。
func (a *App) Close(ctx context.Context) error {
	var errs []error

	if a.API != nil {
		if err := a.API.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, errors.Wrap(err, "stop api"))
		}
	}
	if a.Remediation != nil {
		if err := a.Remediation.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close remediation"))
		}
	}

	return stderr.Join(errs...)
}
