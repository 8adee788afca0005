package provider

import (
	"time"

	"github.com/YouHyuksoo/HANES-sub002/internal/authz"
	"github.com/YouHyuksoo/HANES-sub002/internal/cache"
	"github.com/YouHyuksoo/HANES-sub002/internal/config"
	"github.com/YouHyuksoo/HANES-sub002/internal/logger"
	"github.com/YouHyuksoo/HANES-sub002/internal/metrics"
	"github.com/YouHyuksoo/HANES-sub002/internal/queue"
	"github.com/YouHyuksoo/HANES-sub002/internal/repository"
	"github.com/YouHyuksoo/HANES-sub002/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	QueueClient *queue.Client
	Metrics     *metrics.ShippingMetrics

	// Repositories
	PartRepo          repository.PartRepository
	BoxRepo           repository.BoxRepository
	PalletRepo        repository.PalletRepository
	ShipmentRepo      repository.ShipmentRepository
	ShipmentEventRepo repository.ShipmentEventRepository

	// Services
	AuthzService    *authz.Service
	TxManager       *service.TxManager
	Recalculator    *service.Recalculator
	BoxService      *service.BoxService
	PalletService   *service.PalletService
	ShipmentService *service.ShipmentService
}

// NewContainer 初始化容器，reg 为 nil 时指标不注册
func NewContainer(cfg *config.Config, db *gorm.DB, reg prometheus.Registerer) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient, _ = queue.NewClient(nil)
	}

	c := &Container{
		Config:      cfg,
		DB:          db,
		QueueClient: queueClient,
		Metrics:     metrics.NewShippingMetrics(reg),
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := c.DB
	c.PartRepo = repository.NewPartRepository(db)
	c.BoxRepo = repository.NewBoxRepository(db)
	c.PalletRepo = repository.NewPalletRepository(db)
	c.ShipmentRepo = repository.NewShipmentRepository(db)
	c.ShipmentEventRepo = repository.NewShipmentEventRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(c.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	shipping := c.Config.Shipping
	cacheTTL := time.Duration(shipping.SummaryCacheTTLSeconds) * time.Second

	c.TxManager = service.NewTxManager(c.DB, c.Config.Database.TxMaxRetries, c.Metrics)
	c.Recalculator = service.NewRecalculator(c.BoxRepo, c.PalletRepo, c.ShipmentRepo)
	c.BoxService = service.NewBoxService(c.TxManager, c.BoxRepo, c.PalletRepo, c.PartRepo, c.Recalculator, c.Metrics)
	c.PalletService = service.NewPalletService(c.TxManager, c.BoxRepo, c.PalletRepo, c.ShipmentRepo, c.Recalculator, c.Metrics, service.PalletServiceOptions{
		MaxBatchSize: shipping.MaxBatchSize,
		CacheTTL:     cacheTTL,
	})
	c.ShipmentService = service.NewShipmentService(c.TxManager, c.BoxRepo, c.PalletRepo, c.ShipmentRepo, c.ShipmentEventRepo, c.Recalculator, c.Metrics, service.ShipmentServiceOptions{
		Publisher:    c.QueueClient,
		MaxBatchSize: shipping.MaxBatchSize,
		CacheTTL:     cacheTTL,
	})
}

// Close 释放外部连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if err := c.QueueClient.Close(); err != nil {
		logger.Warnw("provider_close_queue_client_failed", "error", err)
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}
