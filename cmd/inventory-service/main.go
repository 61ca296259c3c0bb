// cmd/inventory-service/main.go
package main

import (
	"context"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"stocknexus/internal/pkg/bootstrap"
	"stocknexus/internal/pkg/logger"
	"stocknexus/internal/pkg/mq"
	redispkg "stocknexus/internal/pkg/redis"
	"stocknexus/internal/service/inventory/application"
	"stocknexus/internal/service/inventory/infrastructure"
	"stocknexus/internal/service/inventory/infrastructure/adapter"
	"stocknexus/internal/service/inventory/interfaces"
	"stocknexus/internal/zookeeper"
)

const (
	serviceName      = "inventory-service"
	sweeperLockName  = "inventory-expiry-sweeper"
	servicePort      = 8082
	zkSessionTimeout = 5 * time.Second
)

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	// 先初始化日志与追踪，后台组件的第一个周期就有完整的可观测性
	bootstrap.Setup(serviceName)
	cfg := bootstrap.GetCurrentConfig()
	ctx := context.Background()

	// MySQL + GORM
	dsnCfg := mysqldriver.Config{
		User:                 cfg.Infra.Mysql.User,
		Passwd:               cfg.Infra.Mysql.Password,
		Net:                  "tcp",
		Addr:                 cfg.Infra.Mysql.Addr,
		DBName:               cfg.Infra.Mysql.Database,
		ParseTime:            true,
		Loc:                  time.Local,
		AllowNativePasswords: true,
	}
	db, err := gorm.Open(gormmysql.Open(dsnCfg.FormatDSN()), &gorm.Config{})
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to connect to mysql")
	}
	repo := infrastructure.NewGormLedgerRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to migrate ledger schema")
	}

	// Redis: 收货事件去重
	redisClient, err := redispkg.NewClient(ctx, cfg.Infra.Redis.Addr)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to connect to redis")
	}
	dedup, err := adapter.NewReceiptDedupRedisAdapter(redisClient, cfg.App.DedupTTL)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to set up receipt dedup")
	}

	// Kafka: 库存变动通知
	stockWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.App.Topics.StockUpdates)
	notifier := adapter.NewStockNotifierKafkaAdapter(stockWriter)

	// 预留准入策略
	policy, err := application.NewReservationPolicy(cfg.App.Policy.Expression)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("invalid reservation policy expression")
	}

	ledger := application.NewReservationLedger(repo, policy, notifier, otel.Tracer(serviceName))

	// ZooKeeper: 扫描器领导者选举。连不上时退化为单实例模式
	var leadership application.Leadership
	var elector *adapter.ZkLeadershipAdapter
	if zkConn, zkErr := zookeeper.Connect(cfg.Infra.Zookeeper.Addrs, zkSessionTimeout); zkErr == nil {
		var electErr error
		elector, electErr = adapter.NewZkLeadershipAdapter(zkConn, sweeperLockName)
		if electErr != nil {
			logger.Logger().Fatal().Err(electErr).Msg("failed to set up sweeper leader election")
		}
		leadership = elector
	} else {
		logger.Logger().Warn().Err(zkErr).Msg("zookeeper unavailable, sweeper runs without leader election")
	}

	sweeper := application.NewExpirySweeper(
		ledger, repo, leadership,
		cfg.App.Sweeper.Interval,
		cfg.App.Sweeper.BatchSize,
		cfg.App.Sweeper.Parallelism,
	)
	sweeper.Start(ctx)

	// Kafka: 采购收货事件消费
	receiptReader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.App.Topics.Receipt, serviceName+"-receiving")
	receiving := infrastructure.NewReceivingConsumerAdapter(receiptReader, ledger, dedup)
	receiving.Start(ctx)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			interfaces.NewLedgerHandler(ledger).RegisterRoutes(appCtx.Mux)
		},
		OnShutdown: func(ctx context.Context) {
			receiving.Stop()
			sweeper.Stop()
			if elector != nil {
				if err := elector.Release(); err != nil {
					logger.Logger().Warn().Err(err).Msg("error releasing sweeper leadership")
				}
			}
			if err := notifier.Close(); err != nil {
				logger.Logger().Error().Err(err).Msg("error closing stock notifier")
			}
			if err := redisClient.Close(); err != nil {
				logger.Logger().Error().Err(err).Msg("error closing redis client")
			}
		},
	})
}
