// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"stocknexus/internal/pkg/logger"
	"stocknexus/internal/pkg/nacos"
	"stocknexus/internal/pkg/tracing"
	"stocknexus/internal/pkg/utils"
)

// AppCtx 传递给各服务的路由注册函数。
type AppCtx struct {
	Mux   *http.ServeMux
	Nacos *nacos.Client
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	Port        int
	// RegisterHandlers 允许每个服务注册自己独特的 HTTP 路由
	RegisterHandlers func(appCtx AppCtx)
	// OnShutdown 在 HTTP 服务器关闭前被调用，用于停止后台组件（消费者、扫描器等）
	OnShutdown func(ctx context.Context)
}

var (
	setupOnce      sync.Once
	tracerProvider *sdktrace.TracerProvider
)

// Setup 初始化日志、配置与追踪，幂等。
// 组装根应该在创建任何依赖之前调用，保证早期的 Fatal 日志带 service 字段、
// 后台组件的第一个周期就落到真实的 TracerProvider 上。
func Setup(serviceName string) *sdktrace.TracerProvider {
	setupOnce.Do(func() {
		logger.Init(serviceName)
		Init()
		cfg := GetCurrentConfig()

		tp, err := tracing.InitTracerProvider(serviceName, cfg.Infra.Jaeger.Endpoint)
		if err != nil {
			logger.Logger().Fatal().Err(err).Msg("failed to initialize tracer provider")
		}
		tracerProvider = tp
	})
	return tracerProvider
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	tp := Setup(info.ServiceName)
	cfg := GetCurrentConfig()

	// Nacos 注册
	namingClient, err := nacos.NewClient(cfg.Infra.Nacos.Addrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to initialize nacos client")
	}

	ip, err := utils.GetOutboundIP()
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to get outbound IP address")
	}

	if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to register service with nacos")
	}

	// HTTP Server
	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Nacos: namingClient})
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}
	go func() {
		logger.Logger().Info().Str("addr", server.Addr).Msgf("%s listening", info.ServiceName)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger().Fatal().Err(err).Str("addr", server.Addr).Msg("http server failed")
		}
	}()

	// 阻塞主 goroutine，直到接收到退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Logger().Info().Msgf("shutting down service %s...", info.ServiceName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 关停顺序(后进先出): 注销注册 -> 停后台组件 -> 刷追踪 -> 关 HTTP
	if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
		logger.Logger().Error().Err(err).Msg("error deregistering from nacos")
	}

	if info.OnShutdown != nil {
		info.OnShutdown(ctx)
	}

	if err := tp.Shutdown(ctx); err != nil {
		logger.Logger().Error().Err(err).Msg("error shutting down tracer provider")
	}

	if err := server.Shutdown(ctx); err != nil {
		logger.Logger().Error().Err(err).Msg("error shutting down http server")
	}

	logger.Logger().Info().Msgf("service %s gracefully shut down", info.ServiceName)
}
