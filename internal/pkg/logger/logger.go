// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var root zerolog.Logger

func init() {
	root = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Init 初始化全局日志器，附带服务名字段。
// 应该在服务启动时（bootstrap）调用一次。
func Init(serviceName string) {
	zerolog.TimeFieldFormat = time.RFC3339
	root = zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Logger 返回全局日志器。
func Logger() *zerolog.Logger {
	return &root
}

// Ctx 返回一个带有追踪上下文的日志器。
// 如果 ctx 中存在有效的 Span，日志会自动附带 trace_id / span_id，
// 方便在 Jaeger 和日志系统之间互相跳转。
func Ctx(ctx context.Context) *zerolog.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return &root
	}
	l := root.With().
		Str("trace_id", spanCtx.TraceID().String()).
		Str("span_id", spanCtx.SpanID().String()).
		Logger()
	return &l
}
