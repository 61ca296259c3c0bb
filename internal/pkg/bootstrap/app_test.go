package bootstrap

import (
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetup_Idempotent(t *testing.T) {
	first := Setup("test-service")
	if first == nil {
		t.Fatal("Expected a tracer provider")
	}

	// 组装根提前调用过后，StartService 内部的再次调用必须复用同一实例，
	// 不能再建一个 provider 把全局注册覆盖掉
	second := Setup("another-name")
	if second != first {
		t.Error("Expected repeated setup to return the same tracer provider")
	}
	if otel.GetTracerProvider() != first {
		t.Error("Expected the global tracer provider to be the one from setup")
	}
}
