// internal/service/inventory/infrastructure/adapter/dedup_redis_adapter.go
package adapter

import (
	"context"
	"fmt"
	"time"

	"stocknexus/internal/pkg/redis"
)

const markReceiptScriptName = "mark_receipt_line"

// 首次写入返回 1，键已存在返回 0。SET NX 与 TTL 在脚本内一次往返完成。
const markReceiptScript = `
if redis.call('SET', KEYS[1], '1', 'NX', 'PX', ARGV[1]) then
    return 1
end
return 0
`

// ReceiptDedupRedisAdapter 是 port.ReceiptDedup 接口的 Redis 实现。
// 写入成功代表首次处理，写入失败代表重复投递。
// TTL 限定去重窗口，过期后同一行理论上可被重放，窗口长度按采购系统
// 最大重投间隔配置。
type ReceiptDedupRedisAdapter struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewReceiptDedupRedisAdapter 创建收货去重适配器并注册去重脚本。
func NewReceiptDedupRedisAdapter(redisClient *redis.Client, ttl time.Duration) (*ReceiptDedupRedisAdapter, error) {
	if err := redisClient.LoadScriptFromContent(markReceiptScriptName, markReceiptScript); err != nil {
		return nil, err
	}
	return &ReceiptDedupRedisAdapter{
		redisClient: redisClient,
		ttl:         ttl,
	}, nil
}

// MarkProcessed 标记 (poID, lineIndex)，返回是否为首次处理。
func (a *ReceiptDedupRedisAdapter) MarkProcessed(ctx context.Context, poID string, lineIndex int) (bool, error) {
	result, err := a.redisClient.RunScript(ctx, markReceiptScriptName, []string{dedupKey(poID, lineIndex)}, a.ttl.Milliseconds())
	if err != nil {
		return false, fmt.Errorf("dedup adapter failed to mark receipt line: %w", err)
	}
	first, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("dedup script returned unexpected value %v", result)
	}
	return first == 1, nil
}

// Unmark 删除标记，让该行在事件重投后重新走入账路径。
func (a *ReceiptDedupRedisAdapter) Unmark(ctx context.Context, poID string, lineIndex int) error {
	if err := a.redisClient.GetClient().Del(ctx, dedupKey(poID, lineIndex)).Err(); err != nil {
		return fmt.Errorf("dedup adapter failed to unmark receipt line: %w", err)
	}
	return nil
}

func dedupKey(poID string, lineIndex int) string {
	return fmt.Sprintf("receiving:dedup:{%s}:%d", poID, lineIndex)
}
