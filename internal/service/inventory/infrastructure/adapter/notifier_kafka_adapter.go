// internal/service/inventory/infrastructure/adapter/notifier_kafka_adapter.go
package adapter

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"stocknexus/internal/pkg/mq"
	"stocknexus/internal/service/inventory/domain/port"
)

// StockNotifierKafkaAdapter 是 port.StockNotifier 接口的 Kafka 实现。
// 每次账本提交后向库存变动主题发布最新可用量，push-gateway 订阅该
// 主题并把变动推送给 WebSocket 客户端。
type StockNotifierKafkaAdapter struct {
	writer *kafka.Writer
}

// NewStockNotifierKafkaAdapter 创建库存变动通知适配器。
func NewStockNotifierKafkaAdapter(writer *kafka.Writer) *StockNotifierKafkaAdapter {
	return &StockNotifierKafkaAdapter{writer: writer}
}

// NotifyStockChanged 发布一条库存变动消息，按商品 ID 分区保证同一商品有序。
func (a *StockNotifierKafkaAdapter) NotifyStockChanged(ctx context.Context, change port.StockChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return mq.ProduceMessage(ctx, a.writer, []byte(change.ProductID), payload)
}

// Close 关闭底层 writer。
func (a *StockNotifierKafkaAdapter) Close() error {
	return a.writer.Close()
}
