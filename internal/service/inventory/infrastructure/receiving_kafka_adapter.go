// internal/service/inventory/infrastructure/receiving_kafka_adapter.go
package infrastructure

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"stocknexus/internal/pkg/logger"
	"stocknexus/internal/pkg/mq"
	"stocknexus/internal/service/inventory/application"
	"stocknexus/internal/service/inventory/domain/port"
)

// ReceiptEvent 是采购单收货事件，一张采购单一条事件，携带多行商品。
type ReceiptEvent struct {
	POID  string        `json:"poId"`
	Lines []ReceiptLine `json:"lines"`
}

// ReceiptLine 收货事件中的一行。
type ReceiptLine struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// ReceivingConsumerAdapter 是一个驱动适配器: 监听采购收货主题，
// 把每一行收货翻译成一次账本入库调整。
// 事件可能被重复投递，(poId, lineIndex) 级别的去重由 dedup 端口保证。
type ReceivingConsumerAdapter struct {
	reader *kafka.Reader
	ledger *application.ReservationLedger
	dedup  port.ReceiptDedup
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewReceivingConsumerAdapter 创建收货事件消费者。
func NewReceivingConsumerAdapter(reader *kafka.Reader, ledger *application.ReservationLedger, dedup port.ReceiptDedup) *ReceivingConsumerAdapter {
	return &ReceivingConsumerAdapter{
		reader: reader,
		ledger: ledger,
		dedup:  dedup,
	}
}

// Start 开始监听收货主题。这是一个长期运行的方法。
func (a *ReceivingConsumerAdapter) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", a.reader.Config().Topic).Msg("receiving consumer started")
		for {
			// 使用 FetchMessage 而非 ReadMessage，以便控制提交流程
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Msg("receiving consumer shutting down")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Msg("could not read receipt message, retrying")
				time.Sleep(time.Second)
				continue
			}

			a.processMessage(ctx, msg)

			if err := a.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("failed to commit receipt message")
			}
		}
	}()
}

// Stop 优雅地停止消费者。
func (a *ReceivingConsumerAdapter) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.reader.Close()
	a.wg.Wait()
}

// processMessage 反序列化事件并逐行入账。
// 解析失败的消息记录后跳过（提交），避免毒消息阻塞整个分区。
func (a *ReceivingConsumerAdapter) processMessage(parentCtx context.Context, msg kafka.Message) {
	ctx := mq.ExtractTraceContext(parentCtx, msg.Headers)
	tracer := otel.Tracer("inventory-service")
	ctx, span := tracer.Start(ctx, "receiving.HandleReceiptEvent")
	defer span.End()

	var event ReceiptEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("malformed receipt event, skipping")
		span.RecordError(err)
		return
	}
	span.SetAttributes(
		attribute.String("po.id", event.POID),
		attribute.Int("po.lines", len(event.Lines)),
	)

	for i, line := range event.Lines {
		if err := a.handleLine(ctx, event.POID, i, line); err != nil {
			// 单行失败不阻塞其余行；该行在事件重投时重试
			logger.Ctx(ctx).Error().Err(err).
				Str("po_id", event.POID).
				Int("line", i).
				Str("product_id", line.ProductID).
				Msg("failed to apply receipt line")
			span.RecordError(err)
		}
	}
}

func (a *ReceivingConsumerAdapter) handleLine(ctx context.Context, poID string, lineIndex int, line ReceiptLine) error {
	if line.Quantity <= 0 {
		logger.Ctx(ctx).Warn().
			Str("po_id", poID).
			Int("line", lineIndex).
			Int("quantity", line.Quantity).
			Msg("ignoring receipt line with non-positive quantity")
		return nil
	}

	first, err := a.dedup.MarkProcessed(ctx, poID, lineIndex)
	if err != nil {
		return err
	}
	if !first {
		logger.Ctx(ctx).Info().
			Str("po_id", poID).
			Int("line", lineIndex).
			Msg("duplicate receipt line, already applied")
		return nil
	}

	_, err = a.ledger.AdjustStock(ctx, &application.AdjustStockRequest{
		ProductID: line.ProductID,
		Delta:     line.Quantity,
	})
	if err != nil {
		// 入账失败必须撤销去重标记，否则重投时这一行会被当作重复跳过，
		// 收到的货就永远记不进账了
		if unmarkErr := a.dedup.Unmark(ctx, poID, lineIndex); unmarkErr != nil {
			logger.Ctx(ctx).Error().Err(unmarkErr).
				Str("po_id", poID).
				Int("line", lineIndex).
				Msg("failed to unmark receipt line after apply failure, line may never be booked")
		}
		return err
	}
	return nil
}
