// internal/service/inventory/application/service.go
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stocknexus/internal/pkg/logger"
	"stocknexus/internal/service/inventory/domain"
	"stocknexus/internal/service/inventory/domain/port"
)

// maxConflictRetries 乐观锁冲突的内部重试上限，超过后把冲突抛给调用方。
const maxConflictRetries = 5

// ReservationLedger 是库存预留账本的事务性门面。
// 它独占 InventoryItem 与 StockReservation 的写入权: 同一商品上的所有
// 变更通过版本号保护的提交串行化，不同商品之间完全并行。
type ReservationLedger struct {
	repo     domain.LedgerRepository
	policy   *ReservationPolicy // 可为 nil，表示不做准入限制
	notifier port.StockNotifier // 可为 nil
	tracer   trace.Tracer
	now      func() time.Time
}

// NewReservationLedger 创建账本服务实例。
func NewReservationLedger(repo domain.LedgerRepository, policy *ReservationPolicy, notifier port.StockNotifier, tracer trace.Tracer) *ReservationLedger {
	return &ReservationLedger{
		repo:     repo,
		policy:   policy,
		notifier: notifier,
		tracer:   tracer,
		now:      time.Now,
	}
}

// Reserve 对商品可用库存发起一笔限时占用。
// 商品未被跟踪时以零库存惰性创建。成功时返回预留单 ID 与到期时间；
// 可用量不足返回 ErrInsufficientStock（附当前可用量）。
func (l *ReservationLedger) Reserve(ctx context.Context, req *ReserveRequest) (*ReserveResponse, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.Reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("product.id", req.ProductID),
		attribute.Int("reserve.quantity", req.Quantity),
		attribute.String("owner.type", string(req.OwnerType)),
	)

	// 参数校验先于任何库存读取发生，非法请求是一个带类型的业务结果
	if req.Quantity <= 0 {
		err := fmt.Errorf("%w: quantity must be positive, got %d", domain.ErrInvalidRequest, req.Quantity)
		span.RecordError(err)
		ledgerOps.WithLabelValues("reserve", "invalid_request").Inc()
		return nil, err
	}
	if req.TTL <= 0 {
		err := fmt.Errorf("%w: ttl must be positive, got %s", domain.ErrInvalidRequest, req.TTL)
		span.RecordError(err)
		ledgerOps.WithLabelValues("reserve", "invalid_request").Inc()
		return nil, err
	}

	if l.policy != nil {
		if err := l.policy.Admit(req); err != nil {
			span.RecordError(err)
			ledgerOps.WithLabelValues("reserve", "policy_rejected").Inc()
			return nil, err
		}
	}

	reservationID := uuid.New().String()

	var resp *ReserveResponse
	err := l.withConflictRetry(ctx, func() error {
		item, err := l.repo.GetOrCreateItem(ctx, req.ProductID)
		if err != nil {
			return err
		}
		expectedVersion := item.Version

		if err := item.TryReserve(req.Quantity); err != nil {
			return err
		}

		reservation, err := domain.NewStockReservation(
			reservationID, req.ProductID, req.Quantity,
			req.OwnerReference, req.OwnerType, req.TTL, l.now(),
		)
		if err != nil {
			return err
		}
		reservation.Note = req.Note

		if err := l.repo.Commit(ctx, item, expectedVersion, reservation); err != nil {
			return err
		}

		resp = &ReserveResponse{
			ReservationID: reservationID,
			ExpiresAt:     reservation.ExpiresAt,
			Available:     item.QuantityAvailable(),
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		ledgerOps.WithLabelValues("reserve", outcomeLabel(err)).Inc()
		return nil, err
	}

	ledgerOps.WithLabelValues("reserve", "success").Inc()
	logger.Ctx(ctx).Info().
		Str("product_id", req.ProductID).
		Str("reservation_id", reservationID).
		Int("quantity", req.Quantity).
		Int("available", resp.Available).
		Msg("stock reserved")
	l.notifyChange(ctx, req.ProductID, resp.Available)
	return resp, nil
}

// Consume 将预留转为永久扣减，销售成交时的终点路径。
func (l *ReservationLedger) Consume(ctx context.Context, reservationID string) error {
	return l.resolve(ctx, "ledger.Consume", reservationID, domain.StatusConsumed)
}

// Release 调用方主动取消预留（例如购物车条目被移除）。
func (l *ReservationLedger) Release(ctx context.Context, reservationID string) error {
	return l.resolve(ctx, "ledger.Release", reservationID, domain.StatusReleased)
}

// Expire 回收一笔到期预留，效果与 Release 相同但落 Expired 终态，
// 便于运营区分自动回收与主动取消。只有过期扫描器调用。
func (l *ReservationLedger) Expire(ctx context.Context, reservationID string) error {
	return l.resolve(ctx, "ledger.Expire", reservationID, domain.StatusExpired)
}

// resolve 把一张 Active 预留单流转到指定终态，并同步修正商品计数。
// 幂等语义: 预留单已处于目标终态时直接返回成功；处于其它终态时返回
// ErrReservationNotActive。与并发流转的竞争靠商品版本号裁决，冲突方
// 重读预留单后会观察到对方的终态。
func (l *ReservationLedger) resolve(ctx context.Context, spanName, reservationID string, target domain.ReservationStatus) error {
	ctx, span := l.tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(
		attribute.String("reservation.id", reservationID),
		attribute.String("reservation.target_status", string(target)),
	)

	operation := operationLabel(target)

	var available int
	var productID string
	err := l.withConflictRetry(ctx, func() error {
		reservation, err := l.repo.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		productID = reservation.ProductID

		// 重复请求同一终态: 幂等成功，不再动任何计数
		if reservation.Status == target {
			available = -1
			return nil
		}
		if reservation.IsTerminal() {
			return domain.ErrReservationNotActive
		}

		item, err := l.repo.GetItem(ctx, reservation.ProductID)
		if err != nil {
			return err
		}
		expectedVersion := item.Version

		if target == domain.StatusConsumed {
			err = item.ConsumeReserved(reservation.Quantity)
		} else {
			err = item.ReleaseReserved(reservation.Quantity)
		}
		if err != nil {
			return err
		}

		if err := reservation.TransitionTo(target); err != nil {
			return err
		}

		if err := l.repo.Commit(ctx, item, expectedVersion, reservation); err != nil {
			return err
		}
		available = item.QuantityAvailable()
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvariantViolation) {
			// 缺陷级错误，大声记录
			logger.Ctx(ctx).Error().Err(err).
				Str("reservation_id", reservationID).
				Str("target_status", string(target)).
				Msg("invariant violation while resolving reservation, no changes committed")
		}
		span.RecordError(err)
		ledgerOps.WithLabelValues(operation, outcomeLabel(err)).Inc()
		return err
	}

	ledgerOps.WithLabelValues(operation, "success").Inc()
	if available >= 0 {
		logger.Ctx(ctx).Info().
			Str("reservation_id", reservationID).
			Str("product_id", productID).
			Str("status", string(target)).
			Msg("reservation resolved")
		l.notifyChange(ctx, productID, available)
	}
	return nil
}

// AdjustStock 调整在库量。delta 为正表示收货入库，为负表示报损。
// 商品未被跟踪时惰性创建（首次收货即建账）。返回调整后的可用量。
func (l *ReservationLedger) AdjustStock(ctx context.Context, req *AdjustStockRequest) (int, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.AdjustStock")
	defer span.End()
	span.SetAttributes(
		attribute.String("product.id", req.ProductID),
		attribute.Int("adjust.delta", req.Delta),
	)

	var available int
	err := l.withConflictRetry(ctx, func() error {
		item, err := l.repo.GetOrCreateItem(ctx, req.ProductID)
		if err != nil {
			return err
		}
		expectedVersion := item.Version

		if err := item.AdjustStock(req.Delta); err != nil {
			return err
		}
		if err := l.repo.Commit(ctx, item, expectedVersion, nil); err != nil {
			return err
		}
		available = item.QuantityAvailable()
		return nil
	})
	if err != nil {
		span.RecordError(err)
		ledgerOps.WithLabelValues("adjust_stock", outcomeLabel(err)).Inc()
		return 0, err
	}

	ledgerOps.WithLabelValues("adjust_stock", "success").Inc()
	logger.Ctx(ctx).Info().
		Str("product_id", req.ProductID).
		Int("delta", req.Delta).
		Int("available", available).
		Msg("stock adjusted")
	l.notifyChange(ctx, req.ProductID, available)
	return available, nil
}

// GetAvailableQuantity 只读查询当前可用量，无副作用。
// 未跟踪的商品返回 ErrProductNotFound，不做惰性创建。
func (l *ReservationLedger) GetAvailableQuantity(ctx context.Context, productID string) (int, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.GetAvailableQuantity")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID))

	item, err := l.repo.GetItem(ctx, productID)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return item.QuantityAvailable(), nil
}

// withConflictRetry 执行 fn，版本冲突时重试，其它错误立刻返回。
func (l *ReservationLedger) withConflictRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if attempt > 0 {
			conflictRetries.Inc()
			// 短暂退避，错开与竞争者的下一次提交
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 2 * time.Millisecond):
			}
		}
		err = fn()
		if err == nil || !errors.Is(err, domain.ErrConcurrencyConflict) {
			return err
		}
	}
	logger.Ctx(ctx).Warn().Err(err).Int("retries", maxConflictRetries).Msg("giving up after repeated version conflicts")
	return err
}

func (l *ReservationLedger) notifyChange(ctx context.Context, productID string, available int) {
	if l.notifier == nil {
		return
	}
	change := port.StockChange{ProductID: productID, Available: available}
	if err := l.notifier.NotifyStockChanged(ctx, change); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("product_id", productID).Msg("failed to notify stock change")
	}
}

func operationLabel(target domain.ReservationStatus) string {
	switch target {
	case domain.StatusConsumed:
		return "consume"
	case domain.StatusReleased:
		return "release"
	case domain.StatusExpired:
		return "expire"
	default:
		return "unknown"
	}
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrReservationNotActive):
		return "not_active"
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrReservationNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid_request"
	default:
		return "error"
	}
}
