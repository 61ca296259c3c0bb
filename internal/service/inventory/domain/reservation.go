// internal/service/inventory/domain/reservation.go
package domain

import (
	"errors"
	"fmt"
	"time"
)

// ReservationStatus 定义了预留单的生命周期状态。
// Active 是唯一非终态，三个终态之间不允许互相流转。
type ReservationStatus string

const (
	StatusActive   ReservationStatus = "ACTIVE"   // 持有中
	StatusConsumed ReservationStatus = "CONSUMED" // 已消费（销售发生，库存永久扣减）
	StatusReleased ReservationStatus = "RELEASED" // 已由调用方主动取消
	StatusExpired  ReservationStatus = "EXPIRED"  // 已由扫描器自动回收
)

// OwnerType 标记预留单归属的业务上下文。
type OwnerType string

const (
	OwnerCart        OwnerType = "CART"
	OwnerRepairOrder OwnerType = "REPAIR_ORDER"
	OwnerOther       OwnerType = "OTHER"
)

// StockReservation 是一笔针对商品可用库存的限时占用。
type StockReservation struct {
	ID             string
	ProductID      string
	Quantity       int
	OwnerReference string // 不透明的归属标识，例如购物车 ID
	OwnerType      OwnerType
	Status         ReservationStatus
	Note           string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	UpdatedAt      time.Time
}

// 工厂函数: NewStockReservation 创建一张 Active 状态的预留单。
func NewStockReservation(id, productID string, qty int, ownerRef string, ownerType OwnerType, ttl time.Duration, now time.Time) (*StockReservation, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", ErrInvalidRequest)
	}
	return &StockReservation{
		ID:             id,
		ProductID:      productID,
		Quantity:       qty,
		OwnerReference: ownerRef,
		OwnerType:      ownerType,
		Status:         StatusActive,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		UpdatedAt:      now,
	}, nil
}

// IsTerminal 预留单是否已处于终态。
func (r *StockReservation) IsTerminal() bool {
	return r.Status != StatusActive
}

// IsExpired 预留单是否已过有效期。
func (r *StockReservation) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// TransitionTo 将预留单流转到目标终态。
// 单向流转: 重复流转到同一终态是幂等的无操作；流转到不同终态报错。
func (r *StockReservation) TransitionTo(target ReservationStatus) error {
	if target == StatusActive {
		return errors.New("cannot transition a reservation back to active")
	}
	if r.Status == target {
		return nil
	}
	if r.IsTerminal() {
		return ErrReservationNotActive
	}
	r.Status = target
	r.UpdatedAt = time.Now()
	return nil
}
