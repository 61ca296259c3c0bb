// internal/service/inventory/domain/item.go
package domain

import (
	"time"
)

// InventoryItem 是单个商品库存计数的聚合根。
// 不变量: 0 <= QuantityReserved <= QuantityOnHand，对每一个已提交的状态成立。
// 所有写入都必须经过账本服务，并以 Version 做乐观并发控制。
type InventoryItem struct {
	ProductID        string
	QuantityOnHand   int
	QuantityReserved int
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// 工厂函数: NewInventoryItem 创建一个零库存的新商品条目。
func NewInventoryItem(productID string) *InventoryItem {
	now := time.Now()
	return &InventoryItem{
		ProductID: productID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// QuantityAvailable 可向新预留开放的数量。
func (i *InventoryItem) QuantityAvailable() int {
	return i.QuantityOnHand - i.QuantityReserved
}

// TryReserve 占用 qty 的可用库存。可用量不足时失败，这里是防止超卖的闸门。
func (i *InventoryItem) TryReserve(qty int) error {
	if qty > i.QuantityAvailable() {
		return &InsufficientStockError{
			ProductID: i.ProductID,
			Requested: qty,
			Available: i.QuantityAvailable(),
		}
	}
	i.QuantityReserved += qty
	i.touch()
	return nil
}

// ReleaseReserved 归还 qty 的预留量。
// 预留量变负说明调用方的预留记账已经错乱，属于缺陷级错误。
func (i *InventoryItem) ReleaseReserved(qty int) error {
	if qty > i.QuantityReserved {
		return &InvariantViolationError{
			ProductID: i.ProductID,
			Detail:    "release would make reserved quantity negative",
		}
	}
	i.QuantityReserved -= qty
	i.touch()
	return nil
}

// ConsumeReserved 将 qty 的预留量转为永久扣减（货物已实际出库）。
func (i *InventoryItem) ConsumeReserved(qty int) error {
	if qty > i.QuantityReserved {
		return &InvariantViolationError{
			ProductID: i.ProductID,
			Detail:    "consume would make reserved quantity negative",
		}
	}
	i.QuantityReserved -= qty
	i.QuantityOnHand -= qty
	i.touch()
	return nil
}

// AdjustStock 调整在库量，delta 为正表示收货入库，为负表示报损核销。
// 调整后在库量不得低于预留量。
func (i *InventoryItem) AdjustStock(delta int) error {
	next := i.QuantityOnHand + delta
	if next < i.QuantityReserved {
		return &InvariantViolationError{
			ProductID: i.ProductID,
			Detail:    "adjustment would make on-hand quantity fall below reserved quantity",
		}
	}
	i.QuantityOnHand = next
	i.touch()
	return nil
}

func (i *InventoryItem) touch() {
	i.Version++
	i.UpdatedAt = time.Now()
}
