// internal/service/inventory/domain/repository.go
package domain

import (
	"context"
	"time"
)

// LedgerRepository 定义了库存账本的持久化接口。
// 它位于领域层，但由基础设施层实现。
type LedgerRepository interface {
	// GetItem 根据商品 ID 查找库存条目，未跟踪的商品返回 ErrProductNotFound。
	GetItem(ctx context.Context, productID string) (*InventoryItem, error)

	// GetOrCreateItem 查找库存条目，不存在时以零库存惰性创建。
	GetOrCreateItem(ctx context.Context, productID string) (*InventoryItem, error)

	// GetReservation 根据预留单 ID 查找，不存在时返回 ErrReservationNotFound。
	GetReservation(ctx context.Context, id string) (*StockReservation, error)

	// Commit 以一个原子单元持久化库存条目和（可选的）预留单。
	// 条目写入以 expectedVersion 做保护，版本不匹配时不落任何变更并
	// 返回 ErrConcurrencyConflict。reservation 为 nil 时只提交条目。
	Commit(ctx context.Context, item *InventoryItem, expectedVersion int64, reservation *StockReservation) error

	// FindExpired 返回一批已到期但仍为 Active 的预留单，按到期时间升序，
	// limit 限制批大小，避免大积压时占用过多内存。
	FindExpired(ctx context.Context, now time.Time, limit int) ([]*StockReservation, error)
}
