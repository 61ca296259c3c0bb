// internal/service/inventory/domain/port/notifier.go
package port

import "context"

// StockChange 描述一次已提交的库存变动后的最新可用量。
type StockChange struct {
	ProductID string `json:"productId"`
	Available int    `json:"available"`
}

// StockNotifier 是库存变动通知的出站端口。
// 账本在每次成功提交后调用，推送给下游（如 push-gateway 的实时看板）。
// 通知失败不影响账本操作本身。
type StockNotifier interface {
	NotifyStockChanged(ctx context.Context, change StockChange) error
}
