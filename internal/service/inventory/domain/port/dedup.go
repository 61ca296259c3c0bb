// internal/service/inventory/domain/port/dedup.go
package port

import "context"

// ReceiptDedup 是收货事件去重的出站端口。
// 同一张采购单的同一行只允许调整一次库存，重复投递的事件行被跳过。
type ReceiptDedup interface {
	// MarkProcessed 标记 (poID, lineIndex) 已处理。
	// 返回 true 表示首次处理，false 表示此前已处理过。
	MarkProcessed(ctx context.Context, poID string, lineIndex int) (bool, error)

	// Unmark 撤销标记。入账失败时调用，让事件重投后这一行可以重试。
	Unmark(ctx context.Context, poID string, lineIndex int) error
}
