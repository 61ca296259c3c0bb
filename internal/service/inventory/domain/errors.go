// internal/service/inventory/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// 账本操作的业务错误分类。调用方用 errors.Is 区分业务结果与程序错误。
var (
	// ErrProductNotFound 查询的商品未被库存账本跟踪
	ErrProductNotFound = errors.New("product not found")
	// ErrReservationNotFound 预留单不存在
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrReservationNotActive 预留单已处于终态，无法再流转到其它终态
	ErrReservationNotActive = errors.New("reservation is not active")
	// ErrInsufficientStock 可用库存不足
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvariantViolation 库存不变量即将被破坏，属于缺陷级错误
	ErrInvariantViolation = errors.New("inventory invariant violation")
	// ErrConcurrencyConflict 乐观锁版本冲突，由账本内部重试
	ErrConcurrencyConflict = errors.New("concurrent modification conflict")
	// ErrPolicyRejected 预留请求被准入策略拒绝
	ErrPolicyRejected = errors.New("reservation rejected by policy")
	// ErrInvalidRequest 请求参数不合法（数量或 TTL 非正）
	ErrInvalidRequest = errors.New("invalid reservation request")
)

// InsufficientStockError 携带当前可用量，便于调用方向最终用户提示。
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// InvariantViolationError 描述哪条不变量在哪个商品上被破坏。
type InvariantViolationError struct {
	ProductID string
	Detail    string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation on product %s: %s", e.ProductID, e.Detail)
}

func (e *InvariantViolationError) Unwrap() error {
	return ErrInvariantViolation
}
