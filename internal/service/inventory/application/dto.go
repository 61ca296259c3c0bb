// internal/service/inventory/application/dto.go
package application

import (
	"time"

	"stocknexus/internal/service/inventory/domain"
)

// ReserveRequest 是发起一笔库存预留的入参。
type ReserveRequest struct {
	ProductID      string
	Quantity       int
	OwnerReference string
	OwnerType      domain.OwnerType
	TTL            time.Duration
	Note           string
}

// ReserveResponse 返回新建预留单的标识与到期时间。
type ReserveResponse struct {
	ReservationID string    `json:"reservationId"`
	ExpiresAt     time.Time `json:"expiresAt"`
	Available     int       `json:"available"`
}

// AdjustStockRequest 是一次在库量调整的入参，delta 为正表示入库。
type AdjustStockRequest struct {
	ProductID string
	Delta     int
}
