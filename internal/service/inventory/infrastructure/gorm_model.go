// internal/service/inventory/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"stocknexus/internal/service/inventory/domain"
)

// InventoryItemModel 对应数据库中的 inventory_item 表。
type InventoryItemModel struct {
	ID               uint   `gorm:"primaryKey"`
	ProductID        string `gorm:"uniqueIndex;size:64"`
	QuantityOnHand   int
	QuantityReserved int
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName 指定 GORM 应该使用的表名
func (InventoryItemModel) TableName() string {
	return "inventory_item"
}

// StockReservationModel 对应数据库中的 stock_reservation 表。
// (status, expires_at) 上的复合索引服务于过期扫描器的批量查询。
type StockReservationModel struct {
	ID             string                   `gorm:"primaryKey;size:36"`
	ProductID      string                   `gorm:"index;size:64"`
	Quantity       int                      `gorm:"not null"`
	OwnerReference string                   `gorm:"size:128"`
	OwnerType      domain.OwnerType         `gorm:"size:32"`
	Status         domain.ReservationStatus `gorm:"size:16;index:idx_status_expires_at,priority:1"`
	Note           string                   `gorm:"type:text"`
	ExpiresAt      time.Time                `gorm:"index:idx_status_expires_at,priority:2"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName 指定 GORM 应该使用的表名
func (StockReservationModel) TableName() string {
	return "stock_reservation"
}
