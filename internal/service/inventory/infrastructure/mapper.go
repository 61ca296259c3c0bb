// internal/service/inventory/infrastructure/mapper.go
package infrastructure

import (
	"stocknexus/internal/service/inventory/domain"
)

// ToDomainItem 将数据库模型转换为领域模型。
func ToDomainItem(m *InventoryItemModel) *domain.InventoryItem {
	return &domain.InventoryItem{
		ProductID:        m.ProductID,
		QuantityOnHand:   m.QuantityOnHand,
		QuantityReserved: m.QuantityReserved,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// ToDomainReservation 将数据库模型转换为领域模型。
func ToDomainReservation(m *StockReservationModel) *domain.StockReservation {
	return &domain.StockReservation{
		ID:             m.ID,
		ProductID:      m.ProductID,
		Quantity:       m.Quantity,
		OwnerReference: m.OwnerReference,
		OwnerType:      m.OwnerType,
		Status:         m.Status,
		Note:           m.Note,
		CreatedAt:      m.CreatedAt,
		ExpiresAt:      m.ExpiresAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// FromDomainReservation 将领域模型转换为数据库模型。
func FromDomainReservation(r *domain.StockReservation) *StockReservationModel {
	return &StockReservationModel{
		ID:             r.ID,
		ProductID:      r.ProductID,
		Quantity:       r.Quantity,
		OwnerReference: r.OwnerReference,
		OwnerType:      r.OwnerType,
		Status:         r.Status,
		Note:           r.Note,
		CreatedAt:      r.CreatedAt,
		ExpiresAt:      r.ExpiresAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
