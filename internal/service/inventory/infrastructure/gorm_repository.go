// internal/service/inventory/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stocknexus/internal/service/inventory/domain"
)

// GormLedgerRepository 是 domain.LedgerRepository 的 GORM 实现。
// 写入路径用 "UPDATE ... WHERE version = ?" 做乐观并发控制:
// RowsAffected 为 0 说明版本已被别人推进，映射为 ErrConcurrencyConflict。
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository 创建一个新的 GORM 仓储实例。
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// AutoMigrate 建表与建索引，服务启动时调用。
func (r *GormLedgerRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&InventoryItemModel{}, &StockReservationModel{})
}

// GetItem 根据商品 ID 查找库存条目。
func (r *GormLedgerRepository) GetItem(ctx context.Context, productID string) (*domain.InventoryItem, error) {
	var model InventoryItemModel
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, pkgerrors.Wrap(err, "failed to load inventory item")
	}
	return ToDomainItem(&model), nil
}

// GetOrCreateItem 查找库存条目，不存在时插入一行零库存记录。
// 并发创建时靠 product_id 唯一索引兜底，冲突方改走查询。
func (r *GormLedgerRepository) GetOrCreateItem(ctx context.Context, productID string) (*domain.InventoryItem, error) {
	item, err := r.GetItem(ctx, productID)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, domain.ErrProductNotFound) {
		return nil, err
	}

	now := time.Now()
	model := InventoryItemModel{ProductID: productID, CreatedAt: now, UpdatedAt: now}
	createErr := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model).Error
	if createErr != nil {
		return nil, pkgerrors.Wrap(createErr, "failed to create inventory item")
	}
	return r.GetItem(ctx, productID)
}

// GetReservation 根据预留单 ID 查找。
func (r *GormLedgerRepository) GetReservation(ctx context.Context, id string) (*domain.StockReservation, error) {
	var model StockReservationModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, pkgerrors.Wrap(err, "failed to load stock reservation")
	}
	return ToDomainReservation(&model), nil
}

// Commit 在一个数据库事务里持久化库存条目（版本保护）与可选的预留单。
func (r *GormLedgerRepository) Commit(ctx context.Context, item *domain.InventoryItem, expectedVersion int64, reservation *domain.StockReservation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&InventoryItemModel{}).
			Where("product_id = ? AND version = ?", item.ProductID, expectedVersion).
			Updates(map[string]interface{}{
				"quantity_on_hand":  item.QuantityOnHand,
				"quantity_reserved": item.QuantityReserved,
				"version":           item.Version,
				"updated_at":        item.UpdatedAt,
			})
		if result.Error != nil {
			return pkgerrors.Wrap(result.Error, "failed to update inventory item")
		}
		if result.RowsAffected == 0 {
			return domain.ErrConcurrencyConflict
		}

		if reservation != nil {
			model := FromDomainReservation(reservation)
			// 新建和状态流转共用一条 upsert 路径
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
			}).Create(model).Error; err != nil {
				return pkgerrors.Wrap(err, "failed to save stock reservation")
			}
		}
		return nil
	})
}

// FindExpired 按到期时间升序返回一批到期且仍 Active 的预留单。
func (r *GormLedgerRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.StockReservation, error) {
	var models []StockReservationModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", domain.StatusActive, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to scan for expired reservations")
	}

	reservations := make([]*domain.StockReservation, 0, len(models))
	for i := range models {
		reservations = append(reservations, ToDomainReservation(&models[i]))
	}
	return reservations, nil
}
