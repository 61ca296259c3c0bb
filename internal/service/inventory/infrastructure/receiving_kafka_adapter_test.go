package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"stocknexus/internal/service/inventory/application"
	"stocknexus/internal/service/inventory/domain"
)

// stubLedgerRepo 是仅覆盖收货路径所需方法的内存仓储。
type stubLedgerRepo struct {
	mu    sync.Mutex
	items map[string]*domain.InventoryItem
}

func newStubLedgerRepo() *stubLedgerRepo {
	return &stubLedgerRepo{items: make(map[string]*domain.InventoryItem)}
}

func (s *stubLedgerRepo) GetItem(ctx context.Context, productID string) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	c := *item
	return &c, nil
}

func (s *stubLedgerRepo) GetOrCreateItem(ctx context.Context, productID string) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[productID]
	if !ok {
		item = domain.NewInventoryItem(productID)
		s.items[productID] = item
	}
	c := *item
	return &c, nil
}

func (s *stubLedgerRepo) GetReservation(ctx context.Context, id string) (*domain.StockReservation, error) {
	return nil, domain.ErrReservationNotFound
}

func (s *stubLedgerRepo) Commit(ctx context.Context, item *domain.InventoryItem, expectedVersion int64, reservation *domain.StockReservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.items[item.ProductID]
	if !ok || current.Version != expectedVersion {
		return domain.ErrConcurrencyConflict
	}
	c := *item
	s.items[item.ProductID] = &c
	return nil
}

func (s *stubLedgerRepo) FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.StockReservation, error) {
	return nil, nil
}

func (s *stubLedgerRepo) onHand(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[productID]; ok {
		return item.QuantityOnHand
	}
	return 0
}

// mapDedup 用内存 map 模拟 (poId, lineIndex) 去重，可对单个键注入错误。
type mapDedup struct {
	mu      sync.Mutex
	seen    map[string]bool
	failKey string
}

func newMapDedup() *mapDedup {
	return &mapDedup{seen: make(map[string]bool)}
}

func (d *mapDedup) MarkProcessed(ctx context.Context, poID string, lineIndex int) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := fmt.Sprintf("%s:%d", poID, lineIndex)
	if key == d.failKey {
		return false, fmt.Errorf("dedup backend unavailable")
	}
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func (d *mapDedup) Unmark(ctx context.Context, poID string, lineIndex int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, fmt.Sprintf("%s:%d", poID, lineIndex))
	return nil
}

func newTestAdapter(repo domain.LedgerRepository, dedup *mapDedup) *ReceivingConsumerAdapter {
	ledger := application.NewReservationLedger(repo, nil, nil, otel.Tracer("test"))
	return &ReceivingConsumerAdapter{ledger: ledger, dedup: dedup}
}

func receiptMessage(t *testing.T, event ReceiptEvent) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	return kafka.Message{Key: []byte(event.POID), Value: payload}
}

func TestReceivingAdapter_AppliesReceiptLines(t *testing.T) {
	repo := newStubLedgerRepo()
	adapter := newTestAdapter(repo, newMapDedup())

	adapter.processMessage(context.Background(), receiptMessage(t, ReceiptEvent{
		POID: "po-1001",
		Lines: []ReceiptLine{
			{ProductID: "product-1", Quantity: 40, UnitPrice: 9.5},
			{ProductID: "product-2", Quantity: 15, UnitPrice: 3.2},
		},
	}))

	if got := repo.onHand("product-1"); got != 40 {
		t.Errorf("Expected on-hand 40 for product-1, got %d", got)
	}
	if got := repo.onHand("product-2"); got != 15 {
		t.Errorf("Expected on-hand 15 for product-2, got %d", got)
	}
}

func TestReceivingAdapter_DeduplicatesRedelivery(t *testing.T) {
	repo := newStubLedgerRepo()
	adapter := newTestAdapter(repo, newMapDedup())
	msg := receiptMessage(t, ReceiptEvent{
		POID:  "po-1001",
		Lines: []ReceiptLine{{ProductID: "product-1", Quantity: 40}},
	})

	adapter.processMessage(context.Background(), msg)
	adapter.processMessage(context.Background(), msg)

	if got := repo.onHand("product-1"); got != 40 {
		t.Errorf("Redelivered event must apply once, on-hand is %d", got)
	}
}

func TestReceivingAdapter_SkipsMalformedEvent(t *testing.T) {
	repo := newStubLedgerRepo()
	adapter := newTestAdapter(repo, newMapDedup())

	adapter.processMessage(context.Background(), kafka.Message{Value: []byte(`{not json`)})

	if got := repo.onHand("product-1"); got != 0 {
		t.Errorf("Malformed event must not touch stock, on-hand is %d", got)
	}
}

func TestReceivingAdapter_IgnoresNonPositiveQuantity(t *testing.T) {
	repo := newStubLedgerRepo()
	dedup := newMapDedup()
	adapter := newTestAdapter(repo, dedup)

	adapter.processMessage(context.Background(), receiptMessage(t, ReceiptEvent{
		POID: "po-1001",
		Lines: []ReceiptLine{
			{ProductID: "product-1", Quantity: 0},
			{ProductID: "product-2", Quantity: 5},
		},
	}))

	if got := repo.onHand("product-1"); got != 0 {
		t.Errorf("Zero-quantity line must be ignored, on-hand is %d", got)
	}
	if got := repo.onHand("product-2"); got != 5 {
		t.Errorf("Expected on-hand 5 for product-2, got %d", got)
	}
}

// flakyCommitRepo 在恢复之前让所有 Commit 失败，模拟短暂的数据库故障。
type flakyCommitRepo struct {
	*stubLedgerRepo
	failing bool
}

func (r *flakyCommitRepo) Commit(ctx context.Context, item *domain.InventoryItem, expectedVersion int64, reservation *domain.StockReservation) error {
	if r.failing {
		return fmt.Errorf("database unavailable")
	}
	return r.stubLedgerRepo.Commit(ctx, item, expectedVersion, reservation)
}

func TestReceivingAdapter_RedeliveryAfterFailedApply(t *testing.T) {
	repo := &flakyCommitRepo{stubLedgerRepo: newStubLedgerRepo(), failing: true}
	adapter := newTestAdapter(repo, newMapDedup())
	msg := receiptMessage(t, ReceiptEvent{
		POID:  "po-1001",
		Lines: []ReceiptLine{{ProductID: "product-1", Quantity: 40}},
	})

	// 入账失败: 库存不得变化，且去重标记必须被撤销
	adapter.processMessage(context.Background(), msg)
	if got := repo.onHand("product-1"); got != 0 {
		t.Fatalf("Failed apply must not change stock, on-hand is %d", got)
	}

	// 故障恢复后重投: 该行必须补记进账，不能被当作重复跳过
	repo.failing = false
	adapter.processMessage(context.Background(), msg)
	if got := repo.onHand("product-1"); got != 40 {
		t.Errorf("Receipt line lost after redelivery, on-hand is %d, want 40", got)
	}

	// 再投一次: 去重仍然生效，不重复入账
	adapter.processMessage(context.Background(), msg)
	if got := repo.onHand("product-1"); got != 40 {
		t.Errorf("Expected no double-apply after successful booking, on-hand is %d", got)
	}
}

func TestReceivingAdapter_LineFailureDoesNotBlockOthers(t *testing.T) {
	repo := newStubLedgerRepo()
	dedup := newMapDedup()
	dedup.failKey = "po-1001:0"
	adapter := newTestAdapter(repo, dedup)
	msg := receiptMessage(t, ReceiptEvent{
		POID: "po-1001",
		Lines: []ReceiptLine{
			{ProductID: "product-1", Quantity: 40},
			{ProductID: "product-2", Quantity: 15},
		},
	})

	adapter.processMessage(context.Background(), msg)
	if got := repo.onHand("product-2"); got != 15 {
		t.Errorf("Healthy line must still apply, on-hand is %d", got)
	}
	if got := repo.onHand("product-1"); got != 0 {
		t.Errorf("Failed line must not apply, on-hand is %d", got)
	}

	// 重投后失败的行补上，成功过的行不重复
	dedup.failKey = ""
	adapter.processMessage(context.Background(), msg)
	if got := repo.onHand("product-1"); got != 40 {
		t.Errorf("Expected retried line applied, on-hand is %d", got)
	}
	if got := repo.onHand("product-2"); got != 15 {
		t.Errorf("Expected no double-apply, on-hand is %d", got)
	}
}
