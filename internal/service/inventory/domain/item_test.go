package domain

import (
	"errors"
	"testing"
)

func TestInventoryItem_TryReserve(t *testing.T) {
	item := NewInventoryItem("product-1")
	if err := item.AdjustStock(100); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if err := item.TryReserve(30); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if item.QuantityReserved != 30 {
		t.Errorf("Expected reserved 30, got %d", item.QuantityReserved)
	}
	if item.QuantityAvailable() != 70 {
		t.Errorf("Expected available 70, got %d", item.QuantityAvailable())
	}
}

func TestInventoryItem_TryReserve_InsufficientStock(t *testing.T) {
	item := NewInventoryItem("product-1")
	item.AdjustStock(100)
	item.TryReserve(30)

	err := item.TryReserve(80)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("Expected ErrInsufficientStock, got: %v", err)
	}

	var insufficient *InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatal("Expected InsufficientStockError with availability details")
	}
	if insufficient.Available != 70 {
		t.Errorf("Expected available 70 in error, got %d", insufficient.Available)
	}
	if item.QuantityReserved != 30 {
		t.Errorf("Failed reserve must not change counters, reserved = %d", item.QuantityReserved)
	}
}

func TestInventoryItem_ConsumeReserved(t *testing.T) {
	item := NewInventoryItem("product-1")
	item.AdjustStock(100)
	item.TryReserve(30)

	if err := item.ConsumeReserved(30); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if item.QuantityOnHand != 70 {
		t.Errorf("Expected on-hand 70, got %d", item.QuantityOnHand)
	}
	if item.QuantityReserved != 0 {
		t.Errorf("Expected reserved 0, got %d", item.QuantityReserved)
	}
}

func TestInventoryItem_ConsumeReserved_InvariantViolation(t *testing.T) {
	item := NewInventoryItem("product-1")
	item.AdjustStock(100)
	item.TryReserve(10)

	if err := item.ConsumeReserved(20); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("Expected ErrInvariantViolation, got: %v", err)
	}
}

func TestInventoryItem_ReleaseReserved_InvariantViolation(t *testing.T) {
	item := NewInventoryItem("product-1")
	item.AdjustStock(100)

	if err := item.ReleaseReserved(1); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("Expected ErrInvariantViolation, got: %v", err)
	}
}

func TestInventoryItem_AdjustStock(t *testing.T) {
	item := NewInventoryItem("product-1")
	item.AdjustStock(100)
	item.TryReserve(20)

	if err := item.AdjustStock(50); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if item.QuantityOnHand != 150 || item.QuantityReserved != 20 {
		t.Errorf("Expected on-hand 150 reserved 20, got %d/%d", item.QuantityOnHand, item.QuantityReserved)
	}
	if item.QuantityAvailable() != 130 {
		t.Errorf("Expected available 130, got %d", item.QuantityAvailable())
	}
}

func TestInventoryItem_AdjustStock_BelowReserved(t *testing.T) {
	item := NewInventoryItem("product-1")
	item.AdjustStock(100)
	item.TryReserve(20)

	if err := item.AdjustStock(-90); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("Expected ErrInvariantViolation, got: %v", err)
	}
	if item.QuantityOnHand != 100 {
		t.Errorf("Failed adjust must not change counters, on-hand = %d", item.QuantityOnHand)
	}
}

func TestInventoryItem_VersionAdvancesOnEveryMutation(t *testing.T) {
	item := NewInventoryItem("product-1")

	item.AdjustStock(10)
	item.TryReserve(5)
	item.ReleaseReserved(5)

	if item.Version != 3 {
		t.Errorf("Expected version 3 after three mutations, got %d", item.Version)
	}
}
