package domain

import (
	"errors"
	"testing"
	"time"
)

func newTestReservation(t *testing.T) *StockReservation {
	t.Helper()
	res, err := NewStockReservation("res-1", "product-1", 5, "cart-42", OwnerCart, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	return res
}

func TestNewStockReservation_Validation(t *testing.T) {
	if _, err := NewStockReservation("res-1", "product-1", 0, "cart-42", OwnerCart, time.Hour, time.Now()); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest for zero quantity, got: %v", err)
	}
	if _, err := NewStockReservation("res-1", "product-1", 5, "cart-42", OwnerCart, 0, time.Now()); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest for zero ttl, got: %v", err)
	}
}

func TestStockReservation_InitialState(t *testing.T) {
	now := time.Now()
	res, err := NewStockReservation("res-1", "product-1", 5, "cart-42", OwnerCart, time.Hour, now)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if res.Status != StatusActive {
		t.Errorf("Expected status ACTIVE, got %s", res.Status)
	}
	if !res.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("Expected expiry at now+1h, got %v", res.ExpiresAt)
	}
	if res.IsExpired(now.Add(30 * time.Minute)) {
		t.Error("Reservation should not be expired before expiresAt")
	}
	if !res.IsExpired(now.Add(time.Hour)) {
		t.Error("Reservation should be expired at expiresAt")
	}
}

func TestStockReservation_TransitionTo(t *testing.T) {
	res := newTestReservation(t)

	if err := res.TransitionTo(StatusConsumed); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if res.Status != StatusConsumed {
		t.Errorf("Expected status CONSUMED, got %s", res.Status)
	}

	// 重复流转到同一终态是幂等的
	if err := res.TransitionTo(StatusConsumed); err != nil {
		t.Errorf("Repeated transition to the same terminal state must be a no-op, got: %v", err)
	}

	// 流转到不同终态必须失败
	if err := res.TransitionTo(StatusReleased); !errors.Is(err, ErrReservationNotActive) {
		t.Errorf("Expected ErrReservationNotActive, got: %v", err)
	}
	if res.Status != StatusConsumed {
		t.Errorf("Status must stay CONSUMED, got %s", res.Status)
	}
}

func TestStockReservation_CannotReactivate(t *testing.T) {
	res := newTestReservation(t)
	res.TransitionTo(StatusExpired)

	if err := res.TransitionTo(StatusActive); err == nil {
		t.Error("Expected error when transitioning back to active")
	}
}
