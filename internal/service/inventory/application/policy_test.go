package application

import (
	"errors"
	"testing"
	"time"

	"stocknexus/internal/service/inventory/domain"
)

func TestReservationPolicy_Admit(t *testing.T) {
	policy, err := NewReservationPolicy(`quantity > 0 && quantity <= 1000 && ttl_seconds <= 7 * 24 * 3600`)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	cases := []struct {
		name    string
		req     *ReserveRequest
		wantErr bool
	}{
		{"within limits", &ReserveRequest{Quantity: 10, OwnerType: domain.OwnerCart, TTL: time.Hour}, false},
		{"at quantity cap", &ReserveRequest{Quantity: 1000, OwnerType: domain.OwnerCart, TTL: time.Hour}, false},
		{"over quantity cap", &ReserveRequest{Quantity: 1001, OwnerType: domain.OwnerCart, TTL: time.Hour}, true},
		{"ttl too long", &ReserveRequest{Quantity: 10, OwnerType: domain.OwnerCart, TTL: 8 * 24 * time.Hour}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.Admit(tc.req)
			if tc.wantErr && !errors.Is(err, domain.ErrPolicyRejected) {
				t.Errorf("Expected ErrPolicyRejected, got: %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected admission, got: %v", err)
			}
		})
	}
}

func TestReservationPolicy_OwnerTypeVariable(t *testing.T) {
	policy, err := NewReservationPolicy(`owner_type == "REPAIR_ORDER" ? quantity <= 5 : quantity <= 100`)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if err := policy.Admit(&ReserveRequest{Quantity: 50, OwnerType: domain.OwnerCart, TTL: time.Hour}); err != nil {
		t.Errorf("Expected admission for cart, got: %v", err)
	}
	if err := policy.Admit(&ReserveRequest{Quantity: 50, OwnerType: domain.OwnerRepairOrder, TTL: time.Hour}); !errors.Is(err, domain.ErrPolicyRejected) {
		t.Errorf("Expected rejection for repair order, got: %v", err)
	}
}

func TestNewReservationPolicy_Invalid(t *testing.T) {
	if _, err := NewReservationPolicy(`quantity >`); err == nil {
		t.Error("Expected compile error for malformed expression")
	}
	// 表达式必须求值为布尔
	if _, err := NewReservationPolicy(`quantity + 1`); err == nil {
		t.Error("Expected error for non-boolean expression")
	}
	if _, err := NewReservationPolicy(`unknown_var == 1`); err == nil {
		t.Error("Expected error for undeclared variable")
	}
}
