package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindAndCodeOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind ErrorKind
		wantCode string
	}{
		{name: "sentinel", err: ErrOutOfStock, wantKind: KindConflict, wantCode: "OUT_OF_STOCK"},
		{name: "wrapped", err: fmt.Errorf("product tee: %w", ErrProductNotFound), wantKind: KindNotFound, wantCode: "PRODUCT_NOT_FOUND"},
		{name: "joined", err: errors.Join(ErrOrderExpired, errors.New("ctx")), wantKind: KindExpired, wantCode: "ORDER_EXPIRED"},
		{name: "validation", err: NewValidationError("items", "min", "1"), wantKind: KindValidation, wantCode: "VALIDATION_ERROR"},
		{name: "plain", err: errors.New("boom"), wantKind: KindInternal, wantCode: "INTERNAL_ERROR"},
		{name: "nil", err: nil, wantKind: KindInternal, wantCode: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.wantKind {
				t.Errorf("KindOf() = %v, want %v", got, tt.wantKind)
			}
			if got := CodeOf(tt.err); got != tt.wantCode {
				t.Errorf("CodeOf() = %v, want %v", got, tt.wantCode)
			}
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	if !IsNotFound(fmt.Errorf("x: %w", ErrOrderNotFound)) {
		t.Error("IsNotFound should match wrapped ErrOrderNotFound")
	}
	if IsNotFound(ErrOutOfStock) {
		t.Error("IsNotFound should not match conflicts")
	}
	if !IsConflict(ErrCannotCancelAfterPaid) {
		t.Error("IsConflict should match CANNOT_CANCEL_AFTER_PAID")
	}
	if !IsValidation(NewValidationError("qty", "max", "50")) {
		t.Error("IsValidation should match ValidationError")
	}
	if !IsTxConflict(fmt.Errorf("commit: %w", ErrTxConflict)) {
		t.Error("IsTxConflict should match wrapped ErrTxConflict")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Fields: []FieldError{
		{Field: "items", Rule: "min", Param: "1"},
		{Field: "customer.email", Rule: "email"},
	}}
	want := "validation failed: items: min=1, customer.email: email"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}
