package service

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorUnwrapsToKind(t *testing.T) {
	err := conflict("Box BOX-001 already exists")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict kind")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("conflict should not match not found")
	}
	if err.Error() != "Box BOX-001 already exists" {
		t.Fatalf("unexpected message: %s", err.Error())
	}

	wrapped := fmt.Errorf("assign: %w", invalidState("Pallet PLT-1 is LOADED"))
	if !errors.Is(wrapped, ErrInvalidState) || !IsDomainError(wrapped) {
		t.Fatalf("wrapped error should keep kind")
	}
	var domainErr *Error
	if !errors.As(wrapped, &domainErr) || domainErr.Message != "Pallet PLT-1 is LOADED" {
		t.Fatalf("expected errors.As to find *Error")
	}
	if IsDomainError(errors.New("db down")) {
		t.Fatalf("infrastructure error should not be a domain error")
	}
}
