package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundWraps(t *testing.T) {
	err := NotFound("goal", "g-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err.Error() != "goal g-1: not found" {
		t.Errorf("got %q", err.Error())
	}
	if IsValidation(err) {
		t.Error("not-found error must not match ErrValidation")
	}
}

func TestServiceErrorIsAndAs(t *testing.T) {
	cause := context.DeadlineExceeded
	err := fmt.Errorf("cycle: %w", Service("wallet", "get_balance", cause))

	if !errors.Is(err, ErrService) {
		t.Fatal("expected errors.Is(err, ErrService)")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("expected the cause to stay reachable")
	}
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatal("expected errors.As to find *ServiceError")
	}
	if se.Service != "wallet" || se.Op != "get_balance" {
		t.Errorf("got service=%q op=%q", se.Service, se.Op)
	}
}

func TestServiceNilAndNoDoubleWrap(t *testing.T) {
	if Service("llm", "chat", nil) != nil {
		t.Fatal("nil error must stay nil")
	}
	inner := Service("llm", "chat", errors.New("boom"))
	outer := Service("agent", "cycle", inner)
	if outer != inner {
		t.Errorf("expected existing ServiceError to be returned unchanged")
	}
}

func TestInvalid(t *testing.T) {
	err := Invalid("priority %d out of range", 7)
	if !IsValidation(err) {
		t.Fatal("expected validation error")
	}
	if err.Error() != "priority 7 out of range: validation failed" {
		t.Errorf("got %q", err.Error())
	}
}
