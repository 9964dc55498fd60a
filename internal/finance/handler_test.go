package finance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestExpenseRequestValidate(t *testing.T) {
	valid := ExpenseRequest{Category: "supplies", Amount: decimal.NewFromInt(150)}
	if err := valid.validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	missing := ExpenseRequest{Amount: decimal.NewFromInt(150)}
	if err := missing.validate(); err != errCategoryRequired {
		t.Fatalf("expected errCategoryRequired, got %v", err)
	}

	zero := ExpenseRequest{Category: "supplies"}
	if err := zero.validate(); err != errAmountNotPositive {
		t.Fatalf("expected errAmountNotPositive for zero amount, got %v", err)
	}

	negative := ExpenseRequest{Category: "supplies", Amount: decimal.NewFromInt(-5)}
	if err := negative.validate(); err != errAmountNotPositive {
		t.Fatalf("expected errAmountNotPositive for negative amount, got %v", err)
	}
}

func TestClosingRequestValidate(t *testing.T) {
	req := ClosingRequest{
		Date:        "2026-08-29",
		OpeningCash: decimal.NewFromInt(500),
		ClosingCash: decimal.NewFromInt(2350),
	}
	day, err := req.validate()
	if err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
	want := time.Date(2026, time.August, 29, 0, 0, 0, 0, time.UTC)
	if !day.Equal(want) {
		t.Fatalf("parsed date = %v, want %v", day, want)
	}

	bad := ClosingRequest{Date: "29/08/2026", ClosingCash: decimal.NewFromInt(100)}
	if _, err := bad.validate(); err == nil {
		t.Fatal("expected error for malformed date")
	}

	negative := ClosingRequest{Date: "2026-08-29", ClosingCash: decimal.NewFromInt(-1)}
	if _, err := negative.validate(); err != errNegativeCash {
		t.Fatalf("expected errNegativeCash, got %v", err)
	}
}
