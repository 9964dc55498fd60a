package pos

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dineflow/dineflow-backend/internal/store"
	"github.com/dineflow/dineflow-backend/internal/store/memory"
	"github.com/dineflow/dineflow-backend/pkg/database"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPriceOrderTotals(t *testing.T) {
	st := memory.New()
	bizID := uuid.New()
	burger := st.AddMenuItem(database.MenuItem{
		BusinessID: bizID,
		SKU:        "BRG",
		Name:       "Burger",
		Price:      dec("500.00"),
	})

	var engine PricingEngine
	order, err := engine.Price(context.Background(), st, bizID,
		[]CartLine{{MenuItemID: burger.ID, Qty: dec("2")}}, dec("0.16"))
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if !order.Subtotal.Equal(dec("1000.00")) {
		t.Errorf("subtotal = %s, want 1000.00", order.Subtotal)
	}
	if !order.Tax.Equal(dec("160.00")) {
		t.Errorf("tax = %s, want 160.00", order.Tax)
	}
	if !order.Total.Equal(dec("1160.00")) {
		t.Errorf("total = %s, want 1160.00", order.Total)
	}
	if len(order.Lines) != 1 || !order.Lines[0].UnitPrice.Equal(dec("500.00")) {
		t.Errorf("unexpected lines: %+v", order.Lines)
	}
}

func TestPriceOrderRoundsOnceAtTotal(t *testing.T) {
	st := memory.New()
	bizID := uuid.New()
	// 3 × 0.335 = 1.005 per line; summed before rounding, then half-up.
	item := st.AddMenuItem(database.MenuItem{
		BusinessID: bizID,
		SKU:        "TEA",
		Name:       "Tea",
		Price:      dec("0.335"),
	})

	var engine PricingEngine
	order, err := engine.Price(context.Background(), st, bizID,
		[]CartLine{{MenuItemID: item.ID, Qty: dec("3")}}, dec("0.10"))
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if !order.Subtotal.Equal(dec("1.01")) {
		t.Errorf("subtotal = %s, want 1.01 (half-up)", order.Subtotal)
	}
	if !order.Total.Equal(order.Subtotal.Add(order.Tax)) {
		t.Errorf("total %s != subtotal %s + tax %s", order.Total, order.Subtotal, order.Tax)
	}
}

func TestPriceOrderUnknownItem(t *testing.T) {
	st := memory.New()
	var engine PricingEngine
	_, err := engine.Price(context.Background(), st, uuid.New(),
		[]CartLine{{MenuItemID: uuid.New(), Qty: dec("1")}}, decimal.Zero)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPriceOrderCrossTenantItemIsNotFound(t *testing.T) {
	st := memory.New()
	otherBiz := uuid.New()
	item := st.AddMenuItem(database.MenuItem{
		BusinessID: otherBiz,
		SKU:        "BRG",
		Name:       "Burger",
		Price:      dec("500.00"),
	})

	var engine PricingEngine
	_, err := engine.Price(context.Background(), st, uuid.New(),
		[]CartLine{{MenuItemID: item.ID, Qty: dec("1")}}, decimal.Zero)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for cross-tenant item", err)
	}
}

func TestPriceOrderEmptyCart(t *testing.T) {
	var engine PricingEngine
	_, err := engine.Price(context.Background(), memory.New(), uuid.New(), nil, decimal.Zero)
	if !errors.Is(err, store.ErrEmptyCart) {
		t.Fatalf("err = %v, want ErrEmptyCart", err)
	}
}

func TestExtractTax(t *testing.T) {
	subtotal, tax := ExtractTax(dec("500.00"), dec("0.16"))
	if !subtotal.Equal(dec("431.03")) {
		t.Errorf("subtotal = %s, want 431.03", subtotal)
	}
	if !tax.Equal(dec("68.97")) {
		t.Errorf("tax = %s, want 68.97", tax)
	}
	if !subtotal.Add(tax).Equal(dec("500.00")) {
		t.Errorf("subtotal + tax must reconstruct the amount exactly")
	}
	// subtotal × 1.16 stays within a cent of the amount.
	diff := subtotal.Mul(dec("1.16")).Sub(dec("500.00")).Abs()
	if diff.GreaterThan(dec("0.01")) {
		t.Errorf("back-computed amount off by %s", diff)
	}
}
