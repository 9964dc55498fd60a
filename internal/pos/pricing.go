package pos

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dineflow/dineflow-backend/internal/store"
	"github.com/dineflow/dineflow-backend/pkg/database"
)

// CartLine is one requested (menu item, quantity) pair.
type CartLine struct {
	MenuItemID uuid.UUID       `json:"menu_item_id" binding:"required"`
	Qty        decimal.Decimal `json:"qty" binding:"required"`
}

// PricedLine carries the resolved menu item and its price snapshot.
type PricedLine struct {
	Item      *database.MenuItem
	Qty       decimal.Decimal
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// PricedOrder is the result of pricing a cart. Subtotal, Tax and Total are
// rounded to 2 decimals; per-line totals are kept unrounded so the subtotal
// is computed from exact values.
type PricedOrder struct {
	Lines    []PricedLine
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// PricingEngine resolves cart lines against the tenant's menu and computes
// subtotal, tax and total. The tax rate is passed in per call: tenant tax
// edits apply to new orders immediately while stored sales keep their
// snapshots.
type PricingEngine struct{}

// Price resolves every line's menu item (absent or cross-tenant items are
// ErrNotFound) and totals the cart. Rounding happens once, here: half-up to
// two decimals on subtotal, then tax, then total.
func (PricingEngine) Price(ctx context.Context, repo store.Repository, businessID uuid.UUID, lines []CartLine, taxRate decimal.Decimal) (*PricedOrder, error) {
	if len(lines) == 0 {
		return nil, store.ErrEmptyCart
	}

	order := &PricedOrder{Lines: make([]PricedLine, 0, len(lines))}
	subtotal := decimal.Zero
	for _, l := range lines {
		if l.Qty.Sign() <= 0 {
			return nil, store.ErrInvalidAmount
		}
		item, err := repo.GetMenuItem(ctx, businessID, l.MenuItemID)
		if err != nil {
			return nil, err
		}
		lineTotal := l.Qty.Mul(item.Price)
		subtotal = subtotal.Add(lineTotal)
		order.Lines = append(order.Lines, PricedLine{
			Item:      item,
			Qty:       l.Qty,
			UnitPrice: item.Price,
			LineTotal: lineTotal,
		})
	}

	order.Subtotal = subtotal.Round(2)
	order.Tax = order.Subtotal.Mul(taxRate).Round(2)
	order.Total = order.Subtotal.Add(order.Tax)
	return order, nil
}

// ExtractTax back-computes subtotal and tax from a tax-inclusive amount so
// that subtotal × (1+rate) == amount. Used for credit-payment receipts: the
// original credit order already included tax, so the payment must not have
// tax added on top of it again.
func ExtractTax(amount, taxRate decimal.Decimal) (subtotal, tax decimal.Decimal) {
	subtotal = amount.Div(decimal.NewFromInt(1).Add(taxRate)).Round(2)
	tax = amount.Sub(subtotal)
	return subtotal, tax
}
