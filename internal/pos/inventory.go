package pos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dineflow/dineflow-backend/internal/store"
	"github.com/dineflow/dineflow-backend/pkg/database"
)

// Deduction records one applied stock decrement, for the audit trail.
type Deduction struct {
	InventoryItemID uuid.UUID       `json:"inventory_item_id"`
	Ingredient      string          `json:"ingredient"`
	Deducted        decimal.Decimal `json:"deducted"`
	Remaining       decimal.Decimal `json:"remaining"`
}

// IngredientStatus is one row of an availability check.
type IngredientStatus struct {
	Name       string          `json:"name"`
	Unit       string          `json:"unit"`
	Required   decimal.Decimal `json:"required"`
	Available  decimal.Decimal `json:"available"`
	Sufficient bool            `json:"sufficient"`
}

// Availability is the read-only pre-check result for one menu item.
type Availability struct {
	Available   bool               `json:"available"`
	Ingredients []IngredientStatus `json:"ingredients"`
}

// InventoryLedger validates and applies stock deductions for an order. Menu
// items with recipe lines deduct ingredient stock strictly (the whole order
// is rejected before any write if one ingredient is short). Items without a
// recipe fall back to draining per-batch lots oldest-first, matched to the
// inventory item sharing the menu item's SKU; that path drains to zero and
// silently under-covers unless strictLegacy is set.
type InventoryLedger struct{}

// pendingDeduct accumulates one inventory item's requirements across the
// whole order. Recipe demand and legacy lot demand are tracked separately:
// only the legacy portion touches the lot book, regardless of line order.
type pendingDeduct struct {
	item    *database.InventoryItem
	direct  decimal.Decimal // recipe demand, decrements current_stock only
	viaLots decimal.Decimal // legacy demand, drains lots oldest-first
	strict  bool
}

func (p *pendingDeduct) required() decimal.Decimal {
	return p.direct.Add(p.viaLots)
}

// DeductOrder runs the two-phase deduction for a whole order: lock and
// validate every requirement first, then apply. Requirements for the same
// ingredient across lines are summed before validation so a multi-line order
// can never drive stock negative. Must run inside a transaction.
func (InventoryLedger) DeductOrder(ctx context.Context, repo store.Repository, businessID uuid.UUID, lines []PricedLine, strictLegacy bool) ([]Deduction, error) {
	var plan []*pendingDeduct
	index := map[uuid.UUID]*pendingDeduct{}

	add := func(item *database.InventoryItem, required decimal.Decimal, viaLots, strict bool) {
		p, ok := index[item.ID]
		if !ok {
			p = &pendingDeduct{item: item}
			index[item.ID] = p
			plan = append(plan, p)
		}
		if viaLots {
			p.viaLots = p.viaLots.Add(required)
		} else {
			p.direct = p.direct.Add(required)
		}
		p.strict = p.strict || strict
	}

	// Phase 1: resolve and lock every affected inventory row.
	for _, line := range lines {
		if len(line.Item.RecipeLines) > 0 {
			for _, rl := range line.Item.RecipeLines {
				inv, err := repo.GetInventoryItemForUpdate(ctx, businessID, rl.InventoryItemID)
				if err != nil {
					return nil, err
				}
				add(inv, rl.Quantity.Mul(line.Qty), false, true)
			}
			continue
		}
		inv, err := repo.GetInventoryItemBySKU(ctx, businessID, line.Item.SKU)
		if errors.Is(err, store.ErrNotFound) {
			// No stock record linked to this item; nothing to deduct.
			continue
		}
		if err != nil {
			return nil, err
		}
		if inv, err = repo.GetInventoryItemForUpdate(ctx, businessID, inv.ID); err != nil {
			return nil, err
		}
		add(inv, line.Qty, true, strictLegacy)
	}

	// Validate all before mutating anything.
	for _, p := range plan {
		if p.strict && p.item.CurrentStock.LessThan(p.required()) {
			return nil, &store.InsufficientStockError{
				Ingredient: p.item.Name,
				Required:   p.required(),
				Available:  p.item.CurrentStock,
			}
		}
	}

	// Phase 2: apply. The lot book takes the legacy portion only; the
	// denormalized stock takes the combined total, clamped at zero for the
	// lax legacy path (strict entries were validated above).
	deductions := make([]Deduction, 0, len(plan))
	for _, p := range plan {
		if p.viaLots.Sign() > 0 {
			if err := drainLots(ctx, repo, businessID, p.item.ID, p.viaLots); err != nil {
				return nil, err
			}
		}
		remaining := p.item.CurrentStock.Sub(p.required())
		if remaining.Sign() < 0 {
			remaining = decimal.Zero
		}
		if err := repo.UpdateInventoryStock(ctx, businessID, p.item.ID, remaining); err != nil {
			return nil, err
		}
		deductions = append(deductions, Deduction{
			InventoryItemID: p.item.ID,
			Ingredient:      p.item.Name,
			Deducted:        p.required(),
			Remaining:       remaining,
		})
	}
	return deductions, nil
}

// drainLots consumes lots oldest-first until required is satisfied or the
// lots run out. Under-coverage is not an error here; strict mode rejects
// earlier, during validation.
func drainLots(ctx context.Context, repo store.Repository, businessID, itemID uuid.UUID, required decimal.Decimal) error {
	lots, err := repo.ListOpenLots(ctx, businessID, itemID)
	if err != nil {
		return err
	}
	left := required
	for _, lot := range lots {
		if left.Sign() <= 0 {
			break
		}
		take := decimal.Min(left, lot.QtyOnHand)
		if err := repo.UpdateLotQty(ctx, businessID, lot.ID, lot.QtyOnHand.Sub(take)); err != nil {
			return err
		}
		left = left.Sub(take)
	}
	return nil
}

// CheckAvailability reports whether qty of a menu item could be fulfilled
// right now, with per-ingredient detail. Read-only: it never locks or
// mutates, so two consecutive calls agree absent intervening writes.
func (InventoryLedger) CheckAvailability(ctx context.Context, repo store.Repository, businessID, menuItemID uuid.UUID, qty decimal.Decimal, strictLegacy bool) (*Availability, error) {
	item, err := repo.GetMenuItem(ctx, businessID, menuItemID)
	if err != nil {
		return nil, err
	}

	result := &Availability{Available: true, Ingredients: []IngredientStatus{}}
	if len(item.RecipeLines) > 0 {
		for _, rl := range item.RecipeLines {
			inv, err := repo.GetInventoryItem(ctx, businessID, rl.InventoryItemID)
			if err != nil {
				return nil, err
			}
			required := rl.Quantity.Mul(qty)
			sufficient := !inv.CurrentStock.LessThan(required)
			if !sufficient {
				result.Available = false
			}
			result.Ingredients = append(result.Ingredients, IngredientStatus{
				Name:       inv.Name,
				Unit:       inv.Unit,
				Required:   required,
				Available:  inv.CurrentStock,
				Sufficient: sufficient,
			})
		}
		return result, nil
	}

	inv, err := repo.GetInventoryItemBySKU(ctx, businessID, item.SKU)
	if errors.Is(err, store.ErrNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	sufficient := !inv.CurrentStock.LessThan(qty)
	if strictLegacy && !sufficient {
		result.Available = false
	}
	result.Ingredients = append(result.Ingredients, IngredientStatus{
		Name:       inv.Name,
		Unit:       inv.Unit,
		Required:   qty,
		Available:  inv.CurrentStock,
		Sufficient: sufficient,
	})
	return result, nil
}
