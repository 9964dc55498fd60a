package pos

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dineflow/dineflow-backend/internal/store"
	"github.com/dineflow/dineflow-backend/internal/store/memory"
	"github.com/dineflow/dineflow-backend/pkg/database"
)

func TestDeductOrderRecipeMath(t *testing.T) {
	st := memory.New()
	bizID := uuid.New()
	ctx := context.Background()

	flour := st.AddInventoryItem(database.InventoryItem{
		BusinessID: bizID, SKU: "FLR", Name: "Flour", Unit: "kg", CurrentStock: dec("10"),
	})
	cheese := st.AddInventoryItem(database.InventoryItem{
		BusinessID: bizID, SKU: "CHS", Name: "Cheese", Unit: "kg", CurrentStock: dec("10"),
	})
	pizza := st.AddMenuItem(database.MenuItem{
		BusinessID: bizID, SKU: "PZA", Name: "Pizza", Price: dec("300.00"),
		RecipeLines: []database.RecipeLine{
			{InventoryItemID: flour.ID, Quantity: dec("0.5"), Unit: "kg"},
			{InventoryItemID: cheese.ID, Quantity: dec("2"), Unit: "kg"},
		},
	})
	item, err := st.GetMenuItem(ctx, bizID, pizza.ID)
	if err != nil {
		t.Fatal(err)
	}

	var ledger InventoryLedger
	deductions, err := ledger.DeductOrder(ctx, st, bizID,
		[]PricedLine{{Item: item, Qty: dec("3")}}, false)
	if err != nil {
		t.Fatalf("DeductOrder: %v", err)
	}
	if len(deductions) != 2 {
		t.Fatalf("got %d deductions, want 2", len(deductions))
	}

	gotFlour, _ := st.GetInventoryItem(ctx, bizID, flour.ID)
	if !gotFlour.CurrentStock.Equal(dec("8.5")) {
		t.Errorf("flour stock = %s, want 8.5", gotFlour.CurrentStock)
	}
	gotCheese, _ := st.GetInventoryItem(ctx, bizID, cheese.ID)
	if !gotCheese.CurrentStock.Equal(dec("4")) {
		t.Errorf("cheese stock = %s, want 4", gotCheese.CurrentStock)
	}
}

func TestDeductOrderRejectsAtomically(t *testing.T) {
	st := memory.New()
	bizID := uuid.New()
	ctx := context.Background()

	flour := st.AddInventoryItem(database.InventoryItem{
		BusinessID: bizID, SKU: "FLR", Name: "Flour", Unit: "kg", CurrentStock: dec("10"),
	})
	beef := st.AddInventoryItem(database.InventoryItem{
		BusinessID: bizID, SKU: "BEF", Name: "Beef", Unit: "kg", CurrentStock: dec("0.3"),
	})
	burger := st.AddMenuItem(database.MenuItem{
		BusinessID: bizID, SKU: "BRG", Name: "Burger", Price: dec("500.00"),
		RecipeLines: []database.RecipeLine{
			{InventoryItemID: flour.ID, Quantity: dec("0.1"), Unit: "kg"},
			{InventoryItemID: beef.ID, Quantity: dec("0.2"), Unit: "kg"},
		},
	})
	item, _ := st.GetMenuItem(ctx, bizID, burger.ID)

	var ledger InventoryLedger
	_, err := ledger.DeductOrder(ctx, st, bizID,
		[]PricedLine{{Item: item, Qty: dec("2")}}, false)

	var short *store.InsufficientStockError
	if !errors.As(err, &short) {
		t.Fatalf("err = %v, want InsufficientStockError", err)
	}
	if short.Ingredient != "Beef" {
		t.Errorf("offending ingredient = %q, want Beef", short.Ingredient)
	}
	if !short.Required.Equal(dec("0.4")) || !short.Available.Equal(dec("0.3")) {
		t.Errorf("required/available = %s/%s, want 0.4/0.3", short.Required, short.Available)
	}

	// No partial deduction: both ingredients untouched.
	gotFlour, _ := st.GetInventoryItem(ctx, bizID, flour.ID)
	if !gotFlour.CurrentStock.Equal(dec("10")) {
		t.Errorf("flour stock = %s, want unchanged 10", gotFlour.CurrentStock)
	}
	gotBeef, _ := st.GetInventoryItem(ctx, bizID, beef.ID)
	if !gotBeef.CurrentStock.Equal(dec("0.3")) {
		t.Errorf("beef stock = %s, want unchanged 0.3", gotBeef.CurrentStock)
	}
}

func TestDeductOrderAggregatesSharedIngredient(t *testing.T) {
	st := memory.New()
	bizID := uuid.New()
	ctx := context.Background()

	// Two menu items share beef; each line alone fits but the sum does not.
	beef := st.AddInventoryItem(database.InventoryItem{
		BusinessID: bizID, SKU: "BEF", Name: "Beef", Unit: "kg", CurrentStock: dec("0.5"),
	})
	burger := st.AddMenuItem(database.MenuItem{
		BusinessID: bizID, SKU: "BRG", Name: "Burger", Price: dec("500.00"),
		RecipeLines: []database.RecipeLine{{InventoryItemID: beef.ID, Quantity: dec("0.3"), Unit: "kg"}},
	})
	steak := st.AddMenuItem(database.MenuItem{
		BusinessID: bizID, SKU: "STK", Name: "Steak", Price: dec("900.00"),
		RecipeLines: []database.RecipeLine{{InventoryItemID: beef.ID, Quantity: dec("0.3"), Unit: "kg"}},
	})
	b, _ := st.GetMenuItem(ctx, bizID, burger.ID)
	s, _ := st.GetMenuItem(ctx, bizID, steak.ID)

	var ledger InventoryLedger
	_, err := ledger.DeductOrder(ctx, st, bizID,
		[]PricedLine{{Item: b, Qty: dec("1")}, {Item: s, Qty: dec("1")}}, false)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("err = %v, want insufficient stock for the summed requirement", err)
	}
	gotBeef, _ := st.GetInventoryItem(ctx, bizID, beef.ID)
	if !gotBeef.CurrentStock.Equal(dec("0.5")) {
		t.Errorf("beef stock = %s, want unchanged 0.5", gotBeef.CurrentStock)
	}
}

func TestDeductOrderLegacyLotsFIFO(t *testing.T) {
	st := memory.New()
	bizID := uuid.New()
	ctx := context.Background()

	inv := st.AddInventoryItem(database.InventoryItem{
		BusinessID: bizID, SKU: "BRG", Name: "Burger Patty", Unit: "pcs", CurrentStock: dec("9"),
	})
	older := st.AddLot(database.InventoryLot{
		BusinessID: bizID, InventoryItemID: inv.ID, QtyOnHand: dec("5"),
		ReceivedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	newer := st.AddLot(database.InventoryLot{
		BusinessID: bizID, InventoryItemID: inv.ID, QtyOnHand: dec("4"),
		ReceivedAt: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	burger := st.AddMenuItem(database.MenuItem{
		BusinessID: bizID, SKU: "BRG", Name: "Burger", Price: dec("500.00"),
	})
	item, _ := st.GetMenuItem(ctx, bizID, burger.ID)

	var ledger InventoryLedger
	if _, err := ledger.DeductOrder(ctx, st, bizID,
		[]PricedLine{{Item: item, Qty: dec("7")}}, false); err != nil {
		t.Fatalf("DeductOrder: %v", err)
	}

	gotOlder, _ := st.Lot(older.ID)
	if !gotOlder.QtyOnHand.IsZero() {
		t.Errorf("oldest lot = %s, want drained to 0", gotOlder.QtyOnHand)
	}
	gotNewer, _ := st.Lot(newer.ID)
	if !gotNewer.QtyOnHand.Equal(dec("2")) {
		t.Errorf("newer lot = %s, want 2", gotNewer.QtyOnHand)
	}
	gotInv, _ := st.GetInventoryItem(ctx, bizID, inv.ID)
	if !gotInv.CurrentStock.Equal(dec("2")) {
		t.Errorf("mirrored stock = %s, want 2", gotInv.CurrentStock)
	}
}

func TestDeductOrderLegacyUnderCoverageClampsAtZero(t *testing.T) {
	st := memory.New()
	bizID := uuid.New()
	ctx := context.Background()

	inv := st.AddInventoryItem(database.InventoryItem{
		BusinessID: bizID, SKU: "BRG", Name: "Burger Patty", Unit: "pcs", CurrentStock: dec("3"),
	})
	lot := st.AddLot(database.InventoryLot{
		BusinessID: bizID, InventoryItemID: inv.ID, QtyOnHand: dec("3"),
		ReceivedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	burger := st.AddMenuItem(database.MenuItem{
		BusinessID: bizID, SKU: "BRG", Name: "Burger", Price: dec("500.00"),
	})
	item, _ := st.GetMenuItem(ctx, bizID, burger.ID)

	var ledger InventoryLedger

	// Lax mode drains what exists and does not fail the order.
	if _, err := ledger.DeductOrder(ctx, st, bizID,
		[]PricedLine{{Item: item, Qty: dec("5")}}, false); err != nil {
		t.Fatalf("lax legacy deduction should not fail: %v", err)
	}
	gotLot, _ := st.Lot(lot.ID)
	if !gotLot.QtyOnHand.IsZero() {
		t.Errorf("lot = %s, want 0", gotLot.QtyOnHand)
	}
	gotInv, _ := st.GetInventoryItem(ctx, bizID, inv.ID)
	if !gotInv.CurrentStock.IsZero() {
		t.Errorf("stock = %s, want clamped at 0", gotInv.CurrentStock)
	}
}

func TestDeductOrderLegacyStrictRejects(t *testing.T) {
	st := memory.New()
	bizID := uuid.New()
	ctx := context.Background()

	inv := st.AddInventoryItem(database.InventoryItem{
		BusinessID: bizID, SKU: "BRG", Name: "Burger Patty", Unit: "pcs", CurrentStock: dec("3"),
	})
	burger := st.AddMenuItem(database.MenuItem{
		BusinessID: bizID, SKU: "BRG", Name: "Burger", Price: dec("500.00"),
	})
	item, _ := st.GetMenuItem(ctx, bizID, burger.ID)

	var ledger InventoryLedger
	_, err := ledger.DeductOrder(ctx, st, bizID,
		[]PricedLine{{Item: item, Qty: dec("5")}}, true)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("err = %v, want insufficient stock in strict mode", err)
	}
	gotInv, _ := st.GetInventoryItem(ctx, bizID, inv.ID)
	if !gotInv.CurrentStock.Equal(dec("3")) {
		t.Errorf("stock = %s, want unchanged 3", gotInv.CurrentStock)
	}
}

func TestDeductOrderMixedRecipeAndLegacyOnSameItem(t *testing.T) {
	// One inventory item hit from both sides: a recipe line references it
	// and a recipe-less menu item shares its SKU. Only the legacy demand
	// may drain lots, whichever line comes first.
	seed := func() (*memory.Store, uuid.UUID, uuid.UUID, uuid.UUID, []PricedLine, []PricedLine) {
		st := memory.New()
		bizID := uuid.New()
		ctx := context.Background()

		milk := st.AddInventoryItem(database.InventoryItem{
			BusinessID: bizID, SKU: "MLK", Name: "Milk", Unit: "liter", CurrentStock: dec("10"),
		})
		older := st.AddLot(database.InventoryLot{
			BusinessID: bizID, InventoryItemID: milk.ID, QtyOnHand: dec("6"),
			ReceivedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		})
		newer := st.AddLot(database.InventoryLot{
			BusinessID: bizID, InventoryItemID: milk.ID, QtyOnHand: dec("4"),
			ReceivedAt: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		})
		latte := st.AddMenuItem(database.MenuItem{
			BusinessID: bizID, SKU: "LTE", Name: "Latte", Price: dec("250.00"),
			RecipeLines: []database.RecipeLine{{InventoryItemID: milk.ID, Quantity: dec("2"), Unit: "liter"}},
		})
		bottled := st.AddMenuItem(database.MenuItem{
			BusinessID: bizID, SKU: "MLK", Name: "Bottled Milk", Price: dec("80.00"),
		})
		l, _ := st.GetMenuItem(ctx, bizID, latte.ID)
		b, _ := st.GetMenuItem(ctx, bizID, bottled.ID)

		recipeFirst := []PricedLine{{Item: l, Qty: dec("1")}, {Item: b, Qty: dec("3")}}
		legacyFirst := []PricedLine{{Item: b, Qty: dec("3")}, {Item: l, Qty: dec("1")}}
		return st, milk.ID, older.ID, newer.ID, recipeFirst, legacyFirst
	}

	check := func(t *testing.T, st *memory.Store, bizID, milkID, olderID, newerID uuid.UUID) {
		t.Helper()
		gotOlder, _ := st.Lot(olderID)
		if !gotOlder.QtyOnHand.Equal(dec("3")) {
			t.Errorf("oldest lot = %s, want 3 (drained by legacy qty only)", gotOlder.QtyOnHand)
		}
		gotNewer, _ := st.Lot(newerID)
		if !gotNewer.QtyOnHand.Equal(dec("4")) {
			t.Errorf("newer lot = %s, want untouched 4", gotNewer.QtyOnHand)
		}
		gotMilk, _ := st.GetInventoryItem(context.Background(), bizID, milkID)
		if !gotMilk.CurrentStock.Equal(dec("5")) {
			t.Errorf("stock = %s, want 5 (10 - 2 recipe - 3 legacy)", gotMilk.CurrentStock)
		}
	}

	var ledger InventoryLedger
	for _, order := range []string{"recipe line first", "legacy line first"} {
		st, milkID, olderID, newerID, recipeFirst, legacyFirst := seed()
		bizID := recipeFirst[0].Item.BusinessID
		lines := recipeFirst
		if order == "legacy line first" {
			lines = legacyFirst
		}
		if _, err := ledger.DeductOrder(context.Background(), st, bizID, lines, false); err != nil {
			t.Fatalf("%s: DeductOrder: %v", order, err)
		}
		check(t, st, bizID, milkID, olderID, newerID)
	}
}

func TestDeductOrderNoStockRecordIsNoop(t *testing.T) {
	st := memory.New()
	bizID := uuid.New()
	ctx := context.Background()

	service := st.AddMenuItem(database.MenuItem{
		BusinessID: bizID, SKU: "SVC", Name: "Service Charge", Price: dec("50.00"),
	})
	item, _ := st.GetMenuItem(ctx, bizID, service.ID)

	var ledger InventoryLedger
	deductions, err := ledger.DeductOrder(ctx, st, bizID,
		[]PricedLine{{Item: item, Qty: dec("1")}}, true)
	if err != nil {
		t.Fatalf("DeductOrder: %v", err)
	}
	if len(deductions) != 0 {
		t.Errorf("got %d deductions, want none for an untracked item", len(deductions))
	}
}

func TestCheckAvailabilityDetailAndIdempotence(t *testing.T) {
	st := memory.New()
	bizID := uuid.New()
	ctx := context.Background()

	beef := st.AddInventoryItem(database.InventoryItem{
		BusinessID: bizID, SKU: "BEF", Name: "Beef", Unit: "kg", CurrentStock: dec("0.3"),
	})
	bun := st.AddInventoryItem(database.InventoryItem{
		BusinessID: bizID, SKU: "BUN", Name: "Bun", Unit: "pcs", CurrentStock: dec("10"),
	})
	burger := st.AddMenuItem(database.MenuItem{
		BusinessID: bizID, SKU: "BRG", Name: "Burger", Price: dec("500.00"),
		RecipeLines: []database.RecipeLine{
			{InventoryItemID: beef.ID, Quantity: dec("0.2"), Unit: "kg"},
			{InventoryItemID: bun.ID, Quantity: dec("1"), Unit: "pcs"},
		},
	})

	var ledger InventoryLedger
	first, err := ledger.CheckAvailability(ctx, st, bizID, burger.ID, dec("2"), false)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if first.Available {
		t.Errorf("available = true, want false (beef short)")
	}
	if len(first.Ingredients) != 2 {
		t.Fatalf("got %d ingredient rows, want 2", len(first.Ingredients))
	}
	for _, ing := range first.Ingredients {
		switch ing.Name {
		case "Beef":
			if ing.Sufficient || !ing.Required.Equal(dec("0.4")) {
				t.Errorf("beef row = %+v", ing)
			}
		case "Bun":
			if !ing.Sufficient || !ing.Required.Equal(dec("2")) {
				t.Errorf("bun row = %+v", ing)
			}
		default:
			t.Errorf("unexpected ingredient %q", ing.Name)
		}
	}

	// Read-only: a second call sees identical state.
	second, err := ledger.CheckAvailability(ctx, st, bizID, burger.ID, dec("2"), false)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("availability check mutated state: %+v vs %+v", first, second)
	}
	gotBeef, _ := st.GetInventoryItem(ctx, bizID, beef.ID)
	if !gotBeef.CurrentStock.Equal(dec("0.3")) {
		t.Errorf("beef stock = %s, want untouched 0.3", gotBeef.CurrentStock)
	}
}
