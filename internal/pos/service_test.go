package pos

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dineflow/dineflow-backend/internal/store"
	"github.com/dineflow/dineflow-backend/internal/store/memory"
	"github.com/dineflow/dineflow-backend/pkg/database"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memory.Store, uuid.UUID, uuid.UUID) {
	t.Helper()
	st := memory.New()
	log := logrus.New()
	log.SetOutput(io.Discard)

	svc := NewService(st, log)
	svc.now = func() time.Time { return testNow }

	bizID, userID := uuid.New(), uuid.New()
	st.SetSetting(bizID, SettingTaxRate, "16")
	return svc, st, bizID, userID
}

func seedBurger(st *memory.Store, bizID uuid.UUID) database.MenuItem {
	return st.AddMenuItem(database.MenuItem{
		BusinessID: bizID, SKU: "BRG", Name: "Burger", Price: dec("500.00"),
	})
}

func TestCheckoutCashSale(t *testing.T) {
	svc, st, bizID, userID := newTestService(t)
	burger := seedBurger(st, bizID)
	ctx := context.Background()

	result, err := svc.Checkout(ctx, bizID, userID, CheckoutRequest{
		Lines:         []CartLine{{MenuItemID: burger.ID, Qty: dec("2")}},
		PaymentMethod: "cash",
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	sale := result.Sale
	if sale.InvoiceNo != "260314-01" {
		t.Errorf("invoice = %q, want 260314-01", sale.InvoiceNo)
	}
	if !sale.Subtotal.Equal(dec("1000.00")) || !sale.Tax.Equal(dec("160.00")) || !sale.Total.Equal(dec("1160.00")) {
		t.Errorf("totals = %s/%s/%s, want 1000.00/160.00/1160.00", sale.Subtotal, sale.Tax, sale.Total)
	}
	if sale.RecordKind != database.SaleKindOrder {
		t.Errorf("record kind = %q, want order", sale.RecordKind)
	}
	if sale.CustomerName != "Walk-in Customer" {
		t.Errorf("customer = %q, want Walk-in Customer default", sale.CustomerName)
	}
	if result.CreditSale != nil {
		t.Errorf("cash sale should not open a credit sale")
	}

	if got := len(st.Sales(bizID)); got != 1 {
		t.Errorf("persisted sales = %d, want 1", got)
	}
	lines := st.SaleLines(sale.ID)
	if len(lines) != 1 {
		t.Fatalf("persisted lines = %d, want 1", len(lines))
	}
	if !lines[0].UnitPrice.Equal(dec("500.00")) || !lines[0].LineTotal.Equal(dec("1000.00")) {
		t.Errorf("line = %+v", lines[0])
	}

	logs := st.AuditLogs(bizID)
	if len(logs) != 1 || logs[0].Action != "create" || logs[0].EntityType != "sale" {
		t.Errorf("audit logs = %+v, want one sale creation entry", logs)
	}
}

func TestCheckoutInsufficientStockRollsBack(t *testing.T) {
	svc, st, bizID, userID := newTestService(t)
	ctx := context.Background()

	beef := st.AddInventoryItem(database.InventoryItem{
		BusinessID: bizID, SKU: "BEF", Name: "Beef", Unit: "kg", CurrentStock: dec("0.3"),
	})
	burger := st.AddMenuItem(database.MenuItem{
		BusinessID: bizID, SKU: "BRG", Name: "Burger", Price: dec("500.00"),
		RecipeLines: []database.RecipeLine{{InventoryItemID: beef.ID, Quantity: dec("0.2"), Unit: "kg"}},
	})

	_, err := svc.Checkout(ctx, bizID, userID, CheckoutRequest{
		Lines:         []CartLine{{MenuItemID: burger.ID, Qty: dec("2")}},
		PaymentMethod: "cash",
	})

	var short *store.InsufficientStockError
	if !errors.As(err, &short) || short.Ingredient != "Beef" {
		t.Fatalf("err = %v, want InsufficientStockError naming Beef", err)
	}

	// Sale insert rolled back, stock untouched.
	if got := len(st.Sales(bizID)); got != 0 {
		t.Errorf("persisted sales = %d, want 0 after rollback", got)
	}
	gotBeef, _ := st.GetInventoryItem(ctx, bizID, beef.ID)
	if !gotBeef.CurrentStock.Equal(dec("0.3")) {
		t.Errorf("beef stock = %s, want unchanged 0.3", gotBeef.CurrentStock)
	}
}

func TestCheckoutCreditOpensCreditSale(t *testing.T) {
	svc, st, bizID, userID := newTestService(t)
	burger := seedBurger(st, bizID)
	ctx := context.Background()

	result, err := svc.Checkout(ctx, bizID, userID, CheckoutRequest{
		Lines:         []CartLine{{MenuItemID: burger.ID, Qty: dec("2")}},
		CustomerName:  "Asha",
		PaymentMethod: "credit",
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	cs := result.CreditSale
	if cs == nil {
		t.Fatal("credit checkout did not open a credit sale")
	}
	if !cs.CreditAmount.Equal(dec("1160.00")) || !cs.RemainingAmount.Equal(dec("1160.00")) {
		t.Errorf("credit/remaining = %s/%s, want 1160.00/1160.00", cs.CreditAmount, cs.RemainingAmount)
	}
	if !cs.PaidAmount.IsZero() {
		t.Errorf("paid = %s, want 0", cs.PaidAmount)
	}
	if cs.Status != database.CreditStatusPending {
		t.Errorf("status = %q, want pending", cs.Status)
	}
	if cs.SaleID != result.Sale.ID || cs.CustomerName != "Asha" {
		t.Errorf("credit sale not linked to order: %+v", cs)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	svc, _, bizID, userID := newTestService(t)
	_, err := svc.Checkout(context.Background(), bizID, userID, CheckoutRequest{PaymentMethod: "cash"})
	if !errors.Is(err, store.ErrEmptyCart) {
		t.Fatalf("err = %v, want ErrEmptyCart", err)
	}
}

func TestCheckoutUnknownMenuItem(t *testing.T) {
	svc, st, bizID, userID := newTestService(t)
	_, err := svc.Checkout(context.Background(), bizID, userID, CheckoutRequest{
		Lines:         []CartLine{{MenuItemID: uuid.New(), Qty: dec("1")}},
		PaymentMethod: "cash",
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if got := len(st.Sales(bizID)); got != 0 {
		t.Errorf("persisted sales = %d, want 0", got)
	}
}

func TestConcurrentCheckoutsGetDistinctInvoices(t *testing.T) {
	svc, st, bizID, userID := newTestService(t)
	burger := seedBurger(st, bizID)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Checkout(ctx, bizID, userID, CheckoutRequest{
				Lines:         []CartLine{{MenuItemID: burger.ID, Qty: dec("1")}},
				PaymentMethod: "cash",
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("checkout %d: %v", i, err)
		}
	}

	seen := map[string]bool{}
	for _, sale := range st.Sales(bizID) {
		if seen[sale.InvoiceNo] {
			t.Fatalf("duplicate invoice number %q", sale.InvoiceNo)
		}
		seen[sale.InvoiceNo] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d distinct invoices, want %d", len(seen), n)
	}
}

func TestRevenueComposition(t *testing.T) {
	svc, st, bizID, userID := newTestService(t)
	burger := seedBurger(st, bizID)
	ctx := context.Background()

	// One cash order, one credit order, one partial payment against it.
	if _, err := svc.Checkout(ctx, bizID, userID, CheckoutRequest{
		Lines:         []CartLine{{MenuItemID: burger.ID, Qty: dec("2")}},
		PaymentMethod: "cash",
	}); err != nil {
		t.Fatal(err)
	}
	creditResult, err := svc.Checkout(ctx, bizID, userID, CheckoutRequest{
		Lines:         []CartLine{{MenuItemID: burger.ID, Qty: dec("2")}},
		CustomerName:  "Asha",
		PaymentMethod: "credit",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PayCreditSale(ctx, bizID, userID, creditResult.CreditSale.ID, dec("500.00"), "cash", ""); err != nil {
		t.Fatal(err)
	}

	summary, err := svc.Revenue(ctx, bizID, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Revenue: %v", err)
	}

	// Credit order total is excluded until paid; the payment is included;
	// the synthetic receipt is never double-counted.
	if !summary.OrderRevenue.Equal(dec("1160.00")) {
		t.Errorf("order revenue = %s, want 1160.00", summary.OrderRevenue)
	}
	if !summary.CreditPayments.Equal(dec("500.00")) {
		t.Errorf("credit payments = %s, want 500.00", summary.CreditPayments)
	}
	if !summary.TotalRevenue.Equal(dec("1660.00")) {
		t.Errorf("total revenue = %s, want 1660.00", summary.TotalRevenue)
	}
	if summary.OrderCount != 2 {
		t.Errorf("order count = %d, want 2 (receipt rows excluded)", summary.OrderCount)
	}
}

func TestCheckAvailabilityThroughService(t *testing.T) {
	svc, st, bizID, _ := newTestService(t)
	ctx := context.Background()

	beef := st.AddInventoryItem(database.InventoryItem{
		BusinessID: bizID, SKU: "BEF", Name: "Beef", Unit: "kg", CurrentStock: dec("1"),
	})
	burger := st.AddMenuItem(database.MenuItem{
		BusinessID: bizID, SKU: "BRG", Name: "Burger", Price: dec("500.00"),
		RecipeLines: []database.RecipeLine{{InventoryItemID: beef.ID, Quantity: dec("0.2"), Unit: "kg"}},
	})

	availability, err := svc.CheckAvailability(ctx, bizID, burger.ID, dec("5"))
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if !availability.Available {
		t.Errorf("available = false, want true for exactly sufficient stock")
	}

	availability, err = svc.CheckAvailability(ctx, bizID, burger.ID, dec("6"))
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if availability.Available {
		t.Errorf("available = true, want false for 6 burgers needing 1.2kg of 1kg")
	}
}

func TestBusinessDayUsesTenantOffset(t *testing.T) {
	svc, st, bizID, _ := newTestService(t)
	ctx := context.Background()

	// 12:00 with a 14:00 day start is still the previous business day.
	st.SetSetting(bizID, SettingNewDayStartTime, "14:00")
	day, err := svc.BusinessDay(ctx, bizID)
	if err != nil {
		t.Fatalf("BusinessDay: %v", err)
	}
	if !day.Equal(time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("business day = %v, want 2026-03-13", day)
	}
}
