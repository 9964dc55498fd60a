package pos

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/dineflow/dineflow-backend/internal/store"
	"github.com/dineflow/dineflow-backend/internal/store/memory"
	"github.com/dineflow/dineflow-backend/pkg/database"
)

func openCreditSale(t *testing.T, svc *Service, st *memory.Store, bizID, userID uuid.UUID) *database.CreditSale {
	t.Helper()
	burger := seedBurger(st, bizID)
	result, err := svc.Checkout(context.Background(), bizID, userID, CheckoutRequest{
		Lines:         []CartLine{{MenuItemID: burger.ID, Qty: dec("2")}},
		CustomerName:  "Asha",
		PaymentMethod: "credit",
	})
	if err != nil {
		t.Fatalf("credit checkout: %v", err)
	}
	return result.CreditSale
}

func TestPartialPayment(t *testing.T) {
	svc, st, bizID, userID := newTestService(t)
	cs := openCreditSale(t, svc, st, bizID, userID)
	ctx := context.Background()

	result, err := svc.PayCreditSale(ctx, bizID, userID, cs.ID, dec("500.00"), "cash", "first installment")
	if err != nil {
		t.Fatalf("PayCreditSale: %v", err)
	}

	updated := result.CreditSale
	if !updated.PaidAmount.Equal(dec("500.00")) {
		t.Errorf("paid = %s, want 500.00", updated.PaidAmount)
	}
	if !updated.RemainingAmount.Equal(dec("660.00")) {
		t.Errorf("remaining = %s, want 660.00", updated.RemainingAmount)
	}
	if updated.Status != database.CreditStatusPartial {
		t.Errorf("status = %q, want partial", updated.Status)
	}

	payments := st.CreditPayments(cs.ID)
	if len(payments) != 1 || !payments[0].PaymentAmount.Equal(dec("500.00")) {
		t.Errorf("payments = %+v, want one 500.00 row", payments)
	}

	receipt := result.ReceiptSale
	if !strings.Contains(receipt.InvoiceNo, "-PAY-") {
		t.Errorf("receipt invoice = %q, want -PAY- marker", receipt.InvoiceNo)
	}
	if receipt.RecordKind != database.SaleKindCreditPayment {
		t.Errorf("receipt kind = %q, want credit_payment", receipt.RecordKind)
	}
	if !receipt.Total.Equal(dec("500.00")) {
		t.Errorf("receipt total = %s, want 500.00", receipt.Total)
	}
	// Tax extracted from the tax-inclusive amount: subtotal × 1.16 ≈ 500.
	if !receipt.Subtotal.Add(receipt.Tax).Equal(dec("500.00")) {
		t.Errorf("receipt subtotal+tax = %s, want 500.00", receipt.Subtotal.Add(receipt.Tax))
	}
	diff := receipt.Subtotal.Mul(dec("1.16")).Sub(dec("500.00")).Abs()
	if diff.GreaterThan(dec("0.01")) {
		t.Errorf("receipt subtotal %s does not back-compute to 500.00", receipt.Subtotal)
	}
}

func TestFullPayoff(t *testing.T) {
	svc, st, bizID, userID := newTestService(t)
	cs := openCreditSale(t, svc, st, bizID, userID)
	ctx := context.Background()

	if _, err := svc.PayCreditSale(ctx, bizID, userID, cs.ID, dec("500.00"), "cash", ""); err != nil {
		t.Fatal(err)
	}
	result, err := svc.PayCreditSale(ctx, bizID, userID, cs.ID, dec("660.00"), "online", "")
	if err != nil {
		t.Fatalf("PayCreditSale: %v", err)
	}

	updated := result.CreditSale
	if updated.Status != database.CreditStatusPaid {
		t.Errorf("status = %q, want paid", updated.Status)
	}
	if !updated.RemainingAmount.IsZero() {
		t.Errorf("remaining = %s, want 0", updated.RemainingAmount)
	}
	if !updated.PaidAmount.Equal(updated.CreditAmount) {
		t.Errorf("paid %s != credit %s", updated.PaidAmount, updated.CreditAmount)
	}

	// Two receipt sales with distinct invoice numbers.
	var receipts []database.Sale
	for _, sale := range st.Sales(bizID) {
		if sale.RecordKind == database.SaleKindCreditPayment {
			receipts = append(receipts, sale)
		}
	}
	if len(receipts) != 2 {
		t.Fatalf("receipt sales = %d, want 2", len(receipts))
	}
	if receipts[0].InvoiceNo == receipts[1].InvoiceNo {
		t.Errorf("receipt invoices collide: %q", receipts[0].InvoiceNo)
	}
}

func TestBalanceConservation(t *testing.T) {
	svc, st, bizID, userID := newTestService(t)
	cs := openCreditSale(t, svc, st, bizID, userID)
	ctx := context.Background()

	for _, amount := range []string{"100.00", "259.37", "0.01", "800.62"} {
		result, err := svc.PayCreditSale(ctx, bizID, userID, cs.ID, dec(amount), "cash", "")
		if err != nil {
			t.Fatalf("pay %s: %v", amount, err)
		}
		updated := result.CreditSale
		if !updated.PaidAmount.Add(updated.RemainingAmount).Equal(updated.CreditAmount) {
			t.Fatalf("after paying %s: paid %s + remaining %s != credit %s",
				amount, updated.PaidAmount, updated.RemainingAmount, updated.CreditAmount)
		}
	}

	final, err := st.GetCreditSale(ctx, bizID, cs.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != database.CreditStatusPaid || !final.RemainingAmount.IsZero() {
		t.Errorf("final = %s/%s, want fully paid", final.Status, final.RemainingAmount)
	}
}

func TestPaymentExceedsBalance(t *testing.T) {
	svc, st, bizID, userID := newTestService(t)
	cs := openCreditSale(t, svc, st, bizID, userID)
	ctx := context.Background()

	_, err := svc.PayCreditSale(ctx, bizID, userID, cs.ID, dec("1160.01"), "cash", "")
	if !errors.Is(err, store.ErrExceedsBalance) {
		t.Fatalf("err = %v, want ErrExceedsBalance", err)
	}

	// Nothing written: no payment row, balance intact.
	if got := len(st.CreditPayments(cs.ID)); got != 0 {
		t.Errorf("payments = %d, want 0", got)
	}
	unchanged, _ := st.GetCreditSale(ctx, bizID, cs.ID)
	if !unchanged.RemainingAmount.Equal(dec("1160.00")) {
		t.Errorf("remaining = %s, want 1160.00", unchanged.RemainingAmount)
	}
}

func TestPaymentRejectsNonPositiveAmount(t *testing.T) {
	svc, st, bizID, userID := newTestService(t)
	cs := openCreditSale(t, svc, st, bizID, userID)

	for _, amount := range []string{"0", "-5.00"} {
		_, err := svc.PayCreditSale(context.Background(), bizID, userID, cs.ID, dec(amount), "cash", "")
		if !errors.Is(err, store.ErrInvalidAmount) {
			t.Fatalf("pay %s: err = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestPaymentWrongTenant(t *testing.T) {
	svc, st, bizID, userID := newTestService(t)
	cs := openCreditSale(t, svc, st, bizID, userID)

	otherBiz := uuid.New()
	st.SetSetting(otherBiz, SettingTaxRate, "16")
	_, err := svc.PayCreditSale(context.Background(), otherBiz, userID, cs.ID, dec("100.00"), "cash", "")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for cross-tenant credit sale", err)
	}
}

func TestConcurrentPaymentsCannotOverdraw(t *testing.T) {
	svc, st, bizID, userID := newTestService(t)
	cs := openCreditSale(t, svc, st, bizID, userID)
	ctx := context.Background()

	// Two payments of 700 against a 1160 balance: exactly one must succeed.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PayCreditSale(ctx, bizID, userID, cs.ID, dec("700.00"), "cash", "")
		}(i)
	}
	wg.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			if !errors.Is(err, store.ErrExceedsBalance) {
				t.Fatalf("unexpected error: %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("got %d failures, want exactly 1", failures)
	}

	final, _ := st.GetCreditSale(ctx, bizID, cs.ID)
	if !final.PaidAmount.Equal(dec("700.00")) || !final.RemainingAmount.Equal(dec("460.00")) {
		t.Errorf("final paid/remaining = %s/%s, want 700.00/460.00", final.PaidAmount, final.RemainingAmount)
	}
}
