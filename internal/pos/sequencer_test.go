package pos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dineflow/dineflow-backend/internal/store"
	"github.com/dineflow/dineflow-backend/internal/store/memory"
	"github.com/dineflow/dineflow-backend/pkg/database"
)

var seqDay = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func TestNextInvoiceNumberFormat(t *testing.T) {
	st := memory.New()
	bizID := uuid.New()

	var seq InvoiceSequencer
	got, err := seq.Next(context.Background(), st, bizID, seqDay)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got != "260314-01" {
		t.Fatalf("first invoice = %q, want 260314-01", got)
	}
}

func TestNextInvoiceNumberIncrements(t *testing.T) {
	st := memory.New()
	bizID := uuid.New()
	ctx := context.Background()

	for _, no := range []string{"260314-01", "260314-02", "260314-09"} {
		if err := st.CreateSale(ctx, &database.Sale{BusinessID: bizID, InvoiceNo: no, UserID: uuid.New()}); err != nil {
			t.Fatal(err)
		}
	}

	var seq InvoiceSequencer
	got, err := seq.Next(ctx, st, bizID, seqDay)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got != "260314-10" {
		t.Fatalf("invoice = %q, want 260314-10 (max+1, not gap-filling)", got)
	}
}

func TestNextInvoiceNumberIgnoresPaymentMarkers(t *testing.T) {
	st := memory.New()
	bizID := uuid.New()
	ctx := context.Background()

	for _, no := range []string{"260314-01", "260314-PAY-1a2b3c4d", "260314-PAY-1a2b3c4d-1"} {
		if err := st.CreateSale(ctx, &database.Sale{BusinessID: bizID, InvoiceNo: no, UserID: uuid.New()}); err != nil {
			t.Fatal(err)
		}
	}

	var seq InvoiceSequencer
	got, err := seq.Next(ctx, st, bizID, seqDay)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got != "260314-02" {
		t.Fatalf("invoice = %q, want 260314-02", got)
	}
}

func TestNextInvoiceNumberScopedPerTenant(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	tenantA, tenantB := uuid.New(), uuid.New()

	if err := st.CreateSale(ctx, &database.Sale{BusinessID: tenantA, InvoiceNo: "260314-01", UserID: uuid.New()}); err != nil {
		t.Fatal(err)
	}

	var seq InvoiceSequencer
	got, err := seq.Next(ctx, st, tenantB, seqDay)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got != "260314-01" {
		t.Fatalf("invoice = %q, want tenant B to start at 260314-01", got)
	}
}

// alwaysTaken reports every candidate invoice number as already used, to
// exercise the probe bound.
type alwaysTaken struct {
	store.Repository
}

func (alwaysTaken) ListInvoiceNumbers(context.Context, uuid.UUID, string) ([]string, error) {
	return nil, nil
}

func (alwaysTaken) InvoiceExists(context.Context, uuid.UUID, string) (bool, error) {
	return true, nil
}

func TestSequencerExhaustion(t *testing.T) {
	var seq InvoiceSequencer

	_, err := seq.Next(context.Background(), alwaysTaken{}, uuid.New(), seqDay)
	if !errors.Is(err, store.ErrSequenceExhausted) {
		t.Fatalf("Next err = %v, want ErrSequenceExhausted", err)
	}

	_, err = seq.PaymentInvoice(context.Background(), alwaysTaken{}, uuid.New(), seqDay, uuid.New())
	if !errors.Is(err, store.ErrSequenceExhausted) {
		t.Fatalf("PaymentInvoice err = %v, want ErrSequenceExhausted", err)
	}
}

func TestPaymentInvoiceDisambiguates(t *testing.T) {
	st := memory.New()
	bizID := uuid.New()
	ctx := context.Background()
	creditSaleID := uuid.New()

	var seq InvoiceSequencer
	first, err := seq.PaymentInvoice(ctx, st, bizID, seqDay, creditSaleID)
	if err != nil {
		t.Fatalf("PaymentInvoice: %v", err)
	}
	if err := st.CreateSale(ctx, &database.Sale{BusinessID: bizID, InvoiceNo: first, UserID: uuid.New()}); err != nil {
		t.Fatal(err)
	}

	second, err := seq.PaymentInvoice(ctx, st, bizID, seqDay, creditSaleID)
	if err != nil {
		t.Fatalf("PaymentInvoice: %v", err)
	}
	if second == first {
		t.Fatalf("second payment invoice %q collides with first", second)
	}
	if second != first+"-1" {
		t.Fatalf("second = %q, want %q", second, first+"-1")
	}
}
