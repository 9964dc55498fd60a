package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dineflow/dineflow-backend/internal/store"
	"github.com/dineflow/dineflow-backend/pkg/database"
)

func TestTxRollbackRestoresState(t *testing.T) {
	st := New()
	ctx := context.Background()
	bizID := uuid.New()

	item := st.AddInventoryItem(database.InventoryItem{
		BusinessID:   bizID,
		SKU:          "FLR",
		Name:         "Flour",
		Unit:         "kg",
		CurrentStock: decimal.NewFromInt(10),
	})

	boom := errors.New("boom")
	err := st.Tx(ctx, func(repo store.Repository) error {
		if err := repo.UpdateInventoryStock(ctx, bizID, item.ID, decimal.NewFromInt(1)); err != nil {
			return err
		}
		if err := repo.CreateSale(ctx, &database.Sale{
			BusinessID: bizID, InvoiceNo: "260314-01", UserID: uuid.New(),
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Tx err = %v, want boom", err)
	}

	got, err := st.GetInventoryItem(ctx, bizID, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.CurrentStock.Equal(decimal.NewFromInt(10)) {
		t.Errorf("stock = %s, want rolled back to 10", got.CurrentStock)
	}
	if sales := st.Sales(bizID); len(sales) != 0 {
		t.Errorf("sales = %d, want 0 after rollback", len(sales))
	}
}

func TestTxCommitKeepsWrites(t *testing.T) {
	st := New()
	ctx := context.Background()
	bizID := uuid.New()

	err := st.Tx(ctx, func(repo store.Repository) error {
		return repo.CreateSale(ctx, &database.Sale{
			BusinessID: bizID, InvoiceNo: "260314-01", UserID: uuid.New(),
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	if sales := st.Sales(bizID); len(sales) != 1 {
		t.Fatalf("sales = %d, want 1", len(sales))
	}
}

func TestCreateSaleDuplicateInvoiceConflicts(t *testing.T) {
	st := New()
	ctx := context.Background()
	bizID := uuid.New()

	if err := st.CreateSale(ctx, &database.Sale{
		BusinessID: bizID, InvoiceNo: "260314-01", UserID: uuid.New(),
	}); err != nil {
		t.Fatal(err)
	}
	err := st.CreateSale(ctx, &database.Sale{
		BusinessID: bizID, InvoiceNo: "260314-01", UserID: uuid.New(),
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	// The same invoice number is fine for a different tenant.
	if err := st.CreateSale(ctx, &database.Sale{
		BusinessID: uuid.New(), InvoiceNo: "260314-01", UserID: uuid.New(),
	}); err != nil {
		t.Fatalf("cross-tenant duplicate should be allowed: %v", err)
	}
}

func TestTenantIsolation(t *testing.T) {
	st := New()
	ctx := context.Background()
	tenantA, tenantB := uuid.New(), uuid.New()

	item := st.AddInventoryItem(database.InventoryItem{
		BusinessID: tenantA, SKU: "FLR", Name: "Flour", Unit: "kg",
	})
	if _, err := st.GetInventoryItem(ctx, tenantB, item.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-tenant read should be ErrNotFound, got %v", err)
	}
	if _, err := st.GetInventoryItemBySKU(ctx, tenantB, "FLR"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-tenant SKU read should be ErrNotFound, got %v", err)
	}
}
