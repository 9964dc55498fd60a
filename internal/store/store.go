package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dineflow/dineflow-backend/pkg/database"
)

var (
	// ErrNotFound covers entities that are absent or owned by another tenant.
	ErrNotFound = errors.New("not found")
	// ErrEmptyCart is returned when a checkout carries no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInsufficientStock is returned when a recipe-based deduction would
	// drive an ingredient's stock negative.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidAmount is returned for non-positive payment amounts.
	ErrInvalidAmount = errors.New("payment amount must be positive")
	// ErrExceedsBalance is returned when a credit payment exceeds the
	// remaining balance.
	ErrExceedsBalance = errors.New("payment exceeds remaining balance")
	// ErrSequenceExhausted is returned when invoice number allocation fails
	// after bounded retries. Safe to retry the whole checkout.
	ErrSequenceExhausted = errors.New("invoice sequence exhausted")
	// ErrConflict signals a lock/version/uniqueness conflict. Transient;
	// callers retry a bounded number of times.
	ErrConflict = errors.New("concurrency conflict")
)

// InsufficientStockError names the short ingredient so the caller can
// correct and retry.
type InsufficientStockError struct {
	Ingredient string
	Required   decimal.Decimal
	Available  decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: required %s, available %s",
		e.Ingredient, e.Required.String(), e.Available.String())
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// RevenueSummary is the composite revenue read model: credit sales recognize
// revenue at payment time, so order totals (credit and payment-marker rows
// excluded) and credit payments are summed separately.
type RevenueSummary struct {
	OrderRevenue   decimal.Decimal `json:"order_revenue"`
	CreditPayments decimal.Decimal `json:"credit_payments"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	OrderCount     int64           `json:"order_count"`
}

// Repository is the tenant-scoped persistence contract for the POS core.
// Every method takes the business ID explicitly; there is no ambient tenant.
type Repository interface {
	// Tx runs fn atomically. Implementations must roll back everything fn
	// wrote when it returns an error.
	Tx(ctx context.Context, fn func(Repository) error) error

	// Menu
	GetMenuItem(ctx context.Context, businessID, itemID uuid.UUID) (*database.MenuItem, error)

	// Inventory. ForUpdate variants lock the row for the remainder of the
	// enclosing transaction.
	GetInventoryItem(ctx context.Context, businessID, itemID uuid.UUID) (*database.InventoryItem, error)
	GetInventoryItemForUpdate(ctx context.Context, businessID, itemID uuid.UUID) (*database.InventoryItem, error)
	GetInventoryItemBySKU(ctx context.Context, businessID uuid.UUID, sku string) (*database.InventoryItem, error)
	UpdateInventoryStock(ctx context.Context, businessID, itemID uuid.UUID, stock decimal.Decimal) error
	// ListOpenLots returns lots with qty_on_hand > 0 ordered by received_at
	// ascending (FIFO contract).
	ListOpenLots(ctx context.Context, businessID, inventoryItemID uuid.UUID) ([]database.InventoryLot, error)
	UpdateLotQty(ctx context.Context, businessID, lotID uuid.UUID, qty decimal.Decimal) error

	// Sales. CreateSale maps a unique violation on (business_id, invoice_no)
	// to ErrConflict.
	CreateSale(ctx context.Context, sale *database.Sale) error
	CreateSaleLines(ctx context.Context, lines []database.SaleLine) error
	ListInvoiceNumbers(ctx context.Context, businessID uuid.UUID, prefix string) ([]string, error)
	InvoiceExists(ctx context.Context, businessID uuid.UUID, invoiceNo string) (bool, error)

	// Credit ledger
	CreateCreditSale(ctx context.Context, cs *database.CreditSale) error
	GetCreditSale(ctx context.Context, businessID, id uuid.UUID) (*database.CreditSale, error)
	GetCreditSaleForUpdate(ctx context.Context, businessID, id uuid.UUID) (*database.CreditSale, error)
	UpdateCreditSale(ctx context.Context, cs *database.CreditSale) error
	CreateCreditPayment(ctx context.Context, p *database.CreditPayment) error

	// Settings
	GetSetting(ctx context.Context, businessID uuid.UUID, key, fallback string) (string, error)

	// Audit
	CreateAuditLog(ctx context.Context, entry *database.AuditLog) error

	// Reporting
	RevenueSummary(ctx context.Context, businessID uuid.UUID, from, to time.Time) (RevenueSummary, error)
}
