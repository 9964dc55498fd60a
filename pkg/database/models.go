package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Base model for all entities
type BaseModel struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Business represents a tenant. Every tenant-scoped row carries BusinessID
// and every query must filter by it.
type Business struct {
	BaseModel
	Name         string        `gorm:"not null" json:"name"`
	BusinessType string        `json:"business_type"` // restaurant, cafe, bar
	Phone        string        `json:"phone"`
	Email        string        `gorm:"uniqueIndex" json:"email"`
	Address      string        `json:"address"`
	IsActive     bool          `gorm:"default:true" json:"is_active"`
	Subscription *Subscription `gorm:"foreignKey:BusinessID" json:"subscription,omitempty"`
}

// Subscription represents a tenant's plan limits
type Subscription struct {
	BaseModel
	BusinessID         uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"business_id"`
	Plan               string    `gorm:"default:'free'" json:"plan"`     // free, starter, business
	Status             string    `gorm:"default:'active'" json:"status"` // active, past_due, cancelled
	MaxUsers           int       `gorm:"default:1" json:"max_users"`
	MaxMenuItems       int       `gorm:"default:25" json:"max_menu_items"`  // 0 = unlimited
	MaxDailySales      int       `gorm:"default:50" json:"max_daily_sales"` // 0 = unlimited
	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`
}

// User represents a system user
type User struct {
	BaseModel
	BusinessID   uuid.UUID `gorm:"type:uuid;not null;index" json:"business_id"`
	Business     Business  `gorm:"foreignKey:BusinessID" json:"-"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `gorm:"not null" json:"name"`
	Role         string    `gorm:"default:'cashier'" json:"role"` // owner, manager, cashier
	IsActive     bool      `gorm:"default:true" json:"is_active"`
}

// MenuCategory groups menu items
type MenuCategory struct {
	BaseModel
	BusinessID uuid.UUID `gorm:"type:uuid;not null;index" json:"business_id"`
	Name       string    `gorm:"not null" json:"name"`
	OrderIndex int       `gorm:"default:0" json:"order_index"`
	IsActive   bool      `gorm:"default:true" json:"is_active"`
}

// MenuItem represents a sellable item. SKU is unique per tenant; for legacy
// items without a recipe the SKU links to the matching InventoryItem.
type MenuItem struct {
	BaseModel
	BusinessID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_menu_items_biz_sku,priority:1" json:"business_id"`
	CategoryID  *uuid.UUID      `gorm:"type:uuid" json:"category_id"`
	Category    *MenuCategory   `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	SKU         string          `gorm:"uniqueIndex:idx_menu_items_biz_sku,priority:2" json:"sku"`
	Name        string          `gorm:"not null" json:"name"`
	Price       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"price"`
	TaxRate     decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"tax_rate"` // fraction, e.g. 0.16
	IsActive    bool            `gorm:"default:true" json:"is_active"`
	RecipeLines []RecipeLine    `gorm:"foreignKey:MenuItemID" json:"recipe_lines,omitempty"`
}

// RecipeLine links a menu item to an inventory ingredient. Recipes are only
// replaced wholesale (delete + recreate), never edited line by line.
type RecipeLine struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"business_id"`
	MenuItemID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"menu_item_id"`
	InventoryItemID uuid.UUID       `gorm:"type:uuid;not null" json:"inventory_item_id"`
	InventoryItem   InventoryItem   `gorm:"foreignKey:InventoryItemID" json:"inventory_item"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"` // per unit sold, must be > 0
	Unit            string          `json:"unit"`
}

// InventoryItem represents a stocked ingredient or legacy sellable item.
// CurrentStock is mutated only by the inventory ledger.
type InventoryItem struct {
	BaseModel
	BusinessID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_items_biz_sku,priority:1" json:"business_id"`
	SKU           string          `gorm:"uniqueIndex:idx_inventory_items_biz_sku,priority:2" json:"sku"`
	Name          string          `gorm:"not null" json:"name"`
	Category      string          `json:"category"`
	Unit          string          `gorm:"not null" json:"unit"` // kg, liter, pcs
	CurrentStock  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_stock"`
	MinStockLevel decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"min_stock_level"`
	MaxStockLevel decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"max_stock_level"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"unit_cost"`
	IsActive      bool            `gorm:"default:true" json:"is_active"`
}

// InventoryLot is a legacy per-batch stock record consumed oldest-first
// (FIFO by ReceivedAt) for menu items without a recipe.
type InventoryLot struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"business_id"`
	InventoryItemID uuid.UUID       `gorm:"type:uuid;not null;index" json:"inventory_item_id"`
	QtyOnHand       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty_on_hand"`
	UnitCost        decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"unit_cost"`
	ReceivedAt      time.Time       `gorm:"not null;index" json:"received_at"`
}

// Sale record kinds. Synthetic credit-payment receipts also carry the legacy
// -PAY- invoice marker so older report queries keep working.
const (
	SaleKindOrder         = "order"
	SaleKindCreditPayment = "credit_payment"
)

// Sale is the ledger entry for both real orders and synthetic credit-payment
// receipts. InvoiceNo is unique per tenant; the DB constraint is the backstop
// for the sequencer's collision probing.
type Sale struct {
	BaseModel
	BusinessID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_sales_biz_invoice,priority:1" json:"business_id"`
	InvoiceNo     string          `gorm:"not null;uniqueIndex:idx_sales_biz_invoice,priority:2" json:"invoice_no"`
	RecordKind    string          `gorm:"default:'order';index" json:"record_kind"`
	CustomerName  string          `gorm:"default:'Walk-in Customer'" json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	TableNumber   string          `json:"table_number"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"subtotal"`
	Tax           decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"tax"`
	Total         decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"total"`
	PaymentMethod string          `gorm:"default:'cash'" json:"payment_method"` // cash, online, account, credit
	UserID        uuid.UUID       `gorm:"type:uuid;not null" json:"user_id"`
	Lines         []SaleLine      `gorm:"foreignKey:SaleID" json:"lines,omitempty"`
}

// SaleLine is immutable once created; qty and unit price are snapshots
// independent of later menu item price changes.
type SaleLine struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID uuid.UUID       `gorm:"type:uuid;not null;index" json:"business_id"`
	SaleID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"sale_id"`
	MenuItemID uuid.UUID       `gorm:"type:uuid;not null" json:"menu_item_id"`
	Qty        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"unit_price"`
	LineTotal  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"line_total"`
}

// Credit sale statuses, derived from the balance invariant
// paid_amount + remaining_amount == credit_amount.
const (
	CreditStatusPending = "pending"
	CreditStatusPartial = "partial"
	CreditStatusPaid    = "paid"
)

// CreditSale tracks a deferred-payment order's running balance.
type CreditSale struct {
	BaseModel
	BusinessID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"business_id"`
	SaleID          uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"sale_id"`
	CustomerName    string          `gorm:"not null" json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone"`
	CreditAmount    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"credit_amount"`
	PaidAmount      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"paid_amount"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"remaining_amount"`
	Status          string          `gorm:"default:'pending'" json:"status"`
	Notes           string          `json:"notes"`
	CreatedBy       uuid.UUID       `gorm:"type:uuid;not null" json:"created_by"`
}

// CreditPayment is append-only; removed only by the administrative cascading
// delete of its parent credit sale.
type CreditPayment struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"business_id"`
	CreditSaleID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"credit_sale_id"`
	PaymentAmount decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"payment_amount"`
	PaymentMethod string          `gorm:"default:'cash'" json:"payment_method"`
	PaymentDate   time.Time       `gorm:"autoCreateTime" json:"payment_date"`
	ReceivedBy    uuid.UUID       `gorm:"type:uuid;not null" json:"received_by"`
	Notes         string          `json:"notes"`
}

// Expense is an operating cost entry (supplies, rent, wages).
type Expense struct {
	BaseModel
	BusinessID uuid.UUID       `gorm:"type:uuid;not null;index" json:"business_id"`
	Category   string          `gorm:"not null" json:"category"`
	Note       string          `json:"note"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	IncurredAt time.Time       `gorm:"not null;index" json:"incurred_at"`
	UserID     uuid.UUID       `gorm:"type:uuid;not null" json:"user_id"`
}

// DailyClosing is the end-of-day cash reconciliation record. SalesTotal and
// ExpenseTotal are snapshots computed at closing time, not live views. One
// closing per business day per tenant.
type DailyClosing struct {
	BaseModel
	BusinessID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_closings_biz_date,priority:1" json:"business_id"`
	Date         time.Time       `gorm:"not null;uniqueIndex:idx_closings_biz_date,priority:2" json:"date"`
	OpeningCash  decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"opening_cash"`
	SalesTotal   decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"sales_total"`
	ExpenseTotal decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"expense_total"`
	ClosingCash  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"closing_cash"`
	Notes        string          `json:"notes"`
	UserID       uuid.UUID       `gorm:"type:uuid;not null" json:"user_id"`
}

// SystemSetting is the per-tenant key/value store. The POS core reads
// tax_rate, new_day_start_time and strict_legacy_stock from here.
type SystemSetting struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_settings_biz_key,priority:1" json:"business_id"`
	Key        string    `gorm:"not null;uniqueIndex:idx_settings_biz_key,priority:2" json:"key"`
	Value      string    `gorm:"not null" json:"value"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AuditLog tracks every mutating operation for the audit trail
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID uuid.UUID  `gorm:"type:uuid;not null;index" json:"business_id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null" json:"user_id"`
	Action     string     `gorm:"not null" json:"action"` // create, update, delete, inventory_deduct
	EntityType string     `json:"entity_type"`            // sale, credit_sale, inventory_item, ...
	EntityID   *uuid.UUID `gorm:"type:uuid" json:"entity_id"`
	Details    string     `gorm:"type:text" json:"details"` // JSON metadata
	IPAddress  string     `json:"ip_address"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Business{},
		&Subscription{},
		&User{},
		&MenuCategory{},
		&MenuItem{},
		&RecipeLine{},
		&InventoryItem{},
		&InventoryLot{},
		&Sale{},
		&SaleLine{},
		&CreditSale{},
		&CreditPayment{},
		&Expense{},
		&DailyClosing{},
		&SystemSetting{},
		&AuditLog{},
	)
}
