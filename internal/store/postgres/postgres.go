// Package postgres implements the POS repository over gorm. Inventory and
// credit rows are locked FOR UPDATE inside transactions; the composite
// unique index on (business_id, invoice_no) is the sequencer's backstop.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dineflow/dineflow-backend/internal/store"
	"github.com/dineflow/dineflow-backend/pkg/database"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Tx(ctx context.Context, fn func(store.Repository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) GetMenuItem(ctx context.Context, businessID, itemID uuid.UUID) (*database.MenuItem, error) {
	var item database.MenuItem
	err := s.db.WithContext(ctx).
		Preload("RecipeLines").
		Where("id = ? AND business_id = ?", itemID, businessID).
		First(&item).Error
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, businessID, itemID uuid.UUID) (*database.InventoryItem, error) {
	var item database.InventoryItem
	err := s.db.WithContext(ctx).
		Where("id = ? AND business_id = ?", itemID, businessID).
		First(&item).Error
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (s *Store) GetInventoryItemForUpdate(ctx context.Context, businessID, itemID uuid.UUID) (*database.InventoryItem, error) {
	var item database.InventoryItem
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND business_id = ?", itemID, businessID).
		First(&item).Error
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (s *Store) GetInventoryItemBySKU(ctx context.Context, businessID uuid.UUID, sku string) (*database.InventoryItem, error) {
	var item database.InventoryItem
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND sku = ?", businessID, sku).
		First(&item).Error
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (s *Store) UpdateInventoryStock(ctx context.Context, businessID, itemID uuid.UUID, stock decimal.Decimal) error {
	res := s.db.WithContext(ctx).
		Model(&database.InventoryItem{}).
		Where("id = ? AND business_id = ?", itemID, businessID).
		Update("current_stock", stock)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListOpenLots(ctx context.Context, businessID, inventoryItemID uuid.UUID) ([]database.InventoryLot, error) {
	var lots []database.InventoryLot
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND inventory_item_id = ? AND qty_on_hand > 0", businessID, inventoryItemID).
		Order("received_at ASC").
		Find(&lots).Error
	if err != nil {
		return nil, translate(err)
	}
	return lots, nil
}

func (s *Store) UpdateLotQty(ctx context.Context, businessID, lotID uuid.UUID, qty decimal.Decimal) error {
	res := s.db.WithContext(ctx).
		Model(&database.InventoryLot{}).
		Where("id = ? AND business_id = ?", lotID, businessID).
		Update("qty_on_hand", qty)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateSale(ctx context.Context, sale *database.Sale) error {
	if err := s.db.WithContext(ctx).Create(sale).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (s *Store) CreateSaleLines(ctx context.Context, lines []database.SaleLine) error {
	if len(lines) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&lines).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (s *Store) ListInvoiceNumbers(ctx context.Context, businessID uuid.UUID, prefix string) ([]string, error) {
	var numbers []string
	err := s.db.WithContext(ctx).
		Model(&database.Sale{}).
		Where("business_id = ? AND invoice_no LIKE ?", businessID, prefix+"%").
		Pluck("invoice_no", &numbers).Error
	if err != nil {
		return nil, translate(err)
	}
	return numbers, nil
}

func (s *Store) InvoiceExists(ctx context.Context, businessID uuid.UUID, invoiceNo string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&database.Sale{}).
		Where("business_id = ? AND invoice_no = ?", businessID, invoiceNo).
		Count(&count).Error
	if err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

func (s *Store) CreateCreditSale(ctx context.Context, cs *database.CreditSale) error {
	if err := s.db.WithContext(ctx).Create(cs).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (s *Store) GetCreditSale(ctx context.Context, businessID, id uuid.UUID) (*database.CreditSale, error) {
	var cs database.CreditSale
	err := s.db.WithContext(ctx).
		Where("id = ? AND business_id = ?", id, businessID).
		First(&cs).Error
	if err != nil {
		return nil, translate(err)
	}
	return &cs, nil
}

func (s *Store) GetCreditSaleForUpdate(ctx context.Context, businessID, id uuid.UUID) (*database.CreditSale, error) {
	var cs database.CreditSale
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND business_id = ?", id, businessID).
		First(&cs).Error
	if err != nil {
		return nil, translate(err)
	}
	return &cs, nil
}

func (s *Store) UpdateCreditSale(ctx context.Context, cs *database.CreditSale) error {
	res := s.db.WithContext(ctx).
		Model(&database.CreditSale{}).
		Where("id = ? AND business_id = ?", cs.ID, cs.BusinessID).
		Updates(map[string]interface{}{
			"paid_amount":      cs.PaidAmount,
			"remaining_amount": cs.RemainingAmount,
			"status":           cs.Status,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateCreditPayment(ctx context.Context, p *database.CreditPayment) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (s *Store) GetSetting(ctx context.Context, businessID uuid.UUID, key, fallback string) (string, error) {
	var setting database.SystemSetting
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND key = ?", businessID, key).
		First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fallback, nil
	}
	if err != nil {
		return "", translate(err)
	}
	return setting.Value, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry *database.AuditLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return translate(err)
	}
	return nil
}

// RevenueSummary composes period revenue the way the dashboards define it:
// order totals for settled methods excluding payment-marker rows, plus credit
// payments received in the period.
func (s *Store) RevenueSummary(ctx context.Context, businessID uuid.UUID, from, to time.Time) (store.RevenueSummary, error) {
	var summary store.RevenueSummary

	var orders struct {
		Revenue decimal.Decimal
		Count   int64
	}
	err := s.db.WithContext(ctx).
		Model(&database.Sale{}).
		Select(`COALESCE(SUM(total) FILTER (WHERE payment_method IN ('cash','online','account')), 0) AS revenue, COUNT(*) AS count`).
		Where("business_id = ? AND created_at >= ? AND created_at < ?", businessID, from, to).
		Where("record_kind <> ?", database.SaleKindCreditPayment).
		Where("invoice_no NOT LIKE ?", "%-PAY-%").
		Scan(&orders).Error
	if err != nil {
		return summary, translate(err)
	}

	var payments struct {
		Total decimal.Decimal
	}
	err = s.db.WithContext(ctx).
		Model(&database.CreditPayment{}).
		Select("COALESCE(SUM(payment_amount), 0) AS total").
		Where("business_id = ? AND payment_date >= ? AND payment_date < ?", businessID, from, to).
		Scan(&payments).Error
	if err != nil {
		return summary, translate(err)
	}

	summary.OrderRevenue = orders.Revenue
	summary.OrderCount = orders.Count
	summary.CreditPayments = payments.Total
	summary.TotalRevenue = orders.Revenue.Add(payments.Total)
	return summary, nil
}
