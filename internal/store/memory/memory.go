// Package memory provides an in-memory Repository used by unit tests and
// local development. Transactions are serialized under one mutex and rolled
// back by restoring a snapshot, which also satisfies the row-locking
// contract of the postgres implementation.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dineflow/dineflow-backend/internal/store"
	"github.com/dineflow/dineflow-backend/pkg/database"
)

type data struct {
	menuItems      map[uuid.UUID]database.MenuItem
	inventoryItems map[uuid.UUID]database.InventoryItem
	lots           map[uuid.UUID]database.InventoryLot
	sales          map[uuid.UUID]database.Sale
	saleLines      []database.SaleLine
	creditSales    map[uuid.UUID]database.CreditSale
	creditPayments []database.CreditPayment
	settings       map[string]string
	auditLogs      []database.AuditLog
}

func newData() *data {
	return &data{
		menuItems:      make(map[uuid.UUID]database.MenuItem),
		inventoryItems: make(map[uuid.UUID]database.InventoryItem),
		lots:           make(map[uuid.UUID]database.InventoryLot),
		sales:          make(map[uuid.UUID]database.Sale),
		creditSales:    make(map[uuid.UUID]database.CreditSale),
		settings:       make(map[string]string),
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.menuItems {
		v.RecipeLines = append([]database.RecipeLine(nil), v.RecipeLines...)
		c.menuItems[k] = v
	}
	for k, v := range d.inventoryItems {
		c.inventoryItems[k] = v
	}
	for k, v := range d.lots {
		c.lots[k] = v
	}
	for k, v := range d.sales {
		c.sales[k] = v
	}
	for k, v := range d.creditSales {
		c.creditSales[k] = v
	}
	for k, v := range d.settings {
		c.settings[k] = v
	}
	c.saleLines = append([]database.SaleLine(nil), d.saleLines...)
	c.creditPayments = append([]database.CreditPayment(nil), d.creditPayments...)
	c.auditLogs = append([]database.AuditLog(nil), d.auditLogs...)
	return c
}

// Store implements store.Repository in memory.
type Store struct {
	mu     *sync.Mutex
	d      *data
	locked bool
}

func New() *Store {
	return &Store{mu: &sync.Mutex{}, d: newData()}
}

func (s *Store) lock() func() {
	if s.locked {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Tx serializes the whole transaction and restores a snapshot on error.
func (s *Store) Tx(_ context.Context, fn func(store.Repository) error) error {
	if s.locked {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.clone()
	if err := fn(&Store{mu: s.mu, d: s.d, locked: true}); err != nil {
		*s.d = *snapshot
		return err
	}
	return nil
}

func (s *Store) GetMenuItem(_ context.Context, businessID, itemID uuid.UUID) (*database.MenuItem, error) {
	defer s.lock()()
	item, ok := s.d.menuItems[itemID]
	if !ok || item.BusinessID != businessID {
		return nil, store.ErrNotFound
	}
	item.RecipeLines = append([]database.RecipeLine(nil), item.RecipeLines...)
	return &item, nil
}

func (s *Store) GetInventoryItem(_ context.Context, businessID, itemID uuid.UUID) (*database.InventoryItem, error) {
	defer s.lock()()
	return s.getInventoryItem(businessID, itemID)
}

func (s *Store) GetInventoryItemForUpdate(ctx context.Context, businessID, itemID uuid.UUID) (*database.InventoryItem, error) {
	return s.GetInventoryItem(ctx, businessID, itemID)
}

func (s *Store) getInventoryItem(businessID, itemID uuid.UUID) (*database.InventoryItem, error) {
	item, ok := s.d.inventoryItems[itemID]
	if !ok || item.BusinessID != businessID {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) GetInventoryItemBySKU(_ context.Context, businessID uuid.UUID, sku string) (*database.InventoryItem, error) {
	defer s.lock()()
	for _, item := range s.d.inventoryItems {
		if item.BusinessID == businessID && item.SKU == sku {
			return &item, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateInventoryStock(_ context.Context, businessID, itemID uuid.UUID, stock decimal.Decimal) error {
	defer s.lock()()
	item, ok := s.d.inventoryItems[itemID]
	if !ok || item.BusinessID != businessID {
		return store.ErrNotFound
	}
	item.CurrentStock = stock
	s.d.inventoryItems[itemID] = item
	return nil
}

func (s *Store) ListOpenLots(_ context.Context, businessID, inventoryItemID uuid.UUID) ([]database.InventoryLot, error) {
	defer s.lock()()
	var lots []database.InventoryLot
	for _, lot := range s.d.lots {
		if lot.BusinessID == businessID && lot.InventoryItemID == inventoryItemID && lot.QtyOnHand.IsPositive() {
			lots = append(lots, lot)
		}
	}
	sort.Slice(lots, func(i, j int) bool { return lots[i].ReceivedAt.Before(lots[j].ReceivedAt) })
	return lots, nil
}

func (s *Store) UpdateLotQty(_ context.Context, businessID, lotID uuid.UUID, qty decimal.Decimal) error {
	defer s.lock()()
	lot, ok := s.d.lots[lotID]
	if !ok || lot.BusinessID != businessID {
		return store.ErrNotFound
	}
	lot.QtyOnHand = qty
	s.d.lots[lotID] = lot
	return nil
}

func (s *Store) CreateSale(_ context.Context, sale *database.Sale) error {
	defer s.lock()()
	for _, existing := range s.d.sales {
		if existing.BusinessID == sale.BusinessID && existing.InvoiceNo == sale.InvoiceNo {
			return store.ErrConflict
		}
	}
	if sale.ID == uuid.Nil {
		sale.ID = uuid.New()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.RecordKind == "" {
		sale.RecordKind = database.SaleKindOrder
	}
	s.d.sales[sale.ID] = *sale
	return nil
}

func (s *Store) CreateSaleLines(_ context.Context, lines []database.SaleLine) error {
	defer s.lock()()
	for i := range lines {
		if lines[i].ID == uuid.Nil {
			lines[i].ID = uuid.New()
		}
		s.d.saleLines = append(s.d.saleLines, lines[i])
	}
	return nil
}

func (s *Store) ListInvoiceNumbers(_ context.Context, businessID uuid.UUID, prefix string) ([]string, error) {
	defer s.lock()()
	var numbers []string
	for _, sale := range s.d.sales {
		if sale.BusinessID == businessID && strings.HasPrefix(sale.InvoiceNo, prefix) {
			numbers = append(numbers, sale.InvoiceNo)
		}
	}
	return numbers, nil
}

func (s *Store) InvoiceExists(_ context.Context, businessID uuid.UUID, invoiceNo string) (bool, error) {
	defer s.lock()()
	for _, sale := range s.d.sales {
		if sale.BusinessID == businessID && sale.InvoiceNo == invoiceNo {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CreateCreditSale(_ context.Context, cs *database.CreditSale) error {
	defer s.lock()()
	if cs.ID == uuid.Nil {
		cs.ID = uuid.New()
	}
	if cs.CreatedAt.IsZero() {
		cs.CreatedAt = time.Now().UTC()
	}
	s.d.creditSales[cs.ID] = *cs
	return nil
}

func (s *Store) GetCreditSale(_ context.Context, businessID, id uuid.UUID) (*database.CreditSale, error) {
	defer s.lock()()
	cs, ok := s.d.creditSales[id]
	if !ok || cs.BusinessID != businessID {
		return nil, store.ErrNotFound
	}
	return &cs, nil
}

func (s *Store) GetCreditSaleForUpdate(ctx context.Context, businessID, id uuid.UUID) (*database.CreditSale, error) {
	return s.GetCreditSale(ctx, businessID, id)
}

func (s *Store) UpdateCreditSale(_ context.Context, cs *database.CreditSale) error {
	defer s.lock()()
	existing, ok := s.d.creditSales[cs.ID]
	if !ok || existing.BusinessID != cs.BusinessID {
		return store.ErrNotFound
	}
	s.d.creditSales[cs.ID] = *cs
	return nil
}

func (s *Store) CreateCreditPayment(_ context.Context, p *database.CreditPayment) error {
	defer s.lock()()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = time.Now().UTC()
	}
	s.d.creditPayments = append(s.d.creditPayments, *p)
	return nil
}

func (s *Store) GetSetting(_ context.Context, businessID uuid.UUID, key, fallback string) (string, error) {
	defer s.lock()()
	if v, ok := s.d.settings[businessID.String()+"|"+key]; ok {
		return v, nil
	}
	return fallback, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry *database.AuditLog) error {
	defer s.lock()()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.d.auditLogs = append(s.d.auditLogs, *entry)
	return nil
}

var revenueMethods = map[string]bool{"cash": true, "online": true, "account": true}

func (s *Store) RevenueSummary(_ context.Context, businessID uuid.UUID, from, to time.Time) (store.RevenueSummary, error) {
	defer s.lock()()
	summary := store.RevenueSummary{
		OrderRevenue:   decimal.Zero,
		CreditPayments: decimal.Zero,
		TotalRevenue:   decimal.Zero,
	}
	for _, sale := range s.d.sales {
		if sale.BusinessID != businessID || sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		if sale.RecordKind == database.SaleKindCreditPayment || strings.Contains(sale.InvoiceNo, "-PAY-") {
			continue
		}
		summary.OrderCount++
		if revenueMethods[sale.PaymentMethod] {
			summary.OrderRevenue = summary.OrderRevenue.Add(sale.Total)
		}
	}
	for _, p := range s.d.creditPayments {
		if p.BusinessID != businessID || p.PaymentDate.Before(from) || !p.PaymentDate.Before(to) {
			continue
		}
		summary.CreditPayments = summary.CreditPayments.Add(p.PaymentAmount)
	}
	summary.TotalRevenue = summary.OrderRevenue.Add(summary.CreditPayments)
	return summary, nil
}

// Seed helpers and inspection accessors for tests and local fixtures.

func (s *Store) AddMenuItem(item database.MenuItem) database.MenuItem {
	defer s.lock()()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	for i := range item.RecipeLines {
		if item.RecipeLines[i].ID == uuid.Nil {
			item.RecipeLines[i].ID = uuid.New()
		}
		item.RecipeLines[i].BusinessID = item.BusinessID
		item.RecipeLines[i].MenuItemID = item.ID
	}
	s.d.menuItems[item.ID] = item
	return item
}

func (s *Store) AddInventoryItem(item database.InventoryItem) database.InventoryItem {
	defer s.lock()()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	s.d.inventoryItems[item.ID] = item
	return item
}

func (s *Store) AddLot(lot database.InventoryLot) database.InventoryLot {
	defer s.lock()()
	if lot.ID == uuid.Nil {
		lot.ID = uuid.New()
	}
	s.d.lots[lot.ID] = lot
	return lot
}

func (s *Store) SetSetting(businessID uuid.UUID, key, value string) {
	defer s.lock()()
	s.d.settings[businessID.String()+"|"+key] = value
}

func (s *Store) Sales(businessID uuid.UUID) []database.Sale {
	defer s.lock()()
	var sales []database.Sale
	for _, sale := range s.d.sales {
		if sale.BusinessID == businessID {
			sales = append(sales, sale)
		}
	}
	sort.Slice(sales, func(i, j int) bool { return sales[i].CreatedAt.Before(sales[j].CreatedAt) })
	return sales
}

func (s *Store) SaleLines(saleID uuid.UUID) []database.SaleLine {
	defer s.lock()()
	var lines []database.SaleLine
	for _, line := range s.d.saleLines {
		if line.SaleID == saleID {
			lines = append(lines, line)
		}
	}
	return lines
}

func (s *Store) Lot(lotID uuid.UUID) (database.InventoryLot, bool) {
	defer s.lock()()
	lot, ok := s.d.lots[lotID]
	return lot, ok
}

func (s *Store) CreditPayments(creditSaleID uuid.UUID) []database.CreditPayment {
	defer s.lock()()
	var payments []database.CreditPayment
	for _, p := range s.d.creditPayments {
		if p.CreditSaleID == creditSaleID {
			payments = append(payments, p)
		}
	}
	return payments
}

func (s *Store) AuditLogs(businessID uuid.UUID) []database.AuditLog {
	defer s.lock()()
	var logs []database.AuditLog
	for _, l := range s.d.auditLogs {
		if l.BusinessID == businessID {
			logs = append(logs, l)
		}
	}
	return logs
}
