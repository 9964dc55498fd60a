package pos

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/dineflow/dineflow-backend/internal/businessday"
	"github.com/dineflow/dineflow-backend/internal/store"
	"github.com/dineflow/dineflow-backend/pkg/database"
)

// Per-tenant setting keys the POS core reads.
const (
	SettingTaxRate         = "tax_rate"            // percentage, "16" means 16%
	SettingNewDayStartTime = "new_day_start_time"  // "HH:MM"
	SettingStrictLegacy    = "strict_legacy_stock" // "true" to reject short legacy stock
)

// conflictRetries bounds orchestrator retries on transient lock/uniqueness
// conflicts before surfacing the error.
const conflictRetries = 3

// Service is the POS entry point for the HTTP layer. Tenant and actor are
// explicit parameters on every call; there is no ambient request state.
type Service struct {
	repo      store.Repository
	log       *logrus.Logger
	now       func() time.Time
	pricing   PricingEngine
	inventory InventoryLedger
	sequencer InvoiceSequencer
	credit    CreditLedger
}

func NewService(repo store.Repository, log *logrus.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// CheckoutRequest is one cart submission.
type CheckoutRequest struct {
	Lines         []CartLine `json:"lines"`
	CustomerName  string     `json:"customer_name"`
	CustomerPhone string     `json:"customer_phone"`
	TableNumber   string     `json:"table_number"`
	PaymentMethod string     `json:"payment_method"`
	Notes         string     `json:"notes"`
}

// CheckoutResult is a completed checkout. CreditSale is set only for
// payment_method=credit.
type CheckoutResult struct {
	Sale       *database.Sale       `json:"sale"`
	CreditSale *database.CreditSale `json:"credit_sale,omitempty"`

	deductions []Deduction
}

// Checkout prices the cart, allocates an invoice number, persists the sale
// and its lines, deducts inventory and, for credit orders, opens the credit
// sale, all in one transaction. Transient conflicts (duplicate invoice from
// a concurrent checkout, lock conflicts) retry the whole transaction a
// bounded number of times.
func (s *Service) Checkout(ctx context.Context, businessID, userID uuid.UUID, req CheckoutRequest) (*CheckoutResult, error) {
	if len(req.Lines) == 0 {
		return nil, store.ErrEmptyCart
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = "cash"
	}
	if req.CustomerName == "" {
		req.CustomerName = "Walk-in Customer"
	}

	taxRate, err := s.taxRate(ctx, businessID)
	if err != nil {
		return nil, err
	}
	offset, err := s.dayOffset(ctx, businessID)
	if err != nil {
		return nil, err
	}
	strictLegacy, err := s.strictLegacy(ctx, businessID)
	if err != nil {
		return nil, err
	}

	var result *CheckoutResult
	err = s.withConflictRetry(ctx, func(repo store.Repository) error {
		now := s.now()
		day := businessday.Day(now, offset)

		order, err := s.pricing.Price(ctx, repo, businessID, req.Lines, taxRate)
		if err != nil {
			return err
		}

		invoiceNo, err := s.sequencer.Next(ctx, repo, businessID, day)
		if err != nil {
			return err
		}

		sale := &database.Sale{
			BaseModel:     database.BaseModel{CreatedAt: now},
			BusinessID:    businessID,
			InvoiceNo:     invoiceNo,
			RecordKind:    database.SaleKindOrder,
			CustomerName:  req.CustomerName,
			CustomerPhone: req.CustomerPhone,
			TableNumber:   req.TableNumber,
			Subtotal:      order.Subtotal,
			Tax:           order.Tax,
			Total:         order.Total,
			PaymentMethod: req.PaymentMethod,
			UserID:        userID,
		}
		if err := repo.CreateSale(ctx, sale); err != nil {
			return err
		}

		lines := make([]database.SaleLine, 0, len(order.Lines))
		for _, l := range order.Lines {
			lines = append(lines, database.SaleLine{
				BusinessID: businessID,
				SaleID:     sale.ID,
				MenuItemID: l.Item.ID,
				Qty:        l.Qty,
				UnitPrice:  l.UnitPrice,
				LineTotal:  l.LineTotal.Round(2),
			})
		}
		if err := repo.CreateSaleLines(ctx, lines); err != nil {
			return err
		}

		deductions, err := s.inventory.DeductOrder(ctx, repo, businessID, order.Lines, strictLegacy)
		if err != nil {
			return err
		}
		sale.Lines = lines

		result = &CheckoutResult{Sale: sale, deductions: deductions}
		if req.PaymentMethod == "credit" {
			cs, err := s.credit.Open(ctx, repo, sale, userID, req.Notes)
			if err != nil {
				return err
			}
			result.CreditSale = cs
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, businessID, userID, "create", "sale", &result.Sale.ID, map[string]interface{}{
		"invoice_no":     result.Sale.InvoiceNo,
		"total":          result.Sale.Total,
		"customer_name":  result.Sale.CustomerName,
		"payment_method": result.Sale.PaymentMethod,
	})
	for _, d := range result.deductions {
		id := d.InventoryItemID
		s.audit(ctx, businessID, userID, "inventory_deduct", "inventory_item", &id, map[string]interface{}{
			"ingredient": d.Ingredient,
			"deducted":   d.Deducted,
			"remaining":  d.Remaining,
			"invoice_no": result.Sale.InvoiceNo,
		})
	}
	return result, nil
}

// PayCreditSale applies a full or partial payment against a credit sale.
func (s *Service) PayCreditSale(ctx context.Context, businessID, userID, creditSaleID uuid.UUID, amount decimal.Decimal, method, notes string) (*PaymentResult, error) {
	if method == "" {
		method = "cash"
	}
	taxRate, err := s.taxRate(ctx, businessID)
	if err != nil {
		return nil, err
	}
	offset, err := s.dayOffset(ctx, businessID)
	if err != nil {
		return nil, err
	}

	var result *PaymentResult
	err = s.withConflictRetry(ctx, func(repo store.Repository) error {
		now := s.now()
		day := businessday.Day(now, offset)
		result, err = s.credit.Pay(ctx, repo, businessID, userID, creditSaleID, amount, method, notes, day, taxRate, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, businessID, userID, "create", "credit_payment", &result.Payment.ID, map[string]interface{}{
		"credit_sale_id": result.CreditSale.ID,
		"amount":         result.Payment.PaymentAmount,
		"method":         result.Payment.PaymentMethod,
		"remaining":      result.CreditSale.RemainingAmount,
		"status":         result.CreditSale.Status,
		"receipt_no":     result.ReceiptSale.InvoiceNo,
	})
	return result, nil
}

// CheckAvailability is the read-only pre-check used by the POS UI.
func (s *Service) CheckAvailability(ctx context.Context, businessID, menuItemID uuid.UUID, qty decimal.Decimal) (*Availability, error) {
	if qty.Sign() <= 0 {
		return nil, store.ErrInvalidAmount
	}
	strictLegacy, err := s.strictLegacy(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return s.inventory.CheckAvailability(ctx, s.repo, businessID, menuItemID, qty, strictLegacy)
}

// Revenue returns the composite revenue summary for a business day.
func (s *Service) Revenue(ctx context.Context, businessID uuid.UUID, day time.Time) (store.RevenueSummary, error) {
	offset, err := s.dayOffset(ctx, businessID)
	if err != nil {
		return store.RevenueSummary{}, err
	}
	from, to := businessday.Range(day, offset)
	return s.repo.RevenueSummary(ctx, businessID, from, to)
}

// BusinessDay returns the tenant's current business day.
func (s *Service) BusinessDay(ctx context.Context, businessID uuid.UUID) (time.Time, error) {
	offset, err := s.dayOffset(ctx, businessID)
	if err != nil {
		return time.Time{}, err
	}
	return businessday.Day(s.now(), offset), nil
}

func (s *Service) withConflictRetry(ctx context.Context, fn func(store.Repository) error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		err = s.repo.Tx(ctx, fn)
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		s.log.WithError(err).WithField("attempt", attempt+1).Warn("checkout conflict, retrying")
	}
	return err
}

func (s *Service) taxRate(ctx context.Context, businessID uuid.UUID) (decimal.Decimal, error) {
	raw, err := s.repo.GetSetting(ctx, businessID, SettingTaxRate, "0")
	if err != nil {
		return decimal.Zero, err
	}
	pct, err := decimal.NewFromString(raw)
	if err != nil {
		s.log.WithField("tax_rate", raw).Warn("unparsable tax rate setting, using 0")
		return decimal.Zero, nil
	}
	return pct.Div(decimal.NewFromInt(100)), nil
}

func (s *Service) dayOffset(ctx context.Context, businessID uuid.UUID) (time.Duration, error) {
	raw, err := s.repo.GetSetting(ctx, businessID, SettingNewDayStartTime, "06:00")
	if err != nil {
		return 0, err
	}
	return businessday.ParseOffset(raw)
}

func (s *Service) strictLegacy(ctx context.Context, businessID uuid.UUID) (bool, error) {
	raw, err := s.repo.GetSetting(ctx, businessID, SettingStrictLegacy, "false")
	if err != nil {
		return false, err
	}
	return raw == "true" || raw == "1", nil
}

// audit appends one audit record outside the business transaction. Failures
// are logged and never fail the parent operation.
func (s *Service) audit(ctx context.Context, businessID, userID uuid.UUID, action, entityType string, entityID *uuid.UUID, details map[string]interface{}) {
	payload, _ := json.Marshal(details)
	entry := &database.AuditLog{
		BusinessID: businessID,
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    string(payload),
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"action":      action,
			"entity_type": entityType,
		}).Error("failed to write audit log")
	}
}
