package pos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dineflow/dineflow-backend/internal/store"
	"github.com/dineflow/dineflow-backend/pkg/database"
)

// CreditLedger maintains credit sale balances and records payments. The
// balance invariant paid_amount + remaining_amount == credit_amount holds at
// every step; status derives from it.
type CreditLedger struct {
	sequencer InvoiceSequencer
}

// Open creates the credit sale row for a just-persisted credit order, with
// the full total outstanding. Must run in the checkout transaction.
func (CreditLedger) Open(ctx context.Context, repo store.Repository, sale *database.Sale, userID uuid.UUID, notes string) (*database.CreditSale, error) {
	cs := &database.CreditSale{
		BusinessID:      sale.BusinessID,
		SaleID:          sale.ID,
		CustomerName:    sale.CustomerName,
		CustomerPhone:   sale.CustomerPhone,
		CreditAmount:    sale.Total,
		PaidAmount:      decimal.Zero,
		RemainingAmount: sale.Total,
		Status:          database.CreditStatusPending,
		Notes:           notes,
		CreatedBy:       userID,
	}
	if err := repo.CreateCreditSale(ctx, cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// PaymentResult is what a settled (full or partial) credit payment produced.
type PaymentResult struct {
	Payment     *database.CreditPayment `json:"payment"`
	CreditSale  *database.CreditSale    `json:"credit_sale"`
	ReceiptSale *database.Sale          `json:"receipt_sale"`
}

// Pay applies a payment against a credit sale: the payment row, the balance
// update and the synthetic receipt sale are written in the caller's
// transaction, so either all land or none do. The credit sale row is locked
// for the duration, keeping two concurrent payments from both passing the
// balance check against a stale remainder.
func (cl CreditLedger) Pay(ctx context.Context, repo store.Repository, businessID, userID, creditSaleID uuid.UUID, amount decimal.Decimal, method, notes string, day time.Time, taxRate decimal.Decimal, now time.Time) (*PaymentResult, error) {
	if amount.Sign() <= 0 {
		return nil, store.ErrInvalidAmount
	}

	cs, err := repo.GetCreditSaleForUpdate(ctx, businessID, creditSaleID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(cs.RemainingAmount) {
		return nil, store.ErrExceedsBalance
	}

	payment := &database.CreditPayment{
		BusinessID:    businessID,
		CreditSaleID:  cs.ID,
		PaymentAmount: amount,
		PaymentMethod: method,
		PaymentDate:   now,
		ReceivedBy:    userID,
		Notes:         notes,
	}
	if err := repo.CreateCreditPayment(ctx, payment); err != nil {
		return nil, err
	}

	cs.PaidAmount = cs.PaidAmount.Add(amount)
	cs.RemainingAmount = cs.RemainingAmount.Sub(amount)
	cs.Status = creditStatus(cs)
	if err := repo.UpdateCreditSale(ctx, cs); err != nil {
		return nil, err
	}

	// Revenue is recognized when the cash arrives, so each payment gets a
	// receipt sale. The amount is tax-inclusive; tax is extracted, not
	// added on top of the already-taxed credit order.
	invoiceNo, err := cl.sequencer.PaymentInvoice(ctx, repo, businessID, day, cs.ID)
	if err != nil {
		return nil, err
	}
	subtotal, tax := ExtractTax(amount, taxRate)
	receipt := &database.Sale{
		BaseModel:     database.BaseModel{CreatedAt: now},
		BusinessID:    businessID,
		InvoiceNo:     invoiceNo,
		RecordKind:    database.SaleKindCreditPayment,
		CustomerName:  cs.CustomerName,
		CustomerPhone: cs.CustomerPhone,
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         amount,
		PaymentMethod: method,
		UserID:        userID,
	}
	if err := repo.CreateSale(ctx, receipt); err != nil {
		return nil, err
	}

	return &PaymentResult{Payment: payment, CreditSale: cs, ReceiptSale: receipt}, nil
}

func creditStatus(cs *database.CreditSale) string {
	switch {
	case cs.RemainingAmount.Sign() <= 0:
		return database.CreditStatusPaid
	case cs.PaidAmount.Sign() > 0:
		return database.CreditStatusPartial
	default:
		return database.CreditStatusPending
	}
}
