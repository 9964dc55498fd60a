package pos

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dineflow/dineflow-backend/internal/businessday"
	"github.com/dineflow/dineflow-backend/internal/store"
)

// maxSequenceProbes bounds the collision-probing loop so a pathological day
// fails with ErrSequenceExhausted instead of spinning.
const maxSequenceProbes = 100

// InvoiceSequencer allocates human-readable invoice numbers unique within a
// tenant and business day. The existence probe handles the common race; the
// unique index on (business_id, invoice_no) is the backstop, surfacing as
// ErrConflict on insert for the orchestrator to retry.
type InvoiceSequencer struct{}

// Next returns the next order invoice number for the business day, format
// YYMMDD-NN with a two-digit zero-padded sequence.
func (InvoiceSequencer) Next(ctx context.Context, repo store.Repository, businessID uuid.UUID, day time.Time) (string, error) {
	prefix := businessday.Stamp(day) + "-"
	existing, err := repo.ListInvoiceNumbers(ctx, businessID, prefix)
	if err != nil {
		return "", err
	}

	max := 0
	for _, no := range existing {
		// Payment-marker invoices share the date prefix; their suffix is
		// not numeric and is skipped here.
		n, err := strconv.Atoi(strings.TrimPrefix(no, prefix))
		if err == nil && n > max {
			max = n
		}
	}

	candidate := max + 1
	for i := 0; i < maxSequenceProbes; i++ {
		invoiceNo := fmt.Sprintf("%s%02d", prefix, candidate)
		exists, err := repo.InvoiceExists(ctx, businessID, invoiceNo)
		if err != nil {
			return "", err
		}
		if !exists {
			return invoiceNo, nil
		}
		candidate++
	}
	return "", store.ErrSequenceExhausted
}

// PaymentInvoice returns the invoice number for a synthetic credit-payment
// receipt: {YYMMDD}-PAY-{creditSale}-{n}. The -PAY- marker keeps these rows
// out of order counts; a counter is appended on collision.
func (InvoiceSequencer) PaymentInvoice(ctx context.Context, repo store.Repository, businessID uuid.UUID, day time.Time, creditSaleID uuid.UUID) (string, error) {
	base := fmt.Sprintf("%s-PAY-%s", businessday.Stamp(day), shortID(creditSaleID))
	candidate := base
	for i := 1; i <= maxSequenceProbes; i++ {
		exists, err := repo.InvoiceExists(ctx, businessID, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", store.ErrSequenceExhausted
}

func shortID(id uuid.UUID) string {
	return strings.SplitN(id.String(), "-", 2)[0]
}
