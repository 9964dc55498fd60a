package pos

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dineflow/dineflow-backend/internal/businessday"
	"github.com/dineflow/dineflow-backend/internal/store"
	"github.com/dineflow/dineflow-backend/pkg/database"
)

// CartClearer drops a cashier's held cart after a successful checkout.
type CartClearer interface {
	Clear(ctx context.Context, businessID, userID uuid.UUID) error
}

// Handler exposes the POS endpoints. Checkout, availability and credit
// payments go through the service; sale browsing is plain tenant-filtered
// reads.
type Handler struct {
	db    *gorm.DB
	svc   *Service
	carts CartClearer
}

func NewHandler(db *gorm.DB, svc *Service, carts CartClearer) *Handler {
	return &Handler{db: db, svc: svc, carts: carts}
}

// RegisterRoutes wires the POS endpoints. checkoutGuards run on checkout
// only; credit payments settle existing debt and are never rate-capped.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, checkoutGuards ...gin.HandlerFunc) {
	r.POST("/checkout", append(checkoutGuards, h.Checkout)...)
	r.GET("/availability", h.CheckAvailability)
	r.GET("/sales", h.ListSales)
	r.GET("/sales/:id", h.GetSale)
	r.GET("/summary", h.DailySummary)
	r.GET("/credit-sales", h.ListCreditSales)
	r.GET("/credit-sales/:id", h.GetCreditSale)
	r.POST("/credit-sales/:id/pay", h.PayCreditSale)
}

// POST /api/pos/checkout
func (h *Handler) Checkout(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)
	userID := c.MustGet("user_id").(uuid.UUID)

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}
	if !validPaymentMethod(req.PaymentMethod) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment method"})
		return
	}

	result, err := h.svc.Checkout(c.Request.Context(), businessID, userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	// Held cart state is done with; dropping it must not fail the sale.
	if h.carts != nil {
		if err := h.carts.Clear(c.Request.Context(), businessID, userID); err != nil {
			h.svc.log.WithError(err).Warn("failed to clear held cart after checkout")
		}
	}

	c.JSON(http.StatusCreated, result)
}

func validPaymentMethod(m string) bool {
	switch m {
	case "", "cash", "online", "account", "credit":
		return true
	}
	return false
}

// GET /api/pos/availability?menu_item_id=...&qty=...
func (h *Handler) CheckAvailability(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	menuItemID, err := uuid.Parse(c.Query("menu_item_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid menu item ID"})
		return
	}
	qty, err := decimal.NewFromString(c.DefaultQuery("qty", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quantity"})
		return
	}

	availability, err := h.svc.CheckAvailability(c.Request.Context(), businessID, menuItemID, qty)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, availability)
}

// GET /api/pos/sales?date=2026-08-29&payment_method=cash
// Lists orders only; credit-payment receipt rows are excluded.
func (h *Handler) ListSales(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	query := h.db.Where("business_id = ?", businessID).
		Where("record_kind <> ?", database.SaleKindCreditPayment).
		Where("invoice_no NOT LIKE ?", "%-PAY-%")

	if method := c.Query("payment_method"); method != "" {
		query = query.Where("payment_method = ?", method)
	}
	if dateStr := c.Query("date"); dateStr != "" {
		day, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
			return
		}
		offset := h.dayOffset(c, businessID)
		from, to := businessday.Range(day, offset)
		query = query.Where("created_at >= ? AND created_at < ?", from, to)
	}

	var sales []database.Sale
	if err := query.Preload("Lines").Order("created_at DESC").Limit(200).Find(&sales).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sales"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales})
}

// GET /api/pos/sales/:id
func (h *Handler) GetSale(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	saleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sale ID"})
		return
	}

	var sale database.Sale
	err = h.db.Preload("Lines").
		Where("id = ? AND business_id = ?", saleID, businessID).
		First(&sale).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Sale not found"})
		return
	}
	c.JSON(http.StatusOK, sale)
}

// GET /api/pos/summary?date=2026-08-29
// Composite revenue for a business day: settled order totals plus credit
// payments received, never a bare sum of sale totals.
func (h *Handler) DailySummary(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var day time.Time
	if dateStr := c.Query("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
			return
		}
		day = parsed
	} else {
		current, err := h.svc.BusinessDay(c.Request.Context(), businessID)
		if err != nil {
			respondError(c, err)
			return
		}
		day = current
	}

	summary, err := h.svc.Revenue(c.Request.Context(), businessID, day)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"date":    day.Format("2006-01-02"),
		"summary": summary,
	})
}

// GET /api/pos/credit-sales?status=pending
func (h *Handler) ListCreditSales(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	query := h.db.Where("business_id = ?", businessID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var creditSales []database.CreditSale
	if err := query.Order("created_at DESC").Find(&creditSales).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch credit sales"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"credit_sales": creditSales})
}

// GET /api/pos/credit-sales/:id
func (h *Handler) GetCreditSale(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	creditSaleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credit sale ID"})
		return
	}

	var creditSale database.CreditSale
	err = h.db.Where("id = ? AND business_id = ?", creditSaleID, businessID).
		First(&creditSale).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Credit sale not found"})
		return
	}

	var payments []database.CreditPayment
	if err := h.db.Where("business_id = ? AND credit_sale_id = ?", businessID, creditSaleID).
		Order("payment_date ASC").Find(&payments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"credit_sale": creditSale,
		"payments":    payments,
	})
}

type payRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Method string          `json:"method"`
	Notes  string          `json:"notes"`
}

// POST /api/pos/credit-sales/:id/pay
func (h *Handler) PayCreditSale(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)
	userID := c.MustGet("user_id").(uuid.UUID)

	creditSaleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credit sale ID"})
		return
	}

	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	result, err := h.svc.PayCreditSale(c.Request.Context(), businessID, userID, creditSaleID, req.Amount, req.Method, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) dayOffset(c *gin.Context, businessID uuid.UUID) time.Duration {
	raw, err := h.svc.repo.GetSetting(c.Request.Context(), businessID, SettingNewDayStartTime, "06:00")
	if err != nil {
		return businessday.DefaultOffset
	}
	offset, err := businessday.ParseOffset(raw)
	if err != nil {
		return businessday.DefaultOffset
	}
	return offset
}

// respondError maps core errors to HTTP responses: validation failures are
// 400/404 with enough context to correct and retry, transient exhaustion is
// 503, anything else is a generic 500.
func respondError(c *gin.Context, err error) {
	var short *store.InsufficientStockError
	switch {
	case errors.As(err, &short):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Insufficient stock",
			"ingredient": short.Ingredient,
			"required":   short.Required,
			"available":  short.Available,
		})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, store.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
	case errors.Is(err, store.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be positive"})
	case errors.Is(err, store.ErrExceedsBalance):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment exceeds remaining balance"})
	case errors.Is(err, store.ErrInsufficientStock):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient stock"})
	case errors.Is(err, store.ErrSequenceExhausted), errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Busy, please retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
