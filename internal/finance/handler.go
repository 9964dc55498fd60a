package finance

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dineflow/dineflow-backend/internal/businessday"
	"github.com/dineflow/dineflow-backend/pkg/activitylog"
	"github.com/dineflow/dineflow-backend/pkg/database"
)

// Handler covers the money side that isn't a sale: operating expenses and
// end-of-day cash closings. Closing totals snapshot the composite revenue
// (order totals plus credit installments received) for the business day.
type Handler struct {
	db     *gorm.DB
	logger *activitylog.Logger
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{
		db:     db,
		logger: activitylog.NewLogger(db),
	}
}

type ExpenseRequest struct {
	Category   string          `json:"category"`
	Note       string          `json:"note"`
	Amount     decimal.Decimal `json:"amount"`
	IncurredAt *time.Time      `json:"incurred_at"`
}

var (
	errCategoryRequired  = errors.New("category is required")
	errAmountNotPositive = errors.New("amount must be positive")
)

func (r ExpenseRequest) validate() error {
	if r.Category == "" {
		return errCategoryRequired
	}
	if r.Amount.Sign() <= 0 {
		return errAmountNotPositive
	}
	return nil
}

type ClosingRequest struct {
	Date        string          `json:"date" binding:"required"` // YYYY-MM-DD
	OpeningCash decimal.Decimal `json:"opening_cash"`
	ClosingCash decimal.Decimal `json:"closing_cash"`
	Notes       string          `json:"notes"`
}

var errNegativeCash = errors.New("cash amounts cannot be negative")

func (r ClosingRequest) validate() (time.Time, error) {
	day, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return time.Time{}, errors.New("invalid date, expected YYYY-MM-DD")
	}
	if r.OpeningCash.Sign() < 0 || r.ClosingCash.Sign() < 0 {
		return time.Time{}, errNegativeCash
	}
	return day, nil
}

func (h *Handler) dayOffset(businessID uuid.UUID) time.Duration {
	var setting database.SystemSetting
	err := h.db.Where("business_id = ? AND key = ?", businessID, "new_day_start_time").
		First(&setting).Error
	if err != nil {
		return businessday.DefaultOffset
	}
	offset, err := businessday.ParseOffset(setting.Value)
	if err != nil {
		return businessday.DefaultOffset
	}
	return offset
}

// windowTotals computes composite revenue and expense totals for a window.
func (h *Handler) windowTotals(businessID uuid.UUID, from, to time.Time) (revenue, expenses decimal.Decimal) {
	var orders decimal.Decimal
	h.db.Model(&database.Sale{}).
		Select("COALESCE(SUM(total) FILTER (WHERE payment_method IN ('cash','online','account')), 0)").
		Where("business_id = ? AND created_at >= ? AND created_at < ?", businessID, from, to).
		Where("record_kind <> ?", database.SaleKindCreditPayment).
		Where("invoice_no NOT LIKE ?", "%-PAY-%").
		Scan(&orders)

	var payments decimal.Decimal
	h.db.Model(&database.CreditPayment{}).
		Select("COALESCE(SUM(payment_amount), 0)").
		Where("business_id = ? AND payment_date >= ? AND payment_date < ?", businessID, from, to).
		Scan(&payments)

	h.db.Model(&database.Expense{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("business_id = ? AND incurred_at >= ? AND incurred_at < ?", businessID, from, to).
		Scan(&expenses)

	return orders.Add(payments), expenses
}

// GetSummary returns today's and this month's revenue, expenses and net
// profit. "Today" follows the tenant's business-day boundary.
func (h *Handler) GetSummary(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	offset := h.dayOffset(businessID)
	today := businessday.Day(time.Now(), offset)
	todayFrom, todayTo := businessday.Range(today, offset)
	monthFrom, _ := businessday.Range(time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()), offset)

	todayRevenue, todayExpenses := h.windowTotals(businessID, todayFrom, todayTo)
	monthRevenue, monthExpenses := h.windowTotals(businessID, monthFrom, todayTo)

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"today_revenue":  todayRevenue,
			"today_expenses": todayExpenses,
			"today_profit":   todayRevenue.Sub(todayExpenses),
			"month_revenue":  monthRevenue,
			"month_expenses": monthExpenses,
			"month_profit":   monthRevenue.Sub(monthExpenses),
		},
	})
}

// ListExpenses returns expenses, newest first, with optional date/category
// filters. Date filters cover whole business days.
func (h *Handler) ListExpenses(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)
	offset := h.dayOffset(businessID)

	query := h.db.Where("business_id = ?", businessID)
	if start := c.Query("start_date"); start != "" {
		day, err := time.Parse("2006-01-02", start)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date, expected YYYY-MM-DD"})
			return
		}
		from, _ := businessday.Range(day, offset)
		query = query.Where("incurred_at >= ?", from)
	}
	if end := c.Query("end_date"); end != "" {
		day, err := time.Parse("2006-01-02", end)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end_date, expected YYYY-MM-DD"})
			return
		}
		_, to := businessday.Range(day, offset)
		query = query.Where("incurred_at < ?", to)
	}
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var expenses []database.Expense
	if err := query.Order("incurred_at DESC").Limit(200).Find(&expenses).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch expenses"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": expenses})
}

// CreateExpense records an operating cost
func (h *Handler) CreateExpense(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)
	userID := c.MustGet("user_id").(uuid.UUID)

	var req ExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	incurredAt := time.Now()
	if req.IncurredAt != nil {
		incurredAt = *req.IncurredAt
	}

	expense := database.Expense{
		BusinessID: businessID,
		Category:   req.Category,
		Note:       req.Note,
		Amount:     req.Amount,
		IncurredAt: incurredAt,
		UserID:     userID,
	}
	if err := h.db.Create(&expense).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create expense"})
		return
	}

	h.logger.LogCreate(c, "expense", expense.ID, map[string]interface{}{
		"category": expense.Category,
		"amount":   expense.Amount,
	})
	c.JSON(http.StatusCreated, gin.H{"data": expense})
}

// GetExpense returns one expense
func (h *Handler) GetExpense(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var expense database.Expense
	if err := h.db.Where("id = ? AND business_id = ?", c.Param("id"), businessID).First(&expense).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Expense not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": expense})
}

// UpdateExpense modifies an expense
func (h *Handler) UpdateExpense(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var expense database.Expense
	if err := h.db.Where("id = ? AND business_id = ?", c.Param("id"), businessID).First(&expense).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Expense not found"})
		return
	}

	oldValues := map[string]interface{}{
		"category": expense.Category,
		"amount":   expense.Amount,
		"note":     expense.Note,
	}

	var req ExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	expense.Category = req.Category
	expense.Note = req.Note
	expense.Amount = req.Amount
	if req.IncurredAt != nil {
		expense.IncurredAt = *req.IncurredAt
	}

	if err := h.db.Save(&expense).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update expense"})
		return
	}

	h.logger.LogUpdate(c, "expense", expense.ID, oldValues, map[string]interface{}{
		"category": expense.Category,
		"amount":   expense.Amount,
		"note":     expense.Note,
	})
	c.JSON(http.StatusOK, gin.H{"data": expense})
}

// DeleteExpense removes an expense
func (h *Handler) DeleteExpense(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var expense database.Expense
	if err := h.db.Where("id = ? AND business_id = ?", c.Param("id"), businessID).First(&expense).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Expense not found"})
		return
	}

	if err := h.db.Delete(&expense).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete expense"})
		return
	}

	h.logger.LogDelete(c, "expense", expense.ID, map[string]interface{}{
		"category": expense.Category,
		"amount":   expense.Amount,
	})
	c.JSON(http.StatusOK, gin.H{"message": "Expense deleted"})
}

// GetClosingData returns the sales and expense totals for one business day,
// pre-filling the closing form before the record is saved.
func (h *Handler) GetClosingData(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	day, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
		return
	}

	offset := h.dayOffset(businessID)
	from, to := businessday.Range(day, offset)
	revenue, expenses := h.windowTotals(businessID, from, to)

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"sales_total":   revenue,
			"expense_total": expenses,
		},
	})
}

// ListClosings returns closings, newest first
func (h *Handler) ListClosings(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var closings []database.DailyClosing
	if err := h.db.Where("business_id = ?", businessID).
		Order("date DESC").Limit(90).Find(&closings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch closings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": closings})
}

// CreateClosing records the end-of-day reconciliation. The sales and expense
// totals are computed server-side at save time; one closing per day.
func (h *Handler) CreateClosing(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)
	userID := c.MustGet("user_id").(uuid.UUID)

	var req ClosingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	day, err := req.validate()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing database.DailyClosing
	if h.db.Where("business_id = ? AND date = ?", businessID, day).First(&existing).Error == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Daily closing already exists for this date"})
		return
	}

	offset := h.dayOffset(businessID)
	from, to := businessday.Range(day, offset)
	revenue, expenses := h.windowTotals(businessID, from, to)

	closing := database.DailyClosing{
		BusinessID:   businessID,
		Date:         day,
		OpeningCash:  req.OpeningCash,
		SalesTotal:   revenue,
		ExpenseTotal: expenses,
		ClosingCash:  req.ClosingCash,
		Notes:        req.Notes,
		UserID:       userID,
	}
	if err := h.db.Create(&closing).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create closing"})
		return
	}

	h.logger.LogCreate(c, "daily_closing", closing.ID, map[string]interface{}{
		"date":         req.Date,
		"sales_total":  closing.SalesTotal,
		"closing_cash": closing.ClosingCash,
	})
	c.JSON(http.StatusCreated, gin.H{"data": closing})
}

// GetClosing returns one closing
func (h *Handler) GetClosing(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var closing database.DailyClosing
	if err := h.db.Where("id = ? AND business_id = ?", c.Param("id"), businessID).First(&closing).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Closing not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": closing})
}

// UpdateClosing corrects the cash figures or notes of a closing. The
// computed sales and expense snapshots stay as recorded.
func (h *Handler) UpdateClosing(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var closing database.DailyClosing
	if err := h.db.Where("id = ? AND business_id = ?", c.Param("id"), businessID).First(&closing).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Closing not found"})
		return
	}

	oldValues := map[string]interface{}{
		"opening_cash": closing.OpeningCash,
		"closing_cash": closing.ClosingCash,
		"notes":        closing.Notes,
	}

	var req struct {
		OpeningCash *decimal.Decimal `json:"opening_cash"`
		ClosingCash *decimal.Decimal `json:"closing_cash"`
		Notes       *string          `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.OpeningCash != nil {
		if req.OpeningCash.Sign() < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": errNegativeCash.Error()})
			return
		}
		closing.OpeningCash = *req.OpeningCash
	}
	if req.ClosingCash != nil {
		if req.ClosingCash.Sign() < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": errNegativeCash.Error()})
			return
		}
		closing.ClosingCash = *req.ClosingCash
	}
	if req.Notes != nil {
		closing.Notes = *req.Notes
	}

	if err := h.db.Save(&closing).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update closing"})
		return
	}

	h.logger.LogUpdate(c, "daily_closing", closing.ID, oldValues, map[string]interface{}{
		"opening_cash": closing.OpeningCash,
		"closing_cash": closing.ClosingCash,
		"notes":        closing.Notes,
	})
	c.JSON(http.StatusOK, gin.H{"data": closing})
}

// DeleteClosing removes a closing so the day can be re-closed
func (h *Handler) DeleteClosing(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var closing database.DailyClosing
	if err := h.db.Where("id = ? AND business_id = ?", c.Param("id"), businessID).First(&closing).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Closing not found"})
		return
	}

	if err := h.db.Delete(&closing).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete closing"})
		return
	}

	h.logger.LogDelete(c, "daily_closing", closing.ID, map[string]interface{}{
		"date":         closing.Date.Format("2006-01-02"),
		"sales_total":  closing.SalesTotal,
		"closing_cash": closing.ClosingCash,
	})
	c.JSON(http.StatusOK, gin.H{"message": "Closing deleted"})
}
