package dashboard

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dineflow/dineflow-backend/internal/businessday"
	"github.com/dineflow/dineflow-backend/pkg/database"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

type DashboardStats struct {
	TodayRevenue      decimal.Decimal `json:"today_revenue"`
	TodayOrders       int64           `json:"today_orders"`
	WeekRevenue       decimal.Decimal `json:"week_revenue"`
	MonthRevenue      decimal.Decimal `json:"month_revenue"`
	OutstandingCredit decimal.Decimal `json:"outstanding_credit"`
	OpenCreditCount   int64           `json:"open_credit_count"`
	TotalMenuItems    int64           `json:"total_menu_items"`
	LowStockItems     int64           `json:"low_stock_items"`
}

type TopMenuItem struct {
	MenuItemID uuid.UUID       `json:"menu_item_id"`
	Name       string          `json:"name"`
	TotalQty   int64           `json:"total_qty"`
	TotalSales decimal.Decimal `json:"total_sales"`
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

// revenue computes composite revenue for a window: completed order totals
// plus credit installments received in the window.
func (h *Handler) revenue(businessID uuid.UUID, from, to time.Time) (decimal.Decimal, int64) {
	var orders struct {
		Revenue decimal.Decimal
		Count   int64
	}
	h.db.Model(&database.Sale{}).
		Select("COALESCE(SUM(total) FILTER (WHERE payment_method IN ('cash','online','account')), 0) AS revenue, COUNT(*) AS count").
		Where("business_id = ? AND created_at >= ? AND created_at < ?", businessID, from, to).
		Where("record_kind <> ?", database.SaleKindCreditPayment).
		Where("invoice_no NOT LIKE ?", "%-PAY-%").
		Scan(&orders)

	var payments decimal.Decimal
	h.db.Model(&database.CreditPayment{}).
		Select("COALESCE(SUM(payment_amount), 0)").
		Where("business_id = ? AND payment_date >= ? AND payment_date < ?", businessID, from, to).
		Scan(&payments)

	return orders.Revenue.Add(payments), orders.Count
}

// GetStats returns the dashboard headline numbers. The "today" bucket
// follows the tenant's business-day boundary, not midnight.
func (h *Handler) GetStats(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	offset := h.dayOffset(businessID)
	today := businessday.Day(time.Now(), offset)
	todayFrom, todayTo := businessday.Range(today, offset)
	weekFrom, _ := businessday.Range(today.AddDate(0, 0, -6), offset)
	monthFrom, _ := businessday.Range(time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()), offset)

	var stats DashboardStats
	stats.TodayRevenue, stats.TodayOrders = h.revenue(businessID, todayFrom, todayTo)
	stats.WeekRevenue, _ = h.revenue(businessID, weekFrom, todayTo)
	stats.MonthRevenue, _ = h.revenue(businessID, monthFrom, todayTo)

	h.db.Model(&database.CreditSale{}).
		Select("COALESCE(SUM(remaining_amount), 0)").
		Where("business_id = ? AND status <> ?", businessID, database.CreditStatusPaid).
		Scan(&stats.OutstandingCredit)
	h.db.Model(&database.CreditSale{}).
		Where("business_id = ? AND status <> ?", businessID, database.CreditStatusPaid).
		Count(&stats.OpenCreditCount)

	h.db.Model(&database.MenuItem{}).
		Where("business_id = ? AND is_active = ?", businessID, true).
		Count(&stats.TotalMenuItems)
	h.db.Model(&database.InventoryItem{}).
		Where("business_id = ? AND is_active = ? AND current_stock <= min_stock_level", businessID, true).
		Count(&stats.LowStockItems)

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// GetTopMenuItems returns the month's best sellers
func (h *Handler) GetTopMenuItems(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	offset := h.dayOffset(businessID)
	today := businessday.Day(time.Now(), offset)
	monthFrom, _ := businessday.Range(time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()), offset)
	_, todayTo := businessday.Range(today, offset)

	var items []TopMenuItem
	h.db.Model(&database.SaleLine{}).
		Select("sale_lines.menu_item_id, menu_items.name, SUM(sale_lines.qty) AS total_qty, COALESCE(SUM(sale_lines.line_total), 0) AS total_sales").
		Joins("JOIN sales ON sale_lines.sale_id = sales.id").
		Joins("JOIN menu_items ON sale_lines.menu_item_id = menu_items.id").
		Where("sales.business_id = ? AND sales.created_at >= ? AND sales.created_at < ?", businessID, monthFrom, todayTo).
		Where("sales.record_kind = ?", database.SaleKindOrder).
		Group("sale_lines.menu_item_id, menu_items.name").
		Order("total_qty DESC").
		Limit(5).
		Scan(&items)

	c.JSON(http.StatusOK, gin.H{"data": items})
}

// GetRecentSales returns the latest orders
func (h *Handler) GetRecentSales(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var sales []database.Sale
	h.db.Where("business_id = ? AND record_kind = ?", businessID, database.SaleKindOrder).
		Preload("Lines").
		Order("created_at DESC").
		Limit(5).
		Find(&sales)

	c.JSON(http.StatusOK, gin.H{"data": sales})
}
