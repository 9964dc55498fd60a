package reports

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
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

type SalesReportRequest struct {
	StartDate string `form:"start_date"` // Format: 2026-01-01
	EndDate   string `form:"end_date"`   // Format: 2026-01-31
}

// DailySales is one business day's composite revenue: completed order
// totals plus credit installments received that day. Credit orders count
// toward revenue on the day each payment lands, not the order day.
type DailySales struct {
	Date           string          `json:"date"`
	OrderRevenue   decimal.Decimal `json:"order_revenue"`
	CreditPayments decimal.Decimal `json:"credit_payments"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	OrderCount     int64           `json:"order_count"`
}

type SalesReport struct {
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	OrderRevenue   decimal.Decimal `json:"order_revenue"`
	CreditPayments decimal.Decimal `json:"credit_payments"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	TotalOrders    int64           `json:"total_orders"`
	AveragePerTx   decimal.Decimal `json:"average_per_tx"`
	DailySales     []DailySales    `json:"daily_sales"`
}

func (h *Handler) parseRange(req SalesReportRequest) (time.Time, time.Time) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if req.StartDate != "" {
		if parsed, err := time.Parse("2006-01-02", req.StartDate); err == nil {
			start = parsed
		}
	}
	if req.EndDate != "" {
		if parsed, err := time.Parse("2006-01-02", req.EndDate); err == nil {
			end = parsed
		}
	}
	if end.Before(start) {
		end = start
	}
	return start, end
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

// dayRevenue computes one business day's composite revenue.
func (h *Handler) dayRevenue(businessID uuid.UUID, day time.Time, offset time.Duration) DailySales {
	from, to := businessday.Range(day, offset)

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

	return DailySales{
		Date:           day.Format("2006-01-02"),
		OrderRevenue:   orders.Revenue,
		CreditPayments: payments,
		TotalRevenue:   orders.Revenue.Add(payments),
		OrderCount:     orders.Count,
	}
}

func (h *Handler) buildReport(businessID uuid.UUID, req SalesReportRequest) SalesReport {
	start, end := h.parseRange(req)
	offset := h.dayOffset(businessID)

	report := SalesReport{
		StartDate:      start.Format("2006-01-02"),
		EndDate:        end.Format("2006-01-02"),
		OrderRevenue:   decimal.Zero,
		CreditPayments: decimal.Zero,
		TotalRevenue:   decimal.Zero,
		AveragePerTx:   decimal.Zero,
	}

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		daily := h.dayRevenue(businessID, day, offset)
		report.DailySales = append(report.DailySales, daily)
		report.OrderRevenue = report.OrderRevenue.Add(daily.OrderRevenue)
		report.CreditPayments = report.CreditPayments.Add(daily.CreditPayments)
		report.TotalRevenue = report.TotalRevenue.Add(daily.TotalRevenue)
		report.TotalOrders += daily.OrderCount
	}
	if report.TotalOrders > 0 {
		report.AveragePerTx = report.TotalRevenue.Div(decimal.NewFromInt(report.TotalOrders)).Round(2)
	}
	return report
}

// GetSalesReport returns the composite sales report for a date range,
// bucketed by business day.
func (h *Handler) GetSalesReport(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var req SalesReportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, end := h.parseRange(req)
	if end.Sub(start) > 366*24*time.Hour {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Date range too large (max 1 year)"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": h.buildReport(businessID, req)})
}

type MenuItemSales struct {
	MenuItemID uuid.UUID       `json:"menu_item_id"`
	Name       string          `json:"name"`
	TotalQty   int64           `json:"total_qty"`
	TotalSales decimal.Decimal `json:"total_sales"`
}

// GetMenuItemSalesReport returns sales grouped by menu item, best sellers
// first. Credit-payment receipts carry no lines so they never show up here.
func (h *Handler) GetMenuItemSalesReport(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var req SalesReportRequest
	c.ShouldBindQuery(&req)
	start, end := h.parseRange(req)
	offset := h.dayOffset(businessID)

	from, _ := businessday.Range(start, offset)
	_, to := businessday.Range(end, offset)

	var items []MenuItemSales
	h.db.Model(&database.SaleLine{}).
		Select("sale_lines.menu_item_id, menu_items.name, SUM(sale_lines.qty) AS total_qty, COALESCE(SUM(sale_lines.line_total), 0) AS total_sales").
		Joins("JOIN sales ON sale_lines.sale_id = sales.id").
		Joins("JOIN menu_items ON sale_lines.menu_item_id = menu_items.id").
		Where("sales.business_id = ? AND sales.created_at >= ? AND sales.created_at < ?", businessID, from, to).
		Where("sales.record_kind = ?", database.SaleKindOrder).
		Group("sale_lines.menu_item_id, menu_items.name").
		Order("total_sales DESC").
		Scan(&items)

	c.JSON(http.StatusOK, gin.H{"data": items})
}

type OutstandingCredit struct {
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	PendingCount     int64           `json:"pending_count"`
	PartialCount     int64           `json:"partial_count"`
}

// GetCreditReport returns the tenant's open credit book
func (h *Handler) GetCreditReport(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var report OutstandingCredit
	h.db.Model(&database.CreditSale{}).
		Select("COALESCE(SUM(remaining_amount), 0)").
		Where("business_id = ? AND status <> ?", businessID, database.CreditStatusPaid).
		Scan(&report.TotalOutstanding)
	h.db.Model(&database.CreditSale{}).
		Where("business_id = ? AND status = ?", businessID, database.CreditStatusPending).
		Count(&report.PendingCount)
	h.db.Model(&database.CreditSale{}).
		Where("business_id = ? AND status = ?", businessID, database.CreditStatusPartial).
		Count(&report.PartialCount)

	c.JSON(http.StatusOK, gin.H{"data": report})
}

// ExportSalesReport streams the sales report as an Excel workbook
func (h *Handler) ExportSalesReport(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var req SalesReportRequest
	c.ShouldBindQuery(&req)

	start, end := h.parseRange(req)
	if end.Sub(start) > 366*24*time.Hour {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Date range too large (max 1 year)"})
		return
	}

	report := h.buildReport(businessID, req)

	f := excelize.NewFile()
	defer f.Close()

	headers := []string{"Date", "Order Revenue", "Credit Payments", "Total Revenue", "Orders"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue("Sheet1", cell, header)
	}

	for rowIdx, daily := range report.DailySales {
		values := []interface{}{
			daily.Date,
			daily.OrderRevenue.InexactFloat64(),
			daily.CreditPayments.InexactFloat64(),
			daily.TotalRevenue.InexactFloat64(),
			daily.OrderCount,
		}
		for colIdx, value := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue("Sheet1", cell, value)
		}
	}

	totalRow := len(report.DailySales) + 2
	f.SetCellValue("Sheet1", fmt.Sprintf("A%d", totalRow), "Total")
	f.SetCellValue("Sheet1", fmt.Sprintf("B%d", totalRow), report.OrderRevenue.InexactFloat64())
	f.SetCellValue("Sheet1", fmt.Sprintf("C%d", totalRow), report.CreditPayments.InexactFloat64())
	f.SetCellValue("Sheet1", fmt.Sprintf("D%d", totalRow), report.TotalRevenue.InexactFloat64())
	f.SetCellValue("Sheet1", fmt.Sprintf("E%d", totalRow), report.TotalOrders)

	f.SetColWidth("Sheet1", "A", "E", 16)

	fileName := fmt.Sprintf("sales_report_%s_%s.xlsx", report.StartDate, report.EndDate)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+fileName)

	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate report"})
		return
	}
}
