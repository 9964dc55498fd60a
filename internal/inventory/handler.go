package inventory

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dineflow/dineflow-backend/pkg/activitylog"
	"github.com/dineflow/dineflow-backend/pkg/database"
)

// Handler manages stocked ingredients and legacy per-batch lots. Stock
// deduction during checkout happens in the POS core; this surface covers
// receiving, correction and monitoring.
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

type CreateItemRequest struct {
	Name          string          `json:"name" binding:"required"`
	SKU           string          `json:"sku"`
	Category      string          `json:"category"`
	Unit          string          `json:"unit" binding:"required"`
	CurrentStock  decimal.Decimal `json:"current_stock"`
	MinStockLevel decimal.Decimal `json:"min_stock_level"`
	MaxStockLevel decimal.Decimal `json:"max_stock_level"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
}

// List returns all inventory items for the tenant
func (h *Handler) List(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	query := h.db.Where("business_id = ?", businessID)
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var items []database.InventoryItem
	if err := query.Order("name ASC").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch inventory"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// Create adds a new inventory item
func (h *Handler) Create(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item := database.InventoryItem{
		BusinessID:    businessID,
		Name:          req.Name,
		SKU:           req.SKU,
		Category:      req.Category,
		Unit:          req.Unit,
		CurrentStock:  req.CurrentStock,
		MinStockLevel: req.MinStockLevel,
		MaxStockLevel: req.MaxStockLevel,
		UnitCost:      req.UnitCost,
		IsActive:      true,
	}
	if err := h.db.Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create inventory item"})
		return
	}

	h.logger.LogCreate(c, "inventory_item", item.ID, map[string]interface{}{
		"name":  item.Name,
		"stock": item.CurrentStock,
		"unit":  item.Unit,
	})
	c.JSON(http.StatusCreated, gin.H{"data": item})
}

// Get returns one inventory item with its open lots
func (h *Handler) Get(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)
	itemID := c.Param("id")

	var item database.InventoryItem
	if err := h.db.Where("id = ? AND business_id = ?", itemID, businessID).First(&item).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Inventory item not found"})
		return
	}

	var lots []database.InventoryLot
	h.db.Where("business_id = ? AND inventory_item_id = ? AND qty_on_hand > 0", businessID, item.ID).
		Order("received_at ASC").Find(&lots)

	c.JSON(http.StatusOK, gin.H{"data": item, "lots": lots})
}

// Update modifies an inventory item's master data
func (h *Handler) Update(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)
	itemID := c.Param("id")

	var item database.InventoryItem
	if err := h.db.Where("id = ? AND business_id = ?", itemID, businessID).First(&item).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Inventory item not found"})
		return
	}

	oldValues := map[string]interface{}{
		"name":      item.Name,
		"unit_cost": item.UnitCost,
		"min_level": item.MinStockLevel,
	}

	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item.Name = req.Name
	item.SKU = req.SKU
	item.Category = req.Category
	item.Unit = req.Unit
	item.MinStockLevel = req.MinStockLevel
	item.MaxStockLevel = req.MaxStockLevel
	item.UnitCost = req.UnitCost

	if err := h.db.Save(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update inventory item"})
		return
	}

	h.logger.LogUpdate(c, "inventory_item", item.ID, oldValues, map[string]interface{}{
		"name":      item.Name,
		"unit_cost": item.UnitCost,
		"min_level": item.MinStockLevel,
	})
	c.JSON(http.StatusOK, gin.H{"data": item})
}

// AdjustStock sets an item's stock to an absolute value (stocktake
// correction), recording the old value in the audit trail.
func (h *Handler) AdjustStock(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)
	itemID := c.Param("id")

	var req struct {
		CurrentStock decimal.Decimal `json:"current_stock"`
		Reason       string          `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.CurrentStock.Sign() < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Stock cannot be negative"})
		return
	}

	var item database.InventoryItem
	if err := h.db.Where("id = ? AND business_id = ?", itemID, businessID).First(&item).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Inventory item not found"})
		return
	}

	oldStock := item.CurrentStock
	item.CurrentStock = req.CurrentStock
	if err := h.db.Save(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to adjust stock"})
		return
	}

	h.logger.LogActivity(c, "stock_adjust", "inventory_item", &item.ID, map[string]interface{}{
		"name":   item.Name,
		"old":    oldStock,
		"new":    item.CurrentStock,
		"reason": req.Reason,
	})
	c.JSON(http.StatusOK, gin.H{"data": item})
}

// ReceiveLot records a received batch and increments the denormalized stock.
func (h *Handler) ReceiveLot(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)
	itemID := c.Param("id")

	var req struct {
		Qty        decimal.Decimal `json:"qty" binding:"required"`
		UnitCost   decimal.Decimal `json:"unit_cost"`
		ReceivedAt *time.Time      `json:"received_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Qty.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quantity must be positive"})
		return
	}

	var item database.InventoryItem
	if err := h.db.Where("id = ? AND business_id = ?", itemID, businessID).First(&item).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Inventory item not found"})
		return
	}

	receivedAt := time.Now()
	if req.ReceivedAt != nil {
		receivedAt = *req.ReceivedAt
	}

	lot := database.InventoryLot{
		BusinessID:      businessID,
		InventoryItemID: item.ID,
		QtyOnHand:       req.Qty,
		UnitCost:        req.UnitCost,
		ReceivedAt:      receivedAt,
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&lot).Error; err != nil {
			return err
		}
		item.CurrentStock = item.CurrentStock.Add(req.Qty)
		return tx.Save(&item).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to receive lot"})
		return
	}

	h.logger.LogActivity(c, "lot_received", "inventory_item", &item.ID, map[string]interface{}{
		"name":      item.Name,
		"qty":       req.Qty,
		"new_stock": item.CurrentStock,
	})
	c.JSON(http.StatusCreated, gin.H{"data": lot})
}

// GetAlerts returns items at or below their minimum stock level
func (h *Handler) GetAlerts(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var items []database.InventoryItem
	if err := h.db.Where("business_id = ? AND is_active = ? AND current_stock <= min_stock_level", businessID, true).
		Order("current_stock ASC").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// GetSummary returns stock counts and valuation
func (h *Handler) GetSummary(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var summary struct {
		TotalItems int64           `json:"total_items"`
		LowStock   int64           `json:"low_stock"`
		OutOfStock int64           `json:"out_of_stock"`
		StockValue decimal.Decimal `json:"stock_value"`
	}

	h.db.Model(&database.InventoryItem{}).
		Where("business_id = ? AND is_active = ?", businessID, true).
		Count(&summary.TotalItems)
	h.db.Model(&database.InventoryItem{}).
		Where("business_id = ? AND is_active = ? AND current_stock <= min_stock_level AND current_stock > 0", businessID, true).
		Count(&summary.LowStock)
	h.db.Model(&database.InventoryItem{}).
		Where("business_id = ? AND is_active = ? AND current_stock <= 0", businessID, true).
		Count(&summary.OutOfStock)
	h.db.Model(&database.InventoryItem{}).
		Where("business_id = ? AND is_active = ?", businessID, true).
		Select("COALESCE(SUM(current_stock * unit_cost), 0)").
		Scan(&summary.StockValue)

	c.JSON(http.StatusOK, gin.H{"data": summary})
}
