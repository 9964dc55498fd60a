package menu

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dineflow/dineflow-backend/pkg/activitylog"
	"github.com/dineflow/dineflow-backend/pkg/database"
)

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
	Name       string          `json:"name" binding:"required"`
	SKU        string          `json:"sku"`
	Price      decimal.Decimal `json:"price" binding:"required"`
	TaxRate    decimal.Decimal `json:"tax_rate"`
	CategoryID *uuid.UUID      `json:"category_id"`
}

type RecipeLineRequest struct {
	InventoryItemID uuid.UUID       `json:"inventory_item_id" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity" binding:"required"`
	Unit            string          `json:"unit"`
}

// ListCategories returns the tenant's menu categories
func (h *Handler) ListCategories(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var categories []database.MenuCategory
	if err := h.db.Where("business_id = ?", businessID).
		Order("order_index ASC").Find(&categories).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch categories"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": categories})
}

// CreateCategory adds a menu category
func (h *Handler) CreateCategory(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var req struct {
		Name       string `json:"name" binding:"required"`
		OrderIndex int    `json:"order_index"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category := database.MenuCategory{
		BusinessID: businessID,
		Name:       req.Name,
		OrderIndex: req.OrderIndex,
		IsActive:   true,
	}
	if err := h.db.Create(&category).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create category"})
		return
	}

	h.logger.LogCreate(c, "menu_category", category.ID, map[string]interface{}{"name": category.Name})
	c.JSON(http.StatusCreated, gin.H{"data": category})
}

// List returns all menu items for the tenant
func (h *Handler) List(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	query := h.db.Where("business_id = ?", businessID)
	if categoryID := c.Query("category_id"); categoryID != "" {
		query = query.Where("category_id = ?", categoryID)
	}

	var items []database.MenuItem
	if err := query.Preload("Category").Preload("RecipeLines").Preload("RecipeLines.InventoryItem").
		Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch menu items"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// Create adds a new menu item
func (h *Handler) Create(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item := database.MenuItem{
		BusinessID: businessID,
		Name:       req.Name,
		SKU:        req.SKU,
		Price:      req.Price,
		TaxRate:    req.TaxRate,
		CategoryID: req.CategoryID,
		IsActive:   true,
	}
	if err := h.db.Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create menu item"})
		return
	}

	h.logger.LogCreate(c, "menu_item", item.ID, map[string]interface{}{
		"name":  item.Name,
		"price": item.Price,
		"sku":   item.SKU,
	})
	c.JSON(http.StatusCreated, gin.H{"data": item})
}

// Get returns a single menu item with its recipe
func (h *Handler) Get(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)
	itemID := c.Param("id")

	var item database.MenuItem
	if err := h.db.Where("id = ? AND business_id = ?", itemID, businessID).
		Preload("Category").
		Preload("RecipeLines").
		Preload("RecipeLines.InventoryItem").
		First(&item).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

// Update modifies a menu item
func (h *Handler) Update(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)
	itemID := c.Param("id")

	var item database.MenuItem
	if err := h.db.Where("id = ? AND business_id = ?", itemID, businessID).First(&item).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
		return
	}

	oldValues := map[string]interface{}{
		"name":     item.Name,
		"price":    item.Price,
		"tax_rate": item.TaxRate,
		"sku":      item.SKU,
	}

	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item.Name = req.Name
	item.SKU = req.SKU
	item.Price = req.Price
	item.TaxRate = req.TaxRate
	item.CategoryID = req.CategoryID

	if err := h.db.Save(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update menu item"})
		return
	}

	h.logger.LogUpdate(c, "menu_item", item.ID, oldValues, map[string]interface{}{
		"name":     item.Name,
		"price":    item.Price,
		"tax_rate": item.TaxRate,
		"sku":      item.SKU,
	})
	c.JSON(http.StatusOK, gin.H{"data": item})
}

// ReplaceRecipe swaps a menu item's recipe wholesale. Recipes are never
// edited line by line: the old lines are deleted and the new set created in
// one transaction.
func (h *Handler) ReplaceRecipe(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)
	itemID := c.Param("id")

	var item database.MenuItem
	if err := h.db.Where("id = ? AND business_id = ?", itemID, businessID).First(&item).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
		return
	}

	var req struct {
		Lines []RecipeLineRequest `json:"lines"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, line := range req.Lines {
		if line.Quantity.Sign() <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Recipe quantities must be positive"})
			return
		}
		var count int64
		h.db.Model(&database.InventoryItem{}).
			Where("id = ? AND business_id = ?", line.InventoryItemID, businessID).
			Count(&count)
		if count == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown inventory item in recipe"})
			return
		}
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("menu_item_id = ? AND business_id = ?", item.ID, businessID).
			Delete(&database.RecipeLine{}).Error; err != nil {
			return err
		}
		for _, line := range req.Lines {
			if err := tx.Create(&database.RecipeLine{
				BusinessID:      businessID,
				MenuItemID:      item.ID,
				InventoryItemID: line.InventoryItemID,
				Quantity:        line.Quantity,
				Unit:            line.Unit,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to replace recipe"})
		return
	}

	h.logger.LogUpdate(c, "menu_item_recipe", item.ID, nil, map[string]interface{}{
		"lines": len(req.Lines),
	})

	var updated database.MenuItem
	h.db.Where("id = ?", item.ID).
		Preload("RecipeLines").
		Preload("RecipeLines.InventoryItem").
		First(&updated)
	c.JSON(http.StatusOK, gin.H{"data": updated})
}

// Delete soft-deletes a menu item
func (h *Handler) Delete(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)
	itemID := c.Param("id")

	var item database.MenuItem
	if err := h.db.Where("id = ? AND business_id = ?", itemID, businessID).First(&item).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
		return
	}

	if err := h.db.Delete(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete menu item"})
		return
	}

	h.logger.LogDelete(c, "menu_item", item.ID, map[string]interface{}{
		"name": item.Name,
		"sku":  item.SKU,
	})
	c.JSON(http.StatusOK, gin.H{"message": "Menu item deleted"})
}

// ToggleActive toggles a menu item's is_active status
func (h *Handler) ToggleActive(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)
	itemID := c.Param("id")

	var req struct {
		IsActive bool `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var item database.MenuItem
	if err := h.db.Where("id = ? AND business_id = ?", itemID, businessID).First(&item).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
		return
	}

	item.IsActive = req.IsActive
	if err := h.db.Save(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update menu item"})
		return
	}

	h.logger.LogToggle(c, "menu_item", item.ID, item.IsActive, item.Name)
	c.JSON(http.StatusOK, gin.H{"data": item})
}
