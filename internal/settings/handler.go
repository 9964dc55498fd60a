package settings

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dineflow/dineflow-backend/internal/businessday"
	"github.com/dineflow/dineflow-backend/pkg/activitylog"
	"github.com/dineflow/dineflow-backend/pkg/database"
)

// Keys the API accepts. Anything else is rejected so typos don't become
// silent dead settings.
var allowedKeys = map[string]bool{
	"tax_rate":            true,
	"new_day_start_time":  true,
	"strict_legacy_stock": true,
	"currency":            true,
	"receipt_footer":      true,
}

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

// GetSettings returns the tenant's settings as a flat key/value map
func (h *Handler) GetSettings(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var rows []database.SystemSetting
	if err := h.db.Where("business_id = ?", businessID).Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch settings"})
		return
	}

	settings := make(map[string]string, len(rows))
	for _, row := range rows {
		settings[row.Key] = row.Value
	}
	c.JSON(http.StatusOK, gin.H{"data": settings})
}

// UpdateSettings upserts the provided keys. Values are validated per key
// because the POS core reads these on every checkout.
func (h *Handler) UpdateSettings(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for key, value := range req {
		if !allowedKeys[key] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown setting: " + key})
			return
		}
		if err := validateSetting(key, value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		for key, value := range req {
			var setting database.SystemSetting
			err := tx.Where("business_id = ? AND key = ?", businessID, key).First(&setting).Error
			if err == gorm.ErrRecordNotFound {
				if err := tx.Create(&database.SystemSetting{
					BusinessID: businessID,
					Key:        key,
					Value:      value,
				}).Error; err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
			setting.Value = value
			if err := tx.Save(&setting).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings"})
		return
	}

	h.logger.LogActivity(c, "update", "settings", nil, map[string]interface{}{
		"keys": keysOf(req),
	})
	c.JSON(http.StatusOK, gin.H{"message": "Settings updated successfully"})
}

type UpdateProfileRequest struct {
	Name         string `json:"name" binding:"required"`
	BusinessType string `json:"business_type"`
	Address      string `json:"address"`
	Phone        string `json:"phone"`
}

// GetProfile returns the business profile
func (h *Handler) GetProfile(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var business database.Business
	if err := h.db.Where("id = ?", businessID).First(&business).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Business not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": business})
}

// UpdateProfile updates the business profile
func (h *Handler) UpdateProfile(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var business database.Business
	if err := h.db.Where("id = ?", businessID).First(&business).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Business not found"})
		return
	}

	oldValues := map[string]interface{}{
		"name":    business.Name,
		"phone":   business.Phone,
		"address": business.Address,
	}

	business.Name = req.Name
	business.BusinessType = req.BusinessType
	business.Address = req.Address
	business.Phone = req.Phone

	if err := h.db.Save(&business).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update business"})
		return
	}

	h.logger.LogUpdate(c, "business", business.ID, oldValues, map[string]interface{}{
		"name":    business.Name,
		"phone":   business.Phone,
		"address": business.Address,
	})
	c.JSON(http.StatusOK, gin.H{"data": business})
}

func validateSetting(key, value string) error {
	switch key {
	case "tax_rate":
		rate, err := decimal.NewFromString(value)
		if err != nil || rate.Sign() < 0 || rate.GreaterThan(decimal.NewFromInt(100)) {
			return errInvalidSetting{key: key, hint: "must be a percentage between 0 and 100"}
		}
	case "new_day_start_time":
		if _, err := businessday.ParseOffset(value); err != nil {
			return errInvalidSetting{key: key, hint: "must be HH:MM"}
		}
	case "strict_legacy_stock":
		if value != "true" && value != "false" && value != "1" && value != "0" {
			return errInvalidSetting{key: key, hint: "must be true or false"}
		}
	}
	return nil
}

type errInvalidSetting struct {
	key  string
	hint string
}

func (e errInvalidSetting) Error() string {
	return "Invalid value for " + e.key + ": " + e.hint
}

func keysOf(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
