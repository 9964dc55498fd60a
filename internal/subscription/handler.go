package subscription

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
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

type PlanInfo struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	PriceMonthly  float64  `json:"price_monthly"`
	MaxUsers      int      `json:"max_users"`
	MaxMenuItems  int      `json:"max_menu_items"`
	MaxDailySales int      `json:"max_daily_sales"`
	Features      []string `json:"features"`
}

// 0 means unlimited for all limits.
var Plans = map[string]PlanInfo{
	"free": {
		ID:            "free",
		Name:          "Free",
		PriceMonthly:  0,
		MaxUsers:      1,
		MaxMenuItems:  25,
		MaxDailySales: 50,
		Features:      []string{"Basic POS", "1 user", "25 menu items", "50 sales/day", "Credit sales"},
	},
	"starter": {
		ID:            "starter",
		Name:          "Starter",
		PriceMonthly:  1500,
		MaxUsers:      3,
		MaxMenuItems:  200,
		MaxDailySales: 0,
		Features:      []string{"Everything in Free", "3 users", "200 menu items", "Unlimited sales", "Recipe stock tracking", "Excel import/export"},
	},
	"business": {
		ID:            "business",
		Name:          "Business",
		PriceMonthly:  4500,
		MaxUsers:      10,
		MaxMenuItems:  0,
		MaxDailySales: 0,
		Features:      []string{"Everything in Starter", "10 users", "Unlimited menu items", "Staff activity log", "Priority support"},
	},
}

var planOrder = []string{"free", "starter", "business"}

// GetPlans returns all available plans
func (h *Handler) GetPlans(c *gin.Context) {
	plans := make([]PlanInfo, 0, len(planOrder))
	for _, id := range planOrder {
		plans = append(plans, Plans[id])
	}
	c.JSON(http.StatusOK, gin.H{"data": plans})
}

// GetCurrent returns the tenant's current subscription
func (h *Handler) GetCurrent(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var subscription database.Subscription
	if err := h.db.Where("business_id = ?", businessID).First(&subscription).Error; err != nil {
		subscription = database.Subscription{
			BusinessID:         businessID,
			Plan:               "free",
			Status:             "active",
			MaxUsers:           1,
			MaxMenuItems:       25,
			MaxDailySales:      50,
			CurrentPeriodStart: time.Now(),
			CurrentPeriodEnd:   time.Now().AddDate(0, 1, 0),
		}
		h.db.Create(&subscription)
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"subscription":       subscription,
			"plan":               Plans[subscription.Plan],
			"current_period_end": subscription.CurrentPeriodEnd,
		},
	})
}

// GetUsage returns current usage against the plan limits
func (h *Handler) GetUsage(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var subscription database.Subscription
	h.db.Where("business_id = ?", businessID).First(&subscription)

	var userCount int64
	h.db.Model(&database.User{}).Where("business_id = ?", businessID).Count(&userCount)

	var itemCount int64
	h.db.Model(&database.MenuItem{}).
		Where("business_id = ? AND is_active = ?", businessID, true).
		Count(&itemCount)

	offset := h.dayOffset(businessID)
	from, to := businessday.Range(businessday.Day(time.Now(), offset), offset)
	var todaySales int64
	h.db.Model(&database.Sale{}).
		Where("business_id = ? AND created_at >= ? AND created_at < ?", businessID, from, to).
		Where("record_kind = ?", database.SaleKindOrder).
		Count(&todaySales)

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"users":           userCount,
			"max_users":       subscription.MaxUsers,
			"menu_items":      itemCount,
			"max_menu_items":  subscription.MaxMenuItems,
			"sales_today":     todaySales,
			"max_daily_sales": subscription.MaxDailySales,
		},
	})
}

type ChangePlanRequest struct {
	Plan string `json:"plan" binding:"required"`
}

// ChangePlan switches the tenant to another plan. Payment collection is
// handled out of band; this only applies the new limits.
func (h *Handler) ChangePlan(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var req ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, ok := Plans[req.Plan]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan"})
		return
	}

	var subscription database.Subscription
	if err := h.db.Where("business_id = ?", businessID).First(&subscription).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}

	subscription.Plan = plan.ID
	subscription.Status = "active"
	subscription.MaxUsers = plan.MaxUsers
	subscription.MaxMenuItems = plan.MaxMenuItems
	subscription.MaxDailySales = plan.MaxDailySales
	subscription.CurrentPeriodStart = time.Now()
	subscription.CurrentPeriodEnd = time.Now().AddDate(0, 1, 0)

	if err := h.db.Save(&subscription).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    subscription,
		"message": "Subscription updated successfully",
	})
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
