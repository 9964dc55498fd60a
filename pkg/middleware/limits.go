package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dineflow/dineflow-backend/internal/businessday"
	"github.com/dineflow/dineflow-backend/pkg/database"
)

// LimitChecker enforces subscription plan limits on create endpoints.
type LimitChecker struct {
	db *gorm.DB
}

func NewLimitChecker(db *gorm.DB) *LimitChecker {
	return &LimitChecker{db: db}
}

// CheckMenuItemLimit blocks creating menu items beyond the plan limit.
func (l *LimitChecker) CheckMenuItemLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		businessID := c.MustGet("business_id").(uuid.UUID)

		var subscription database.Subscription
		if err := l.db.Where("business_id = ?", businessID).First(&subscription).Error; err != nil {
			c.Next()
			return
		}

		// 0 means unlimited
		if subscription.MaxMenuItems == 0 {
			c.Next()
			return
		}

		var itemCount int64
		l.db.Model(&database.MenuItem{}).
			Where("business_id = ? AND is_active = ?", businessID, true).
			Count(&itemCount)

		if int(itemCount) >= subscription.MaxMenuItems {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Menu item limit reached",
				"message": "Upgrade your plan to add more menu items.",
				"code":    "LIMIT_MENU_ITEMS",
				"current": itemCount,
				"limit":   subscription.MaxMenuItems,
			})
			return
		}

		c.Next()
	}
}

// CheckDailySalesLimit blocks checkouts beyond the plan's daily sale count.
// The day boundary follows the tenant's business-day start, not midnight.
func (l *LimitChecker) CheckDailySalesLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		businessID := c.MustGet("business_id").(uuid.UUID)

		var subscription database.Subscription
		if err := l.db.Where("business_id = ?", businessID).First(&subscription).Error; err != nil {
			c.Next()
			return
		}
		if subscription.MaxDailySales == 0 {
			c.Next()
			return
		}

		offset := l.dayOffset(businessID)
		from, to := businessday.Range(businessday.Day(time.Now(), offset), offset)

		var todayCount int64
		l.db.Model(&database.Sale{}).
			Where("business_id = ? AND created_at >= ? AND created_at < ?", businessID, from, to).
			Where("record_kind = ?", database.SaleKindOrder).
			Count(&todayCount)

		if int(todayCount) >= subscription.MaxDailySales {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Daily sales limit reached",
				"message": "Upgrade your plan for unlimited daily sales.",
				"code":    "LIMIT_DAILY_SALES",
				"current": todayCount,
				"limit":   subscription.MaxDailySales,
			})
			return
		}

		c.Next()
	}
}

// CheckUserLimit blocks creating users beyond the plan limit.
func (l *LimitChecker) CheckUserLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		businessID := c.MustGet("business_id").(uuid.UUID)

		var subscription database.Subscription
		if err := l.db.Where("business_id = ?", businessID).First(&subscription).Error; err != nil {
			c.Next()
			return
		}
		if subscription.MaxUsers == 0 {
			c.Next()
			return
		}

		var userCount int64
		l.db.Model(&database.User{}).Where("business_id = ?", businessID).Count(&userCount)

		if int(userCount) >= subscription.MaxUsers {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "User limit reached",
				"message": "Upgrade your plan to add more users.",
				"code":    "LIMIT_USERS",
				"current": userCount,
				"limit":   subscription.MaxUsers,
			})
			return
		}

		c.Next()
	}
}

func (l *LimitChecker) dayOffset(businessID uuid.UUID) time.Duration {
	var setting database.SystemSetting
	err := l.db.Where("business_id = ? AND key = ?", businessID, "new_day_start_time").
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
