package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
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

type CreateStaffInput struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required,oneof=manager cashier"`
}

type UpdateStaffInput struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	IsActive *bool  `json:"is_active"`
}

// ListStaff returns all staff members for the tenant
func (h *Handler) ListStaff(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var staff []database.User
	if err := h.db.Where("business_id = ? AND role != 'owner'", businessID).
		Order("created_at DESC").
		Find(&staff).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch staff"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": staff})
}

// CreateStaff adds a new staff member. The plan's user limit is enforced
// by middleware before this runs.
func (h *Handler) CreateStaff(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	var input CreateStaffInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing database.User
	if h.db.Where("email = ?", input.Email).First(&existing).Error == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	staff := database.User{
		BusinessID:   businessID,
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
		Name:         input.Name,
		Role:         input.Role,
		IsActive:     true,
	}
	if err := h.db.Create(&staff).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create staff"})
		return
	}

	h.logger.LogCreate(c, "staff", staff.ID, map[string]interface{}{
		"name":  staff.Name,
		"email": staff.Email,
		"role":  staff.Role,
	})
	c.JSON(http.StatusCreated, gin.H{"data": staff})
}

// UpdateStaff modifies staff details
func (h *Handler) UpdateStaff(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)
	id := c.Param("id")

	var staff database.User
	if err := h.db.Where("id = ? AND business_id = ?", id, businessID).First(&staff).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Staff not found"})
		return
	}
	if staff.Role == "owner" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot edit owner account"})
		return
	}

	oldValues := map[string]interface{}{
		"name":      staff.Name,
		"role":      staff.Role,
		"is_active": staff.IsActive,
	}

	var input UpdateStaffInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.Name != "" {
		staff.Name = input.Name
	}
	if input.Role != "" {
		if input.Role != "manager" && input.Role != "cashier" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
			return
		}
		staff.Role = input.Role
	}
	if input.IsActive != nil {
		staff.IsActive = *input.IsActive
	}

	if err := h.db.Save(&staff).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update staff"})
		return
	}

	h.logger.LogUpdate(c, "staff", staff.ID, oldValues, map[string]interface{}{
		"name":      staff.Name,
		"role":      staff.Role,
		"is_active": staff.IsActive,
	})
	c.JSON(http.StatusOK, gin.H{"data": staff})
}

// DeleteStaff removes a staff member
func (h *Handler) DeleteStaff(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)
	id := c.Param("id")

	var staff database.User
	if err := h.db.Where("id = ? AND business_id = ?", id, businessID).First(&staff).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Staff not found"})
		return
	}
	if staff.Role == "owner" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete owner account"})
		return
	}

	if err := h.db.Delete(&staff).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete staff"})
		return
	}

	h.logger.LogDelete(c, "staff", staff.ID, map[string]interface{}{
		"name":  staff.Name,
		"email": staff.Email,
		"role":  staff.Role,
	})
	c.JSON(http.StatusOK, gin.H{"message": "Staff deleted"})
}

// GetAuditLogs returns the most recent audit entries for the tenant
func (h *Handler) GetAuditLogs(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)

	query := h.db.Where("business_id = ?", businessID)
	if action := c.Query("action"); action != "" {
		query = query.Where("action = ?", action)
	}
	if entityType := c.Query("entity_type"); entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}

	var logs []database.AuditLog
	if err := query.Order("created_at DESC").Limit(100).Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch audit logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}
