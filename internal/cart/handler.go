package cart

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Get returns the caller's held cart
func (h *Handler) Get(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)
	userID := c.MustGet("user_id").(uuid.UUID)

	held, err := h.store.Get(c.Request.Context(), businessID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": held})
}

// Save replaces the caller's held cart
func (h *Handler) Save(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)
	userID := c.MustGet("user_id").(uuid.UUID)

	var req struct {
		Lines []Line `json:"lines" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, line := range req.Lines {
		if line.Qty.Sign() <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Quantities must be positive"})
			return
		}
	}

	held := Cart{Lines: req.Lines}
	if err := h.store.Save(c.Request.Context(), businessID, userID, held); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save cart"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": held})
}

// Clear drops the caller's held cart
func (h *Handler) Clear(c *gin.Context) {
	businessID := c.MustGet("business_id").(uuid.UUID)
	userID := c.MustGet("user_id").(uuid.UUID)

	if err := h.store.Clear(c.Request.Context(), businessID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cart"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}
