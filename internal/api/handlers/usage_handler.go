package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"oilwise-api-server/internal/api/middleware"
	"oilwise-api-server/internal/models"
	"oilwise-api-server/internal/store"
)

type UsageHandler struct {
	Usage store.UsageStore
	Users store.UserStore
}

type CreateUsageEntryPayload struct {
	Date  string  `json:"date" binding:"required"`
	OilML float64 `json:"oilML" binding:"required,gt=0"`
}

// CreateUsageEntry logs one day of cooking-oil consumption for the caller.
func (h *UsageHandler) CreateUsageEntry(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)

	var payload CreateUsageEntryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := time.Parse("2006-01-02", payload.Date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be formatted YYYY-MM-DD"})
		return
	}

	user, err := h.Users.FindByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user profile"})
		return
	}

	entry := &models.UsageEntry{
		EntryID:   fmt.Sprintf("USE-%s", uuid.New().String()[:8]),
		UserID:    userID,
		State:     user.State,
		District:  user.District,
		Date:      payload.Date,
		OilML:     payload.OilML,
		CreatedAt: time.Now(),
	}

	if err := h.Usage.Insert(c.Request.Context(), entry); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create usage entry"})
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// GetMyUsageEntries returns the caller's log, newest first.
func (h *UsageHandler) GetMyUsageEntries(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)

	entries, err := h.Usage.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query usage entries"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// GetUsageSummary aggregates consumption per state and district for the
// policy dashboard.
func (h *UsageHandler) GetUsageSummary(c *gin.Context) {
	byState, byDistrict, err := h.Usage.SummaryByRegion(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate usage"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"byState": byState, "byDistrict": byDistrict})
}
