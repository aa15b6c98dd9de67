// server/internal/api/handlers/pickup_handler.go
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"oilwise-api-server/config"
	"oilwise-api-server/internal/api/middleware"
	"oilwise-api-server/internal/lifecycle"
	"oilwise-api-server/internal/models"
	"oilwise-api-server/internal/s3"
	"oilwise-api-server/internal/store"
)

type PickupHandler struct {
	Controller *lifecycle.Controller
	Requests   store.RequestStore
	Users      store.UserStore
	Uploader   *s3.Uploader
	Cfg        config.Config
}

type CreatePickupFormPayload struct {
	OilVolumeML float64  `json:"oilVolumeML" binding:"required,gt=0"`
	DaysUsed    int      `json:"daysUsed" binding:"required,gt=0"`
	OilType     string   `json:"oilType"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// pickupFormView is a request plus its requester-facing tracking line.
type pickupFormView struct {
	models.PickupRequest
	Tracking string `json:"tracking"`
}

func toViews(requests []models.PickupRequest) []pickupFormView {
	views := make([]pickupFormView, 0, len(requests))
	for i := range requests {
		views = append(views, pickupFormView{
			PickupRequest: requests[i],
			Tracking:      requests[i].Tracking(),
		})
	}
	return views
}

// writeLifecycleError maps the controller's error taxonomy onto HTTP codes.
func writeLifecycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, lifecycle.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Pickup form not found"})
	case errors.Is(err, lifecycle.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not the assigned collector for this form"})
	case errors.Is(err, lifecycle.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "This form was updated by someone else just now"})
	case errors.Is(err, lifecycle.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "This form no longer allows that action"})
	case errors.Is(err, store.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable, please retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update pickup form"})
	}
}

// CreatePickupForm submits a new used-oil pickup request. Coordinates are
// optional: a denied or timed-out browser geolocation prompt degrades to
// region-only matching, it never blocks the submission.
func (h *PickupHandler) CreatePickupForm(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)

	var payload CreatePickupFormPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requester, err := h.Users.FindByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load requester profile"})
		return
	}

	form, err := h.Controller.Create(c.Request.Context(), requester, lifecycle.CreateInput{
		OilVolumeML: payload.OilVolumeML,
		DaysUsed:    payload.DaysUsed,
		OilType:     payload.OilType,
		Latitude:    payload.Latitude,
		Longitude:   payload.Longitude,
	})
	if err != nil {
		writeLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, pickupFormView{PickupRequest: *form, Tracking: form.Tracking()})
}

// GetMyPickupForms returns the requester's own forms, any status.
func (h *PickupHandler) GetMyPickupForms(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)

	forms, err := h.Requests.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query pickup forms"})
		return
	}

	c.JSON(http.StatusOK, toViews(forms))
}

// GetOpenPickupForms returns the collector's worklist: forms in their state
// that are not collected, not rejected by them, and either offered to them or
// still unassigned.
func (h *PickupHandler) GetOpenPickupForms(c *gin.Context) {
	collectorID := c.GetString(middleware.CtxUserID)
	state := c.GetString(middleware.CtxUserState)

	forms, err := h.Requests.ListByState(c.Request.Context(), state)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query pickup forms"})
		return
	}

	visible := []models.PickupRequest{}
	for _, form := range forms {
		if form.Status == models.StatusCollected {
			continue
		}
		if form.IsRejectedBy(collectorID) {
			continue
		}
		if form.OwnerCollectorID != "" && form.OwnerCollectorID != collectorID {
			continue
		}
		visible = append(visible, form)
	}

	c.JSON(http.StatusOK, toViews(visible))
}

// GetAllPickupForms is the read-only oversight view, optionally filtered by
// status.
func (h *PickupHandler) GetAllPickupForms(c *gin.Context) {
	status := models.Status(c.Query("status"))

	forms, err := h.Requests.ListAll(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query pickup forms"})
		return
	}

	c.JSON(http.StatusOK, toViews(forms))
}

// AcceptPickupForm lets the assigned collector take the form. The guard is a
// single conditional update, so a concurrent accept by anyone else loses.
func (h *PickupHandler) AcceptPickupForm(c *gin.Context) {
	collectorID := c.GetString(middleware.CtxUserID)

	form, err := h.Controller.Accept(c.Request.Context(), c.Param("id"), collectorID)
	if err != nil {
		writeLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusOK, pickupFormView{PickupRequest: *form, Tracking: form.Tracking()})
}

// RejectPickupForm records the rejection and immediately reoffers the form to
// the next eligible collector.
func (h *PickupHandler) RejectPickupForm(c *gin.Context) {
	collectorID := c.GetString(middleware.CtxUserID)

	form, err := h.Controller.Reject(c.Request.Context(), c.Param("id"), collectorID)
	if err != nil {
		writeLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusOK, pickupFormView{PickupRequest: *form, Tracking: form.Tracking()})
}

// CollectPickupForm marks the oil as collected. Terminal.
func (h *PickupHandler) CollectPickupForm(c *gin.Context) {
	collectorID := c.GetString(middleware.CtxUserID)

	form, err := h.Controller.Collect(c.Request.Context(), c.Param("id"), collectorID)
	if err != nil {
		writeLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusOK, pickupFormView{PickupRequest: *form, Tracking: form.Tracking()})
}

// ReassignStalePickupForms sweeps forms that sat assigned-but-unanswered past
// the configured threshold and reoffers each one, exactly as if the silent
// collector had rejected it.
func (h *PickupHandler) ReassignStalePickupForms(c *gin.Context) {
	swept, err := h.Controller.ReassignStale(c.Request.Context(), h.Cfg.Assignment.StaleAfter)
	if err != nil {
		writeLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "reassigned": swept})
}

// reportSnapshot is the read-only export of one form for document rendering.
// No lifecycle semantics are involved.
type reportSnapshot struct {
	RequestID   string        `json:"requestID"`
	UserName    string        `json:"userName"`
	Email       string        `json:"email"`
	Phone       string        `json:"phone,omitempty"`
	Address     string        `json:"address,omitempty"`
	State       string        `json:"state"`
	OilVolumeML float64       `json:"oilVolumeML"`
	DaysUsed    int           `json:"daysUsed"`
	OilType     string        `json:"oilType,omitempty"`
	Status      models.Status `json:"status"`
	Tracking    string        `json:"tracking"`
	CreatedAt   time.Time     `json:"createdAt"`
	CollectedAt *time.Time    `json:"collectedAt,omitempty"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

func (h *PickupHandler) loadSnapshot(c *gin.Context) (*reportSnapshot, bool) {
	form, err := h.Requests.FindByRequestID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Pickup form not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve pickup form"})
		}
		return nil, false
	}

	// Requesters may export their own forms; the policy role may export any.
	role := middleware.CallerRole(c)
	if role != models.RolePolicy && form.UserID != c.GetString(middleware.CtxUserID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have permission to access this resource"})
		return nil, false
	}

	return &reportSnapshot{
		RequestID:   form.RequestID,
		UserName:    form.UserName,
		Email:       form.Email,
		Phone:       form.Phone,
		Address:     form.Address,
		State:       form.State,
		OilVolumeML: form.OilVolumeML,
		DaysUsed:    form.DaysUsed,
		OilType:     form.OilType,
		Status:      form.Status,
		Tracking:    form.Tracking(),
		CreatedAt:   form.CreatedAt,
		CollectedAt: form.CollectedAt,
		GeneratedAt: time.Now(),
	}, true
}

// GetPickupFormReport returns the snapshot for client-side rendering.
func (h *PickupHandler) GetPickupFormReport(c *gin.Context) {
	snapshot, ok := h.loadSnapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// UploadPickupFormReport renders the snapshot and stores it in S3, returning
// a shareable URL.
func (h *PickupHandler) UploadPickupFormReport(c *gin.Context) {
	if h.Uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Report storage is not configured"})
		return
	}

	snapshot, ok := h.loadSnapshot(c)
	if !ok {
		return
	}

	body, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render report"})
		return
	}

	objectKey := fmt.Sprintf("reports/%s.json", snapshot.RequestID)
	url, err := h.Uploader.UploadReport(c.Request.Context(), bytes.NewReader(body), objectKey, "application/json")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload report", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "url": url})
}
