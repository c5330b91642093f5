package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tokenalert_backend/middleware"
	"tokenalert_backend/models"
	"tokenalert_backend/services/alerts"
	"tokenalert_backend/services/monitor"
)

// AlertController handles alert CRUD and on-demand checks
type AlertController struct {
	registry *alerts.Registry
	loop     *monitor.Loop
}

// NewAlertController creates a new alert controller
func NewAlertController(registry *alerts.Registry, loop *monitor.Loop) *AlertController {
	return &AlertController{registry: registry, loop: loop}
}

// CreateAlertRequest is the POST /api/alerts payload
type CreateAlertRequest struct {
	Symbol          string  `json:"symbol" binding:"required"`
	Kind            string  `json:"kind" binding:"required"`
	TargetValue     float64 `json:"target_value" binding:"required"`
	IsRepeatable    *bool   `json:"is_repeatable"`
	CooldownMinutes int     `json:"cooldown_minutes"`
}

// ListAlerts returns the authenticated user's alerts in creation order
// GET /api/alerts
func (ac *AlertController) ListAlerts(c *gin.Context) {
	userID, err := middleware.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	listed := ac.registry.ListByUser(userID)
	c.JSON(http.StatusOK, gin.H{
		"alerts": listed,
		"count":  len(listed),
	})
}

// CreateAlert registers a new alert for the authenticated user
// POST /api/alerts
func (ac *AlertController) CreateAlert(c *gin.Context) {
	userID, err := middleware.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	repeatable := true
	if req.IsRepeatable != nil {
		repeatable = *req.IsRepeatable
	}

	alert, err := ac.registry.Create(alerts.CreateInput{
		UserID:          userID,
		Tier:            middleware.GetTierFromContext(c),
		Symbol:          req.Symbol,
		Kind:            models.AlertKind(req.Kind),
		TargetValue:     decimal.NewFromFloat(req.TargetValue),
		IsRepeatable:    repeatable,
		CooldownMinutes: req.CooldownMinutes,
	})
	if err != nil {
		respondRegistryError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"alert": alert})
}

// DeleteAlert removes one of the user's alerts
// DELETE /api/alerts/:id
func (ac *AlertController) DeleteAlert(c *gin.Context) {
	alert, ok := ac.ownedAlert(c)
	if !ok {
		return
	}
	if err := ac.registry.Delete(alert.ID); err != nil {
		respondRegistryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "alert deleted", "id": alert.ID})
}

// PauseAlert suspends evaluation of one of the user's alerts
// POST /api/alerts/:id/pause
func (ac *AlertController) PauseAlert(c *gin.Context) {
	alert, ok := ac.ownedAlert(c)
	if !ok {
		return
	}
	if err := ac.registry.Pause(alert.ID); err != nil {
		respondRegistryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "alert paused", "id": alert.ID})
}

// ResumeAlert reactivates one of the user's paused alerts
// POST /api/alerts/:id/resume
func (ac *AlertController) ResumeAlert(c *gin.Context) {
	alert, ok := ac.ownedAlert(c)
	if !ok {
		return
	}
	if err := ac.registry.Resume(alert.ID); err != nil {
		respondRegistryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "alert resumed", "id": alert.ID})
}

// CheckAlerts re-evaluates alerts immediately instead of waiting for
// the next cycle. With ?symbol= only that symbol's alerts are checked.
// POST /api/alerts/check
func (ac *AlertController) CheckAlerts(c *gin.Context) {
	if symbol := c.Query("symbol"); symbol != "" {
		checked := ac.loop.CheckSymbol(symbol)
		c.JSON(http.StatusOK, gin.H{"message": "check complete", "symbol": symbol, "checked": checked})
		return
	}
	ac.loop.RunCycle()
	c.JSON(http.StatusOK, gin.H{"message": "check complete"})
}

// ownedAlert resolves the :id param to an alert owned by the caller
func (ac *AlertController) ownedAlert(c *gin.Context) (models.Alert, bool) {
	userID, err := middleware.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return models.Alert{}, false
	}
	id := c.Param("id")
	alert, ok := ac.registry.GetByID(id)
	if !ok || alert.UserID != userID {
		// hide other users' alert ids
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "alert not found"})
		return models.Alert{}, false
	}
	return alert, true
}

// respondRegistryError maps registry sentinels to HTTP statuses
func respondRegistryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, alerts.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
	case errors.Is(err, alerts.ErrQuotaExceeded):
		c.JSON(http.StatusForbidden, gin.H{"error": "quota_exceeded", "message": err.Error()})
	case errors.Is(err, alerts.ErrCapacityExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "capacity_exceeded", "message": err.Error()})
	case errors.Is(err, alerts.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
	case errors.Is(err, alerts.ErrStorageFailure):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failure", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
	}
}
