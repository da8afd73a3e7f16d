package restapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
)

// AlertManager is the alert list the API edits.
type AlertManager interface {
	Add(ctx context.Context, in entity.PriceAlert) (entity.PriceAlert, error)
	Remove(ctx context.Context, id string) error
	Toggle(ctx context.Context, id string) (entity.PriceAlert, error)
	Update(ctx context.Context, id string, upd entity.AlertUpdate) (entity.PriceAlert, error)
	List() []entity.PriceAlert
	Evaluate(snap *entity.PortfolioSnapshot) []entity.AlertTrigger
}

// AlertHandler serves /api/alerts.
type AlertHandler struct {
	alerts    AlertManager
	portfolio port.PortfolioService
}

func NewAlertHandler(alerts AlertManager, portfolio port.PortfolioService) *AlertHandler {
	return &AlertHandler{alerts: alerts, portfolio: portfolio}
}

type addAlertRequest struct {
	Symbol            string  `json:"symbol"`
	HighThreshold     float64 `json:"highThreshold"`
	LowThreshold      float64 `json:"lowThreshold"`
	CostBasis         float64 `json:"costBasis"`
	PriceTarget       float64 `json:"priceTarget"`
	EmailNotification bool    `json:"emailNotification"`
}

// ListAlerts handles GET /api/alerts.
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alerts": h.alerts.List()})
}

// AddAlert handles POST /api/alerts.
func (h *AlertHandler) AddAlert(c *gin.Context) {
	var req addAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	a, err := h.alerts.Add(c.Request.Context(), entity.PriceAlert{
		Symbol:            req.Symbol,
		HighThreshold:     req.HighThreshold,
		LowThreshold:      req.LowThreshold,
		CostBasis:         req.CostBasis,
		PriceTarget:       req.PriceTarget,
		EmailNotification: req.EmailNotification,
	})
	if err != nil {
		abortWithError(c, statusFor(err), err.Error())
		return
	}
	c.JSON(http.StatusCreated, a)
}

// RemoveAlert handles DELETE /api/alerts/:id.
func (h *AlertHandler) RemoveAlert(c *gin.Context) {
	if err := h.alerts.Remove(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, statusFor(err), err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleAlert handles POST /api/alerts/:id/toggle.
func (h *AlertHandler) ToggleAlert(c *gin.Context) {
	a, err := h.alerts.Toggle(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, statusFor(err), err.Error())
		return
	}
	c.JSON(http.StatusOK, a)
}

// UpdateAlert handles PATCH /api/alerts/:id.
func (h *AlertHandler) UpdateAlert(c *gin.Context) {
	var upd entity.AlertUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	a, err := h.alerts.Update(c.Request.Context(), c.Param("id"), upd)
	if err != nil {
		abortWithError(c, statusFor(err), err.Error())
		return
	}
	c.JSON(http.StatusOK, a)
}

// TriggeredAlerts handles GET /api/alerts/triggered.
func (h *AlertHandler) TriggeredAlerts(c *gin.Context) {
	triggers := h.alerts.Evaluate(h.portfolio.Snapshot())
	if triggers == nil {
		triggers = []entity.AlertTrigger{}
	}
	c.JSON(http.StatusOK, gin.H{"triggered": triggers})
}
