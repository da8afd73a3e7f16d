package restapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
)

// APIPortfolioResponse определяет структуру ответа для эндпоинта портфеля.
type APIPortfolioResponse struct {
	Snapshot *entity.PortfolioSnapshot `json:"snapshot"`
	Loading  bool                      `json:"loading"`
	Error    string                    `json:"error,omitempty"`
}

// PortfolioHandler обрабатывает HTTP запросы, связанные с портфелем.
type PortfolioHandler struct {
	portfolioService port.PortfolioService
	logger           *zap.Logger
}

// NewPortfolioHandler создает новый экземпляр PortfolioHandler.
func NewPortfolioHandler(ps port.PortfolioService, logger *zap.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: ps, logger: logger}
}

func (h *PortfolioHandler) response() APIPortfolioResponse {
	return APIPortfolioResponse{
		Snapshot: h.portfolioService.Snapshot(),
		Loading:  h.portfolioService.InFlight(),
		Error:    h.portfolioService.LastError(),
	}
}

// GetPortfolioHandler returns the latest snapshot. Snapshot is null until
// the first cycle finished.
func (h *PortfolioHandler) GetPortfolioHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.response())
}

// RefreshPortfolioHandler runs a full cycle and returns its result. The cycle
// is not cancelled when the client goes away.
func (h *PortfolioHandler) RefreshPortfolioHandler(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())
	err := h.portfolioService.Refresh(ctx)
	switch {
	case errors.Is(err, entity.ErrCycleInFlight):
		abortWithError(c, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("Manual refresh failed", zap.Error(err))
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, entity.PortfolioErrorMessage)
		return
	}
	c.JSON(http.StatusOK, h.response())
}

// HealthHandler reports liveness and whether a snapshot is available.
func (h *PortfolioHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"hasSnapshot": h.portfolioService.Snapshot() != nil,
		"inFlight":    h.portfolioService.InFlight(),
	})
}
