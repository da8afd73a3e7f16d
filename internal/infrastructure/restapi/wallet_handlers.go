package restapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolio_tracker/internal/domain/entity"
)

// WalletRegistry is the wallet list the API edits.
type WalletRegistry interface {
	Add(ctx context.Context, address string, chains []string) (entity.Wallet, error)
	Remove(ctx context.Context, address string) error
	List() []entity.Wallet
}

// WalletHandler serves /api/wallets.
type WalletHandler struct {
	wallets WalletRegistry
}

func NewWalletHandler(wallets WalletRegistry) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

type addWalletRequest struct {
	Address string   `json:"address"`
	Chains  []string `json:"chains"`
}

// ListWallets handles GET /api/wallets.
func (h *WalletHandler) ListWallets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"wallets": h.wallets.List()})
}

// AddWallet handles POST /api/wallets.
func (h *WalletHandler) AddWallet(c *gin.Context) {
	var req addWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	w, err := h.wallets.Add(c.Request.Context(), req.Address, req.Chains)
	if err != nil {
		abortWithError(c, statusFor(err), err.Error())
		return
	}
	c.JSON(http.StatusCreated, w)
}

// RemoveWallet handles DELETE /api/wallets/:address.
func (h *WalletHandler) RemoveWallet(c *gin.Context) {
	if err := h.wallets.Remove(c.Request.Context(), c.Param("address")); err != nil {
		abortWithError(c, statusFor(err), err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}
