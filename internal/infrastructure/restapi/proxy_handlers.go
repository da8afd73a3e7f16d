package restapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/utils"
)

// ProxyHandler serves the pass-through upstream endpoints.
type ProxyHandler struct {
	upstream     port.UpstreamProxy
	transactions port.TransactionSource
	prices       port.PriceCache
	logger       *zap.Logger
}

// NewProxyHandler creates a new instance of ProxyHandler.
func NewProxyHandler(upstream port.UpstreamProxy, txs port.TransactionSource, prices port.PriceCache, logger *zap.Logger) *ProxyHandler {
	return &ProxyHandler{upstream: upstream, transactions: txs, prices: prices, logger: logger}
}

type rawFetch func(ctx context.Context, address, chain string) ([]byte, error)

// passThrough validates the address, calls fetch and writes the upstream
// payload unchanged. Upstream failures become 500 with failMsg.
func (h *ProxyHandler) passThrough(c *gin.Context, fetch rawFetch, failMsg string) {
	address := c.Param("address")
	if err := entity.ValidateAddress(address); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	chain := c.DefaultQuery("chain", entity.DefaultChain)

	body, err := fetch(c.Request.Context(), address, chain)
	if err != nil {
		h.logger.Error(failMsg, zap.String("address", address), zap.String("chain", chain), zap.Error(err))
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, failMsg)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// GetBalance handles GET /api/balance/:address?chain=
func (h *ProxyHandler) GetBalance(c *gin.Context) {
	h.passThrough(c, h.upstream.Balance, "Failed to fetch balance")
}

// GetTokens handles GET /api/tokens/:address?chain=
func (h *ProxyHandler) GetTokens(c *gin.Context) {
	h.passThrough(c, h.upstream.Tokens, "Failed to fetch tokens")
}

// GetWalletTokens handles GET /api/wallet/:address/tokens?chain=
func (h *ProxyHandler) GetWalletTokens(c *gin.Context) {
	h.passThrough(c, h.upstream.WalletTokens, "Failed to fetch wallet tokens")
}

// GetWalletHistory handles GET /api/wallet/:address/history?chain=
func (h *ProxyHandler) GetWalletHistory(c *gin.Context) {
	h.passThrough(c, h.upstream.WalletHistory, "Failed to fetch wallet history")
}

// GetTransactions handles GET /api/transactions/:address
func (h *ProxyHandler) GetTransactions(c *gin.Context) {
	address := c.Param("address")
	if err := entity.ValidateAddress(address); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	history, err := h.transactions.FetchTransactions(c.Request.Context(), address)
	if err != nil {
		h.logger.Error("Failed to fetch transactions", zap.String("address", address), zap.Error(err))
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "Failed to fetch transactions")
		return
	}
	if history.Normal == nil {
		history.Normal = []entity.Transaction{}
	}
	if history.Internal == nil {
		history.Internal = []entity.Transaction{}
	}
	c.JSON(http.StatusOK, history)
}

// GetPrices handles GET /api/prices?ids=a,b&vs_currencies=usd. Prices come
// from the price cache, so an upstream outage still answers with stale or
// fallback values.
func (h *ProxyHandler) GetPrices(c *gin.Context) {
	vs := strings.ToLower(c.DefaultQuery("vs_currencies", "usd"))
	if vs != "usd" {
		abortWithError(c, http.StatusBadRequest, "only vs_currencies=usd is supported")
		return
	}
	ids := utils.UniqueSorted(strings.Split(c.Query("ids"), ","))
	if len(ids) == 0 {
		abortWithError(c, http.StatusBadRequest, "ids query parameter is required")
		return
	}

	table := h.prices.GetPrices(c.Request.Context(), ids)
	out := make(map[string]map[string]float64, len(ids))
	for _, id := range ids {
		if p, ok := table[id]; ok {
			out[id] = map[string]float64{"usd": p}
		}
	}
	c.JSON(http.StatusOK, out)
}
