package restapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolio_tracker/internal/domain/entity"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg})
}

// statusFor maps registry errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrInvalidAddress),
		errors.Is(err, entity.ErrUnknownChain),
		errors.Is(err, entity.ErrInvalidAlert):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrWalletExists):
		return http.StatusConflict
	case errors.Is(err, entity.ErrWalletNotFound),
		errors.Is(err, entity.ErrAlertNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
