package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/flashmart-api/internal/authz"
	"github.com/flicky/flashmart-api/internal/model"
	"github.com/flicky/flashmart-api/internal/service"
)

// writeError maps service errors onto status codes. Unknown errors become a bare 500.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrAddressNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": sentinelMessage(err)})
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, model.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUserAlreadyExists):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": sentinelMessage(err)})
	case errors.Is(err, authz.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// sentinelMessage drops any wrapping context so lookups do not leak internals.
func sentinelMessage(err error) string {
	for _, target := range []error{
		service.ErrProductNotFound,
		service.ErrOrderNotFound,
		service.ErrAddressNotFound,
		service.ErrInvalidCredentials,
		service.ErrUnauthorized,
		service.ErrInvalidToken,
		service.ErrTokenExpired,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
