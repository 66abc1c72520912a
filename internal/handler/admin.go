package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/flashmart-api/internal/dto"
	"github.com/flicky/flashmart-api/internal/middleware"
	"github.com/flicky/flashmart-api/internal/realtime"
	"github.com/flicky/flashmart-api/internal/service"
)

// AdminOrderHandler serves the admin order desk. Route groups apply the permission checks.
type AdminOrderHandler struct {
	orderService *service.OrderService
	hub          *realtime.Hub
}

func NewAdminOrderHandler(orderService *service.OrderService, hub *realtime.Hub) *AdminOrderHandler {
	return &AdminOrderHandler{orderService: orderService, hub: hub}
}

func (h *AdminOrderHandler) ListOrders(c *gin.Context) {
	items, err := h.orderService.ListAllOrders(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// UpdateStatus reads the status from a JSON body, falling back to the ?status= query parameter.
func (h *AdminOrderHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateOrderStatusRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}
	if req.Status == "" {
		req.Status = c.Query("status")
	}

	id, _ := middleware.GetIdentity(c)
	resp, err := h.orderService.SetStatus(c.Request.Context(), id, c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Order status updated to " + string(resp.Status),
		"order":   resp,
	})
}

func (h *AdminOrderHandler) Live(c *gin.Context) {
	h.hub.ServeWS(c)
}
