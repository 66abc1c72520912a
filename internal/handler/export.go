package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tealeg/xlsx"

	"github.com/flicky/flashmart-api/internal/dto"
)

const timeLayout = "2006-01-02 15:04:05"

var exportHeaders = []string{
	"Order ID", "User ID", "Status", "Total", "Items", "Payment",
	"Name", "City", "Pincode", "Created At", "Estimated Delivery",
}

// Export writes the admin order list as orders.xlsx, newest first. It holds the same
// rows as GET /api/admin/orders, so at most ORDER_ADMIN_LIST_LIMIT orders.
func (h *AdminOrderHandler) Export(c *gin.Context) {
	orders, err := h.orderService.ListAllOrders(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	file, err := buildOrderWorkbook(orders)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build export"})
		return
	}

	c.Header("Content-Disposition", "attachment; filename=orders.xlsx")
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Expires", "0")

	if err := file.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write export"})
		return
	}
}

func buildOrderWorkbook(orders []dto.OrderResponse) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return nil, err
	}

	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().SetValue(h)
	}

	for _, o := range orders {
		units := 0
		for _, item := range o.Items {
			units += item.Quantity
		}

		row := sheet.AddRow()
		row.AddCell().SetValue(o.ID)
		row.AddCell().SetValue(o.UserID)
		row.AddCell().SetValue(string(o.Status))
		row.AddCell().SetValue(o.Total.StringFixed(2))
		row.AddCell().SetValue(strconv.Itoa(units))
		row.AddCell().SetValue(o.PaymentMethod)
		row.AddCell().SetValue(o.Address.FullName)
		row.AddCell().SetValue(o.Address.City)
		row.AddCell().SetValue(o.Address.Pincode)
		row.AddCell().SetValue(o.CreatedAt.Format(timeLayout))
		row.AddCell().SetValue(o.EstimatedDelivery.Format(timeLayout))
	}
	return file, nil
}
