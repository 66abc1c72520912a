package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/flashmart-api/internal/dto"
	"github.com/flicky/flashmart-api/internal/service"
)

type PincodeHandler struct {
	pincodeService *service.PincodeService
}

func NewPincodeHandler(pincodeService *service.PincodeService) *PincodeHandler {
	return &PincodeHandler{pincodeService: pincodeService}
}

func (h *PincodeHandler) Check(c *gin.Context) {
	var req dto.PincodeCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.pincodeService.Check(c.Request.Context(), req.Pincode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PincodeHandler) Upsert(c *gin.Context) {
	var req dto.PincodeUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	pincode := c.Param("pincode")
	if err := h.pincodeService.Upsert(c.Request.Context(), pincode, req); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Pincode " + pincode + " saved"})
}
