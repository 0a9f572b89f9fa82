package handler

import (
	"net/http"

	"oticapos/internal/apierror"
	"oticapos/internal/dto"
	"oticapos/internal/middleware"
	"oticapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SettlementHandler struct{ svc service.SettlementService }

func NewSettlementHandler(svc service.SettlementService) *SettlementHandler {
	return &SettlementHandler{svc: svc}
}

// Settle godoc
// @Summary      Settle an order
// @Description  Commits the order's stock decrements atomically and optionally records the sale payment in the same transaction. Idempotent: a second call is a no-op.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                 true  "Order UUID"
// @Param        body body dto.SettleOrderRequest false "Optional charge"
// @Success      200  {object} dto.SettlementResult
// @Failure      409  {object} apierror.APIError
// @Router       /v1/orders/{id}/settle [post]
func (h *SettlementHandler) Settle(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid ID"))
		return
	}
	// Body is optional: no body means settle without charging.
	var req dto.SettleOrderRequest
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	operatorID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid operator id in token"))
		return
	}

	resp, err := h.svc.Settle(c.Request.Context(), operatorID, orderID, req.Charge)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Reverse godoc
// @Summary      Reverse a settled order
// @Description  Restores the stock decremented by a prior settlement. Safe to repeat; a never-settled order is a no-op.
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Order UUID"
// @Success      204
// @Failure      404 {object} apierror.APIError
// @Router       /v1/orders/{id}/reverse [post]
func (h *SettlementHandler) Reverse(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid ID"))
		return
	}
	if err := h.svc.Reverse(c.Request.Context(), orderID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
