package handler

import (
	"net/http"

	"oticapos/internal/apierror"
	"oticapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type LegacyClientHandler struct{ svc service.DebtService }

func NewLegacyClientHandler(svc service.DebtService) *LegacyClientHandler {
	return &LegacyClientHandler{svc: svc}
}

// GetBalance godoc
// @Summary Current debt balance of a legacy client
// @Tags legacy-clients
// @Produce json
// @Security BearerAuth
// @Param id path string true "Client UUID"
// @Success 200 {object} dto.DebtBalanceResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/legacy-clients/{id}/debt [get]
func (h *LegacyClientHandler) GetBalance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid ID"))
		return
	}
	resp, err := h.svc.GetBalance(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History godoc
// @Summary Debt payment history of a legacy client
// @Tags legacy-clients
// @Produce json
// @Security BearerAuth
// @Param id path string true "Client UUID"
// @Success 200 {object} dto.DebtHistoryResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/legacy-clients/{id}/debt/history [get]
func (h *LegacyClientHandler) History(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid ID"))
		return
	}
	resp, err := h.svc.PaymentHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ToggleStatus godoc
// @Summary Toggle a legacy client between active and inactive
// @Description Deactivation requires the debt to be fully paid off.
// @Tags legacy-clients
// @Produce json
// @Security BearerAuth
// @Param id path string true "Client UUID"
// @Success 200 {object} dto.DebtBalanceResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/legacy-clients/{id}/status [post]
func (h *LegacyClientHandler) ToggleStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid ID"))
		return
	}
	resp, err := h.svc.ToggleStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
