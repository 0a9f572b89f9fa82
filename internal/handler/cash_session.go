package handler

import (
	"net/http"
	"strconv"

	"oticapos/internal/apierror"
	"oticapos/internal/dto"
	"oticapos/internal/middleware"
	"oticapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CashSessionHandler struct {
	svc      service.CashSessionService
	payments service.PaymentService
}

func NewCashSessionHandler(svc service.CashSessionService, payments service.PaymentService) *CashSessionHandler {
	return &CashSessionHandler{svc: svc, payments: payments}
}

// Open godoc
// @Summary Opens a new cash session
// @Tags cash-sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.OpenSessionRequest true "Opening data"
// @Success 201 {object} dto.SessionResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/cash-sessions [post]
func (h *CashSessionHandler) Open(c *gin.Context) {
	var req dto.OpenSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	operatorID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid operator id in token"))
		return
	}

	resp, err := h.svc.Open(c.Request.Context(), operatorID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Close godoc
// @Summary Closes the open cash session with a counted balance
// @Tags cash-sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CloseSessionRequest true "Closing declaration"
// @Success 200 {object} dto.SessionResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/cash-sessions/close [post]
func (h *CashSessionHandler) Close(c *gin.Context) {
	var req dto.CloseSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	operatorID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid operator id in token"))
		return
	}

	resp, err := h.svc.Close(c.Request.Context(), operatorID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetCurrent returns the currently open cash session, if any.
func (h *CashSessionHandler) GetCurrent(c *gin.Context) {
	resp, err := h.svc.GetCurrentOpen(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if resp == nil {
		c.JSON(http.StatusNotFound, apierror.New("No open session"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History returns a paginated list of past cash sessions.
func (h *CashSessionHandler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	resp, err := h.svc.History(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Reconcile godoc
// @Summary Replays a session's payments against its stored balance
// @Tags cash-sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} dto.ReconcileResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/cash-sessions/{id}/reconcile [get]
func (h *CashSessionHandler) Reconcile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid ID"))
		return
	}
	resp, err := h.payments.Reconcile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListPayments returns the payments ledger of one session, oldest first.
func (h *CashSessionHandler) ListPayments(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid ID"))
		return
	}
	resp, err := h.payments.ListBySession(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
