package handler

import (
	"net/http"

	"oticapos/internal/apierror"
	"oticapos/internal/dto"
	"oticapos/internal/middleware"
	"oticapos/internal/service"
	"oticapos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PaymentHandler struct {
	svc        service.PaymentService
	dispatcher *worker.Dispatcher
}

func NewPaymentHandler(svc service.PaymentService, dispatcher *worker.Dispatcher) *PaymentHandler {
	return &PaymentHandler{svc: svc, dispatcher: dispatcher}
}

// Record godoc
// @Summary      Record a payment in the open cash session
// @Description  Sales and debt payments apply their ledger effects atomically. Gateway methods (pix) are created pending and complete on the gateway callback.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.RecordPaymentRequest true "Payment detail"
// @Success      201  {object} dto.PaymentResponse
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.APIError
// @Router       /v1/payments [post]
func (h *PaymentHandler) Record(c *gin.Context) {
	var req dto.RecordPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	operatorID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid operator id in token"))
		return
	}

	resp, err := h.svc.Record(c.Request.Context(), operatorID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Cancel godoc
// @Summary      Cancel a pending payment
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Payment UUID"
// @Success      200 {object} dto.PaymentResponse
// @Failure      409 {object} apierror.APIError
// @Router       /v1/payments/{id} [delete]
func (h *PaymentHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid ID"))
		return
	}
	resp, err := h.svc.Cancel(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GatewayCallback godoc
// @Summary      Gateway webhook for pending payment outcomes
// @Description  Acknowledges immediately and applies the result asynchronously, so the gateway gets its 200 even when the DB is momentarily busy.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        body body dto.GatewayCallbackRequest true "Gateway result"
// @Success      202
// @Failure      400 {object} apierror.APIError
// @Router       /v1/payments/gateway-callback [post]
func (h *PaymentHandler) GatewayCallback(c *gin.Context) {
	var req dto.GatewayCallbackRequest
	if !bindAndValidate(c, &req) {
		return
	}

	payload := worker.ConfirmationJobPayload{
		PaymentID: req.PaymentID,
		Result:    req.Result,
	}
	if err := h.dispatcher.EnqueueGatewayConfirmation(c.Request.Context(), payload); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusAccepted)
}
