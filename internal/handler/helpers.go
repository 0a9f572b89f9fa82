package handler

import (
	"errors"
	"net/http"
	"reflect"

	"oticapos/internal/apierror"
	"oticapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails —
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// respondError translates service sentinels into HTTP status codes. Anything
// unrecognized is pushed onto the Gin error stack for the ErrorHandler
// middleware, which logs it and answers with an opaque 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrPaymentNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrClientNotFound):
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
	case errors.Is(err, service.ErrSessionAlreadyOpen),
		errors.Is(err, service.ErrSessionNotOpen),
		errors.Is(err, service.ErrSessionAlreadyClosed),
		errors.Is(err, service.ErrNoOpenSession),
		errors.Is(err, service.ErrPaymentNotPending),
		errors.Is(err, service.ErrOrderCancelled),
		errors.Is(err, service.ErrOutstandingDebt),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	case errors.Is(err, service.ErrOverpayment),
		errors.Is(err, service.ErrInsufficientFunds),
		errors.Is(err, service.ErrInvalidAttribution):
		c.JSON(http.StatusUnprocessableEntity, apierror.New(err.Error()))
	case errors.Is(err, service.ErrOperationTimeout):
		c.JSON(http.StatusGatewayTimeout, apierror.New(err.Error()))
	default:
		_ = c.Error(err)
	}
}
