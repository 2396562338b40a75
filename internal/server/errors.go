package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	advancedomain "github.com/smallbiznis/backoffice/internal/advance/domain"
	commitmentdomain "github.com/smallbiznis/backoffice/internal/commitment/domain"
	feedomain "github.com/smallbiznis/backoffice/internal/fee/domain"
	invoicedomain "github.com/smallbiznis/backoffice/internal/invoice/domain"
	partydomain "github.com/smallbiznis/backoffice/internal/party/domain"
	"github.com/smallbiznis/backoffice/internal/sequence"
	serviceorderdomain "github.com/smallbiznis/backoffice/internal/serviceorder/domain"
	taxdomain "github.com/smallbiznis/backoffice/internal/tax/domain"
	"github.com/smallbiznis/backoffice/pkg/validation"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string                  `json:"type"`
	Code    string                  `json:"code,omitempty"`
	Message string                  `json:"message"`
	Errors  []validation.FieldError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return validation.New("request", "invalid_request", "invalid request")
}

type errorClass struct {
	status int
	typ    string
}

var (
	classNotFound   = errorClass{http.StatusNotFound, "not_found"}
	classConflict   = errorClass{http.StatusConflict, "conflict"}
	classRejected   = errorClass{http.StatusUnprocessableEntity, "business_rule_violation"}
	classState      = errorClass{http.StatusConflict, "invalid_state_transition"}
	classValidation = errorClass{http.StatusBadRequest, "validation_error"}
	classConfig     = errorClass{http.StatusServiceUnavailable, "configuration_missing"}
	classForbidden  = errorClass{http.StatusForbidden, "forbidden"}
)

// errorClasses is checked in order; the first sentinel matched wins.
var errorClasses = []struct {
	err   error
	class errorClass
}{
	{ErrNotFound, classNotFound},
	{gorm.ErrRecordNotFound, classNotFound},
	{partydomain.ErrClientNotFound, classNotFound},
	{partydomain.ErrSupplierNotFound, classNotFound},
	{commitmentdomain.ErrContractNotFound, classNotFound},
	{commitmentdomain.ErrLineNotFound, classNotFound},
	{serviceorderdomain.ErrOrderNotFound, classNotFound},
	{taxdomain.ErrNotFound, classNotFound},
	{feedomain.ErrNotFound, classNotFound},
	{invoicedomain.ErrInvoiceNotFound, classNotFound},
	{invoicedomain.ErrOrderNotOnInvoice, classNotFound},
	{advancedomain.ErrAdvanceNotFound, classNotFound},

	{ErrForbidden, classForbidden},
	{advancedomain.ErrNotRequester, classForbidden},

	{taxdomain.ErrConfigurationMissing, classConfig},
	{feedomain.ErrConfigurationMissing, classConfig},
	{feedomain.ErrBandMissing, classConfig},

	{serviceorderdomain.ErrInvalidStateTransition, classState},
	{invoicedomain.ErrInvalidStateTransition, classState},
	{advancedomain.ErrInvalidStateTransition, classState},

	{commitmentdomain.ErrConcurrentUpdate, classConflict},
	{serviceorderdomain.ErrConcurrentUpdate, classConflict},
	{invoicedomain.ErrConcurrentUpdate, classConflict},
	{advancedomain.ErrConcurrentUpdate, classConflict},
	{taxdomain.ErrConcurrentPublish, classConflict},
	{feedomain.ErrConcurrentPublish, classConflict},
	{sequence.ErrCodeGenerationExhausted, classConflict},

	{commitmentdomain.ErrInsufficientBalance, classRejected},
	{commitmentdomain.ErrInsufficientCapacity, classRejected},
	{commitmentdomain.ErrLineInactive, classRejected},
	{commitmentdomain.ErrContractInactive, classRejected},
	{serviceorderdomain.ErrOrderInactive, classRejected},
	{serviceorderdomain.ErrOrderClaimed, classRejected},
	{serviceorderdomain.ErrOrderUnavailable, classRejected},
	{serviceorderdomain.ErrLineTypeMismatch, classRejected},
	{serviceorderdomain.ErrContractClientMismatch, classRejected},
	{invoicedomain.ErrOrdersUnavailable, classRejected},
	{invoicedomain.ErrInvoiceInactive, classRejected},
	{invoicedomain.ErrLinePaid, classRejected},
	{invoicedomain.ErrAdvanceExceedsRemaining, classRejected},
	{advancedomain.ErrInsufficientPendingAmount, classRejected},
	{advancedomain.ErrInvalidRange, classRejected},
	{feedomain.ErrPaymentTimingRequired, classRejected},

	{ErrInvalidRequest, classValidation},
	{commitmentdomain.ErrInvalidAmount, classValidation},
	{commitmentdomain.ErrInvalidLineType, classValidation},
	{commitmentdomain.ErrInvalidWindow, classValidation},
	{partydomain.ErrInvalidTaxCategories, classValidation},
	{taxdomain.ErrUnknownCategory, classValidation},
	{taxdomain.ErrDuplicateCategory, classValidation},
	{feedomain.ErrNoBands, classValidation},
	{feedomain.ErrInvalidBand, classValidation},
	{feedomain.ErrInvalidFeeBase, classValidation},
	{feedomain.ErrInvalidFeeMode, classValidation},
	{invoicedomain.ErrInvalidCounterpart, classValidation},
	{invoicedomain.ErrInvalidPeriod, classValidation},
	{invoicedomain.ErrInvalidAmount, classValidation},
	{advancedomain.ErrInvalidAmount, classValidation},
}

// rootSentinel returns the first known sentinel err wraps, or nil.
func rootSentinel(err error) (error, errorClass) {
	for _, entry := range errorClasses {
		if errors.Is(err, entry.err) {
			return entry.err, entry.class
		}
	}
	return nil, errorClass{}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr, ok := validation.As(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	sentinel, class := rootSentinel(err)
	if sentinel == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	payload := errorPayload{
		Type:    class.typ,
		Code:    sentinel.Error(),
		Message: err.Error(),
	}
	if class.status == http.StatusNotFound {
		payload.Message = "not found"
	}
	return class.status, payload
}

// classifyErrorForLog feeds the request logger with the same type and code
// the client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Code
	if code == "" && len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}
