package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/visadesk/internal/audit/domain"
	authdomain "github.com/smallbiznis/visadesk/internal/auth/domain"
	"github.com/smallbiznis/visadesk/internal/auth/token"
	"github.com/smallbiznis/visadesk/internal/authorization"
	catalogdomain "github.com/smallbiznis/visadesk/internal/catalog/domain"
	"github.com/smallbiznis/visadesk/internal/docnumber"
	invoicedomain "github.com/smallbiznis/visadesk/internal/invoice/domain"
	orderdomain "github.com/smallbiznis/visadesk/internal/order/domain"
	paymentdomain "github.com/smallbiznis/visadesk/internal/payment/domain"
	"github.com/smallbiznis/visadesk/internal/ratelimit"
	"github.com/smallbiznis/visadesk/internal/storage"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

// Errors outside the invalid_* naming that still describe a bad request body.
var validationErrs = []error{
	ErrInvalidRequest,
	authdomain.ErrWeakPassword,
	authdomain.ErrWrongPassword,
	paymentdomain.ErrAmountExceedsUnpaid,
	paymentdomain.ErrVoucherTooLarge,
	storage.ErrInvalidPath,
}

var unauthorizedErrs = []error{
	ErrUnauthorized,
	authdomain.ErrUnauthorized,
	authdomain.ErrInvalidCredentials,
	token.ErrInvalidToken,
}

var forbiddenErrs = []error{
	ErrForbidden,
	authorization.ErrForbidden,
	authdomain.ErrUserDisabled,
}

var conflictErrs = []error{
	orderdomain.ErrOrderNotEditable,
	orderdomain.ErrOrderAlreadyCancelled,
	orderdomain.ErrOrderCompleted,
	invoicedomain.ErrInvoicePaid,
	invoicedomain.ErrOrderInvoiced,
	invoicedomain.ErrOrderCancelled,
	invoicedomain.ErrTotalBelowPaid,
	invoicedomain.ErrInvoiceNotDeletable,
	paymentdomain.ErrPaymentNotPending,
	paymentdomain.ErrApprovalExceedsUnpaid,
	authdomain.ErrUserExists,
	authdomain.ErrSelfAction,
	authorization.ErrRoleExists,
	authorization.ErrRoleInUse,
	authorization.ErrSystemRole,
	catalogdomain.ErrPassportNoTaken,
	catalogdomain.ErrQuoteExists,
	catalogdomain.ErrAgentPriceExists,
	catalogdomain.ErrPassportHasVisas,
	catalogdomain.ErrProductHasQuotes,
	catalogdomain.ErrSupplierHasQuotes,
	catalogdomain.ErrAgentHasPrices,
	catalogdomain.ErrQuoteHasPrices,
	docnumber.ErrSequenceExhausted,
	gorm.ErrDuplicatedKey,
}

var notFoundErrs = []error{
	ErrNotFound,
	gorm.ErrRecordNotFound,
	orderdomain.ErrOrderNotFound,
	orderdomain.ErrOrderItemNotFound,
	invoicedomain.ErrInvoiceNotFound,
	invoicedomain.ErrLinkNotFound,
	paymentdomain.ErrPaymentNotFound,
	authdomain.ErrUserNotFound,
	authorization.ErrRoleNotFound,
	catalogdomain.ErrPassportNotFound,
	catalogdomain.ErrVisaNotFound,
	catalogdomain.ErrSupplierNotFound,
	catalogdomain.ErrAgentNotFound,
	catalogdomain.ErrProductNotFound,
	catalogdomain.ErrQuoteNotFound,
	catalogdomain.ErrAgentPriceNotFound,
}

// Field names for validation codes that do not follow invalid_<field>.
var validationFields = map[string]string{
	authdomain.ErrWeakPassword.Error():           "new_password",
	authdomain.ErrWrongPassword.Error():          "old_password",
	paymentdomain.ErrAmountExceedsUnpaid.Error(): "amount",
	paymentdomain.ErrVoucherTooLarge.Error():     "voucher",
	storage.ErrInvalidPath.Error():               "voucher",
	auditdomain.ErrInvalidTimeRange.Error():      "end_at",
}

// ErrorHandlingMiddleware renders the last handler error. With exposeInternal
// set, 500 responses carry the error text.
func ErrorHandlingMiddleware(exposeInternal bool) gin.HandlerFunc {
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
		if status == http.StatusInternalServerError && exposeInternal {
			payload.Message = lastErr.Err.Error()
		}
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
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isAny(err, unauthorizedErrs):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isAny(err, forbiddenErrs):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: forbiddenMessage(err),
		}
	case isAny(err, notFoundErrs):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: codeMessage(err),
		}
	case isAny(err, conflictErrs):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: codeMessage(err),
		}
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many attempts, try again later",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger with the mapped error class
// and the sentinel code.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	if payload.Type == "internal_error" {
		return payload.Type, ""
	}
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, err.Error()
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	if isAny(err, validationErrs) {
		return true
	}
	// Every domain package names its input errors invalid_<field>.
	return strings.HasPrefix(err.Error(), "invalid_") && !errors.Is(err, token.ErrInvalidToken) &&
		!errors.Is(err, authdomain.ErrInvalidCredentials)
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if field, ok := validationFields[code]; ok {
		return field
	}
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case authdomain.ErrWeakPassword.Error():
		return "password is too short"
	case authdomain.ErrWrongPassword.Error():
		return "old password does not match"
	case paymentdomain.ErrAmountExceedsUnpaid.Error():
		return "amount exceeds the unpaid balance"
	case paymentdomain.ErrVoucherTooLarge.Error():
		return "voucher file is too large"
	default:
		return "invalid value"
	}
}

func forbiddenMessage(err error) string {
	if errors.Is(err, authdomain.ErrUserDisabled) {
		return "user is disabled"
	}
	return "forbidden"
}

// codeMessage turns a snake_case sentinel into a readable message.
func codeMessage(err error) string {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrNotFound) {
		return "not found"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "conflict"
	}
	return strings.ReplaceAll(err.Error(), "_", " ")
}
