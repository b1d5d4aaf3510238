package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Kind classifies an application error independently of its message.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindValidation       Kind = "validation"
	KindInvalidRating    Kind = "invalid_rating"
	KindEmptyCart        Kind = "empty_cart"
	KindInvalidSignature Kind = "invalid_signature"
	KindMalformedPayload Kind = "malformed_payload"
	KindNotEligible      Kind = "not_eligible"
	KindUnauthorized     Kind = "unauthorized"
	KindForbidden        Kind = "forbidden"
	KindConflict         Kind = "conflict"
	KindProvider         Kind = "provider"
	KindInternal         Kind = "internal"
)

// Error represents an application error
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels below work with errors.Is
// even when the message was specialised.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error
func New(kind Kind, code int, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// With returns a copy of the sentinel carrying a specific message.
func (e *Error) With(message string) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: message, Err: e.Err}
}

// Wrap returns a copy of the sentinel wrapping cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: cause}
}

// Common error types
var (
	ErrNotFound     = New(KindNotFound, http.StatusNotFound, "Not found", nil)
	ErrValidation   = New(KindValidation, http.StatusBadRequest, "Validation error", nil)
	ErrUnauthorized = New(KindUnauthorized, http.StatusUnauthorized, "Unauthorized", nil)
	ErrForbidden    = New(KindForbidden, http.StatusForbidden, "Forbidden", nil)
	ErrConflict     = New(KindConflict, http.StatusConflict, "Conflict", nil)
	ErrInternal     = New(KindInternal, http.StatusInternalServerError, "Internal server error", nil)
)

// Business logic error types
var (
	ErrInvalidRating  = New(KindInvalidRating, http.StatusBadRequest, "Rating must be between 1 and 5", nil)
	ErrEmptyCart      = New(KindEmptyCart, http.StatusBadRequest, "Your cart is empty", nil)
	ErrNotEligible    = New(KindNotEligible, http.StatusForbidden, "Only customers who bought this product can review it", nil)
	ErrOrderNotOpen   = New(KindConflict, http.StatusConflict, "Order is already paid", nil)
	ErrPaymentFailed  = New(KindProvider, http.StatusBadGateway, "Payment provider error", nil)
	ErrInvalidVoucher = New(KindNotFound, http.StatusNotFound, "Invalid or expired voucher", nil)
)

// Webhook error types
var (
	ErrInvalidSignature = New(KindInvalidSignature, http.StatusBadRequest, "Invalid webhook signature", nil)
	ErrMalformedPayload = New(KindMalformedPayload, http.StatusBadRequest, "Malformed webhook payload", nil)
)

// From converts any error into an *Error, defaulting to an internal error.
func From(err error) *Error {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal.Wrap(err)
}

// Respond writes err as a JSON error body with its status code. Internal
// errors are logged and their cause is never echoed to the client.
func Respond(c *gin.Context, err error) {
	appErr := From(err)
	if appErr.Kind == KindInternal {
		zap.L().Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(appErr.Code, gin.H{"error": appErr.Message})
}

// Error middleware for Gin
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			Respond(c, c.Errors.Last().Err)
		}
	}
}
