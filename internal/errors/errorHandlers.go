package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeBadRequest          ErrorType = "BAD_REQUEST"
	ErrorTypeUnauthorized        ErrorType = "UNAUTHORIZED"
	ErrorTypePaymentRequired     ErrorType = "PAYMENT_REQUIRED"
	ErrorTypeForbidden           ErrorType = "FORBIDDEN"
	ErrorTypeNotFound            ErrorType = "NOT_FOUND"
	ErrorTypeConflict            ErrorType = "CONFLICT"
	ErrorTypeUnprocessable       ErrorType = "UNPROCESSABLE_ENTITY"
	ErrorTypeInternalServerError ErrorType = "INTERNAL_SERVER_ERROR"
	ErrorTypeBadGateway          ErrorType = "BAD_GATEWAY"
	ErrorTypeServiceUnavailable  ErrorType = "SERVICE_UNAVAILABLE"
)

// CustomError represents a custom error with associated HTTP status code and type
type CustomError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Internal   error
}

// Error implements the error interface
func (e *CustomError) Error() string {
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Internal
}

func newError(errType ErrorType, message string, statusCode int, internal error) *CustomError {
	return &CustomError{
		Type:       errType,
		Message:    message,
		StatusCode: statusCode,
		Internal:   internal,
	}
}

// New400Error creates a new bad request error
func New400Error(message string) *CustomError {
	return newError(ErrorTypeBadRequest, message, http.StatusBadRequest, nil)
}

// New401Error creates a new unauthorized error
func New401Error() *CustomError {
	return newError(ErrorTypeUnauthorized, "Unauthorized access", http.StatusUnauthorized, nil)
}

func New402Error(message string) *CustomError {
	return newError(ErrorTypePaymentRequired, message, http.StatusPaymentRequired, nil)
}

// New403Error creates a new forbidden error
func New403Error() *CustomError {
	return newError(ErrorTypeForbidden, "Access forbidden", http.StatusForbidden, nil)
}

// New404Error creates a new not found error
func New404Error(message string) *CustomError {
	return newError(ErrorTypeNotFound, message, http.StatusNotFound, nil)
}

func New409Error(message string) *CustomError {
	return newError(ErrorTypeConflict, message, http.StatusConflict, nil)
}

func New422Error(message string) *CustomError {
	return newError(ErrorTypeUnprocessable, message, http.StatusUnprocessableEntity, nil)
}

// New500Error creates a new internal server error
func New500Error(internal error) *CustomError {
	return newError(ErrorTypeInternalServerError, "An unexpected error occurred", http.StatusInternalServerError, internal)
}

// New502Error is returned when an upstream model provider fails.
func New502Error(message string, internal error) *CustomError {
	return newError(ErrorTypeBadGateway, message, http.StatusBadGateway, internal)
}

func New503Error(message string, internal error) *CustomError {
	return newError(ErrorTypeServiceUnavailable, message, http.StatusServiceUnavailable, internal)
}

// HandleError handles the custom error and sends an appropriate JSON response
func HandleError(c *gin.Context, err error) {
	var customErr *CustomError
	var ok bool

	if customErr, ok = err.(*CustomError); !ok {
		customErr = New500Error(err)
	}

	if customErr.StatusCode >= http.StatusInternalServerError {
		log.Error().
			Err(customErr.Internal).
			Str("type", string(customErr.Type)).
			Str("url", c.Request.URL.String()).
			Msg("Request failed")
	}

	c.AbortWithStatusJSON(customErr.StatusCode, gin.H{
		"error": gin.H{
			"type":    customErr.Type,
			"message": customErr.Message,
		},
	})
}
