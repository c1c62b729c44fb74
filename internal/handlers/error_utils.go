package handlers

import (
	"errors"
	"net/http"

	contextutils "supportapp/internal/utils"

	"github.com/gin-gonic/gin"
)

// StandardizeHTTPError creates consistent HTTP error responses with structured error information
func StandardizeHTTPError(c *gin.Context, statusCode int, message, details string) {
	var errorCode contextutils.ErrorCode
	var severity contextutils.SeverityLevel

	switch statusCode {
	case http.StatusBadRequest:
		errorCode = contextutils.ErrorCodeInvalidInput
		severity = contextutils.SeverityWarn
	case http.StatusRequestEntityTooLarge:
		errorCode = contextutils.ErrorCodeRequestTooLarge
		severity = contextutils.SeverityWarn
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		errorCode = contextutils.ErrorCodeInvalidInput
		severity = contextutils.SeverityInfo
	case http.StatusServiceUnavailable:
		errorCode = contextutils.ErrorCodeServiceUnavailable
		severity = contextutils.SeverityError
	default:
		errorCode = contextutils.ErrorCodeInternalError
		severity = contextutils.SeverityError
	}

	appErr := contextutils.NewAppError(errorCode, severity, message, details)
	c.JSON(statusCode, errorBody(appErr))
}

// StandardizeAppError sends the ticket response envelope for an AppError
func StandardizeAppError(c *gin.Context, err *contextutils.AppError) {
	c.JSON(mapErrorCodeToHTTPStatus(err.Code), errorBody(err))
}

// HandleAppError handles any error and sends the appropriate HTTP response.
// Only user-facing messages leave the server; details stay in the logs.
func HandleAppError(c *gin.Context, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		StandardizeAppError(c, contextutils.ErrRequestTooLarge)
		return
	}
	if appErr, ok := err.(*contextutils.AppError); ok {
		StandardizeAppError(c, appErr)
		return
	}
	StandardizeHTTPError(c, http.StatusInternalServerError, "Internal server error", "")
}

func errorBody(err *contextutils.AppError) gin.H {
	return gin.H{
		"success":   false,
		"error":     contextutils.UserMessage(err),
		"code":      err.Code,
		"retryable": contextutils.IsRetryable(err),
	}
}

// mapErrorCodeToHTTPStatus maps AppError codes to appropriate HTTP status codes
func mapErrorCodeToHTTPStatus(code contextutils.ErrorCode) int {
	switch code {
	// 4xx Client Errors
	case contextutils.ErrorCodeInvalidInput, contextutils.ErrorCodeMissingRequired,
		contextutils.ErrorCodeInvalidFormat, contextutils.ErrorCodeValidationFailed,
		contextutils.ErrorCodeConsentRequired, contextutils.ErrorCodeAttachmentTooLarge,
		contextutils.ErrorCodeAttachmentInvalidType, contextutils.ErrorCodeTooManyAttachments:
		return http.StatusBadRequest

	case contextutils.ErrorCodeInvalidTransition, contextutils.ErrorCodeSubmissionInFlight:
		return http.StatusConflict

	case contextutils.ErrorCodeRequestTooLarge:
		return http.StatusRequestEntityTooLarge

	// 5xx Server Errors
	case contextutils.ErrorCodeTrackerRequestFailed, contextutils.ErrorCodeSubmissionFailed:
		return http.StatusBadGateway

	case contextutils.ErrorCodeServiceUnavailable:
		return http.StatusServiceUnavailable

	case contextutils.ErrorCodeTimeout:
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}
