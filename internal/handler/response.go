package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"invox/internal/domain"
)

// ErrorResponse is the envelope for all error responses. Successful parses
// return the invoice document directly, without a wrapper.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail holds a stable machine-readable code and a human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, ErrorResponse{Error: ErrorDetail{Code: code, Message: msg}})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, domain.ErrEmptyFile):
		return http.StatusBadRequest, "EMPTY_FILE", "uploaded file is empty"
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "file exceeds maximum allowed size"
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE_TYPE", "file type is not supported"
	case errors.Is(err, domain.ErrTypeMismatch):
		return http.StatusUnsupportedMediaType, "TYPE_MISMATCH", "file content does not match its declared type"
	case errors.Is(err, domain.ErrParseTimeout):
		return http.StatusGatewayTimeout, "PARSE_TIMEOUT", "invoice parsing timed out"
	case errors.Is(err, domain.ErrExtractionFailed):
		return http.StatusServiceUnavailable, "EXTRACTION_FAILED", "invoice extraction failed"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, logger *slog.Logger, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		logger.Error("request failed",
			"request_id", c.GetString("request_id"),
			"code", code,
			"error", err,
		)
	}
	RespondError(c, status, code, msg)
}
