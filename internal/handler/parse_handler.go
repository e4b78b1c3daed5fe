package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"invox/internal/service"
)

// ParseHandler handles invoice parse requests.
type ParseHandler struct {
	svc    service.ParseService
	logger *slog.Logger
}

// NewParseHandler creates a new ParseHandler.
func NewParseHandler(svc service.ParseService, logger *slog.Logger) *ParseHandler {
	return &ParseHandler{svc: svc, logger: logger}
}

// Parse handles POST /api/v1/parse. The invoice document arrives as a
// multipart form field named "file"; a successful parse returns the
// structured invoice, a confidence rejection returns 422.
func (h *ParseHandler) Parse(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "multipart form field 'file' is required")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "could not open uploaded file")
		return
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "could not read uploaded file")
		return
	}

	input := service.ParseInput{
		Content:      content,
		DeclaredType: fileHeader.Header.Get("Content-Type"),
		Filename:     fileHeader.Filename,
	}

	result, err := h.svc.Parse(c.Request.Context(), input)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	if result.Status == service.ParseRejected {
		RespondError(c, http.StatusUnprocessableEntity, "LOW_CONFIDENCE", result.Verdict.RejectionReason)
		return
	}

	c.JSON(http.StatusOK, result.Invoice)
}
