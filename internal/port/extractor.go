package port

import (
	"context"

	"invox/internal/domain"
)

// InvoiceExtractor abstracts LLM-based invoice extraction.
type InvoiceExtractor interface {
	// Extract turns validated file content into a structured invoice.
	// mimeType must be the resolved type from upload validation.
	Extract(ctx context.Context, content []byte, filename, mimeType string) (*domain.Invoice, error)
}
