package service_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invox/internal/confidence"
	"invox/internal/config"
	"invox/internal/domain"
	"invox/internal/service"
	"invox/internal/upload"
)

var pdfContent = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF")

type fakeExtractor struct {
	invoice *domain.Invoice
	err     error
	calls   int
	delay   time.Duration
}

func (f *fakeExtractor) Extract(ctx context.Context, content []byte, filename, mimeType string) (*domain.Invoice, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.invoice, nil
}

func field(v domain.Value, conf float64) *domain.ScoredField {
	return &domain.ScoredField{Value: v, Confidence: conf}
}

func extractedInvoice(conf float64) *domain.Invoice {
	return &domain.Invoice{
		Supplier: domain.Supplier{Name: field(domain.StringValue("Acme Corp"), conf)},
		Customer: domain.Customer{Name: field(domain.StringValue("Globex Inc"), conf)},
		Summary: domain.Summary{
			Number:      field(domain.StringValue("INV-001"), conf),
			IssueDate:   field(domain.StringValue("2025-01-15"), conf),
			DueDate:     field(domain.StringValue("2025-02-15"), conf),
			TotalAmount: field(domain.FloatValue(5000.00), conf),
		},
	}
}

func newTestService(extractor *fakeExtractor, parseTimeout time.Duration) service.ParseService {
	logger := slog.New(slog.DiscardHandler)
	validator := upload.NewValidator(&config.UploadConfig{
		MaxFileSizeBytes: 5 * 1024 * 1024,
		AllowedTypes:     config.DefaultAllowedTypes,
	}, logger)
	gate := confidence.NewGate(&config.ConfidenceConfig{
		RejectionThreshold: 0.50,
		WarningThreshold:   0.90,
	}, logger)
	return service.NewParseService(validator, extractor, gate, parseTimeout, nil, logger)
}

func pdfInput() service.ParseInput {
	return service.ParseInput{
		Content:      pdfContent,
		DeclaredType: "application/pdf",
		Filename:     "invoice.pdf",
	}
}

func TestParseService_Parse_Accepted(t *testing.T) {
	extractor := &fakeExtractor{invoice: extractedInvoice(0.95)}
	svc := newTestService(extractor, 0)

	result, err := svc.Parse(context.Background(), pdfInput())

	require.NoError(t, err)
	assert.Equal(t, service.ParseAccepted, result.Status)
	require.NotNil(t, result.Invoice)
	assert.InDelta(t, 0.95, result.Invoice.Meta.OverallConfidence, 0.001)
	assert.Empty(t, result.Invoice.Meta.Warning)
	assert.Equal(t, 1, extractor.calls)
}

func TestParseService_Parse_AcceptedWithWarnings(t *testing.T) {
	extractor := &fakeExtractor{invoice: extractedInvoice(0.75)}
	svc := newTestService(extractor, 0)

	result, err := svc.Parse(context.Background(), pdfInput())

	require.NoError(t, err)
	assert.Equal(t, service.ParseAccepted, result.Status)
	assert.Contains(t, result.Invoice.Meta.Warning, "moderate confidence")
}

func TestParseService_Parse_RejectedByGate(t *testing.T) {
	extractor := &fakeExtractor{invoice: extractedInvoice(0.30)}
	svc := newTestService(extractor, 0)

	result, err := svc.Parse(context.Background(), pdfInput())

	// A rejection is a result, not an error.
	require.NoError(t, err)
	assert.Equal(t, service.ParseRejected, result.Status)
	assert.Nil(t, result.Invoice)
	assert.NotEmpty(t, result.Verdict.RejectionReason)
}

func TestParseService_Parse_ValidationFailureSkipsExtraction(t *testing.T) {
	extractor := &fakeExtractor{invoice: extractedInvoice(0.95)}
	svc := newTestService(extractor, 0)

	result, err := svc.Parse(context.Background(), service.ParseInput{
		Content:      nil,
		DeclaredType: "application/pdf",
		Filename:     "empty.pdf",
	})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrEmptyFile)
	assert.Equal(t, 0, extractor.calls)
}

func TestParseService_Parse_ExtractionFailure(t *testing.T) {
	extractor := &fakeExtractor{err: errors.New("model unavailable")}
	svc := newTestService(extractor, 0)

	result, err := svc.Parse(context.Background(), pdfInput())

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}

func TestParseService_Parse_Timeout(t *testing.T) {
	extractor := &fakeExtractor{
		invoice: extractedInvoice(0.95),
		delay:   200 * time.Millisecond,
	}
	svc := newTestService(extractor, 20*time.Millisecond)

	result, err := svc.Parse(context.Background(), pdfInput())

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrParseTimeout)
}

func TestParseService_Parse_DeadlineErrorMapsToTimeout(t *testing.T) {
	extractor := &fakeExtractor{err: context.DeadlineExceeded}
	svc := newTestService(extractor, 0)

	result, err := svc.Parse(context.Background(), pdfInput())

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrParseTimeout)
}

func TestParseService_Parse_OverallConfidenceRounded(t *testing.T) {
	inv := extractedInvoice(0.95)
	// Mean of 0.95 x5 and 0.82: 5.57/6 = 0.92833... -> 0.93.
	inv.Summary.TotalAmount.Confidence = 0.82
	extractor := &fakeExtractor{invoice: inv}
	svc := newTestService(extractor, 0)

	result, err := svc.Parse(context.Background(), pdfInput())

	require.NoError(t, err)
	assert.Equal(t, 0.93, result.Invoice.Meta.OverallConfidence)
}
