package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"invox/internal/confidence"
	"invox/internal/domain"
	"invox/internal/port"
	"invox/internal/upload"
)

// ParseStatus distinguishes the two non-error outcomes of a parse.
type ParseStatus string

const (
	// ParseAccepted means extraction succeeded and the confidence gate passed.
	ParseAccepted ParseStatus = "accepted"
	// ParseRejected means extraction succeeded but the document's confidence
	// was too low. This is a verdict about the input, not a system failure.
	ParseRejected ParseStatus = "rejected"
)

// ParseInput is the DTO for parse requests.
type ParseInput struct {
	Content      []byte
	DeclaredType string
	Filename     string
}

// ParseResult carries either the accepted invoice or the rejection verdict.
type ParseResult struct {
	Status  ParseStatus
	Invoice *domain.Invoice
	Verdict confidence.Verdict
}

// ParseMetrics receives parse outcome observations.
type ParseMetrics interface {
	RecordParse(status string, format domain.SourceFormat, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordParse(string, domain.SourceFormat, time.Duration) {}

// ParseService defines the invoice parsing contract.
type ParseService interface {
	Parse(ctx context.Context, input ParseInput) (*ParseResult, error)
}

type parseService struct {
	validator    *upload.Validator
	extractor    port.InvoiceExtractor
	gate         *confidence.Gate
	parseTimeout time.Duration
	metrics      ParseMetrics
	logger       *slog.Logger
}

// NewParseService creates the parse orchestrator. A nil metrics recorder
// disables outcome reporting.
func NewParseService(
	validator *upload.Validator,
	extractor port.InvoiceExtractor,
	gate *confidence.Gate,
	parseTimeout time.Duration,
	metrics ParseMetrics,
	logger *slog.Logger,
) ParseService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &parseService{
		validator:    validator,
		extractor:    extractor,
		gate:         gate,
		parseTimeout: parseTimeout,
		metrics:      metrics,
		logger:       logger,
	}
}

// Parse sequences validation, extraction, and confidence evaluation. Every
// failure maps to exactly one domain error; no partial invoice is ever
// returned, and no cross-stage recovery is attempted.
func (s *parseService) Parse(ctx context.Context, input ParseInput) (*ParseResult, error) {
	start := time.Now()

	if s.parseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.parseTimeout)
		defer cancel()
	}

	vf, err := s.validator.Validate(input.Content, input.DeclaredType, input.Filename)
	if err != nil {
		s.metrics.RecordParse("invalid_input", "", time.Since(start))
		return nil, err
	}

	format := domain.DetectSourceFormat(vf.ResolvedType)
	s.logger.Info("parsing invoice",
		"filename", vf.Filename,
		"resolved_type", vf.ResolvedType,
		"format", format,
		"size_bytes", len(vf.Content),
	)

	inv, err := s.extractor.Extract(ctx, vf.Content, vf.Filename, vf.ResolvedType)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			s.metrics.RecordParse("timeout", format, time.Since(start))
			return nil, fmt.Errorf("%w: %v", domain.ErrParseTimeout, err)
		}
		s.metrics.RecordParse("extraction_failed", format, time.Since(start))
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}

	verdict := s.gate.Evaluate(inv)
	if !verdict.Accepted {
		s.logger.Warn("invoice rejected by confidence gate",
			"filename", vf.Filename,
			"reason", verdict.RejectionReason,
			"overall_confidence", verdict.OverallConfidence,
		)
		s.metrics.RecordParse("rejected", format, time.Since(start))
		return &ParseResult{Status: ParseRejected, Verdict: verdict}, nil
	}

	inv.Meta.OverallConfidence = math.Round(verdict.OverallConfidence*100) / 100
	if len(verdict.Warnings) > 0 {
		inv.Meta.Warning = strings.Join(verdict.Warnings, "; ")
	}

	s.logger.Info("invoice accepted",
		"filename", vf.Filename,
		"overall_confidence", inv.Meta.OverallConfidence,
		"elapsed", time.Since(start),
	)
	s.metrics.RecordParse("accepted", format, time.Since(start))

	return &ParseResult{Status: ParseAccepted, Invoice: inv, Verdict: verdict}, nil
}
