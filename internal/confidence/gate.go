package confidence

import (
	"fmt"
	"log/slog"

	"invox/internal/config"
	"invox/internal/domain"
)

// Verdict is the outcome of confidence evaluation. A rejection is a normal
// negative result about the input document, not a system failure.
type Verdict struct {
	Accepted          bool
	RejectionReason   string
	OverallConfidence float64
	Warnings          []string
}

// criticalFields enumerates the fields whose absence or low confidence
// blocks acceptance. Accessors instead of dot-path strings: a typo here is a
// compile error, not a silent "field missing".
var criticalFields = []struct {
	path string
	get  func(*domain.Invoice) *domain.ScoredField
}{
	{"supplier.name", func(inv *domain.Invoice) *domain.ScoredField { return inv.Supplier.Name }},
	{"customer.name", func(inv *domain.Invoice) *domain.ScoredField { return inv.Customer.Name }},
	{"invoice.number", func(inv *domain.Invoice) *domain.ScoredField { return inv.Summary.Number }},
	{"invoice.issue_date", func(inv *domain.Invoice) *domain.ScoredField { return inv.Summary.IssueDate }},
	{"invoice.due_date", func(inv *domain.Invoice) *domain.ScoredField { return inv.Summary.DueDate }},
	{"invoice.total_amount", func(inv *domain.Invoice) *domain.ScoredField { return inv.Summary.TotalAmount }},
}

// Gate decides whether an extracted invoice is trustworthy enough to return.
// Pure besides its log lines; it performs no I/O and never retries.
type Gate struct {
	rejectBelow float64
	warnBelow   float64
	logger      *slog.Logger
}

// NewGate creates a Gate from confidence config. Zero thresholds fall back
// to 0.50 (rejection) and 0.90 (warning).
func NewGate(cfg *config.ConfidenceConfig, logger *slog.Logger) *Gate {
	rejectBelow := cfg.RejectionThreshold
	if rejectBelow <= 0 {
		rejectBelow = 0.50
	}
	warnBelow := cfg.WarningThreshold
	if warnBelow <= 0 {
		warnBelow = 0.90
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		rejectBelow: rejectBelow,
		warnBelow:   warnBelow,
		logger:      logger,
	}
}

// Evaluate checks every critical field against the rejection threshold and
// computes the overall confidence as the unweighted mean across all scored
// fields in the tree. Exactly the rejection threshold passes; warnings cover
// [rejectBelow, warnBelow) and never block acceptance.
func (g *Gate) Evaluate(inv *domain.Invoice) Verdict {
	var warnings []string

	for _, cf := range criticalFields {
		field := cf.get(inv)
		if field == nil {
			reason := fmt.Sprintf("critical field %q is missing or not extracted", cf.path)
			g.logger.Error("invoice rejected", "reason", reason)
			return Verdict{
				Accepted:          false,
				RejectionReason:   reason,
				OverallConfidence: 0.0,
			}
		}

		if field.Confidence < g.rejectBelow {
			reason := fmt.Sprintf("critical field %q has insufficient confidence (%.2f < %.2f)",
				cf.path, field.Confidence, g.rejectBelow)
			g.logger.Error("invoice rejected", "reason", reason)
			return Verdict{
				Accepted:          false,
				RejectionReason:   reason,
				OverallConfidence: overallConfidence(inv),
			}
		}

		if field.Confidence < g.warnBelow {
			warning := fmt.Sprintf("field %q has moderate confidence (%.2f); manual review may be needed",
				cf.path, field.Confidence)
			warnings = append(warnings, warning)
			g.logger.Warn("moderate confidence field", "field", cf.path, "confidence", field.Confidence)
		}
	}

	overall := overallConfidence(inv)
	g.logger.Info("invoice passed confidence validation",
		"overall_confidence", overall,
		"warnings", len(warnings),
	)

	return Verdict{
		Accepted:          true,
		OverallConfidence: overall,
		Warnings:          warnings,
	}
}

func overallConfidence(inv *domain.Invoice) float64 {
	scores := inv.ConfidenceScores()
	if len(scores) == 0 {
		return 0.0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
