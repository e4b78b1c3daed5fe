package confidence_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invox/internal/confidence"
	"invox/internal/config"
	"invox/internal/domain"
)

func newTestGate() *confidence.Gate {
	cfg := &config.ConfidenceConfig{
		RejectionThreshold: 0.50,
		WarningThreshold:   0.90,
	}
	return confidence.NewGate(cfg, slog.New(slog.DiscardHandler))
}

func field(v domain.Value, conf float64) *domain.ScoredField {
	return &domain.ScoredField{Value: v, Confidence: conf}
}

// invoiceWithConfidences builds an invoice whose six critical fields carry
// the given confidences, in order: supplier.name, customer.name,
// invoice.number, issue_date, due_date, total_amount.
func invoiceWithConfidences(c [6]float64) *domain.Invoice {
	return &domain.Invoice{
		Supplier: domain.Supplier{
			Name: field(domain.StringValue("Acme Corp"), c[0]),
		},
		Customer: domain.Customer{
			Name: field(domain.StringValue("Globex Inc"), c[1]),
		},
		Summary: domain.Summary{
			Number:      field(domain.StringValue("INV-001"), c[2]),
			IssueDate:   field(domain.StringValue("2025-01-15"), c[3]),
			DueDate:     field(domain.StringValue("2025-02-15"), c[4]),
			TotalAmount: field(domain.FloatValue(5000.00), c[5]),
		},
	}
}

func TestGate_Evaluate_AllHighConfidence(t *testing.T) {
	g := newTestGate()
	inv := invoiceWithConfidences([6]float64{0.95, 0.95, 0.95, 0.95, 0.95, 0.95})

	verdict := g.Evaluate(inv)

	assert.True(t, verdict.Accepted)
	assert.Empty(t, verdict.Warnings)
	assert.InDelta(t, 0.95, verdict.OverallConfidence, 0.001)
}

func TestGate_Evaluate_ExactlyAtRejectionThreshold(t *testing.T) {
	g := newTestGate()
	inv := invoiceWithConfidences([6]float64{0.50, 0.50, 0.50, 0.50, 0.50, 0.50})

	verdict := g.Evaluate(inv)

	// 0.50 passes the gate; it also lands in the warning band.
	assert.True(t, verdict.Accepted)
	assert.Len(t, verdict.Warnings, 6)
	assert.InDelta(t, 0.50, verdict.OverallConfidence, 0.001)
}

func TestGate_Evaluate_RejectsLowCriticalField(t *testing.T) {
	g := newTestGate()
	inv := invoiceWithConfidences([6]float64{0.45, 0.95, 0.95, 0.95, 0.95, 0.95})

	verdict := g.Evaluate(inv)

	assert.False(t, verdict.Accepted)
	assert.Contains(t, verdict.RejectionReason, "supplier.name")
	assert.Contains(t, verdict.RejectionReason, "0.45")
	// Overall confidence still reflects the full tree.
	assert.Greater(t, verdict.OverallConfidence, 0.0)
}

func TestGate_Evaluate_RejectsMissingCriticalField(t *testing.T) {
	g := newTestGate()
	inv := invoiceWithConfidences([6]float64{0.95, 0.95, 0.95, 0.95, 0.95, 0.95})
	inv.Customer.Name = nil

	verdict := g.Evaluate(inv)

	assert.False(t, verdict.Accepted)
	assert.Contains(t, verdict.RejectionReason, "customer.name")
	assert.Equal(t, 0.0, verdict.OverallConfidence)
}

func TestGate_Evaluate_WarningBandDoesNotBlock(t *testing.T) {
	g := newTestGate()
	inv := invoiceWithConfidences([6]float64{0.75, 0.95, 0.95, 0.95, 0.95, 0.95})

	verdict := g.Evaluate(inv)

	assert.True(t, verdict.Accepted)
	require.Len(t, verdict.Warnings, 1)
	assert.Contains(t, verdict.Warnings[0], "supplier.name")
}

func TestGate_Evaluate_OverallIsUnweightedMean(t *testing.T) {
	g := newTestGate()
	inv := invoiceWithConfidences([6]float64{0.90, 0.80, 0.70, 1.00, 1.00, 0.60})

	verdict := g.Evaluate(inv)

	assert.True(t, verdict.Accepted)
	assert.InDelta(t, 0.8333, verdict.OverallConfidence, 0.005)
}

func TestGate_Evaluate_NonCriticalFieldsCountTowardOverall(t *testing.T) {
	g := newTestGate()
	inv := invoiceWithConfidences([6]float64{1.00, 1.00, 1.00, 1.00, 1.00, 1.00})
	// A weak optional field drags the mean down but cannot reject.
	inv.Supplier.TaxID = field(domain.StringValue("12-3456789"), 0.10)

	verdict := g.Evaluate(inv)

	assert.True(t, verdict.Accepted)
	assert.InDelta(t, (6.0+0.10)/7.0, verdict.OverallConfidence, 0.001)
}
