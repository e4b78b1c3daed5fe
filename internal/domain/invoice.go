package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind discriminates the payload type of a Value.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueInt
	ValueFloat
)

// Value is the payload of a scored field: a string, an integer, or a float.
// The zero value is an empty string.
type Value struct {
	Kind  ValueKind
	Str   string
	Int   int64
	Float float64
}

// StringValue builds a string-kinded Value.
func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }

// IntValue builds an integer-kinded Value.
func IntValue(i int64) Value { return Value{Kind: ValueInt, Int: i} }

// FloatValue builds a float-kinded Value.
func FloatValue(f float64) Value { return Value{Kind: ValueFloat, Float: f} }

// IsEmpty reports whether the value is an empty string.
func (v Value) IsEmpty() bool {
	return v.Kind == ValueString && v.Str == ""
}

func (v Value) String() string {
	switch v.Kind {
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	default:
		return v.Str
	}
}

// MarshalJSON emits the underlying string or number without any wrapper.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueInt:
		return json.Marshal(v.Int)
	case ValueFloat:
		return json.Marshal(v.Float)
	default:
		return json.Marshal(v.Str)
	}
}

// UnmarshalJSON accepts a JSON string or number. Numbers without a fraction
// or exponent decode as integers so a re-encode reproduces the input.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch val := raw.(type) {
	case string:
		*v = StringValue(val)
		return nil
	case json.Number:
		if i, err := strconv.ParseInt(val.String(), 10, 64); err == nil {
			*v = IntValue(i)
			return nil
		}
		f, err := val.Float64()
		if err != nil {
			return fmt.Errorf("invalid numeric field value %q: %w", val.String(), err)
		}
		*v = FloatValue(f)
		return nil
	default:
		return fmt.Errorf("field value must be a string or number, got %T", raw)
	}
}

// ScoredField is a single extracted datum paired with the model's
// self-reported confidence in [0.0, 1.0].
type ScoredField struct {
	Value      Value   `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Supplier holds the issuing party's details.
type Supplier struct {
	Name    *ScoredField `json:"name,omitempty"`
	Address *ScoredField `json:"address,omitempty"`
	Phone   *ScoredField `json:"phone,omitempty"`
	Email   *ScoredField `json:"email,omitempty"`
	TaxID   *ScoredField `json:"tax_id,omitempty"`
}

// Customer holds the billed party's details.
type Customer struct {
	Name      *ScoredField `json:"name,omitempty"`
	Address   *ScoredField `json:"address,omitempty"`
	AccountID *ScoredField `json:"account_id,omitempty"`
}

// Summary holds the invoice-level fields (serialized under the "invoice" key).
type Summary struct {
	Number       *ScoredField `json:"number,omitempty"`
	IssueDate    *ScoredField `json:"issue_date,omitempty"`
	DueDate      *ScoredField `json:"due_date,omitempty"`
	Currency     *ScoredField `json:"currency,omitempty"`
	Subtotal     *ScoredField `json:"subtotal,omitempty"`
	TaxAmount    *ScoredField `json:"tax_amount,omitempty"`
	TotalAmount  *ScoredField `json:"total_amount,omitempty"`
	PaymentTerms *ScoredField `json:"payment_terms,omitempty"`
	PONumber     *ScoredField `json:"po_number,omitempty"`
}

// LineItem is a single billed position on the invoice.
type LineItem struct {
	SKU         *ScoredField `json:"sku,omitempty"`
	Description *ScoredField `json:"description,omitempty"`
	Quantity    *ScoredField `json:"quantity,omitempty"`
	UnitPrice   *ScoredField `json:"unit_price,omitempty"`
	Discount    *ScoredField `json:"discount,omitempty"`
	TaxRate     *ScoredField `json:"tax_rate,omitempty"`
	Total       *ScoredField `json:"total,omitempty"`
}

// Metadata describes how and from what the invoice was extracted.
type Metadata struct {
	SourceFileName        string       `json:"source_file_name"`
	SourceFormat          SourceFormat `json:"source_format,omitempty"`
	ModelVersion          string       `json:"model_version"`
	ProcessingTimeSeconds float64      `json:"processing_time_seconds"`
	OverallConfidence     float64      `json:"overall_confidence"`
	Warning               string       `json:"warning,omitempty"`
}

// DefaultMaxLineItems caps the line_items array when no override is configured.
const DefaultMaxLineItems = 50

// Invoice is the structured extraction result: four groups of scored fields
// plus extraction metadata.
type Invoice struct {
	Supplier  Supplier   `json:"supplier"`
	Customer  Customer   `json:"customer"`
	Summary   Summary    `json:"invoice"`
	LineItems []LineItem `json:"line_items"`
	Meta      Metadata   `json:"meta"`
}

func (s *Supplier) scoredFields() []*ScoredField {
	return []*ScoredField{s.Name, s.Address, s.Phone, s.Email, s.TaxID}
}

func (c *Customer) scoredFields() []*ScoredField {
	return []*ScoredField{c.Name, c.Address, c.AccountID}
}

func (s *Summary) scoredFields() []*ScoredField {
	return []*ScoredField{
		s.Number, s.IssueDate, s.DueDate, s.Currency, s.Subtotal,
		s.TaxAmount, s.TotalAmount, s.PaymentTerms, s.PONumber,
	}
}

func (li *LineItem) scoredFields() []*ScoredField {
	return []*ScoredField{li.SKU, li.Description, li.Quantity, li.UnitPrice, li.Discount, li.TaxRate, li.Total}
}

// ConfidenceScores returns the confidence of every scored field present
// anywhere in the tree, in traversal order. Metadata is not scored.
func (inv *Invoice) ConfidenceScores() []float64 {
	var scores []float64
	collect := func(fields []*ScoredField) {
		for _, f := range fields {
			if f != nil {
				scores = append(scores, f.Confidence)
			}
		}
	}
	collect(inv.Supplier.scoredFields())
	collect(inv.Customer.scoredFields())
	collect(inv.Summary.scoredFields())
	for i := range inv.LineItems {
		collect(inv.LineItems[i].scoredFields())
	}
	return scores
}

// Validate checks the structural invariants of the tree: required leaves are
// present, the line-item cap holds, every line item carries a description,
// and every confidence lies in [0.0, 1.0]. maxLineItems <= 0 falls back to
// DefaultMaxLineItems.
func (inv *Invoice) Validate(maxLineItems int) error {
	if maxLineItems <= 0 {
		maxLineItems = DefaultMaxLineItems
	}

	required := []struct {
		path  string
		field *ScoredField
	}{
		{"supplier.name", inv.Supplier.Name},
		{"customer.name", inv.Customer.Name},
		{"invoice.number", inv.Summary.Number},
		{"invoice.issue_date", inv.Summary.IssueDate},
		{"invoice.due_date", inv.Summary.DueDate},
	}
	for _, r := range required {
		if r.field == nil {
			return fmt.Errorf("required field %s is missing", r.path)
		}
	}

	if len(inv.LineItems) > maxLineItems {
		return fmt.Errorf("line_items exceeds maximum of %d entries (got %d)", maxLineItems, len(inv.LineItems))
	}
	for i := range inv.LineItems {
		if inv.LineItems[i].Description == nil {
			return fmt.Errorf("line_items[%d].description is missing", i)
		}
	}

	for _, score := range inv.ConfidenceScores() {
		if score < 0.0 || score > 1.0 {
			return fmt.Errorf("confidence %v is outside [0.0, 1.0]", score)
		}
	}

	return nil
}

// Normalize applies post-extraction defaults: an empty currency value
// becomes "USD".
func (inv *Invoice) Normalize() {
	if c := inv.Summary.Currency; c != nil && c.Value.IsEmpty() {
		c.Value = StringValue("USD")
	}
}
