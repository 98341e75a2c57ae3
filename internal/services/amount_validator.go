package services

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fapiaoflow/invoice-normalize-service/internal/fields"
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field    string `json:"field"`
	Code     string `json:"code"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ValidationWarning represents a non-critical issue
type ValidationWarning struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ComputedValues holds calculated/expected values
type ComputedValues struct {
	ExpectedTotal  string `json:"expected_total,omitempty"`
	ExpectedTax    string `json:"expected_tax,omitempty"`
	ImpliedTaxRate string `json:"implied_tax_rate,omitempty"`
}

// ValidationResult is the response from validation
type ValidationResult struct {
	Valid       bool                `json:"valid"`
	NeedsReview bool                `json:"needs_review"`
	Errors      []ValidationError   `json:"errors"`
	Warnings    []ValidationWarning `json:"warnings"`
	Computed    ComputedValues      `json:"computed"`
}

// Standard Chinese VAT rates
var knownVATRates = []decimal.Decimal{
	decimal.NewFromFloat(0.13),
	decimal.NewFromFloat(0.09),
	decimal.NewFromFloat(0.06),
	decimal.NewFromFloat(0.03),
	decimal.NewFromFloat(0.01),
}

var invoiceNumberPattern = regexp.MustCompile(`^[0-9]{8,20}$`)

// AmountValidator cross-checks monetary fields of a normalized invoice record
type AmountValidator struct {
	tolerance decimal.Decimal // absolute tolerance in yuan
}

// NewAmountValidator creates a validator with a 0.01 yuan tolerance
func NewAmountValidator() *AmountValidator {
	return &AmountValidator{tolerance: decimal.NewFromFloat(0.01)}
}

// Validate performs cross-validations on a normalized field map
func (v *AmountValidator) Validate(invoiceType fields.InvoiceType, record map[string]any) *ValidationResult {
	result := &ValidationResult{
		Valid:       true,
		NeedsReview: false,
		Errors:      []ValidationError{},
		Warnings:    []ValidationWarning{},
	}

	total, hasTotal := amountOf(record, "total_amount")
	tax, hasTax := amountOf(record, "tax_amount")
	pretax, hasPretax := amountOf(record, "amount_without_tax")

	// 1. total = pretax + tax within tolerance
	if hasTotal && hasTax && hasPretax {
		expected := pretax.Add(tax)
		result.Computed.ExpectedTotal = expected.String()
		if total.Sub(expected).Abs().GreaterThan(v.tolerance) {
			result.Errors = append(result.Errors, ValidationError{
				Field:    "total_amount",
				Code:     "total_mismatch",
				Expected: expected.String(),
				Actual:   total.String(),
				Message:  "total does not equal pre-tax amount plus tax",
			})
		}
	}

	// 2. implied tax rate should match a standard VAT rate
	if invoiceType == fields.TypeVATInvoice && hasTax && hasPretax && pretax.IsPositive() {
		rate := tax.Div(pretax).Round(4)
		result.Computed.ImpliedTaxRate = rate.String()
		if !v.matchesKnownRate(rate) {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "tax_amount",
				Code:    "unusual_tax_rate",
				Message: fmt.Sprintf("implied tax rate %s does not match a standard VAT rate", rate.String()),
			})
		} else {
			result.Computed.ExpectedTax = pretax.Mul(rate).Round(2).String()
		}
	}

	// 3. negative amounts only make sense on red-letter invoices
	for _, key := range []string{"total_amount", "tax_amount", "amount_without_tax"} {
		if amt, ok := amountOf(record, key); ok && amt.IsNegative() {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   key,
				Code:    "negative_amount",
				Message: "negative amount, possible red-letter invoice",
			})
		}
	}

	// 4. invoice number format
	if num, ok := record["invoice_number"].(string); ok && num != "" {
		if !invoiceNumberPattern.MatchString(num) {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "invoice_number",
				Code:    "invoice_number_format",
				Message: "invoice number is not 8-20 digits",
			})
		}
	}

	// 5. dates must parse and not be in the future
	for _, key := range []string{"invoice_date", "consumption_date"} {
		v.validateDate(record, key, result)
	}

	// 6. train ticket coherence: ticket price should match total
	if invoiceType == fields.TypeTrainTicket {
		if price, ok := amountOf(record, "ticket_price"); ok && hasTotal {
			if total.Sub(price).Abs().GreaterThan(v.tolerance) {
				result.Warnings = append(result.Warnings, ValidationWarning{
					Field:   "ticket_price",
					Code:    "ticket_price_mismatch",
					Message: "ticket price differs from total amount",
				})
			}
		}
	}

	result.Valid = len(result.Errors) == 0
	result.NeedsReview = len(result.Warnings) > 0
	return result
}

func (v *AmountValidator) matchesKnownRate(rate decimal.Decimal) bool {
	epsilon := decimal.NewFromFloat(0.005)
	for _, known := range knownVATRates {
		if rate.Sub(known).Abs().LessThanOrEqual(epsilon) {
			return true
		}
	}
	return false
}

func (v *AmountValidator) validateDate(record map[string]any, key string, result *ValidationResult) {
	s, ok := record[key].(string)
	if !ok || s == "" {
		return
	}

	parsed, err := time.Parse("2006-01-02", s)
	if err != nil {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   key,
			Code:    "unparseable_date",
			Message: "date is not in YYYY-MM-DD format",
		})
		return
	}
	if parsed.After(time.Now().AddDate(0, 0, 1)) {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   key,
			Code:    "future_date",
			Message: "date is in the future",
		})
	}
}

// amountOf parses a monetary field into a decimal, accepting the scalar
// shapes that survive JSON decoding.
func amountOf(record map[string]any, key string) (decimal.Decimal, bool) {
	raw, ok := record[key]
	if !ok || raw == nil {
		return decimal.Decimal{}, false
	}

	switch val := raw.(type) {
	case string:
		cleaned := strings.NewReplacer(",", "", "¥", "", "￥", "", " ", "").Replace(val)
		if cleaned == "" {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case float64:
		// decimal.NewFromFloat panics on NaN and ±Inf.
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	default:
		if num, isNum := raw.(interface{ String() string }); isNum {
			d, err := decimal.NewFromString(num.String())
			if err != nil {
				return decimal.Decimal{}, false
			}
			return d, true
		}
		return decimal.Decimal{}, false
	}
}
