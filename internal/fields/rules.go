package fields

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	reISODate     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	reChineseDate = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`)
)

// dateLayouts are tried in order when a date string is in neither ISO nor
// Chinese form.
var dateLayouts = []string{"2006-01-02", "2006/01/02", "2006.01.02"}

// ChinaRailwaySeller is the seller name defaulted onto train tickets, which
// never carry an explicit seller field.
const ChinaRailwaySeller = "中国铁路"

// DateParseError reports a date string no known format matched.
type DateParseError struct {
	Value string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("unrecognized date format: %q", e.Value)
}

// RuleEngine applies invoice-type-specific post-processing to a canonical
// record: derived consumption dates, train ticket field unification, VAT
// pre-tax computation. Misses are normal outcomes, not errors; nothing the
// engine does ever blocks the record from being returned.
type RuleEngine struct {
	logger *slog.Logger
}

func NewRuleEngine(logger *slog.Logger) *RuleEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleEngine{logger: logger}
}

// ProcessSpecialFields returns a post-processed copy of the canonical record.
// The input is never mutated. A panic inside an invoice type's rules is
// contained at that boundary and the partially processed copy is returned;
// already-applied sub-rules are not rolled back.
func (e *RuleEngine) ProcessSpecialFields(in map[string]any, invoiceType InvoiceType) map[string]any {
	out := make(map[string]any, len(in)+2)
	for k, v := range in {
		out[k] = v
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("invoice type rules failed, returning partial record",
					"invoice_type", invoiceType.String(),
					"panic", r)
			}
		}()

		if missing(out, "consumption_date") {
			if date, ok := e.calculateConsumptionDate(out, invoiceType); ok {
				out["consumption_date"] = date
			}
		}

		switch invoiceType {
		case TypeTrainTicket:
			e.applyTrainTicketRules(out)
		case TypeVATInvoice:
			e.applyVATInvoiceRules(out)
		}
	}()

	return out
}

// calculateConsumptionDate derives the consumption date. Train tickets use
// the Chinese date embedded in departure_time; everything else (including a
// train ticket whose departure time carries no date) falls back to the
// normalized invoice_date. A miss is not an error, only a skipped enrichment.
func (e *RuleEngine) calculateConsumptionDate(fields map[string]any, invoiceType InvoiceType) (date string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("consumption date derivation failed", "panic", r)
			date, ok = "", false
		}
	}()

	if invoiceType == TypeTrainTicket {
		if departure, found := asString(fields["departure_time"]); found {
			if m := reChineseDate.FindStringSubmatch(departure); m != nil {
				year, _ := strconv.Atoi(m[1])
				month, _ := strconv.Atoi(m[2])
				day, _ := strconv.Atoi(m[3])
				return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
			}
		}
	}

	invoiceDate, found := asString(fields["invoice_date"])
	if !found || invoiceDate == "" {
		return "", false
	}
	normalized, err := e.normalizeDateFormat(invoiceDate)
	if err != nil {
		return "", false
	}
	return normalized, true
}

// normalizeDateFormat converts a date string to ISO YYYY-MM-DD. Already-ISO
// input passes through unchanged, so the function is idempotent. Returns a
// *DateParseError when no format matches; never panics.
func (e *RuleEngine) normalizeDateFormat(s string) (string, error) {
	s = strings.TrimSpace(s)
	if reISODate.MatchString(s) {
		return s, nil
	}

	if m := reChineseDate.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return fmt.Sprintf("%04d-%02d-%02d", year, month, day), nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}

	e.logger.Warn("unrecognized date format", "value", s)
	return "", &DateParseError{Value: s}
}

// applyTrainTicketRules unifies train ticket fields with the VAT invoice
// vocabulary. The four rules are independent fill-if-empty aliases; none
// depends on another's outcome.
func (e *RuleEngine) applyTrainTicketRules(fields map[string]any) {
	if missing(fields, "seller_name") {
		fields["seller_name"] = ChinaRailwaySeller
	}
	if missing(fields, "ticket_number") && !missing(fields, "invoice_number") {
		fields["ticket_number"] = fields["invoice_number"]
	}
	if missing(fields, "buyer_name") && !missing(fields, "passenger_name") {
		fields["buyer_name"] = fields["passenger_name"]
	}
	if missing(fields, "total_amount") && !missing(fields, "ticket_price") {
		fields["total_amount"] = fields["ticket_price"]
	}
}

// applyVATInvoiceRules computes the pre-tax amount when the vendor omitted it
// and guarantees invoice_details is always iterable.
func (e *RuleEngine) applyVATInvoiceRules(fields map[string]any) {
	if missing(fields, "amount_without_tax") {
		total, totalOK := parseAmount(fields["total_amount"])
		tax, taxOK := parseAmount(fields["tax_amount"])
		// Best-effort: non-numeric amounts silently skip the computation.
		if totalOK && taxOK {
			fields["amount_without_tax"] = total.Sub(tax).String()
		}
	}

	if _, ok := fields["invoice_details"]; !ok {
		fields["invoice_details"] = []any{}
	}
}

// missing reports whether a canonical field is absent or empty, the
// precondition shared by every fill-if-empty rule.
func missing(fields map[string]any, key string) bool {
	v, ok := fields[key]
	return !ok || isEmptyValue(v)
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// parseAmount interprets a vendor amount value as a decimal. Vendors emit
// amounts as JSON numbers or as strings with currency signs and thousands
// separators; anything unparsable reports false rather than failing.
func parseAmount(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case float64:
		// decimal.NewFromFloat panics on NaN and ±Inf.
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case string:
		cleaned := strings.NewReplacer(",", "", "¥", "", "￥", "").Replace(strings.TrimSpace(t))
		if cleaned == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}
