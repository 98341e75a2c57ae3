package fields

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDateFormat(t *testing.T) {
	e := NewRuleEngine(nil)

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"iso passes through", "2025-03-05", "2025-03-05", false},
		{"chinese padded", "2025年03月15日", "2025-03-15", false},
		{"chinese unpadded", "2025年3月5日", "2025-03-05", false},
		{"slash format", "2025/03/05", "2025-03-05", false},
		{"dot format", "2025.03.05", "2025-03-05", false},
		{"garbage", "March 5th 2025", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.normalizeDateFormat(tt.in)
			if tt.wantErr {
				var parseErr *DateParseError
				require.ErrorAs(t, err, &parseErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDateFormatIdempotent(t *testing.T) {
	e := NewRuleEngine(nil)
	for _, s := range []string{"2024-01-01", "2025-03-15", "1999-12-31"} {
		got, err := e.normalizeDateFormat(s)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestConsumptionDateFromTrainDeparture(t *testing.T) {
	e := NewRuleEngine(nil)
	fields := map[string]any{"departure_time": "2025年03月15日 14:30"}

	out := e.ProcessSpecialFields(fields, TypeTrainTicket)
	assert.Equal(t, "2025-03-15", out["consumption_date"])
}

func TestConsumptionDateFallsBackToInvoiceDate(t *testing.T) {
	e := NewRuleEngine(nil)

	// Train ticket without a parsable departure date falls through to the
	// invoice date; other types go straight there.
	out := e.ProcessSpecialFields(map[string]any{
		"departure_time": "afternoon",
		"invoice_date":   "2025/03/20",
	}, TypeTrainTicket)
	assert.Equal(t, "2025-03-20", out["consumption_date"])

	out = e.ProcessSpecialFields(map[string]any{"invoice_date": "2025年1月2日"}, TypeVATInvoice)
	assert.Equal(t, "2025-01-02", out["consumption_date"])
}

func TestConsumptionDateMissedEnrichmentIsNotAnError(t *testing.T) {
	e := NewRuleEngine(nil)
	out := e.ProcessSpecialFields(map[string]any{"invoice_date": "whenever"}, TypeVATInvoice)
	_, ok := out["consumption_date"]
	assert.False(t, ok)
}

func TestConsumptionDatePresentIsUntouched(t *testing.T) {
	e := NewRuleEngine(nil)
	out := e.ProcessSpecialFields(map[string]any{
		"consumption_date": "2024-06-01",
		"invoice_date":     "2025-01-01",
	}, TypeVATInvoice)
	assert.Equal(t, "2024-06-01", out["consumption_date"])
}

func TestTrainTicketRules(t *testing.T) {
	e := NewRuleEngine(nil)
	out := e.ProcessSpecialFields(map[string]any{
		"invoice_number": "T123456",
		"passenger_name": "张三",
		"ticket_price":   "553.00",
	}, TypeTrainTicket)

	assert.Equal(t, ChinaRailwaySeller, out["seller_name"])
	assert.Equal(t, "T123456", out["ticket_number"])
	assert.Equal(t, "张三", out["buyer_name"])
	assert.Equal(t, "553.00", out["total_amount"])
}

func TestTrainTicketRulesDoNotOverwrite(t *testing.T) {
	e := NewRuleEngine(nil)
	out := e.ProcessSpecialFields(map[string]any{
		"seller_name":   "中国铁路上海局",
		"ticket_number": "E987",
		"total_amount":  "100.00",
	}, TypeTrainTicket)

	assert.Equal(t, "中国铁路上海局", out["seller_name"])
	assert.Equal(t, "E987", out["ticket_number"])
	assert.Equal(t, "100.00", out["total_amount"])
}

func TestVATPreTaxComputation(t *testing.T) {
	e := NewRuleEngine(nil)
	out := e.ProcessSpecialFields(map[string]any{
		"total_amount": "100.00",
		"tax_amount":   "6.00",
	}, TypeVATInvoice)

	assert.Equal(t, "94", out["amount_without_tax"])
}

func TestVATPreTaxSkipsNonNumericAmounts(t *testing.T) {
	e := NewRuleEngine(nil)
	out := e.ProcessSpecialFields(map[string]any{
		"total_amount": "一百元整",
		"tax_amount":   "6.00",
	}, TypeVATInvoice)

	_, ok := out["amount_without_tax"]
	assert.False(t, ok)
}

func TestVATPreTaxSkipsNonFiniteAmounts(t *testing.T) {
	e := NewRuleEngine(nil)

	for _, total := range []any{math.NaN(), math.Inf(1), math.Inf(-1)} {
		out := e.ProcessSpecialFields(map[string]any{
			"total_amount": total,
			"tax_amount":   "6.00",
		}, TypeVATInvoice)

		_, ok := out["amount_without_tax"]
		assert.False(t, ok)
		// The skip must not abort the remaining VAT rules.
		assert.Equal(t, []any{}, out["invoice_details"])
	}
}

func TestVATInvoiceDetailsAlwaysIterable(t *testing.T) {
	e := NewRuleEngine(nil)

	out := e.ProcessSpecialFields(map[string]any{}, TypeVATInvoice)
	assert.Equal(t, []any{}, out["invoice_details"])

	details := []any{map[string]any{"name": "服务费"}}
	out = e.ProcessSpecialFields(map[string]any{"invoice_details": details}, TypeVATInvoice)
	assert.Equal(t, details, out["invoice_details"])
}

func TestProcessSpecialFieldsNeverMutatesInput(t *testing.T) {
	e := NewRuleEngine(nil)
	in := map[string]any{"total_amount": "100.00", "tax_amount": "6.00"}

	_ = e.ProcessSpecialFields(in, TypeVATInvoice)
	assert.Equal(t, map[string]any{"total_amount": "100.00", "tax_amount": "6.00"}, in)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   string
		wantOK bool
	}{
		{"plain string", "100.00", "100", true},
		{"thousands separator", "3,965.34", "3965.34", true},
		{"currency sign", "¥128.50", "128.5", true},
		{"float", 42.5, "42.5", true},
		{"words", "一百元整", "", false},
		{"nil", nil, "", false},
		{"empty string", "", "", false},
		{"NaN", math.NaN(), "", false},
		{"positive infinity", math.Inf(1), "", false},
		{"negative infinity", math.Inf(-1), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := parseAmount(tt.in)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, d.String())
			}
		})
	}
}

func TestParseInvoiceType(t *testing.T) {
	tests := []struct {
		in   string
		want InvoiceType
	}{
		{"增值税发票", TypeVATInvoice},
		{"增值税电子普通发票", TypeVATInvoice},
		{"VAT_INVOICE", TypeVATInvoice},
		{"火车票", TypeTrainTicket},
		{"TrainTicket", TypeTrainTicket},
		{"广州铁路火车票", TypeTrainTicket},
		{"航空运输电子客票行程单", TypeFlightTicket},
		{"出租车票", TypeTaxiTicket},
		{"", TypeUnknown},
		{"收据", TypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseInvoiceType(tt.in))
		})
	}
}
