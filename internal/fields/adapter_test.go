package fields

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdaptFieldsVATEndToEnd(t *testing.T) {
	a := NewAdapter(nil)
	raw := map[string]any{
		"invoiceNumber": "INV1",
		"totalAmount":   "100.00",
		"invoiceTax":    "6.00",
	}

	out := a.AdaptFieldMap(raw, "增值税发票")

	assert.Equal(t, "INV1", out["invoice_number"])
	assert.Equal(t, "100.00", out["total_amount"])
	assert.Equal(t, "6.00", out["tax_amount"])
	assert.Equal(t, "94", out["amount_without_tax"])
	assert.Equal(t, []any{}, out["invoice_details"])

	stats := a.Stats()
	assert.Equal(t, len(out), stats.ProcessedFields)
	assert.Zero(t, stats.Errors)
}

func TestAdaptFieldsTrainTicket(t *testing.T) {
	a := NewAdapter(nil)
	out := a.AdaptFieldMap(map[string]any{
		"ticketNum":      "D12345678",
		"trainNum":       "G102",
		"departureTime":  "2025年03月15日 14:30",
		"passengerName":  "李四",
		"ticketRates":    "¥553.00",
		"leavingStation": "北京南",
		"arrivalStation": "上海虹桥",
	}, "火车票")

	assert.Equal(t, ChinaRailwaySeller, out["seller_name"])
	assert.Equal(t, "2025-03-15", out["consumption_date"])
	assert.Equal(t, "李四", out["buyer_name"])
	assert.Equal(t, "¥553.00", out["total_amount"])
	assert.Equal(t, "G102", out["train_number"])
	assert.Equal(t, 1, a.Stats().SpecialFieldsProcessed)
}

func TestAdaptFieldsEmptyInput(t *testing.T) {
	a := NewAdapter(nil)
	assert.Equal(t, map[string]any{}, a.AdaptFieldMap(nil, "火车票"))
	assert.Equal(t, map[string]any{}, a.AdaptFieldMap(map[string]any{}, ""))
	assert.Equal(t, map[string]any{}, a.AdaptFields(nil, "增值税发票"))
}

func TestAdaptFieldsMergesDuplicatesAndCounts(t *testing.T) {
	a := NewAdapter(nil)
	pairs := []Field{
		{Key: "invoiceNumber", Value: ""},
		{Key: "InvoiceNum", Value: "NO-1"},
		{Key: "sellerName", Value: "某公司"},
		{Key: "SellerName", Value: "某公司"},
	}

	out := a.AdaptFields(pairs, "")
	assert.Equal(t, "NO-1", out["invoice_number"])
	assert.Equal(t, "某公司", out["seller_name"])
	assert.Equal(t, 2, a.Stats().DuplicatesMerged)
}

func TestAdaptFieldsNeverPanicsOnAdversarialInput(t *testing.T) {
	a := NewAdapter(nil)
	inputs := []map[string]any{
		{"totalAmount": math.NaN(), "invoiceTax": "6.00"},
		{"departureTime": 1234, "invoiceDate": []any{"2025-01-01"}},
		{"invoiceDetails": map[string]any{"nested": map[string]any{"deep": nil}}},
		{"": "empty key", "正常字段": "值"},
		{"totalAmount": "NaN", "invoiceTax": "inf"},
	}
	for _, raw := range inputs {
		for _, typ := range []string{"增值税发票", "火车票", "garbage", ""} {
			out := a.AdaptFieldMap(raw, typ)
			require.NotNil(t, out)
		}
	}
}

func TestAdaptFieldsNonFiniteAmountKeepsVATGuarantees(t *testing.T) {
	a := NewAdapter(nil)

	out := a.AdaptFieldMap(map[string]any{
		"totalAmount": math.NaN(),
		"invoiceTax":  "6.00",
	}, "增值税发票")

	// A non-finite amount skips the pre-tax computation but must not take
	// down the rest of the VAT rules.
	_, ok := out["amount_without_tax"]
	assert.False(t, ok)
	assert.Equal(t, []any{}, out["invoice_details"])
	assert.Equal(t, "6.00", out["tax_amount"])
	assert.Equal(t, 0, a.Stats().Errors)
}

func TestAdaptFieldsDecodedOrderDrivesMergePrecedence(t *testing.T) {
	a := NewAdapter(nil)
	payload := []byte(`{"InvoiceNum":"","invoiceNumber":"FIRST","invoiceNo":"SECOND"}`)

	pairs, err := DecodeFields(payload)
	require.NoError(t, err)

	out := a.AdaptFields(pairs, "")
	assert.Equal(t, "FIRST", out["invoice_number"])
}

func TestAdapterStatsSnapshotAndReset(t *testing.T) {
	a := NewAdapter(nil)
	a.AdaptFieldMap(map[string]any{"invoiceNumber": "1", "invoiceDate": "2025-01-01"}, "增值税发票")

	snap := a.Stats()
	assert.Positive(t, snap.ProcessedFields)

	a.ResetStats()
	assert.Equal(t, Stats{}, a.Stats())
	// Snapshot taken before the reset is unaffected.
	assert.Positive(t, snap.ProcessedFields)
}

func TestAdapterCountsOnlyDerivedSpecialFields(t *testing.T) {
	a := NewAdapter(nil)

	// consumption_date is derived by the rules, so it counts.
	a.AdaptFieldMap(map[string]any{"invoiceDate": "2025-01-01"}, "增值税发票")
	assert.Equal(t, 1, a.Stats().SpecialFieldsProcessed)

	// Special fields the vendor already supplied do not count, and neither
	// do ordinary derived fields like amount_without_tax.
	a.ResetStats()
	a.AdaptFieldMap(map[string]any{
		"consumptionDate": "2025-01-01",
		"Validation":      "ok",
		"AmountInFiguers": "106.00",
		"TotalTax":        "6.00",
	}, "增值税发票")
	assert.Equal(t, 0, a.Stats().SpecialFieldsProcessed)
}

func TestAdapterStatsJSONShape(t *testing.T) {
	data, err := json.Marshal(Stats{ProcessedFields: 3, Errors: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"processed_fields":3,"duplicates_merged":0,"special_fields_processed":0,"errors":1}`, string(data))
}

func TestValidateOutputNeverMutates(t *testing.T) {
	a := NewAdapter(nil)
	in := map[string]any{"seller_name": "公司", "BadKey": 1}
	a.ValidateOutput(in)
	assert.Equal(t, map[string]any{"seller_name": "公司", "BadKey": 1}, in)
}
