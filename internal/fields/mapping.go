package fields

import (
	"fmt"
	"regexp"
	"strings"
)

// aliasPair registers one vendor spelling against its canonical snake_case
// name. Registration order matters: when several spellings share a canonical
// name, the first registered one becomes the reverse lookup spelling.
type aliasPair struct {
	raw       string
	canonical string
}

// aliasPairs is the versioned knowledge base of vendor field spellings.
// The OCR vendor's JSON format is undocumented and varies per invoice type
// and vendor revision, so multiple spellings mapping to one canonical name
// is intentional compatibility design, not duplication to clean up.
var aliasPairs = []aliasPair{
	// Invoice identity
	{"InvoiceNum", "invoice_number"},
	{"invoiceNumber", "invoice_number"},
	{"invoiceNum", "invoice_number"},
	{"invoiceNo", "invoice_number"},
	{"billNumber", "invoice_number"},
	{"InvoiceCode", "invoice_code"},
	{"invoiceCode", "invoice_code"},
	{"InvoiceType", "invoice_type"},
	{"invoiceType", "invoice_type"},
	{"InvoiceTypeOrg", "invoice_type_org"},
	{"InvoiceTag", "invoice_tag"},

	// Dates
	{"InvoiceDate", "invoice_date"},
	{"invoiceDate", "invoice_date"},
	{"billingDate", "invoice_date"},
	{"issueDate", "invoice_date"},
	{"consumptionDate", "consumption_date"},

	// Amounts. On VAT invoices the vendor's "TotalAmount" excludes tax while
	// "AmountInFiguers" (their long-standing typo for "amount in figures") is
	// the tax-inclusive total. Both spellings must keep these meanings forever.
	{"TotalAmount", "amount_without_tax"},
	{"AmountInFiguers", "total_amount"},
	{"totalAmount", "total_amount"},
	{"invoiceAmount", "total_amount"},
	{"AmountInWords", "amount_in_words"},
	{"amountInWords", "amount_in_words"},
	{"TotalTax", "tax_amount"},
	{"invoiceTax", "tax_amount"},
	{"taxAmount", "tax_amount"},
	{"pretaxAmount", "amount_without_tax"},
	{"amountWithoutTax", "amount_without_tax"},
	{"invoiceAmountPreTax", "amount_without_tax"},
	{"taxRate", "tax_rate"},
	{"CommodityTaxRate", "tax_rate"},

	// Seller
	{"SellerName", "seller_name"},
	{"sellerName", "seller_name"},
	{"salesName", "seller_name"},
	{"SellerRegisterNum", "seller_tax_id"},
	{"sellerTaxId", "seller_tax_id"},
	{"salesTaxNumber", "seller_tax_id"},
	{"SellerAddress", "seller_address"},
	{"sellerAddress", "seller_address"},
	{"SellerBank", "seller_bank_account"},
	{"sellerBankAccount", "seller_bank_account"},

	// Buyer
	{"PurchaserName", "buyer_name"},
	{"purchaserName", "buyer_name"},
	{"buyerName", "buyer_name"},
	{"PurchaserRegisterNum", "buyer_tax_id"},
	{"purchaserRegisterNum", "buyer_tax_id"},
	{"buyerTaxId", "buyer_tax_id"},
	{"PurchaserAddress", "buyer_address"},
	{"buyerAddress", "buyer_address"},
	{"PurchaserBank", "buyer_bank_account"},
	{"buyerBankAccount", "buyer_bank_account"},

	// Verification block
	{"CheckCode", "check_code"},
	{"checkCode", "check_code"},
	{"MachineCode", "machine_code"},
	{"machineCode", "machine_code"},
	{"NoteDrawer", "drawer"},
	{"noteDrawer", "drawer"},
	{"Checker", "reviewer"},
	{"checker", "reviewer"},
	{"Payee", "payee"},
	{"payee", "payee"},
	{"Remarks", "remarks"},
	{"remarks", "remarks"},
	{"Province", "province"},
	{"City", "city"},
	{"ServiceType", "service_type"},
	{"serviceType", "service_type"},

	// Line items arrive under several container spellings; all are the same
	// structured list and must never be stringified.
	{"CommodityName", "invoice_details"},
	{"invoiceDetails", "invoice_details"},
	{"detailList", "invoice_details"},
	{"items", "invoice_details"},

	// Train tickets
	{"ticketNum", "ticket_number"},
	{"ticketNumber", "ticket_number"},
	{"trainNum", "train_number"},
	{"trainNumber", "train_number"},
	{"startingStation", "departure_station"},
	{"leavingStation", "departure_station"},
	{"departureStation", "departure_station"},
	{"destinationStation", "arrival_station"},
	{"arrivalStation", "arrival_station"},
	{"startingTime", "departure_time"},
	{"leavingTime", "departure_time"},
	{"departureTime", "departure_time"},
	{"onboardTime", "departure_time"},
	{"seatCategory", "seat_type"},
	{"seatType", "seat_type"},
	{"seatNum", "seat_number"},
	{"seatNumber", "seat_number"},
	{"passengerName", "passenger_name"},
	{"passengerNo", "passenger_id"},
	{"idNum", "passenger_id"},
	{"ticketRates", "ticket_price"},
	{"ticketPrice", "ticket_price"},
	{"fare", "ticket_price"},
	{"ticketGate", "ticket_gate"},

	// Flight itineraries
	{"flightNum", "flight_number"},
	{"flightNumber", "flight_number"},
	{"carrier", "airline"},
	{"airlineCompany", "airline"},
	{"fromAirport", "departure_airport"},
	{"departureAirport", "departure_airport"},
	{"toAirport", "arrival_airport"},
	{"arrivalAirport", "arrival_airport"},
	{"cabinClass", "cabin_class"},
	{"flightDate", "flight_date"},
	{"eTicketNum", "electronic_ticket_number"},
	{"electronicTicketNum", "electronic_ticket_number"},
	{"civilAviationFund", "caac_development_fund"},
	{"developmentFund", "caac_development_fund"},
	{"fuelSurcharge", "fuel_surcharge"},
	{"insuranceFee", "insurance_fee"},

	// Extraction metadata
	{"Confidence", "confidence"},
	{"confidenceScore", "confidence"},
	{"Validation", "validation"},
	{"validationResult", "validation"},
}

// aliasTable maps a verbatim vendor spelling to its canonical name.
var aliasTable = buildAliasTable()

// reverseAliasTable maps a canonical name back to one vendor spelling, used
// when probing raw OCR data for a field expected under its vendor name.
// First-registered spelling wins, which keeps the choice deterministic.
var reverseAliasTable = buildReverseAliasTable()

// specialFields are canonical names whose values the rule engine derives or
// post-processes instead of simply renaming.
var specialFields = map[string]struct{}{
	"consumption_date": {},
	"invoice_type":     {},
	"confidence":       {},
	"validation":       {},
}

// requiredFields must be present in a canonical record; absence is logged by
// the output validator but never blocks output.
var requiredFields = []string{"invoice_number", "invoice_date"}

var canonicalKeyRe = regexp.MustCompile(`^[a-z0-9_]+$`)

func buildAliasTable() map[string]string {
	t := make(map[string]string, len(aliasPairs))
	for _, p := range aliasPairs {
		t[p.raw] = p.canonical
	}
	return t
}

func buildReverseAliasTable() map[string]string {
	t := make(map[string]string, len(aliasPairs))
	for _, p := range aliasPairs {
		if _, ok := t[p.canonical]; !ok {
			t[p.canonical] = p.raw
		}
	}
	return t
}

// RawSpelling returns the registered vendor spelling for a canonical name.
func RawSpelling(canonical string) (string, bool) {
	raw, ok := reverseAliasTable[canonical]
	return raw, ok
}

// IsSpecialField reports whether the canonical name belongs to the rule
// engine's special field set.
func IsSpecialField(canonical string) bool {
	_, ok := specialFields[canonical]
	return ok
}

// ValidateMapping sanity-checks the static alias table. Run at process start
// so a bad table revision fails fast instead of corrupting records.
func ValidateMapping() error {
	var bad []string
	for _, p := range aliasPairs {
		if p.raw == "" {
			bad = append(bad, "(empty raw spelling)")
			continue
		}
		if !canonicalKeyRe.MatchString(p.canonical) {
			bad = append(bad, fmt.Sprintf("%s -> %s", p.raw, p.canonical))
		}
	}
	for canonical := range specialFields {
		if !canonicalKeyRe.MatchString(canonical) {
			bad = append(bad, fmt.Sprintf("special field %s", canonical))
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("invalid alias table entries: %s", strings.Join(bad, ", "))
	}
	return nil
}
