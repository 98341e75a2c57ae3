package fields

import "strings"

// InvoiceType is the closed set of invoice categories the rule engine
// branches on. Vendor responses carry free-text type strings in Chinese or
// English; ParseInvoiceType maps every known spelling onto one variant so the
// rules never compare raw literals.
type InvoiceType int

const (
	TypeUnknown InvoiceType = iota
	TypeVATInvoice
	TypeTrainTicket
	TypeFlightTicket
	TypeTaxiTicket
	TypeQuotaInvoice
)

// invoiceTypeSpellings maps every known vendor type string to its variant.
var invoiceTypeSpellings = map[string]InvoiceType{
	"增值税发票":         TypeVATInvoice,
	"增值税专用发票":       TypeVATInvoice,
	"增值税普通发票":       TypeVATInvoice,
	"增值税电子普通发票":     TypeVATInvoice,
	"增值税电子专用发票":     TypeVATInvoice,
	"电子发票(普通发票)":    TypeVATInvoice,
	"电子发票(增值税专用发票)": TypeVATInvoice,
	"VAT_INVOICE":   TypeVATInvoice,
	"VatInvoice":    TypeVATInvoice,
	"vat_invoice":   TypeVATInvoice,
	"火车票":           TypeTrainTicket,
	"电子发票(铁路电子客票)":  TypeTrainTicket,
	"TrainTicket":   TypeTrainTicket,
	"TRAIN_TICKET":  TypeTrainTicket,
	"train_ticket":  TypeTrainTicket,
	"机票":            TypeFlightTicket,
	"机票行程单":         TypeFlightTicket,
	"航空运输电子客票行程单":   TypeFlightTicket,
	"FlightTicket":  TypeFlightTicket,
	"flight_ticket": TypeFlightTicket,
	"出租车票":          TypeTaxiTicket,
	"TaxiTicket":    TypeTaxiTicket,
	"taxi_ticket":   TypeTaxiTicket,
	"定额发票":          TypeQuotaInvoice,
	"QuotaInvoice":  TypeQuotaInvoice,
}

// ParseInvoiceType resolves a free-text vendor type string to a variant.
// Unknown or empty strings resolve to TypeUnknown; substring fallbacks cover
// new vendor phrasings that embed a known category name.
func ParseInvoiceType(s string) InvoiceType {
	s = strings.TrimSpace(s)
	if s == "" {
		return TypeUnknown
	}
	if t, ok := invoiceTypeSpellings[s]; ok {
		return t
	}
	switch {
	case strings.Contains(s, "火车票") || strings.Contains(s, "铁路电子客票"):
		return TypeTrainTicket
	case strings.Contains(s, "增值税"):
		return TypeVATInvoice
	case strings.Contains(s, "行程单"):
		return TypeFlightTicket
	}
	return TypeUnknown
}

func (t InvoiceType) String() string {
	switch t {
	case TypeVATInvoice:
		return "vat_invoice"
	case TypeTrainTicket:
		return "train_ticket"
	case TypeFlightTicket:
		return "flight_ticket"
	case TypeTaxiTicket:
		return "taxi_ticket"
	case TypeQuotaInvoice:
		return "quota_invoice"
	default:
		return "unknown"
	}
}
