package fields

import "log/slog"

// Stats are cumulative pipeline counters for one Adapter instance. They are
// observability only: degraded output is detectable through Errors, never
// through the shape of a returned record.
type Stats struct {
	ProcessedFields        int `json:"processed_fields"`
	DuplicatesMerged       int `json:"duplicates_merged"`
	SpecialFieldsProcessed int `json:"special_fields_processed"`
	Errors                 int `json:"errors"`
}

// Adapter is the façade over the normalization pipeline: duplicate merge,
// canonical renaming, invoice-type rules, output validation. Every call is
// independent; the only cross-call state is the stats counters, so the
// adapter is not safe for concurrent use; create one per worker.
type Adapter struct {
	logger *slog.Logger
	rules  *RuleEngine
	stats  Stats
}

func NewAdapter(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		logger: logger,
		rules:  NewRuleEngine(logger),
	}
}

// AdaptFields runs the full pipeline over an ordered raw field list and
// returns the canonical record. It never returns an error and never panics:
// if the pipeline fails unexpectedly the raw fields are returned unchanged
// and the failure is visible only in Stats().Errors and the log.
func (a *Adapter) AdaptFields(pairs []Field, invoiceType string) (out map[string]any) {
	if len(pairs) == 0 {
		return map[string]any{}
	}

	defer func() {
		if r := recover(); r != nil {
			a.stats.Errors++
			a.logger.Error("field adaptation failed, returning raw fields unchanged",
				"invoice_type", invoiceType,
				"panic", r)
			out = rawFallback(pairs)
		}
	}()

	merged := a.MergeDuplicateFields(pairs)
	if eliminated := len(pairs) - len(merged); eliminated > 0 {
		a.stats.DuplicatesMerged += eliminated
	}

	canonical := a.NormalizeFields(merged)

	present := make(map[string]bool, len(canonical))
	for key := range canonical {
		if !missing(canonical, key) {
			present[key] = true
		}
	}
	canonical = a.rules.ProcessSpecialFields(canonical, ParseInvoiceType(invoiceType))
	for key := range canonical {
		if IsSpecialField(key) && !present[key] && !missing(canonical, key) {
			a.stats.SpecialFieldsProcessed++
		}
	}

	a.ValidateOutput(canonical)
	a.stats.ProcessedFields = len(canonical)
	return canonical
}

// AdaptFieldMap adapts an already-deserialized field map. Map iteration order
// is unspecified, so keys are processed in sorted order; callers that care
// about vendor document order should decode with DecodeFields and call
// AdaptFields directly.
func (a *Adapter) AdaptFieldMap(raw map[string]any, invoiceType string) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	return a.AdaptFields(FieldsFromMap(raw), invoiceType)
}

// ValidateOutput sanity-checks a canonical record and logs diagnostics.
// Every check runs independently; nothing here mutates the record or blocks
// it from being returned.
func (a *Adapter) ValidateOutput(fields map[string]any) {
	for key := range fields {
		if !canonicalKeyRe.MatchString(key) {
			a.logger.Warn("canonical key violates naming convention", "key", key)
		}
	}

	for _, key := range requiredFields {
		if _, ok := fields[key]; !ok {
			spelling, _ := RawSpelling(key)
			a.logger.Warn("canonical record is missing required field",
				"field", key,
				"vendor_spelling", spelling)
		}
	}
}

// Stats returns a snapshot copy of the counters, safe to retain.
func (a *Adapter) Stats() Stats {
	return a.stats
}

// ResetStats zeroes all counters.
func (a *Adapter) ResetStats() {
	a.stats = Stats{}
}

// rawFallback rebuilds the caller's input as a map for the fatal-path
// fallback. Duplicate raw keys keep their first value.
func rawFallback(pairs []Field) map[string]any {
	out := make(map[string]any, len(pairs))
	for _, f := range pairs {
		if _, ok := out[f.Key]; !ok {
			out[f.Key] = f.Value
		}
	}
	return out
}
