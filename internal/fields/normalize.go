package fields

import (
	"log/slog"
	"regexp"
	"strings"
)

var (
	// acronym boundary: run of capitals followed by a capitalized word,
	// e.g. XMLHttpRequest -> XML_HttpRequest.
	reAcronymBoundary = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
	// general camelCase boundary: lowercase or digit followed by a capital.
	reCamelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// NormalizeFieldName maps one raw vendor key to its canonical snake_case
// name. Known spellings resolve through the alias table; anything else falls
// back to programmatic camelCase conversion. Total over non-empty input, and
// a no-op on empty input.
func NormalizeFieldName(raw string) string {
	if raw == "" {
		return raw
	}
	if canonical, ok := aliasTable[raw]; ok {
		return canonical
	}

	s := reAcronymBoundary.ReplaceAllString(raw, "${1}_${2}")
	s = reCamelBoundary.ReplaceAllString(s, "${1}_${2}")
	s = strings.ToLower(s)
	if s != raw {
		// Observability for vendor spellings the alias table has not caught
		// up with yet; must never affect control flow.
		slog.Debug("field name converted without alias entry", "raw", raw, "canonical", s)
	}
	return s
}

// MergeDuplicateFields resolves groups of raw keys that normalize to the same
// canonical name down to a single entry per group. Output keys are still raw
// vendor spellings; only the grouping happens at the canonical level.
//
// Precedence within a group is first non-empty value in pair order. A group
// whose members are all empty keeps its first member rather than dropping the
// field entirely.
func (a *Adapter) MergeDuplicateFields(pairs []Field) []Field {
	if len(pairs) == 0 {
		return nil
	}

	type group struct {
		members []Field
	}
	groups := make(map[string]*group, len(pairs))
	var order []string
	for _, f := range pairs {
		canonical := NormalizeFieldName(f.Key)
		g, ok := groups[canonical]
		if !ok {
			g = &group{}
			groups[canonical] = g
			order = append(order, canonical)
		}
		g.members = append(g.members, f)
	}

	out := make([]Field, 0, len(order))
	for _, canonical := range order {
		g := groups[canonical]
		if len(g.members) == 1 {
			out = append(out, g.members[0])
			continue
		}

		chosen := g.members[0]
		for _, m := range g.members {
			if !isEmptyValue(m.Value) {
				chosen = m
				break
			}
		}

		merged := make([]string, 0, len(g.members))
		for _, m := range g.members {
			merged = append(merged, m.Key)
		}
		a.logger.Info("merged duplicate fields",
			"canonical", canonical,
			"raw_keys", strings.Join(merged, ","),
			"kept", chosen.Key)
		out = append(out, chosen)
	}
	return out
}

// NormalizeFields renames every raw key in order to its canonical name and
// assembles the canonical record. When two distinct raw keys reach here still
// targeting the same canonical name (a collision the merge step did not
// catch), the first-seen value wins and the skipped key is logged; this is
// the safety net for alias collisions not yet in the static table.
func (a *Adapter) NormalizeFields(pairs []Field) map[string]any {
	out := make(map[string]any, len(pairs))
	for _, f := range pairs {
		canonical := NormalizeFieldName(f.Key)
		if _, exists := out[canonical]; exists {
			a.logger.Warn("canonical key collision, keeping first-seen value",
				"canonical", canonical,
				"skipped_raw_key", f.Key)
			continue
		}
		out[canonical] = f.Value
	}
	return out
}
