package fields

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Field is one raw key/value pair from an OCR vendor response.
//
// The vendor payload is a JSON object, but Go maps do not preserve key order
// and the duplicate-merge precedence rule ("first non-empty wins") depends on
// it. The pipeline therefore works on an ordered slice of pairs captured at
// decode time.
type Field struct {
	Key   string
	Value any
}

// DecodeFields parses a raw OCR JSON object into an ordered field list,
// preserving the document order of the keys. Numbers are kept as json.Number
// so amount values survive without float rounding.
func DecodeFields(data []byte) ([]Field, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to decode raw fields: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("raw fields payload is not a JSON object")
	}

	var out []Field
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to decode raw field key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v in raw fields object", keyTok)
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return nil, fmt.Errorf("failed to decode value for %q: %w", key, err)
		}
		out = append(out, Field{Key: key, Value: val})
	}
	return out, nil
}

// FieldsFromMap converts an already-deserialized field map into an ordered
// pair list. Insertion order is unrecoverable from a Go map, so keys are
// sorted to keep merge tie-breaks deterministic across calls.
func FieldsFromMap(m map[string]any) []Field {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Field, 0, len(m))
	for _, k := range keys {
		out = append(out, Field{Key: k, Value: m[k]})
	}
	return out
}

// isEmptyValue reports whether a vendor value counts as empty for merge
// precedence: nil, empty string, zero number, false, or empty list/object.
func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case int:
		return t == 0
	case int64:
		return t == 0
	case float64:
		return t == 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
