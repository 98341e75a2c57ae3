package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMapping(t *testing.T) {
	require.NoError(t, ValidateMapping())
}

func TestAliasTableCanonicalNamesAreSnakeCase(t *testing.T) {
	for _, p := range aliasPairs {
		assert.Regexp(t, `^[a-z0-9_]+$`, p.canonical, "alias %q", p.raw)
	}
}

func TestReverseAliasTableFirstRegisteredWins(t *testing.T) {
	// invoice_number has several registered spellings; the reverse lookup
	// must deterministically return the first one.
	raw, ok := RawSpelling("invoice_number")
	require.True(t, ok)
	assert.Equal(t, "InvoiceNum", raw)

	raw, ok = RawSpelling("departure_time")
	require.True(t, ok)
	assert.Equal(t, "startingTime", raw)

	_, ok = RawSpelling("not_a_canonical_field")
	assert.False(t, ok)
}

func TestReverseAliasRoundTrips(t *testing.T) {
	for canonical, raw := range reverseAliasTable {
		assert.Equal(t, canonical, NormalizeFieldName(raw))
	}
}

func TestSpecialFieldSet(t *testing.T) {
	for _, name := range []string{"consumption_date", "invoice_type", "confidence", "validation"} {
		assert.True(t, IsSpecialField(name), name)
	}
	assert.False(t, IsSpecialField("seller_name"))
}
