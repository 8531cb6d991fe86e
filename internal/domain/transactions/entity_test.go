package transactions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNullValue(t *testing.T) {
	for _, v := range []string{"", "  ", "NaN", "nan", "None", "NULL", " null "} {
		assert.True(t, IsNullValue(v), v)
	}
	for _, v := range []string{"0", "n/a", "nil", "-"} {
		assert.False(t, IsNullValue(v), v)
	}
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2026-10-13", "2026-10-13T09:30:00Z", "2026-10-13 09:30:00", "2026/10/13", "10/13/2026"} {
		d, err := ParseDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, 13, d.Day(), s)
	}
	_, err := ParseDate("2026-13-45")
	assert.Error(t, err)
}

func TestRiskLevelOrdering(t *testing.T) {
	assert.True(t, RiskCritical.Above(RiskHigh))
	assert.True(t, RiskHigh.Above(RiskMedium))
	assert.True(t, RiskMedium.Above(RiskLow))
	assert.False(t, RiskLow.Above(RiskLow))
	assert.True(t, RiskLow.Above(""))
}

func TestDecodeRecords(t *testing.T) {
	batch, err := DecodeRecords([]byte(`[
		{"transaction_id": "T-1", "transaction_date": "2026-10-13", "amount": 150.00, "vendor_name": "Bistro", "category": "meals", "status": "reviewed"},
		{"id": 7, "date": "2026-10-14", "amount": "NaN", "vendor": null}
	]`))
	require.NoError(t, err)
	require.Len(t, batch, 2)

	a := batch[0]
	assert.Equal(t, "T-1", a.ID)
	assert.Equal(t, "150.00", a.Amount)
	assert.Equal(t, "Bistro", a.Vendor)
	assert.Empty(t, a.Status)
	assert.Equal(t, "Bistro", a.Snapshot()["vendor_name"])

	b := batch[1]
	assert.Equal(t, "7", b.ID)
	assert.True(t, IsNullValue(b.Amount))
	assert.True(t, IsNullValue(b.Vendor))

	_, err = DecodeRecords([]byte(`{"not":"an array"}`))
	assert.Error(t, err)
	_, err = DecodeRecords([]byte(`[null]`))
	assert.Error(t, err)
}
