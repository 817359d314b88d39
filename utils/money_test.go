package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount_AcceptsFormattedStrings(t *testing.T) {
	cases := []struct {
		in       interface{}
		expected string
	}{
		{"50000", "50000"},
		{"50,000", "50000"},
		{"$50,000.00", "50000"},
		{"USD -1,250.5", "-1250.5"},
		{"  45,872  ", "45872"},
		{"-$75", "-75"},
		{json.Number("4128.25"), "4128.25"},
		{float64(12.5), "12.5"},
		{42, "42"},
	}
	for _, tc := range cases {
		d, err := ParseAmount(tc.in)
		if err != nil {
			t.Fatalf("ParseAmount(%v) error: %v", tc.in, err)
		}
		if d.String() != tc.expected {
			t.Fatalf("ParseAmount(%v) expected %s, got %s", tc.in, tc.expected, d.String())
		}
	}
}

func TestParseAmount_Rejects(t *testing.T) {
	for _, in := range []interface{}{
		"", "USD", "abc", true, nil,
		"1e3", "12O00", "5-3", "EUR 500", "1,000 or 2,000", "1.2.3", ".", "--5", "$ 5 0",
	} {
		if _, err := ParseAmount(in); err == nil {
			t.Fatalf("ParseAmount(%v) expected error", in)
		}
	}
}

func TestAmount_UnmarshalJSON(t *testing.T) {
	var body struct {
		Quoted  Amount `json:"quoted"`
		Tax     Amount `json:"tax"`
		Missing Amount `json:"missing"`
		Cost    Amount `json:"cost"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"quoted":"$50,000","tax":4128,"cost":null}`), &body))

	assert.True(t, body.Quoted.Valid)
	assert.Equal(t, "50000", body.Quoted.String())
	assert.Equal(t, "4128", body.Tax.Ptr().String())
	assert.False(t, body.Missing.Valid)
	assert.Nil(t, body.Missing.Ptr())
	assert.False(t, body.Cost.Valid)

	var bad struct {
		Quoted Amount `json:"quoted"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"quoted":"lots"}`), &bad))
}
