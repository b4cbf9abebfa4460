package amount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := map[string]float64{
		"1234.50":   1234.5,
		"1,234.50":  1234.5,
		"1234,50":   1234.5,
		"1,234,567": 1234567,
		" 99 ":      99,
		"10.006":    10.01,
		"1,234":     1234,
		"1,5":       1.5,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 0.0001, in)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "-5", "1.2.3", "NaN"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrInvalid, in)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "100.00", Format(100))
	assert.Equal(t, "12.35", Format(12.346))
}
