package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMajorString(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		want  int64
		errIs error
	}{
		{name: "integer", in: "12", want: 1200},
		{name: "two decimals", in: "12.50", want: 1250},
		{name: "one decimal", in: "12.5", want: 1250},
		{name: "zero", in: "0", want: 0},
		{name: "leading dot", in: ".99", want: 99},
		{name: "trailing dot", in: "7.", want: 700},
		{name: "half up rounds", in: "1.005", want: 101},
		{name: "half up truncates below", in: "1.004", want: 100},
		{name: "whitespace trimmed", in: " 3.10 ", want: 310},
		{name: "empty", in: "", errIs: ErrInvalidAmount},
		{name: "scientific", in: "1e3", errIs: ErrInvalidAmount},
		{name: "scientific upper", in: "1E3", errIs: ErrInvalidAmount},
		{name: "negative", in: "-5", errIs: ErrNegativeAmount},
		{name: "letters", in: "12a", errIs: ErrInvalidAmount},
		{name: "double dot", in: "1.2.3", errIs: ErrInvalidAmount},
		{name: "bare dot", in: ".", errIs: ErrInvalidAmount},
		{name: "overflow", in: "99999999999999999999", errIs: ErrAmountOverflow},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromMajorString(tc.in)
			if tc.errIs != nil {
				require.ErrorIs(t, err, tc.errIs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMul(t *testing.T) {
	got, err := Mul(1250, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3750), got)

	got, err = Mul(1250, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	_, err = Mul(1<<53-1, 2)
	assert.ErrorIs(t, err, ErrAmountOverflow)

	_, err = Mul(-1, 2)
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestSum(t *testing.T) {
	got, err := Sum(100, 200, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(600), got)

	_, err = Sum(1<<53-1, 1)
	assert.ErrorIs(t, err, ErrAmountOverflow)

	_, err = Sum(100, -1)
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestFormatMajor(t *testing.T) {
	assert.Equal(t, "12.50", FormatMajor(1250))
	assert.Equal(t, "0.05", FormatMajor(5))
	assert.Equal(t, "-3.07", FormatMajor(-307))
	assert.Equal(t, "0.00", FormatMajor(0))
}

func TestRoundTrip(t *testing.T) {
	for _, minor := range []int64{0, 1, 99, 100, 12345, 1<<40 + 7} {
		parsed, err := FromMajorString(FormatMajor(minor))
		require.NoError(t, err)
		assert.Equal(t, minor, parsed)
	}
}
