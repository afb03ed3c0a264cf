package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessagesCarryContext(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&InvalidPriceError{Symbol: "AAPL", Index: 3, Price: -1}, "invalid price"},
		{&InsufficientDataError{Symbol: "AAPL", Have: 1, Need: 2}, "insufficient data for AAPL"},
		{&MisalignedSeriesError{Symbol: "MSFT", Reason: "dates differ"}, "not aligned"},
		{&BenchmarkMismatchError{SeriesLen: 10, BenchmarkLen: 9}, "benchmark length 9"},
		{&InfeasibleConstraintsError{NumAssets: 3, MinWeight: 0.6, MaxWeight: 1}, "infeasible weight bounds"},
		{&UnreachableTargetError{Target: 0.5, Min: 0.05, Max: 0.12}, "outside achievable range"},
		{&OptimizationDidNotConvergeError{Iterations: 1000, Status: "IterationLimit"}, "did not converge after 1000"},
		{&DataUnavailableError{Symbol: "AAPL", Period: "1y"}, "no price data available for AAPL"},
	}

	for _, tc := range cases {
		assert.Contains(t, tc.err.Error(), tc.want)
	}
}

func TestDataUnavailableError_Unwraps(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := fmt.Errorf("fetching: %w", &DataUnavailableError{Symbol: "AAPL", Period: "1y", Err: cause})

	var unavailable *DataUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, cause, errors.Unwrap(unavailable))
}

func TestErrorsAreDistinguishableByType(t *testing.T) {
	var err error = &InsufficientDataError{Symbol: "AAPL", Have: 1, Need: 2}

	var insufficient *InsufficientDataError
	var invalid *InvalidPriceError
	assert.True(t, errors.As(err, &insufficient))
	assert.False(t, errors.As(err, &invalid))
}
