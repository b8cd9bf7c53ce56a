// Package indicators provides smoothing indicators (EMA, RSI) over sampled metric series.
package indicators

import (
	"fmt"
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
)

// CalculateEMA calculates the Exponential Moving Average for the given period.
func CalculateEMA(values []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if period <= 0 {
		return nil, fmt.Errorf("invalid EMA period %d", period)
	}
	if len(values) < period {
		return nil, fmt.Errorf("not enough data points: need %d, got %d", period, len(values))
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	inputChan := helper.SliceToChan(decimalsToFloat64(values))
	outputChan := ema.Compute(inputChan)

	return float64ToDecimals(helper.ChanToSlice(outputChan)), nil
}

// CalculateRSI calculates the Relative Strength Index for the given period.
func CalculateRSI(values []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if period <= 0 {
		return nil, fmt.Errorf("invalid RSI period %d", period)
	}
	if len(values) < period+1 {
		return nil, fmt.Errorf("not enough data points for RSI: need %d, got %d", period+1, len(values))
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	inputChan := helper.SliceToChan(decimalsToFloat64(values))
	outputChan := rsi.Compute(inputChan)

	return float64ToDecimals(helper.ChanToSlice(outputChan)), nil
}

// Series bounded window of the most recent observations, oldest first.
type Series struct {
	values   []decimal.Decimal
	capacity int
}

// NewSeries creates a Series keeping at most capacity values.
func NewSeries(capacity int) *Series {
	if capacity <= 0 {
		capacity = 1
	}
	return &Series{capacity: capacity, values: make([]decimal.Decimal, 0, capacity)}
}

// Add appends v, dropping the oldest value when full.
func (s *Series) Add(v decimal.Decimal) {
	if len(s.values) == s.capacity {
		copy(s.values, s.values[1:])
		s.values = s.values[:len(s.values)-1]
	}
	s.values = append(s.values, v)
}

// Values returns a copy of the window.
func (s *Series) Values() []decimal.Decimal {
	out := make([]decimal.Decimal, len(s.values))
	copy(out, s.values)
	return out
}

// Len number of values held.
func (s *Series) Len() int {
	return len(s.values)
}

// Reading latest smoothed view of a series.
type Reading struct {
	Last decimal.Decimal
	EMA  decimal.Decimal
	// RSI is zero when HasRSI is false.
	RSI    decimal.Decimal
	HasRSI bool
}

// Rising reports whether the last value sits above its EMA.
func (r Reading) Rising() bool {
	return r.Last.GreaterThan(r.EMA)
}

// Read computes the latest EMA and, with enough history, RSI over values.
func Read(values []decimal.Decimal, period int) (Reading, error) {
	ema, err := CalculateEMA(values, period)
	if err != nil {
		return Reading{}, err
	}
	if len(ema) == 0 {
		return Reading{}, fmt.Errorf("EMA produced no output for %d points", len(values))
	}

	reading := Reading{Last: values[len(values)-1], EMA: ema[len(ema)-1]}

	if rsi, err := CalculateRSI(values, period); err == nil && len(rsi) > 0 {
		reading.RSI = rsi[len(rsi)-1]
		reading.HasRSI = true
	}

	return reading, nil
}

// decimalsToFloat64 converts a slice of decimal.Decimal to []float64.
func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}

// float64ToDecimals converts a slice of float64 to []decimal.Decimal. NaN and Inf become zero.
func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, len(floats))
	for i, f := range floats {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			result[i] = decimal.Zero
			continue
		}
		result[i] = decimal.NewFromFloat(f)
	}
	return result
}
