package indicators

import "math"

// SafeDivide divides with null protection: a missing operand, a NaN, or a
// zero denominator yields null. The quotient is scaled then rounded.
func SafeDivide(numerator, denominator *float64, scale float64, places int) *float64 {
	if numerator == nil || denominator == nil {
		return nil
	}
	num, den := *numerator, *denominator
	if math.IsNaN(num) || math.IsNaN(den) || den == 0 {
		return nil
	}
	v := roundTo(num/den*scale, places)
	return &v
}

// Avg averages two period-end values. With only one side present it uses
// that side, so a missing opening balance degrades to the closing one.
func Avg(a, b *float64) *float64 {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	v := (*a + *b) / 2
	return &v
}

// GrowthRate computes period-over-period growth in percent, rounded to two
// places. Null when either side is missing or the base is zero.
func GrowthRate(current, previous *float64) *float64 {
	if current == nil || previous == nil || *previous == 0 {
		return nil
	}
	v := roundTo((*current-*previous)/math.Abs(*previous)*100, 2)
	return &v
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
