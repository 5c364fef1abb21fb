package scoring

import "math"

// MetricPrecision is the number of decimal places kept in recorded metrics.
const MetricPrecision = 4

// Round4 rounds v to MetricPrecision decimal places, halves to even.
func Round4(v float64) float64 {
	const scale = 1e4
	return math.RoundToEven(v*scale) / scale
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
