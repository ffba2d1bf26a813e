package scoring

import "math"

// DefaultZ is the two-sided 95% normal quantile
const DefaultZ = 1.96

// Interval is a point estimate with confidence bounds
type Interval struct {
	Estimate float64 `json:"estimate"`
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
}

// HalfWidth returns half the interval width
func (i Interval) HalfWidth() float64 {
	return (i.Upper - i.Lower) / 2
}

// Contains reports whether v lies inside the interval
func (i Interval) Contains(v float64) bool {
	return v >= i.Lower && v <= i.Upper
}

// WilsonInterval is the Wilson score interval for a binomial proportion
func WilsonInterval(successes, trials int, z float64) Interval {
	if trials <= 0 {
		return Interval{Estimate: 0.5, Lower: 0, Upper: 1}
	}
	if z <= 0 {
		z = DefaultZ
	}
	n := float64(trials)
	p := float64(successes) / n
	z2 := z * z
	denom := 1 + z2/n
	centre := (p + z2/(2*n)) / denom
	margin := z * math.Sqrt(p*(1-p)/n+z2/(4*n*n)) / denom
	return Interval{
		Estimate: p,
		Lower:    math.Max(0, centre-margin),
		Upper:    math.Min(1, centre+margin),
	}
}

// NormalInterval is the Wald normal-approximation interval
func NormalInterval(successes, trials int, z float64) Interval {
	if trials <= 0 {
		return Interval{Estimate: 0.5, Lower: 0, Upper: 1}
	}
	if z <= 0 {
		z = DefaultZ
	}
	n := float64(trials)
	p := float64(successes) / n
	margin := z * math.Sqrt(p*(1-p)/n)
	return Interval{
		Estimate: p,
		Lower:    math.Max(0, p-margin),
		Upper:    math.Min(1, p+margin),
	}
}
