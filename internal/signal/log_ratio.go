package signal

import "math"

// DefaultWindow is the number of fair-value pairs the hedge ratio looks back over.
const DefaultWindow = 50

// LogRatio tracks the cointegration-style hedge ratio between two price series.
type LogRatio struct {
	window int
	ratios []float64
}

// ZScore is one log-ratio observation.
type ZScore struct {
	Ratio  float64
	StdDev float64
	Spread float64
	Score  float64
}

// NewLogRatio creates a tracker over the last window observations.
func NewLogRatio(window int) *LogRatio {
	if window <= 0 {
		window = DefaultWindow
	}
	return &LogRatio{window: window}
}

// Observe records the pair and returns the z-score of the log spread.
// It reports false while the ratio series has no dispersion or prices are
// not positive; callers treat that as the neutral "no signal" value.
func (l *LogRatio) Observe(price0, price1 float64) (ZScore, bool) {
	if price0 <= 0 || price1 <= 0 {
		return ZScore{}, false
	}
	log0, log1 := math.Log(price0), math.Log(price1)
	if log1 == 0 {
		return ZScore{}, false
	}

	l.ratios = append(l.ratios, log0/log1)
	if len(l.ratios) > l.window {
		l.ratios = l.ratios[len(l.ratios)-l.window:]
	}

	mean, std := meanStd(l.ratios)
	if std == 0 {
		return ZScore{Ratio: mean}, false
	}
	spread := log0 - mean*log1
	return ZScore{
		Ratio:  mean,
		StdDev: std,
		Spread: spread,
		Score:  spread / std,
	}, true
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
