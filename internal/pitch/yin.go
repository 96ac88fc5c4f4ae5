package pitch

// DefaultThreshold is the absolute threshold applied to the cumulative mean
// normalized difference when none is configured.
const DefaultThreshold = 0.1

// DifferenceMethod selects how the difference function is computed
type DifferenceMethod int

const (
	// Direct sums squared differences for every lag, O(maxLag²)
	Direct DifferenceMethod = iota

	// FFT derives the same sums from an FFT autocorrelation
	FFT
)

// String returns the config spelling of the method
func (m DifferenceMethod) String() string {
	switch m {
	case FFT:
		return "fft"
	default:
		return "direct"
	}
}

// Estimate is the result of one fundamental-frequency estimation.
// The zero value is NoFundamental.
type Estimate struct {
	Found     bool
	Frequency float64 // Hz, valid when Found
	Period    float64 // refined lag in samples, valid when Found
}

// NoFundamental is the result for frames without a detectable pitch
var NoFundamental = Estimate{}

// Within reports whether a found estimate lies inside [minFreq, maxFreq]
func (e Estimate) Within(minFreq, maxFreq float64) bool {
	return e.Found && e.Frequency >= minFreq && e.Frequency <= maxFreq
}

// EstimateFrequency runs the YIN difference-function method over one frame.
// A non-positive threshold selects DefaultThreshold. The lag search always
// spans the whole half frame; callers interested in a frequency band filter
// the result with Estimate.Within.
func EstimateFrequency(samples []float32, sampleRate int, threshold float64, method DifferenceMethod) Estimate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if sampleRate <= 0 || len(samples) < 4 {
		return NoFundamental
	}

	var yinBuffer []float64
	switch method {
	case FFT:
		yinBuffer = differenceFFT(samples)
	default:
		yinBuffer = difference(samples)
	}

	cumulativeMeanNormalize(yinBuffer)

	tau := absoluteThreshold(yinBuffer, threshold)
	if tau < 0 {
		return NoFundamental
	}

	period := parabolicInterpolation(yinBuffer, tau)
	if period <= 0 {
		return NoFundamental
	}
	return Estimate{
		Found:     true,
		Frequency: float64(sampleRate) / period,
		Period:    period,
	}
}

// difference computes d(τ) for τ in [0, len/2), comparing the first half of
// the frame against the frame shifted by τ samples.
func difference(samples []float32) []float64 {
	maxLag := len(samples) / 2
	yinBuffer := make([]float64, maxLag)

	for tau := 0; tau < maxLag; tau++ {
		sum := 0.0
		for j := 0; j < maxLag; j++ {
			delta := float64(samples[j]) - float64(samples[j+tau])
			sum += delta * delta
		}
		yinBuffer[tau] = sum
	}
	return yinBuffer
}

// cumulativeMeanNormalize turns d(τ) into d'(τ) in place. d'(0) is 1, and any
// lag whose running sum is still zero is also 1.
func cumulativeMeanNormalize(yinBuffer []float64) {
	if len(yinBuffer) == 0 {
		return
	}
	yinBuffer[0] = 1

	runningSum := 0.0
	for tau := 1; tau < len(yinBuffer); tau++ {
		runningSum += yinBuffer[tau]
		if runningSum == 0 {
			yinBuffer[tau] = 1
		} else {
			yinBuffer[tau] *= float64(tau) / runningSum
		}
	}
}

// absoluteThreshold returns the first lag whose normalized difference dips
// below threshold, advanced to the bottom of that dip, or -1.
func absoluteThreshold(yinBuffer []float64, threshold float64) int {
	maxLag := len(yinBuffer)

	tau := 1
	for ; tau < maxLag; tau++ {
		if yinBuffer[tau] < threshold {
			for tau+1 < maxLag && yinBuffer[tau+1] < yinBuffer[tau] {
				tau++
			}
			break
		}
	}

	if tau >= maxLag || yinBuffer[tau] >= threshold {
		return -1
	}
	return tau
}

// parabolicInterpolation refines tau using its two neighbours. The integer
// lag is kept when a neighbour is missing or the parabola is flat.
func parabolicInterpolation(yinBuffer []float64, tau int) float64 {
	if tau < 1 || tau+1 >= len(yinBuffer) {
		return float64(tau)
	}

	prev := yinBuffer[tau-1]
	current := yinBuffer[tau]
	next := yinBuffer[tau+1]

	s := next + prev - 2*current
	if s == 0 {
		return float64(tau)
	}
	return float64(tau) + (prev-next)/(2*s)
}
