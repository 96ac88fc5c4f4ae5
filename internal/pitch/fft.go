package pitch

import (
	"github.com/mjibson/go-dsp/fft"
)

// differenceFFT computes the same d(τ) as difference using
//
//	d(τ) = Σx[j]² + Σx[j+τ]² − 2·Σx[j]·x[j+τ]
//
// where the cross term comes from an FFT correlation of the reference half
// against the whole frame. Cost is O(n log n) instead of O(maxLag²).
func differenceFFT(samples []float32) []float64 {
	n := len(samples)
	maxLag := n / 2
	yinBuffer := make([]float64, maxLag)
	if maxLag == 0 {
		return yinBuffer
	}

	// Zero padding to at least n+maxLag keeps the circular correlation
	// from wrapping into the lags we read.
	size := nextPowerOfTwo(n + maxLag)
	reference := make([]float64, size)
	frame := make([]float64, size)
	for i, s := range samples {
		frame[i] = float64(s)
		if i < maxLag {
			reference[i] = float64(s)
		}
	}

	refSpectrum := fft.FFTReal(reference)
	frameSpectrum := fft.FFTReal(frame)
	product := make([]complex128, size)
	for i := range product {
		r := refSpectrum[i]
		product[i] = complex(real(r), -imag(r)) * frameSpectrum[i]
	}
	correlation := fft.IFFT(product)

	// Prefix sums of squares give the windowed energies.
	squares := make([]float64, n+1)
	for i, s := range samples {
		squares[i+1] = squares[i] + float64(s)*float64(s)
	}
	refEnergy := squares[maxLag]

	for tau := 0; tau < maxLag; tau++ {
		shiftedEnergy := squares[tau+maxLag] - squares[tau]
		d := refEnergy + shiftedEnergy - 2*real(correlation[tau])
		if d < 1e-12 {
			// Round-off can leave tiny negatives where the direct sum is 0.
			d = 0
		}
		yinBuffer[tau] = d
	}
	return yinBuffer
}

// nextPowerOfTwo returns the smallest power of two >= n
func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
