package audio

import "math"

// Resample converts samples from inRate to outRate using a polyphase
// FIR filter built from a Kaiser-windowed sinc prototype. It is
// stateless: every call rebuilds its filter from scratch, matching the
// pipeline's own usage pattern of resampling one complete window at a
// time rather than streaming continuously through a shared filter
// state.
//
// If inRate == outRate the input is returned as a copy. NaNs in the
// input are not sanitized and propagate to the output.
func Resample(input []float32, inRate, outRate uint32) []float32 {
	if inRate == outRate || len(input) == 0 {
		out := make([]float32, len(input))
		copy(out, input)
		return out
	}

	g := gcdUint(inRate, outRate)
	up := outRate / g
	down := inRate / g

	taps := buildKaiserSincFilter(up, down)
	return polyphaseResample(input, int(up), int(down), taps)
}

func gcdUint(a, b uint32) uint32 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

// kaiserBeta corresponds to roughly 80 dB of stopband attenuation,
// per the Kaiser window design formulas.
const kaiserBeta = 7.857

// filterHalfWidth controls the number of zero-crossings of the sinc
// prototype kept on each side of its center tap. Larger values trade
// compute for a sharper transition band.
const filterHalfWidth = 16

// buildKaiserSincFilter returns the FIR taps for a polyphase resampler
// converting by a rational factor up/down. The cutoff is set to the
// lower of the two Nyquist rates (post-interpolation, pre-decimation)
// so the filter serves simultaneously as the interpolation
// lowpass and the anti-aliasing lowpass for decimation.
func buildKaiserSincFilter(up, down uint32) []float64 {
	maxRate := up
	if down > maxRate {
		maxRate = down
	}
	cutoff := 1.0 / float64(maxRate)

	halfLen := filterHalfWidth * int(maxRate)
	n := 2*halfLen + 1
	taps := make([]float64, n)

	beta := kaiserBeta
	i0Beta := besselI0(beta)

	for i := 0; i < n; i++ {
		x := float64(i-halfLen) * cutoff
		var sinc float64
		if x == 0 {
			sinc = 1.0
		} else {
			pix := math.Pi * x
			sinc = math.Sin(pix) / pix
		}

		r := float64(i-halfLen) / float64(halfLen)
		var window float64
		if r >= -1 && r <= 1 {
			window = besselI0(beta*math.Sqrt(1-r*r)) / i0Beta
		}

		taps[i] = sinc * window * cutoff
	}
	return taps
}

// besselI0 evaluates the zeroth-order modified Bessel function via its
// power series; sufficient precision for Kaiser window coefficients.
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	halfX := x / 2
	for k := 1; k < 32; k++ {
		term *= (halfX / float64(k)) * (halfX / float64(k))
		sum += term
		if term < 1e-15*sum {
			break
		}
	}
	return sum
}

// polyphaseResample applies taps (designed at rate up*inRate) to
// input, producing ceil(len(input)*up/down) output samples. taps is
// indexed so that taps[halfLen], halfLen = (len(taps)-1)/2, is the
// center of the prototype; it is
// split implicitly into up phases by stepping through with the
// fractional accumulator below.
func polyphaseResample(input []float32, up, down int, taps []float64) []float32 {
	halfLen := (len(taps) - 1) / 2
	outLen := (len(input)*up + down - 1) / down
	out := make([]float32, outLen)

	for outIdx := 0; outIdx < outLen; outIdx++ {
		// Position in the upsampled (virtual) timeline.
		center := outIdx * down

		var acc float64
		// Walk every virtual upsampled tap that lands on an actual
		// input sample: center - halfLen <= k*up <= center + halfLen.
		kMin := (center - halfLen + up - 1) / up
		kMax := (center + halfLen) / up
		for k := kMin; k <= kMax; k++ {
			if k < 0 || k >= len(input) {
				continue
			}
			tapIdx := center - k*up + halfLen
			if tapIdx < 0 || tapIdx >= len(taps) {
				continue
			}
			acc += float64(input[k]) * taps[tapIdx] * float64(up)
		}
		out[outIdx] = float32(acc)
	}
	return out
}
