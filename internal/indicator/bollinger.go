package indicator

import "math"

// Bollinger maintains a mean ± width·σ envelope over a trailing window of
// closes. σ is the population standard deviation.
//
// Warm-up policy: with fewer than period closes the band is computed over the
// partial window. The band converges to the configured period as history
// fills in; callers that need full-window statistics can gate on Ready.
type Bollinger struct {
	period int
	width  float64
	window []float64 // ring of trailing closes
	idx    int
	count  int
}

// NewBollinger creates a Bollinger accumulator with the given period and
// width multiplier (typically 20 and 2).
func NewBollinger(period int, width float64) *Bollinger {
	return &Bollinger{
		period: period,
		width:  width,
		window: make([]float64, period),
	}
}

// Update feeds the next close price, evicting the oldest once full.
func (b *Bollinger) Update(price float64) {
	b.window[b.idx] = price
	b.idx = (b.idx + 1) % b.period
	b.count++
}

func (b *Bollinger) stats() (mean, sigma float64) {
	n := b.count
	if n > b.period {
		n = b.period
	}
	if n == 0 {
		return 0, 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += b.window[i]
	}
	mean = sum / float64(n)

	var sq float64
	for i := 0; i < n; i++ {
		d := b.window[i] - mean
		sq += d * d
	}
	sigma = math.Sqrt(sq / float64(n))
	return mean, sigma
}

// Mean returns the window mean.
func (b *Bollinger) Mean() float64 {
	mean, _ := b.stats()
	return mean
}

// Lower returns mean − width·σ.
func (b *Bollinger) Lower() float64 {
	mean, sigma := b.stats()
	return mean - b.width*sigma
}

// Upper returns mean + width·σ.
func (b *Bollinger) Upper() float64 {
	mean, sigma := b.stats()
	return mean + b.width*sigma
}

// Ready reports whether a full window has been accumulated.
func (b *Bollinger) Ready() bool { return b.count >= b.period }
