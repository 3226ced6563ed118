package indicator

// RSI calculates the Relative Strength Index using Wilder's smoothing method.
// Update is O(1) per close — no history scans.
//
// Warm-up policy: until period+1 closes have been seen the oscillator reports
// a neutral 50. An unwarmed zero would read as deeply oversold and trigger
// entries right after startup.
type RSI struct {
	period    int
	count     int
	prevClose float64
	avgGain   float64
	avgLoss   float64
	current   float64
}

// NewRSI creates an RSI accumulator with the given period (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{period: period, current: 50}
}

// Update feeds the next close price.
func (r *RSI) Update(price float64) {
	r.count++

	if r.count == 1 {
		// First close — just record it, no delta yet.
		r.prevClose = price
		return
	}

	delta := price - r.prevClose
	r.prevClose = price

	gain := 0.0
	loss := 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	if r.count <= r.period+1 {
		// Accumulation phase: build the SMA seed.
		r.avgGain += gain
		r.avgLoss += loss

		if r.count == r.period+1 {
			r.avgGain /= float64(r.period)
			r.avgLoss /= float64(r.period)
			r.recalc()
		}
		return
	}

	// Wilder's smoothing: avg = (prevAvg*(period-1) + delta) / period
	p := float64(r.period)
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	r.recalc()
}

func (r *RSI) recalc() {
	if r.avgLoss == 0 {
		r.current = 100
		return
	}
	rs := r.avgGain / r.avgLoss
	r.current = 100 - (100 / (1 + rs))
}

// Value returns the current RSI on the 0–100 scale (50 until warm).
func (r *RSI) Value() float64 { return r.current }

// Ready reports whether a full period of deltas has been accumulated.
func (r *RSI) Ready() bool { return r.count > r.period }
