// Package indicator provides the technical indicators that drive trade
// decisions: a Bollinger volatility band and a Wilder-smoothed RSI.
//
// Accumulators follow the Update/Value/Ready pattern. The engine rebuilds them
// from scratch over the stored close window every cycle, so indicator output
// can never silently diverge from persisted history. Window sizes are small
// (≤50) so the recompute cost is negligible.
package indicator

// Values holds one cycle's indicator outputs.
type Values struct {
	RSI       float64
	BandLower float64
	BandUpper float64
}

// Compute feeds the ordered close window (oldest first) through fresh
// accumulators and returns the final values. An empty window yields the
// warm-up defaults: neutral RSI and a zero-width band at zero.
func Compute(closes []float64, rsiPeriod, bandPeriod int, bandWidth float64) Values {
	rsi := NewRSI(rsiPeriod)
	bb := NewBollinger(bandPeriod, bandWidth)
	for _, c := range closes {
		rsi.Update(c)
		bb.Update(c)
	}
	return Values{
		RSI:       rsi.Value(),
		BandLower: bb.Lower(),
		BandUpper: bb.Upper(),
	}
}
