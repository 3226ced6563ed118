package model

// Candle is one fixed-width OHLC bucket of trade prices for the traded pair.
// Time is the bucket start in Unix milliseconds, floor-aligned to the bucket
// width. Exactly one candle exists per bucket; it is mutated in place until
// the bucket rolls over, then becomes immutable history.
type Candle struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}
