// Package agg folds trade-price observations into fixed-width OHLC candles.
package agg

import (
	"time"

	"scalper-botv1/internal/model"
)

// Aggregator builds OHLC candles for a single pair from a stream of price
// observations. It is a pure accumulator: no I/O, no locking. The caller
// guarantees monotonic observation times; out-of-order input is a caller
// error and is not reordered here.
type Aggregator struct {
	widthMs int64
	current model.Candle
}

// New creates an Aggregator with the given bucket width (e.g. one minute).
func New(width time.Duration) *Aggregator {
	return &Aggregator{widthMs: width.Milliseconds()}
}

// Observe folds one price into the current bucket and returns the updated
// candle. A price whose floor-aligned bucket differs from the current one
// starts a fresh candle with open=high=low=close=price.
func (a *Aggregator) Observe(price float64, now time.Time) model.Candle {
	bucket := now.UnixMilli() / a.widthMs * a.widthMs

	if bucket != a.current.Time {
		a.current = model.Candle{
			Time:  bucket,
			Open:  price,
			High:  price,
			Low:   price,
			Close: price,
		}
		return a.current
	}

	c := &a.current
	c.Close = price
	if price > c.High {
		c.High = price
	}
	if price < c.Low {
		c.Low = price
	}
	return a.current
}

// Current returns the in-progress candle. Zero value before the first tick.
func (a *Aggregator) Current() model.Candle {
	return a.current
}
