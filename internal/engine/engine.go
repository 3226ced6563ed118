// Package engine drives the aggregation-and-decision loop: on a fixed cadence
// it fetches the latest trade price, folds it into the current OHLC candle,
// persists the candle, recomputes indicators over the stored window, steps the
// two-state position machine, and publishes the snapshot. Balance refresh and
// history pruning are interleaved in the same loop on their own timers.
//
// The engine goroutine is the single writer of position state, the store, and
// the board. Order submission failures do not roll back the in-memory state
// transition: the engine trusts its own accounting and surfaces the
// discrepancy for manual reconciliation.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"scalper-botv1/internal/indicator"
	"scalper-botv1/internal/marketdata/agg"
	"scalper-botv1/internal/metrics"
	"scalper-botv1/internal/model"
	"scalper-botv1/internal/notification"
	"scalper-botv1/internal/store/sqlite"
)

// Exchange is the market-data / order / balance collaborator contract.
type Exchange interface {
	LatestPrice(ctx context.Context) (float64, error)
	RecentBars(ctx context.Context) ([]model.Candle, error)
	Balances(ctx context.Context) (map[string]float64, error)
	SubmitOrder(ctx context.Context, side string, price, qty float64) error
}

// Publisher receives each fully published snapshot (Redis mirror, WebSocket
// hub, ...). Implementations must not block the engine.
type Publisher interface {
	PublishSnapshot(model.Snapshot)
}

// Exit reasons recorded in the log ring.
const (
	ExitReasonStop   = "stop"
	ExitReasonProfit = "profit"
	ExitReasonManual = "manual"
)

// Config holds the tunable strategy and scheduling parameters.
type Config struct {
	Cadence         time.Duration // base cycle interval
	BucketWidth     time.Duration // candle bucket width
	TradeCapital    float64       // quote-currency size per entry
	TrailingStopPct float64       // e.g. 0.005 = 0.5%
	RSIBuy          float64       // buy below this when price is under the band
	RSISell         float64       // overbought exit above this
	RSIPanicBuy     float64       // buy below this regardless of band position
	RSIPeriod       int
	BandPeriod      int
	BandWidth       float64
	HistoryWindow   int // closes read back per recompute
	WalletRefresh   time.Duration
	PruneEvery      time.Duration
	PruneMaxAge     time.Duration
	QuoteAsset      string // wallet key, e.g. "USDT"
	BaseAsset       string // wallet key, e.g. "BTC"
}

// Engine owns the position state machine and runs the cycle scheduler.
type Engine struct {
	cfg    Config
	store  *sqlite.Store
	exch   Exchange
	board  *Board
	agg    *agg.Aggregator
	met    *metrics.Metrics
	notify notification.Notifier
	pubs   []Publisher

	state         model.PositionState
	exitRequested atomic.Bool
}

// New creates an Engine in the Idle state.
func New(cfg Config, store *sqlite.Store, exch Exchange, board *Board) *Engine {
	return &Engine{
		cfg:   cfg,
		store: store,
		exch:  exch,
		board: board,
		agg:   agg.New(cfg.BucketWidth),
		state: model.Idle{},
	}
}

// AddPublisher registers a snapshot publisher.
func (e *Engine) AddPublisher(p Publisher) {
	e.pubs = append(e.pubs, p)
}

// SetMetrics attaches the Prometheus instruments.
func (e *Engine) SetMetrics(m *metrics.Metrics) { e.met = m }

// SetNotifier attaches the trade-alert notifier.
func (e *Engine) SetNotifier(n notification.Notifier) { e.notify = n }

// State returns the current position state.
func (e *Engine) State() model.PositionState { return e.state }

// RequestExit asks the engine to liquidate any open position on its next
// cycle. Safe to call from other goroutines; the engine remains the single
// writer of position state.
func (e *Engine) RequestExit() {
	e.exitRequested.Store(true)
}

// Warmup backfills the candle table from the exchange's historical bars,
// seeding indicator columns the same way the live loop computes them. A
// failed sync is logged and the engine starts with whatever history the
// store already has.
func (e *Engine) Warmup(ctx context.Context) {
	bars, err := e.exch.RecentBars(ctx)
	if err != nil {
		e.board.Logf("history sync failed: %v", err)
		return
	}

	rsi := indicator.NewRSI(e.cfg.RSIPeriod)
	bb := indicator.NewBollinger(e.cfg.BandPeriod, e.cfg.BandWidth)
	for _, c := range bars {
		rsi.Update(c.Close)
		bb.Update(c.Close)
		if err := e.store.UpsertCandle(c, rsi.Value(), bb.Lower(), bb.Upper()); err != nil {
			e.storeError("warmup candle save", err)
		}
	}
	e.board.Logf("synced %d candles to store", len(bars))
}

// Run drives the cycle scheduler until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Cadence)
	defer ticker.Stop()

	// Seed the wallet display; later refreshes run on their own timer.
	e.refreshWallet(ctx)

	lastWallet := time.Now()
	lastPrune := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := time.Now()
		if now.Sub(lastPrune) > e.cfg.PruneEvery {
			e.prune()
			lastPrune = now
		}
		if now.Sub(lastWallet) > e.cfg.WalletRefresh {
			e.refreshWallet(ctx)
			lastWallet = now
		}

		e.Cycle(ctx, now)
	}
}

// Cycle runs one scheduler iteration: fetch → aggregate → persist → recompute
// → decide → publish. A failed or empty tick fetch skips the whole cycle; the
// state machine and indicators are not advanced. Exported so tests can drive
// the loop deterministically.
func (e *Engine) Cycle(ctx context.Context, now time.Time) {
	start := time.Now()

	price, err := e.exch.LatestPrice(ctx)
	if err != nil {
		e.board.Logf("tick fetch failed: %v", err)
		if e.met != nil {
			e.met.SkippedCycles.Inc()
		}
		return
	}

	if e.met != nil {
		e.met.TicksTotal.Inc()
		e.met.LastPrice.Set(price)
	}

	candle := e.agg.Observe(price, now)

	// First save carries zero indicator columns; the post-compute upsert
	// below overwrites the same bucket row.
	if err := e.store.UpsertCandle(candle, 0, 0, 0); err != nil {
		e.storeError("candle save", err)
	}

	vals := e.recompute()

	if err := e.store.UpsertCandle(candle, vals.RSI, vals.BandLower, vals.BandUpper); err != nil {
		e.storeError("candle save", err)
	}

	e.board.SetMarket(price, vals.RSI, vals.BandLower, vals.BandUpper, e.unrealizedPct(price))
	e.step(ctx, price, vals)
	e.publish()

	if e.met != nil {
		e.met.CyclesTotal.Inc()
		e.met.CurrentRSI.Set(vals.RSI)
		e.met.CycleDur.Observe(time.Since(start).Seconds())
	}
}

// recompute rebuilds the indicators from scratch over the freshly read
// window. A failed window read yields neutral values: no action this cycle.
func (e *Engine) recompute() indicator.Values {
	window, err := e.store.RecentCandles(e.cfg.HistoryWindow)
	if err != nil {
		e.storeError("window read", err)
		return indicator.Values{RSI: 50}
	}
	closes := make([]float64, len(window))
	for i, c := range window {
		closes[i] = c.Close
	}
	return indicator.Compute(closes, e.cfg.RSIPeriod, e.cfg.BandPeriod, e.cfg.BandWidth)
}

// step advances the position state machine by one cycle.
func (e *Engine) step(ctx context.Context, price float64, vals indicator.Values) {
	manual := e.exitRequested.Swap(false)

	switch pos := e.state.(type) {
	case model.Idle:
		if vals.RSI < e.cfg.RSIPanicBuy || (vals.RSI < e.cfg.RSIBuy && price < vals.BandLower) {
			e.enter(ctx, price)
		} else {
			e.board.SetPosition(StatusScanning, 0, 0)
		}

	case model.InPosition:
		if price > pos.HighestPrice {
			pos.HighestPrice = price
		}
		stopPrice := pos.HighestPrice * (1 - e.cfg.TrailingStopPct)

		// Stop-loss is evaluated before the overbought exit: a simultaneous
		// breach always books as a stop.
		switch {
		case manual:
			e.exit(ctx, price, pos, ExitReasonManual)
		case price < stopPrice:
			e.exit(ctx, price, pos, ExitReasonStop)
		case vals.RSI > e.cfg.RSISell:
			e.exit(ctx, price, pos, ExitReasonProfit)
		default:
			e.state = pos // carry the updated high-water mark
			e.board.SetPosition(StatusHolding, pos.EntryPrice, pos.Quantity)
		}
	}
}

// enter opens a position: ledger write, snapshot update, order side effect,
// then the state transition. The transition stands even if the order fails.
func (e *Engine) enter(ctx context.Context, price float64) {
	qty := e.cfg.TradeCapital / price
	e.board.Logf("BUY signal @ %.2f qty=%.6f", price, qty)

	if err := e.store.AppendTrade(model.TradeRecord{
		Action:    model.SideBuy,
		Price:     price,
		Quantity:  qty,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		e.storeError("trade append", err)
	}

	e.board.SetPosition(StatusInPosition, price, qty)

	if err := e.exch.SubmitOrder(ctx, model.SideBuy, price, qty); err != nil {
		e.board.Logf("ORDER DISCREPANCY: buy submit failed, position held locally: %v", err)
		if e.met != nil {
			e.met.OrderErrors.Inc()
		}
	}

	e.state = model.InPosition{EntryPrice: price, HighestPrice: price, Quantity: qty}
	if e.met != nil {
		e.met.TradesTotal.WithLabelValues(model.SideBuy).Inc()
	}
	e.alert(notification.AlertInfo, "Position opened",
		"buy @ %.2f qty=%.6f", price, qty)
}

// exit closes the position and books the realized profit.
func (e *Engine) exit(ctx context.Context, price float64, pos model.InPosition, reason string) {
	profit := (price - pos.EntryPrice) * pos.Quantity

	switch reason {
	case ExitReasonStop:
		e.board.Logf("STOP LOSS @ %.2f (profit %+.2f)", price, profit)
	case ExitReasonProfit:
		e.board.Logf("PROFIT TAKE @ %.2f (profit %+.2f)", price, profit)
	default:
		e.board.Logf("MANUAL CLOSE @ %.2f (profit %+.2f)", price, profit)
	}

	if err := e.store.AppendTrade(model.TradeRecord{
		Action:    model.SideSell,
		Price:     price,
		Quantity:  pos.Quantity,
		Profit:    profit,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		e.storeError("trade append", err)
	}

	e.board.ExitPosition(profit)

	if err := e.exch.SubmitOrder(ctx, model.SideSell, price, pos.Quantity); err != nil {
		e.board.Logf("ORDER DISCREPANCY: sell submit failed, position closed locally: %v", err)
		if e.met != nil {
			e.met.OrderErrors.Inc()
		}
	}

	e.state = model.Idle{}
	if e.met != nil {
		e.met.TradesTotal.WithLabelValues(model.SideSell).Inc()
	}
	e.alert(notification.AlertInfo, "Position closed",
		"sell @ %.2f reason=%s profit=%+.2f", price, reason, profit)
}

// unrealizedPct is the mark-to-market P&L percentage, 0 while idle.
func (e *Engine) unrealizedPct(price float64) float64 {
	if pos, ok := e.state.(model.InPosition); ok {
		return (price - pos.EntryPrice) / pos.EntryPrice * 100
	}
	return 0
}

func (e *Engine) refreshWallet(ctx context.Context) {
	balances, err := e.exch.Balances(ctx)
	if err != nil {
		e.board.Logf("balance refresh failed: %v", err)
		return
	}
	e.board.SetWallet(balances[e.cfg.QuoteAsset], balances[e.cfg.BaseAsset])
}

func (e *Engine) prune() {
	removed, err := e.store.Prune(e.cfg.PruneMaxAge)
	if err != nil {
		e.storeError("prune", err)
		return
	}
	e.board.Logf("pruned %d stale candles", removed)
}

func (e *Engine) publish() {
	if len(e.pubs) == 0 {
		return
	}
	snap := e.board.Read()
	for _, p := range e.pubs {
		p.PublishSnapshot(snap)
	}
}

// storeError logs a persistence failure; the in-memory state proceeds.
func (e *Engine) storeError(op string, err error) {
	e.board.Logf("store %s failed: %v", op, err)
	if e.met != nil {
		e.met.StoreErrors.Inc()
	}
}

// alert delivers a notification without blocking the cycle.
func (e *Engine) alert(level notification.AlertLevel, title, format string, args ...any) {
	if e.notify == nil {
		return
	}
	a := notification.Alert{Level: level, Title: title, Message: fmt.Sprintf(format, args...)}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.notify.Send(ctx, a); err != nil {
			e.board.Logf("alert delivery failed: %v", err)
		}
	}()
}
