package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scalper-botv1/internal/indicator"
	"scalper-botv1/internal/model"
	"scalper-botv1/internal/store/sqlite"
)

// fakeExchange scripts price responses and records submitted orders.
type fakeExchange struct {
	price    float64
	priceErr error
	bars     []model.Candle
	orders   []string
	orderErr error
}

func (f *fakeExchange) LatestPrice(ctx context.Context) (float64, error) {
	return f.price, f.priceErr
}

func (f *fakeExchange) RecentBars(ctx context.Context) ([]model.Candle, error) {
	return f.bars, nil
}

func (f *fakeExchange) Balances(ctx context.Context) (map[string]float64, error) {
	return map[string]float64{"USDT": 10000, "BTC": 0}, nil
}

func (f *fakeExchange) SubmitOrder(ctx context.Context, side string, price, qty float64) error {
	f.orders = append(f.orders, side)
	return f.orderErr
}

func testConfig() Config {
	return Config{
		Cadence:         5 * time.Second,
		BucketWidth:     time.Minute,
		TradeCapital:    10000,
		TrailingStopPct: 0.005,
		RSIBuy:          30,
		RSISell:         70,
		RSIPanicBuy:     20,
		RSIPeriod:       14,
		BandPeriod:      20,
		BandWidth:       2,
		HistoryWindow:   50,
		WalletRefresh:   time.Minute,
		PruneEvery:      5 * time.Minute,
		PruneMaxAge:     time.Hour,
		QuoteAsset:      "USDT",
		BaseAsset:       "BTC",
	}
}

func newTestEngine(t *testing.T) (*Engine, *fakeExchange, *Board) {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	exch := &fakeExchange{price: 100}
	board := NewBoard()
	return New(testConfig(), st, exch, board), exch, board
}

func TestStep_PanicBuyIgnoresBand(t *testing.T) {
	eng, exch, _ := newTestEngine(t)

	// RSI below the panic threshold buys even with price above the band.
	eng.step(context.Background(), 100, indicator.Values{RSI: 18, BandLower: 90, BandUpper: 110})

	pos, ok := eng.State().(model.InPosition)
	if !ok {
		t.Fatal("expected InPosition after panic buy")
	}
	if pos.EntryPrice != 100 {
		t.Errorf("expected entry 100, got %f", pos.EntryPrice)
	}
	if len(exch.orders) != 1 || exch.orders[0] != model.SideBuy {
		t.Errorf("expected one buy order, got %v", exch.orders)
	}
}

func TestStep_BuyNeedsOversoldAndBandBreach(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	// Oversold but price inside the band: no entry.
	eng.step(context.Background(), 100, indicator.Values{RSI: 29, BandLower: 90, BandUpper: 110})
	if _, ok := eng.State().(model.Idle); !ok {
		t.Fatal("expected Idle when price is above the lower band")
	}

	// Oversold and below the band: entry.
	eng.step(context.Background(), 85, indicator.Values{RSI: 29, BandLower: 90, BandUpper: 110})
	if _, ok := eng.State().(model.InPosition); !ok {
		t.Fatal("expected InPosition when oversold below the band")
	}
}

func TestStep_TrailingStop(t *testing.T) {
	eng, exch, _ := newTestEngine(t)
	eng.state = model.InPosition{EntryPrice: 100, HighestPrice: 110, Quantity: 1}
	neutral := indicator.Values{RSI: 50, BandLower: 90, BandUpper: 120}

	// Stop sits at 110 * 0.995 = 109.45; a tick just above holds.
	eng.step(context.Background(), 109.46, neutral)
	if _, ok := eng.State().(model.InPosition); !ok {
		t.Fatal("expected position held above the stop price")
	}

	// A tick below the stop exits.
	eng.step(context.Background(), 109.4, neutral)
	if _, ok := eng.State().(model.Idle); !ok {
		t.Fatal("expected stop-loss exit below the trailing stop")
	}
	if len(exch.orders) != 1 || exch.orders[0] != model.SideSell {
		t.Errorf("expected one sell order, got %v", exch.orders)
	}
}

func TestStep_HighWaterMarkRatchets(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	eng.state = model.InPosition{EntryPrice: 100, HighestPrice: 100, Quantity: 1}
	neutral := indicator.Values{RSI: 50, BandLower: 90, BandUpper: 120}

	eng.step(context.Background(), 108, neutral)
	eng.step(context.Background(), 105, neutral) // pullback must not lower the mark

	pos, ok := eng.State().(model.InPosition)
	if !ok {
		t.Fatal("expected position still open")
	}
	if pos.HighestPrice != 108 {
		t.Errorf("expected high-water mark 108, got %f", pos.HighestPrice)
	}
}

func TestStep_StopWinsOverOverbought(t *testing.T) {
	eng, _, board := newTestEngine(t)
	eng.state = model.InPosition{EntryPrice: 100, HighestPrice: 120, Quantity: 1}

	// Price below the stop while RSI is also overbought: the stop books it.
	eng.step(context.Background(), 110, indicator.Values{RSI: 80, BandLower: 90, BandUpper: 130})

	if _, ok := eng.State().(model.Idle); !ok {
		t.Fatal("expected exit")
	}
	logs := board.Read().Logs
	if len(logs) == 0 {
		t.Fatal("expected an exit log line")
	}
	found := false
	for _, line := range logs {
		if strings.Contains(line, "STOP LOSS") {
			found = true
		}
		if strings.Contains(line, "PROFIT TAKE") {
			t.Errorf("overbought exit booked instead of stop: %q", line)
		}
	}
	if !found {
		t.Error("expected a STOP LOSS log line")
	}
}

func TestStep_OverboughtExitBooksProfit(t *testing.T) {
	eng, _, board := newTestEngine(t)
	eng.state = model.InPosition{EntryPrice: 100, HighestPrice: 105, Quantity: 1}

	eng.step(context.Background(), 105, indicator.Values{RSI: 75, BandLower: 90, BandUpper: 120})

	if _, ok := eng.State().(model.Idle); !ok {
		t.Fatal("expected exit on overbought RSI")
	}
	snap := board.Read()
	if snap.RealizedPL != 5 {
		t.Errorf("expected realized profit 5, got %f", snap.RealizedPL)
	}
	if snap.EntryPrice != 0 || snap.PositionQty != 0 {
		t.Errorf("expected cleared position fields, got %+v", snap)
	}
}

func TestStep_RealizedAccumulatesAcrossRoundTrips(t *testing.T) {
	eng, _, board := newTestEngine(t)
	overbought := indicator.Values{RSI: 75, BandLower: 90, BandUpper: 120}

	for i := 0; i < 2; i++ {
		eng.state = model.InPosition{EntryPrice: 100, HighestPrice: 100, Quantity: 1}
		eng.step(context.Background(), 105, overbought)
	}
	if got := board.Read().RealizedPL; got != 10 {
		t.Errorf("expected cumulative realized 10, got %f", got)
	}
}

func TestStep_ManualExitRequest(t *testing.T) {
	eng, exch, board := newTestEngine(t)
	eng.state = model.InPosition{EntryPrice: 100, HighestPrice: 100, Quantity: 0.5}
	neutral := indicator.Values{RSI: 50, BandLower: 90, BandUpper: 120}

	eng.RequestExit()
	eng.step(context.Background(), 101, neutral)

	if _, ok := eng.State().(model.Idle); !ok {
		t.Fatal("expected manual exit on next step")
	}
	if len(exch.orders) != 1 || exch.orders[0] != model.SideSell {
		t.Errorf("expected one sell order, got %v", exch.orders)
	}
	found := false
	for _, line := range board.Read().Logs {
		if strings.Contains(line, "MANUAL CLOSE") {
			found = true
		}
	}
	if !found {
		t.Error("expected a MANUAL CLOSE log line")
	}

	// The request is consumed: a later position is not immediately closed.
	eng.state = model.InPosition{EntryPrice: 100, HighestPrice: 100, Quantity: 0.5}
	eng.step(context.Background(), 101, neutral)
	if _, ok := eng.State().(model.InPosition); !ok {
		t.Error("expected the exit request to be one-shot")
	}
}

func TestStep_OrderFailureKeepsLocalTransition(t *testing.T) {
	eng, exch, board := newTestEngine(t)
	exch.orderErr = errors.New("exchange down")

	eng.step(context.Background(), 100, indicator.Values{RSI: 18})

	// The position stands despite the rejected order.
	if _, ok := eng.State().(model.InPosition); !ok {
		t.Fatal("expected InPosition even after order failure")
	}
	found := false
	for _, line := range board.Read().Logs {
		if strings.Contains(line, "ORDER DISCREPANCY") {
			found = true
		}
	}
	if !found {
		t.Error("expected an ORDER DISCREPANCY log line")
	}
}

func TestCycle_FetchErrorSkipsCycle(t *testing.T) {
	eng, exch, _ := newTestEngine(t)
	exch.priceErr = errors.New("timeout")

	eng.Cycle(context.Background(), time.Now())

	if _, ok := eng.State().(model.Idle); !ok {
		t.Error("expected state untouched on fetch failure")
	}
	n, err := eng.store.CandleCount()
	if err != nil {
		t.Fatalf("candle count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no candle written on skipped cycle, got %d", n)
	}
}

func TestCycle_PersistsCandleAndIndicators(t *testing.T) {
	eng, exch, board := newTestEngine(t)
	exch.price = 50000
	now := time.UnixMilli(1700000000000)

	eng.Cycle(context.Background(), now)

	candles, err := eng.store.RecentCandles(10)
	if err != nil {
		t.Fatalf("recent candles: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("expected 1 candle, got %d", len(candles))
	}
	if candles[0].Close != 50000 {
		t.Errorf("expected close 50000, got %f", candles[0].Close)
	}

	snap := board.Read()
	if snap.Price != 50000 {
		t.Errorf("expected snapshot price 50000, got %f", snap.Price)
	}
	if snap.RSI != 50 {
		t.Errorf("expected neutral RSI during warm-up, got %f", snap.RSI)
	}
	if snap.Status != StatusScanning {
		t.Errorf("expected %q status, got %q", StatusScanning, snap.Status)
	}
}

func TestWarmup_BackfillsHistory(t *testing.T) {
	eng, exch, board := newTestEngine(t)
	base := int64(1700000000000)
	for i := 0; i < 5; i++ {
		px := 100 + float64(i)
		exch.bars = append(exch.bars, model.Candle{
			Time: base + int64(i)*60_000, Open: px, High: px, Low: px, Close: px,
		})
	}

	eng.Warmup(context.Background())

	n, err := eng.store.CandleCount()
	if err != nil {
		t.Fatalf("candle count: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 backfilled candles, got %d", n)
	}
	candles, err := eng.store.RecentCandles(10)
	if err != nil {
		t.Fatalf("recent candles: %v", err)
	}
	if candles[0].Time != base || candles[4].Close != 104 {
		t.Errorf("unexpected backfill: %+v", candles)
	}
	found := false
	for _, line := range board.Read().Logs {
		if strings.Contains(line, "synced 5 candles") {
			found = true
		}
	}
	if !found {
		t.Error("expected a sync log line")
	}
}

func TestUnrealizedPct(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	if got := eng.unrealizedPct(100); got != 0 {
		t.Errorf("expected 0 while idle, got %f", got)
	}

	eng.state = model.InPosition{EntryPrice: 100, HighestPrice: 100, Quantity: 1}
	if got := eng.unrealizedPct(102); got != 2 {
		t.Errorf("expected +2%%, got %f", got)
	}
	if got := eng.unrealizedPct(99); got != -1 {
		t.Errorf("expected -1%%, got %f", got)
	}
}
