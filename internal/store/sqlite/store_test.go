package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"scalper-botv1/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertCandle_LastWriteWins(t *testing.T) {
	s := openTestStore(t)
	bucket := time.Now().UnixMilli() / 60_000 * 60_000

	c := model.Candle{Time: bucket, Open: 100, High: 101, Low: 99, Close: 100.5}
	if err := s.UpsertCandle(c, 0, 0, 0); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	c.High = 105
	c.Close = 104
	if err := s.UpsertCandle(c, 55.5, 98, 106); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	n, err := s.CandleCount()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 row for the bucket, got %d", n)
	}

	got, err := s.RecentCandles(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if got[0].High != 105 || got[0].Close != 104 {
		t.Errorf("expected latest values to win, got %+v", got[0])
	}
}

func TestRecentCandles_OrderAndLimit(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().UnixMilli() / 60_000 * 60_000

	for i := 0; i < 5; i++ {
		c := model.Candle{
			Time: base + int64(i)*60_000,
			Open: float64(100 + i), High: float64(101 + i),
			Low: float64(99 + i), Close: float64(100 + i),
		}
		if err := s.UpsertCandle(c, 0, 0, 0); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	got, err := s.RecentCandles(3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Time <= got[i-1].Time {
			t.Errorf("expected oldest→newest order, got %d then %d", got[i-1].Time, got[i].Time)
		}
	}
	// The 3 newest buckets, not the 3 oldest.
	if got[2].Time != base+4*60_000 {
		t.Errorf("expected newest bucket %d, got %d", base+4*60_000, got[2].Time)
	}

	// Shorter history returns fewer rows, no error.
	all, err := s.RecentCandles(50)
	if err != nil {
		t.Fatalf("recent all: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("expected all 5 candles, got %d", len(all))
	}
}

func TestAppendTrade_Ledger(t *testing.T) {
	s := openTestStore(t)

	buy := model.TradeRecord{Action: model.SideBuy, Price: 100, Quantity: 1, Timestamp: "2026-01-02T03:04:05Z"}
	sell := model.TradeRecord{Action: model.SideSell, Price: 105, Quantity: 1, Profit: 5, Timestamp: "2026-01-02T03:09:05Z"}

	if err := s.AppendTrade(buy); err != nil {
		t.Fatalf("append buy: %v", err)
	}
	if err := s.AppendTrade(sell); err != nil {
		t.Fatalf("append sell: %v", err)
	}

	trades, err := s.RecentTrades(10)
	if err != nil {
		t.Fatalf("recent trades: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	// Newest first, ids assigned by the ledger.
	if trades[0].Action != model.SideSell || trades[0].Profit != 5 {
		t.Errorf("expected sell first, got %+v", trades[0])
	}
	if trades[0].ID <= trades[1].ID {
		t.Errorf("expected descending ids, got %d then %d", trades[0].ID, trades[1].ID)
	}
}

func TestPrune_CandlesOnlyTradesKept(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UnixMilli()

	old := model.Candle{Time: now - 2*3_600_000, Open: 1, High: 1, Low: 1, Close: 1}
	fresh := model.Candle{Time: now - 60_000, Open: 2, High: 2, Low: 2, Close: 2}
	if err := s.UpsertCandle(old, 0, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertCandle(fresh, 0, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendTrade(model.TradeRecord{Action: model.SideBuy, Price: 1, Quantity: 1, Timestamp: "2026-01-01T00:00:00Z"}); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Prune(time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 candle pruned, got %d", removed)
	}

	candles, err := s.RecentCandles(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 1 || candles[0].Time != fresh.Time {
		t.Errorf("expected only the fresh candle to remain, got %+v", candles)
	}

	trades, err := s.RecentTrades(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 1 {
		t.Errorf("expected trade ledger untouched by prune, got %d rows", len(trades))
	}
}
